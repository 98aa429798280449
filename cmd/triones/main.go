package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// newRootCmd builds the command tree. Every call returns fresh commands and flags.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "triones",
		Short: "Control Triones / LEDBLE Bluetooth RGBW lights",
		Long: `Command-line host for Triones and LEDBLE Bluetooth Low Energy RGBW light controllers:

- Scan for compatible lights nearby
- Query power, colour and white brightness
- Switch lights on and off, set RGB colour or white brightness
- Poll a fleet of configured lights

Lights are addressed by MAC address (a CoreBluetooth UUID on macOS) or by
a name from the config file.`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),

		// main() prints clean errors
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default ~/.config/triones/config.yaml)")
	pf.String("backend", "", "BLE backend (go-ble, tinygo); overrides config")
	pf.String("variant", "", "Protocol variant (catalog, fixed); overrides config")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.Bool("verbose", false, "Verbose output (same as --log-level=debug)")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	rootCmd.AddCommand(
		newScanCmd(),
		newStatusCmd(),
		newOnCmd(),
		newOffCmd(),
		newColorCmd(),
		newWhiteCmd(),
		newWatchCmd(),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}
