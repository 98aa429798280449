package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/sysofwan/ha-triones/internal/devicefactory"
	"github.com/sysofwan/ha-triones/pkg/discovery"
)

var validFormats = []string{"table", "json"}

type scanOptions struct {
	duration  time.Duration
	format    string
	all       bool
	allowList []string
	blockList []string
}

func newScanCmd() *cobra.Command {
	o := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for compatible lights",
		Long: `Scan for Bluetooth Low Energy lights in the vicinity.

Only devices whose advertised name matches the configured variant are listed
(names starting with "Triones" or "LEDBLE"); use --all to list every named device.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, o)
		},
	}

	cmd.Flags().DurationVarP(&o.duration, "duration", "d", 0, "Scan duration (default from config, 10s)")
	cmd.Flags().StringVarP(&o.format, "format", "f", "table", "Output format (table, json)")
	cmd.Flags().BoolVarP(&o.all, "all", "a", false, "List every named device, not only compatible lights")
	cmd.Flags().StringSliceVar(&o.allowList, "allow", nil, "Only show devices with these addresses")
	cmd.Flags().StringSliceVar(&o.blockList, "block", nil, "Hide devices with these addresses")
	return cmd
}

func runScan(cmd *cobra.Command, o *scanOptions) error {
	if !slices.Contains(validFormats, o.format) {
		return fmt.Errorf("invalid format '%s': must be one of %v", o.format, validFormats)
	}

	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	backend, err := devicefactory.NewScanner(a.cfg.Backend, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create BLE scanner: %w", err)
	}

	opts := &discovery.ScanOptions{
		Duration:  a.cfg.ScanTimeout,
		Matcher:   a.cfg.Matcher(),
		AllowList: o.allowList,
		BlockList: o.blockList,
	}
	if o.duration > 0 {
		opts.Duration = o.duration
	}
	if o.all {
		opts.Matcher = discovery.AnyNamed{}
	}

	progress := NewCountdownProgressPrinter(cmd.ErrOrStderr(), "Scanning for lights", "Scanning", opts.Duration, "Processing results")
	opts.OnFound = func(discovery.Peripheral) { progress.Found() }
	progress.Start()
	defer progress.Stop()

	found, err := discovery.NewScanner(backend, a.logger).Scan(cmd.Context(), opts, progress.Callback())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if o.format == "json" {
		return displayPeripheralsJSON(out, found)
	}
	return displayPeripheralsTable(out, found)
}

func displayPeripheralsTable(out io.Writer, found []discovery.Peripheral) error {
	if len(found) == 0 {
		fmt.Fprintln(out, "No devices discovered")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI")
	fmt.Fprintln(w, strings.Repeat("-", 50))
	for _, p := range found {
		name := p.Name
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%d dBm\n", name, p.Address, p.RSSI)
	}
	return w.Flush()
}

func displayPeripheralsJSON(out io.Writer, found []discovery.Peripheral) error {
	if found == nil {
		found = []discovery.Peripheral{}
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(found)
}
