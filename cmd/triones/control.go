package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sysofwan/ha-triones/pkg/light"
	"github.com/sysofwan/ha-triones/pkg/protocol"
)

func newOnCmd() *cobra.Command {
	var white, rgb, brightness string
	cmd := &cobra.Command{
		Use:   "on <device>",
		Short: "Switch a light on",
		Long: `Switch a light on, optionally setting white brightness or an RGB colour.

--rgb is scaled so its brightest channel is full and then dimmed by --brightness
(or the current brightness). --brightness alone dims the current colour.`,
		Example: `  triones on kitchen
  triones on kitchen --white 128
  triones on AA:BB:CC:DD:EE:FF --rgb 255,64,0 --brightness 200`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts light.TurnOnOptions
			var err error
			if opts.White, err = optionalByte("white", white); err != nil {
				return err
			}
			if opts.Brightness, err = optionalByte("brightness", brightness); err != nil {
				return err
			}
			if rgb != "" {
				c, err := parseRGB(strings.Split(rgb, ","))
				if err != nil {
					return err
				}
				opts.RGB = &c
			}
			return withLight(cmd, args[0], "on", func(l *light.Light) error {
				// the current state drives what TurnOn needs to send
				l.Update(cmd.Context())
				return l.TurnOn(cmd.Context(), opts)
			})
		},
	}
	cmd.Flags().StringVar(&white, "white", "", "White brightness (0-255)")
	cmd.Flags().StringVar(&rgb, "rgb", "", "RGB colour as R,G,B (0-255 each)")
	cmd.Flags().StringVar(&brightness, "brightness", "", "Brightness (0-255)")
	cmd.MarkFlagsMutuallyExclusive("white", "rgb")
	return cmd
}

func newOffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "off <device>",
		Short: "Switch a light off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLight(cmd, args[0], "off", func(l *light.Light) error {
				return l.TurnOff(cmd.Context())
			})
		},
	}
}

func newColorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "color <device> <r> <g> <b>",
		Short: "Set an RGB colour exactly as given",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseRGB(args[1:])
			if err != nil {
				return err
			}
			return withSession(cmd, args[0], "color "+c.String(), func(s sessionCommands) error {
				return s.SetColor(cmd.Context(), c)
			})
		},
	}
}

func newWhiteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "white <device> <intensity>",
		Short: "Set white brightness (0-255)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseByte("intensity", args[1])
			if err != nil {
				return err
			}
			return withSession(cmd, args[0], fmt.Sprintf("white %d", v), func(s sessionCommands) error {
				return s.SetWhite(cmd.Context(), v)
			})
		},
	}
}

// sessionCommands are the raw write operations of a session
type sessionCommands interface {
	SetColor(ctx context.Context, c protocol.RGB) error
	SetWhite(ctx context.Context, intensity uint8) error
}

func withSession(cmd *cobra.Command, arg, what string, fn func(sessionCommands) error) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	sess, _, err := a.session(arg)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	if err := fn(sess); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", sess.MAC(), what)
	return nil
}

func withLight(cmd *cobra.Command, arg, what string, fn func(*light.Light) error) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	l, err := a.light(arg)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	if err := fn(l); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", snapshotLabel(l.Snapshot()), what)
	return nil
}

func parseByte(name, s string) (uint8, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be an integer between 0 and 255", name, s)
	}
	return uint8(v), nil
}

func optionalByte(name, s string) (*uint8, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parseByte(name, s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseRGB(parts []string) (protocol.RGB, error) {
	if len(parts) != 3 {
		return protocol.RGB{}, fmt.Errorf("invalid colour %q: expected R,G,B", strings.Join(parts, ","))
	}
	var ch [3]uint8
	for i, name := range []string{"red", "green", "blue"} {
		v, err := parseByte(name, parts[i])
		if err != nil {
			return protocol.RGB{}, err
		}
		ch[i] = v
	}
	return protocol.RGB{R: ch[0], G: ch[1], B: ch[2]}, nil
}
