package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sysofwan/ha-triones/pkg/light"
)

func newStatusCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "status <device>...",
		Short: "Query power, colour and brightness of lights",
		Long: `Connect to each light, send a status query and print the decoded state.

<device> is an address or a device name from the config file. Lights are
queried concurrently; a light that does not answer is reported as unavailable.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, args, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string, format string) error {
	if !slices.Contains(statusFormats, format) {
		return fmt.Errorf("invalid format '%s': must be one of %v", format, statusFormats)
	}

	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	lights := make([]*light.Light, 0, len(args))
	for _, arg := range args {
		l, err := a.light(arg)
		if err != nil {
			return err
		}
		lights = append(lights, l)
	}
	cmd.SilenceUsage = true

	snaps, err := pollLights(cmd, a, lights)
	if err != nil {
		return err
	}

	if format == "json" {
		if err := renderSnapshotsJSON(cmd.OutOrStdout(), snaps, true); err != nil {
			return err
		}
	} else {
		renderSnapshotsText(cmd.OutOrStdout(), snaps)
	}

	var unavailable []string
	for _, s := range snaps {
		if !s.Available {
			unavailable = append(unavailable, s.Address)
		}
	}
	if len(unavailable) > 0 {
		return fmt.Errorf("%w: %s", ErrUnavailable, strings.Join(unavailable, ", "))
	}
	return nil
}

// pollLights refreshes every session concurrently and snapshots lights in order
func pollLights(cmd *cobra.Command, a *app, lights []*light.Light) ([]light.Snapshot, error) {
	ctx := cmd.Context()
	a.registry.UpdateAll(ctx)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	snaps := make([]light.Snapshot, len(lights))
	for i, l := range lights {
		snaps[i] = l.Snapshot()
	}
	return snaps, nil
}
