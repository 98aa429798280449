package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/sysofwan/ha-triones/pkg/light"
)

type watchOptions struct {
	interval time.Duration
	format   string
	count    int
}

func newWatchCmd() *cobra.Command {
	o := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch [device...]",
		Short: "Poll lights periodically",
		Long: `Poll lights at a fixed interval and print their state until interrupted.

Without arguments every device in the config file is polled. Each light has its
own session, so one unreachable light does not delay the others.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args, o)
		},
	}
	cmd.Flags().DurationVarP(&o.interval, "interval", "i", 30*time.Second, "Polling interval")
	cmd.Flags().StringVarP(&o.format, "format", "f", "text", "Output format (text, json lines)")
	cmd.Flags().IntVarP(&o.count, "count", "n", 0, "Stop after this many polls (0 polls until Ctrl+C)")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string, o *watchOptions) error {
	if !slices.Contains(statusFormats, o.format) {
		return fmt.Errorf("invalid format '%s': must be one of %v", o.format, statusFormats)
	}
	if o.interval <= 0 {
		return fmt.Errorf("invalid interval %s: must be positive", o.interval)
	}

	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	if len(args) == 0 {
		for _, d := range a.cfg.Devices {
			args = append(args, d.Address)
		}
	}
	if len(args) == 0 {
		return fmt.Errorf("no devices to watch: pass addresses or add devices to the config file")
	}

	lights := make([]*light.Light, 0, len(args))
	for _, arg := range args {
		l, err := a.light(arg)
		if err != nil {
			return err
		}
		lights = append(lights, l)
	}
	cmd.SilenceUsage = true

	a.logger.WithFields(logrus.Fields{
		"devices":  len(lights),
		"interval": o.interval,
	}).Info("Watching lights")

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	out := cmd.OutOrStdout()
	for poll := 1; ; poll++ {
		snaps, err := pollLights(cmd, a, lights)
		if err != nil {
			return err
		}

		if o.format == "json" {
			if err := renderSnapshotsJSON(out, snaps, false); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "--- %s\n", time.Now().Format(time.TimeOnly))
			renderSnapshotsText(out, snaps)
		}

		if o.count > 0 && poll >= o.count {
			return nil
		}

		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-ticker.C:
		}
	}
}
