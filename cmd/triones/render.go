package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/sysofwan/ha-triones/pkg/light"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var statusFormats = []string{"text", "json"}

func snapshotLabel(s light.Snapshot) string {
	if s.Name == "" || s.Name == s.Address {
		return s.Address
	}
	return fmt.Sprintf("%s (%s)", s.Name, s.Address)
}

func powerString(on *bool) string {
	switch {
	case on == nil:
		return color.YellowString("unknown")
	case *on:
		return color.GreenString("on")
	default:
		return color.RedString("off")
	}
}

// renderSnapshotsText prints one block per light
func renderSnapshotsText(out io.Writer, snaps []light.Snapshot) {
	for _, s := range snaps {
		label := snapshotLabel(s)
		if !s.Available {
			fmt.Fprintf(out, "%s: %s\n", label, color.YellowString("unavailable"))
			continue
		}

		fmt.Fprintln(out, color.New(color.Bold).Sprint(label))
		fmt.Fprintf(out, "  power:       %s\n", powerString(s.On))
		fmt.Fprintf(out, "  mode:        %s\n", s.ColorMode)
		if s.Brightness != nil {
			fmt.Fprintf(out, "  brightness:  %d\n", *s.Brightness)
		}
		if s.Color != nil {
			c := *s.Color
			swatch := ""
			if !color.NoColor {
				swatch = " " + color.BgRGB(int(c.R), int(c.G), int(c.B)).Sprint("    ")
			}
			fmt.Fprintf(out, "  color:       #%02x%02x%02x%s\n", c.R, c.G, c.B, swatch)
		}
	}
}

// renderSnapshotsJSON prints an object keyed by address, in argument order.
// indent=false writes one line, for streaming from watch.
func renderSnapshotsJSON(out io.Writer, snaps []light.Snapshot, indent bool) error {
	om := orderedmap.New[string, light.Snapshot]()
	for _, s := range snaps {
		om.Set(s.Address, s)
	}

	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(om, "", "  ")
	} else {
		data, err = json.Marshal(om)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
