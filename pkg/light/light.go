// Package light maps a device session onto the generic smart light model:
// on/off, RGB colour mode and white/brightness mode.
package light

import (
	"context"

	"github.com/sysofwan/ha-triones/pkg/protocol"
)

// Controller is the session surface a Light needs. *session.Session implements it.
type Controller interface {
	MAC() string
	IsOn() (on bool, known bool)
	RGBColor() (protocol.RGB, bool)
	WhiteBrightness() (uint8, bool)

	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	SetColor(ctx context.Context, c protocol.RGB) error
	SetWhite(ctx context.Context, intensity uint8) error
	Update(ctx context.Context)
}

// ColorMode is the mode the light currently reports
type ColorMode string

const (
	ColorModeUnknown ColorMode = "unknown"
	ColorModeRGB     ColorMode = "rgb"
	ColorModeWhite   ColorMode = "white"
)

// TurnOnOptions carries the optional attributes of a turn-on request.
// White takes precedence over RGB; Brightness alone rescales the current colour.
type TurnOnOptions struct {
	White      *uint8
	RGB        *protocol.RGB
	Brightness *uint8
}

// Light is a named light backed by a session
type Light struct {
	ctrl Controller
	name string
}

// New creates a Light. The name is only used for display.
func New(ctrl Controller, name string) *Light {
	if name == "" {
		name = ctrl.MAC()
	}
	return &Light{ctrl: ctrl, name: name}
}

func (l *Light) Name() string { return l.name }

// UniqueID is the device address
func (l *Light) UniqueID() string { return l.ctrl.MAC() }

// Available reports whether the last poll produced a power state
func (l *Light) Available() bool {
	_, known := l.ctrl.IsOn()
	return known
}

// IsOn returns the power state; known is false when unavailable.
func (l *Light) IsOn() (on bool, known bool) {
	return l.ctrl.IsOn()
}

// Brightness is the white brightness when present, else the brightest colour channel.
func (l *Light) Brightness() (uint8, bool) {
	if w, ok := l.ctrl.WhiteBrightness(); ok {
		return w, true
	}
	if c, ok := l.ctrl.RGBColor(); ok {
		return c.Max(), true
	}
	return 0, false
}

// RGBColor returns the reported colour scaled so its brightest channel is 255.
func (l *Light) RGBColor() (protocol.RGB, bool) {
	c, ok := l.ctrl.RGBColor()
	if !ok {
		return protocol.RGB{}, false
	}
	return ScaleToMax(c), true
}

// ColorMode is white when the reported colour is black, rgb for any other colour.
func (l *Light) ColorMode() ColorMode {
	c, ok := l.ctrl.RGBColor()
	switch {
	case !ok:
		return ColorModeUnknown
	case c.IsBlack():
		return ColorModeWhite
	default:
		return ColorModeRGB
	}
}

// TurnOn powers the light on when it is not known to be on, then applies opts.
// Attributes equal to the current ones are not re-sent.
func (l *Light) TurnOn(ctx context.Context, opts TurnOnOptions) error {
	if on, known := l.ctrl.IsOn(); !known || !on {
		if err := l.ctrl.TurnOn(ctx); err != nil {
			return err
		}
	}

	brightness, hasBrightness := l.Brightness()

	switch {
	case opts.White != nil:
		if hasBrightness && *opts.White == brightness {
			return nil
		}
		return l.ctrl.SetWhite(ctx, *opts.White)

	case opts.RGB != nil:
		if current, ok := l.RGBColor(); ok && current == *opts.RGB {
			return nil
		}
		target := uint8(255)
		switch {
		case opts.Brightness != nil:
			target = *opts.Brightness
		case hasBrightness:
			target = brightness
		}
		return l.ctrl.SetColor(ctx, ApplyBrightness(*opts.RGB, target))

	case opts.Brightness != nil:
		if hasBrightness && *opts.Brightness == brightness {
			return nil
		}
		current, ok := l.RGBColor()
		if !ok {
			return nil
		}
		if l.ColorMode() == ColorModeWhite {
			return l.ctrl.SetWhite(ctx, *opts.Brightness)
		}
		return l.ctrl.SetColor(ctx, ApplyBrightness(current, *opts.Brightness))
	}
	return nil
}

func (l *Light) TurnOff(ctx context.Context) error {
	return l.ctrl.TurnOff(ctx)
}

// Update polls the device. Failures show up as an unavailable light.
func (l *Light) Update(ctx context.Context) {
	l.ctrl.Update(ctx)
}

// ScaleToMax scales c so that its brightest channel becomes 255. Black stays black.
func ScaleToMax(c protocol.RGB) protocol.RGB {
	m := c.Max()
	if m == 0 {
		return protocol.RGB{}
	}
	scale := func(v uint8) uint8 {
		return uint8((int(v)*255 + int(m)/2) / int(m))
	}
	return protocol.RGB{R: scale(c.R), G: scale(c.G), B: scale(c.B)}
}

// ApplyBrightness scales c to full brightness, then down to brightness/255.
func ApplyBrightness(c protocol.RGB, brightness uint8) protocol.RGB {
	full := ScaleToMax(c)
	apply := func(v uint8) uint8 {
		return uint8(int(v) * int(brightness) / 255)
	}
	return protocol.RGB{R: apply(full.R), G: apply(full.G), B: apply(full.B)}
}

// Snapshot is a point-in-time view of a Light for display
type Snapshot struct {
	Name       string        `json:"name"`
	Address    string        `json:"address"`
	Available  bool          `json:"available"`
	On         *bool         `json:"on,omitempty"`
	Brightness *uint8        `json:"brightness,omitempty"`
	Color      *protocol.RGB `json:"rgb_color,omitempty"`
	ColorMode  ColorMode     `json:"color_mode"`
}

// Snapshot captures the presentation values of the Light
func (l *Light) Snapshot() Snapshot {
	s := Snapshot{
		Name:      l.Name(),
		Address:   l.UniqueID(),
		Available: l.Available(),
		ColorMode: l.ColorMode(),
	}
	if on, known := l.IsOn(); known {
		s.On = &on
	}
	if b, ok := l.Brightness(); ok {
		s.Brightness = &b
	}
	if c, ok := l.RGBColor(); ok {
		s.Color = &c
	}
	return s
}
