package protocol

import (
	"errors"
	"fmt"
)

// ErrFrameTooShort is returned by DecodeStatus for frames shorter than StatusFrameLen.
var ErrFrameTooShort = errors.New("status frame too short")

// Status frame byte offsets
const (
	offsetPower = 2
	offsetRed   = 6
	offsetGreen = 7
	offsetBlue  = 8
	offsetWhite = 9
)

// Power is the tri-state power report of a device.
type Power int8

const (
	PowerUnknown Power = iota
	PowerOn
	PowerOff
)

func (p Power) String() string {
	switch p {
	case PowerOn:
		return "on"
	case PowerOff:
		return "off"
	default:
		return "unknown"
	}
}

// Known reports whether the power state was decoded.
func (p Power) Known() bool {
	return p == PowerOn || p == PowerOff
}

// MarshalText renders the power state as on, off or unknown.
func (p Power) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// RGB is a colour with 0-255 channels.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Max returns the brightest channel value.
func (c RGB) Max() uint8 {
	return max(c.R, c.G, c.B)
}

// IsBlack reports whether every channel is zero.
func (c RGB) IsBlack() bool {
	return c == RGB{}
}

func (c RGB) String() string {
	return fmt.Sprintf("(%d, %d, %d)", c.R, c.G, c.B)
}

// State is one decoded status snapshot. Color and White are nil when absent.
// A State is replaced as a whole, never patched field by field.
type State struct {
	Power Power  `json:"power"`
	Color *RGB   `json:"color,omitempty"`
	White *uint8 `json:"white_brightness,omitempty"`
}

// UnknownState is the snapshot used when no status could be obtained.
func UnknownState() State {
	return State{Power: PowerUnknown}
}

// IsOn returns the power state; ok is false when the power is unknown.
func (s State) IsOn() (on bool, ok bool) {
	return s.Power == PowerOn, s.Power.Known()
}

// RGBColor returns the colour channels; ok is false when absent.
func (s State) RGBColor() (RGB, bool) {
	if s.Color == nil {
		return RGB{}, false
	}
	return *s.Color, true
}

// WhiteBrightness returns the white channel intensity (1-255); ok is false when
// the device is not in white mode.
func (s State) WhiteBrightness() (uint8, bool) {
	if s.White == nil {
		return 0, false
	}
	return *s.White, true
}

// Clone returns a deep copy so cached snapshots are never shared with callers.
func (s State) Clone() State {
	out := State{Power: s.Power}
	if s.Color != nil {
		c := *s.Color
		out.Color = &c
	}
	if s.White != nil {
		w := *s.White
		out.White = &w
	}
	return out
}

// DecodeStatus decodes a status notification.
//
// Byte 2 carries power (0x23 on, 0x24 off, anything else unknown), bytes 6-8 the
// RGB channels and byte 9 the white intensity, where 0 means not in white mode.
// Trailing bytes beyond StatusFrameLen are ignored.
func DecodeStatus(frame []byte) (State, error) {
	if len(frame) < StatusFrameLen {
		return UnknownState(), fmt.Errorf("%w: got %d bytes, need %d", ErrFrameTooShort, len(frame), StatusFrameLen)
	}

	st := State{Power: PowerUnknown}
	switch frame[offsetPower] {
	case powerOnValue:
		st.Power = PowerOn
	case powerOffValue:
		st.Power = PowerOff
	}

	st.Color = &RGB{R: frame[offsetRed], G: frame[offsetGreen], B: frame[offsetBlue]}

	if w := frame[offsetWhite]; w > 0 {
		st.White = &w
	}
	return st, nil
}
