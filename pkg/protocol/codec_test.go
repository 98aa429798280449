package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSetColor_AllChannels(t *testing.T) {
	// GOAL: Verify the RGB frame layout for every channel combination
	//
	// TEST SCENARIO: Encode every (r,g,b) → fixed markers in place → channels copied verbatim

	step := 1
	if testing.Short() {
		step = 15
	}

	for r := 0; r <= 255; r += step {
		for g := 0; g <= 255; g += step {
			for b := 0; b <= 255; b += step {
				f := EncodeSetColor(uint8(r), uint8(g), uint8(b))
				if len(f) != ColorFrameLen ||
					f[0] != 0x56 || f[4] != 0x00 || f[5] != 0xF0 || f[6] != 0xAA ||
					f[1] != uint8(r) || f[2] != uint8(g) || f[3] != uint8(b) {
					require.Failf(t, "bad colour frame", "rgb=(%d,%d,%d) frame=%s", r, g, b, FormatFrame(f))
				}
			}
		}
	}
}

func TestEncodeFrames(t *testing.T) {
	tests := []struct {
		name     string
		frame    []byte
		expected []byte
	}{
		{"set colour", EncodeSetColor(10, 20, 30), []byte{0x56, 10, 20, 30, 0x00, 0xF0, 0xAA}},
		{"set white", EncodeSetWhite(200), []byte{0x56, 0x00, 0x00, 0x00, 200, 0x0F, 0xAA}},
		{"set white zero", EncodeSetWhite(0), []byte{0x56, 0x00, 0x00, 0x00, 0x00, 0x0F, 0xAA}},
		{"power on", EncodePowerOn(), []byte{0xCC, 0x23, 0x33}},
		{"power off", EncodePowerOff(), []byte{0xCC, 0x24, 0x33}},
		{"status query", EncodeStatusQuery(), []byte{0xEF, 0x01, 0x77}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.frame, "frame MUST match the vendor layout")
		})
	}
}

func TestEncodeReturnsFreshFrames(t *testing.T) {
	a := EncodePowerOn()
	a[1] = 0x00
	assert.Equal(t, byte(0x23), EncodePowerOn()[1], "frames MUST NOT share backing storage")
}

func TestFormatFrame(t *testing.T) {
	assert.Equal(t, "ef 01 77", FormatFrame(EncodeStatusQuery()))
	assert.Equal(t, "", FormatFrame(nil))
}
