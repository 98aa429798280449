// Package protocol encodes command frames for Triones/LEDBLE light controllers
// and decodes the status frames they send back as notifications.
//
// All functions are pure. Frames are fixed length and carry no checksum.
package protocol

import (
	"fmt"
	"strings"
)

// Command frame markers
const (
	colorHeader   byte = 0x56
	colorTrailer  byte = 0xAA
	modeRGB       byte = 0xF0
	modeWhite     byte = 0x0F
	powerHeader   byte = 0xCC
	powerTrailer  byte = 0x33
	queryHeader   byte = 0xEF
	queryOpcode   byte = 0x01
	queryTrailer  byte = 0x77
	powerOnValue  byte = 0x23
	powerOffValue byte = 0x24
)

// Frame lengths
const (
	ColorFrameLen  = 7
	PowerFrameLen  = 3
	QueryFrameLen  = 3
	StatusFrameLen = 10
)

// EncodeSetColor builds the RGB command [0x56, r, g, b, 0x00, 0xF0, 0xAA].
func EncodeSetColor(r, g, b uint8) []byte {
	return []byte{colorHeader, r, g, b, 0x00, modeRGB, colorTrailer}
}

// EncodeSetWhite builds the white-channel command [0x56, 0, 0, 0, intensity, 0x0F, 0xAA].
func EncodeSetWhite(intensity uint8) []byte {
	return []byte{colorHeader, 0x00, 0x00, 0x00, intensity, modeWhite, colorTrailer}
}

// EncodePowerOn builds [0xCC, 0x23, 0x33].
func EncodePowerOn() []byte {
	return []byte{powerHeader, powerOnValue, powerTrailer}
}

// EncodePowerOff builds [0xCC, 0x24, 0x33].
func EncodePowerOff() []byte {
	return []byte{powerHeader, powerOffValue, powerTrailer}
}

// EncodeStatusQuery builds [0xEF, 0x01, 0x77]. The device answers with a
// status frame on its notify characteristic.
func EncodeStatusQuery() []byte {
	return []byte{queryHeader, queryOpcode, queryTrailer}
}

// FormatFrame renders a frame as space separated hex bytes for debug logs.
func FormatFrame(frame []byte) string {
	var sb strings.Builder
	for i, b := range frame {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", b)
	}
	return sb.String()
}
