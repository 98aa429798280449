package goble

import (
	"github.com/go-ble/ble"
	"github.com/sysofwan/ha-triones/internal/device"
)

var propertyMap = []struct {
	from ble.Property
	to   device.Property
}{
	{ble.CharRead, device.PropRead},
	{ble.CharWrite, device.PropWrite},
	{ble.CharWriteNR, device.PropWriteWithoutResponse},
	{ble.CharNotify, device.PropNotify},
	{ble.CharIndicate, device.PropIndicate},
}

// toProperty maps go-ble property bits onto device.Property.
// Broadcast, signed write and extended properties have no counterpart.
func toProperty(p ble.Property) device.Property {
	var out device.Property
	for _, m := range propertyMap {
		if p&m.from != 0 {
			out |= m.to
		}
	}
	return out
}
