//go:build linux

package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// newHostDevice opens the default HCI adapter. This needs CAP_NET_ADMIN and
// the adapter must not be claimed by bluetoothd; use the tinygo backend to
// share the adapter with BlueZ.
func newHostDevice() (ble.Device, error) {
	return linux.NewDevice()
}
