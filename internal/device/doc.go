// Package device provides the transport-agnostic Bluetooth Low Energy (BLE)
// abstractions used by the light session layer.
//
// Backends (go-ble, tinygo bluetooth) implement these interfaces:
//   - Device: one remote peripheral, connect/disconnect lifecycle
//   - Connection: the characteristics discovered on a live link
//   - Characteristic: write and notification subscribe/unsubscribe
//   - Scanner: advertisement scanning for discovery
package device
