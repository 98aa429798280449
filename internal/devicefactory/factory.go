package devicefactory

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sysofwan/ha-triones/internal/device"
	goble "github.com/sysofwan/ha-triones/internal/device/go-ble"
	"github.com/sysofwan/ha-triones/internal/device/tinyble"
)

// Supported transport backends
const (
	BackendGoBLE  = "go-ble"
	BackendTinyGo = "tinygo"
)

// Backends lists the accepted backend names
func Backends() []string {
	return []string{BackendGoBLE, BackendTinyGo}
}

// DeviceFactory creates a device for address on the named backend.
// This is a variable so that it can be overridden in tests.
var DeviceFactory = func(backend, address string, logger *logrus.Logger) (device.Device, error) {
	switch normalizeBackend(backend) {
	case BackendGoBLE:
		return goble.NewDevice(address, logger), nil
	case BackendTinyGo:
		return tinyble.NewDevice(address, logger), nil
	default:
		return nil, unsupported(backend)
	}
}

// ScannerFactory creates an advertisement scanner on the named backend.
// This is a variable so that it can be overridden in tests.
var ScannerFactory = func(backend string, logger *logrus.Logger) (device.Scanner, error) {
	switch normalizeBackend(backend) {
	case BackendGoBLE:
		return goble.NewScanner(logger), nil
	case BackendTinyGo:
		return tinyble.NewScanner(logger), nil
	default:
		return nil, unsupported(backend)
	}
}

// NewDevice creates a device using DeviceFactory
func NewDevice(backend, address string, logger *logrus.Logger) (device.Device, error) {
	return DeviceFactory(backend, address, logger)
}

// NewScanner creates a scanner using ScannerFactory
func NewScanner(backend string, logger *logrus.Logger) (device.Scanner, error) {
	return ScannerFactory(backend, logger)
}

func normalizeBackend(backend string) string {
	b := strings.ToLower(strings.TrimSpace(backend))
	if b == "" || b == "goble" {
		return BackendGoBLE
	}
	return b
}

func unsupported(backend string) error {
	return fmt.Errorf("%w: backend %q (must be one of %s)", device.ErrUnsupported, backend, strings.Join(Backends(), ", "))
}
