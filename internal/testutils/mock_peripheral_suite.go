//go:build test

package testutils

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
	"github.com/sysofwan/ha-triones/internal/device"
	"github.com/sysofwan/ha-triones/internal/devicefactory"
)

// MockPeripheralSuite is a testify suite that routes devicefactory to fake
// peripherals and a fake scanner.
//
// Basic usage (a Triones peripheral that reports "on, red"):
//
//	type StatusSuite struct {
//	    testutils.MockPeripheralSuite
//	}
//
//	func TestStatusSuite(t *testing.T) {
//	    suite.Run(t, new(StatusSuite))
//	}
//
// Custom peripheral:
//
//	func (s *StatusSuite) SetupTest() {
//	    s.WithPeripheral().
//	        WithService("ffe5").
//	        WithCharacteristic("ffe9", "write").
//	        WithService("ffe0").
//	        WithCharacteristic("ffe4", "notify")
//
//	    s.MockPeripheralSuite.SetupTest() // Call parent last to apply configuration
//	}
type MockPeripheralSuite struct {
	suite.Suite

	Helper *TestHelper
	Logger *logrus.Logger

	OriginalDeviceFactory  func(backend, address string, logger *logrus.Logger) (device.Device, error)
	OriginalScannerFactory func(backend string, logger *logrus.Logger) (device.Scanner, error)
	TestTimeout            time.Duration

	PeripheralBuilder     *PeripheralBuilder
	AdvertisementsBuilder *AdvertisementArrayBuilder[[]device.Advertisement]
	// overrides replace PeripheralBuilder for specific addresses
	overrides map[string]*PeripheralBuilder

	// Peripherals holds every fake created during the current test, by address.
	Peripherals map[string]*FakePeripheral
	Scanner     *FakeScanner
}

func (s *MockPeripheralSuite) SetupSuite() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.TestTimeout = 10 * time.Second

	s.OriginalDeviceFactory = devicefactory.DeviceFactory
	s.OriginalScannerFactory = devicefactory.ScannerFactory

	s.T().Cleanup(func() {
		devicefactory.DeviceFactory = s.OriginalDeviceFactory
		devicefactory.ScannerFactory = s.OriginalScannerFactory
		s.Logger.Debug("Device factories restored via t.Cleanup")
	})

	s.Logger.Debug("Suite setup completed")
}

// SetupTest installs the fake factories before each test.
func (s *MockPeripheralSuite) SetupTest() {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = CreateTrionesPeripheral(StatusFrame(0x23, 255, 0, 0, 0))
	}

	var ads []device.Advertisement
	if s.AdvertisementsBuilder != nil {
		ads = s.AdvertisementsBuilder.Build()
	}
	s.Scanner = &FakeScanner{Ads: ads}
	s.Peripherals = make(map[string]*FakePeripheral)

	devicefactory.DeviceFactory = func(_ string, address string, _ *logrus.Logger) (device.Device, error) {
		if p, ok := s.Peripherals[address]; ok {
			return p, nil
		}
		builder := s.PeripheralBuilder
		if o, ok := s.overrides[address]; ok {
			builder = o
		}
		p := builder.WithAddress(address).Build()
		s.Peripherals[address] = p
		return p, nil
	}
	devicefactory.ScannerFactory = func(string, *logrus.Logger) (device.Scanner, error) {
		return s.Scanner, nil
	}

	s.Logger.Debug("Test setup completed - ready for execution")
}

func (s *MockPeripheralSuite) TearDownTest() {
	for _, p := range s.Peripherals {
		p.Wait()
	}
	devicefactory.DeviceFactory = s.OriginalDeviceFactory
	devicefactory.ScannerFactory = s.OriginalScannerFactory

	s.PeripheralBuilder = nil
	s.AdvertisementsBuilder = nil
	s.Peripherals = nil
	s.overrides = nil
}

// WithPeripheral returns the peripheral builder for configuration in SetupTest.
func (s *MockPeripheralSuite) WithPeripheral() *PeripheralBuilder {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = NewPeripheralBuilder()
	}
	return s.PeripheralBuilder
}

// WithPeripheralAt sets the builder used for one address. It can be called
// from a test body; the builder is consulted when the device is first created.
func (s *MockPeripheralSuite) WithPeripheralAt(address string, b *PeripheralBuilder) {
	if s.overrides == nil {
		s.overrides = make(map[string]*PeripheralBuilder)
	}
	s.overrides[address] = b
}

// WithAdvertisements returns the builder for scan results.
func (s *MockPeripheralSuite) WithAdvertisements() *AdvertisementArrayBuilder[[]device.Advertisement] {
	if s.AdvertisementsBuilder == nil {
		s.AdvertisementsBuilder = NewAdvertisementArrayBuilder[[]device.Advertisement]()
	}
	return s.AdvertisementsBuilder
}

// Peripheral returns the fake created for address, failing the test if there is none.
func (s *MockPeripheralSuite) Peripheral(address string) *FakePeripheral {
	p, ok := s.Peripherals[address]
	s.Require().True(ok, "no peripheral was created for %s", address)
	return p
}
