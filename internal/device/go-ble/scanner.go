package goble

import (
	"context"
	"errors"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/sysofwan/ha-triones/internal/device"
)

// bleScanner adapts the host ble.Device to device.Scanner
type bleScanner struct {
	logger *logrus.Logger
}

// NewScanner creates a device.Scanner backed by the host adapter. The adapter
// itself is opened lazily on the first Scan.
func NewScanner(logger *logrus.Logger) device.Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &bleScanner{logger: logger}
}

// Scan converts ble.Advertisement to device.Advertisement until ctx is done
func (s *bleScanner) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	dev, err := hostDevice()
	if err != nil {
		return err
	}

	s.logger.WithField("allow_dup", allowDup).Debug("Starting go-ble scan")
	err = dev.Scan(ctx, allowDup, func(adv ble.Advertisement) {
		handler(NewBLEAdvertisement(adv))
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return NormalizeError(err)
	}
	return nil
}
