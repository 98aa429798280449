package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/sysofwan/ha-triones/internal/device"
)

// DeviceFactory creates the host ble.Device (can be overridden in tests).
// The platform default lives in host_<os>.go.
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = newHostDevice

var (
	hostMu  sync.Mutex
	hostDev ble.Device
)

// hostDevice returns the shared host adapter, creating it on first use.
// A failed creation is not cached so that a later call can retry once the
// adapter is powered on.
func hostDevice() (ble.Device, error) {
	hostMu.Lock()
	defer hostMu.Unlock()

	if hostDev != nil {
		return hostDev, nil
	}
	dev, err := DeviceFactory()
	if err != nil {
		return nil, NormalizeError(err)
	}
	hostDev = dev
	return dev, nil
}

// resetHostDevice drops the cached adapter. Used by tests that swap DeviceFactory.
func resetHostDevice() {
	hostMu.Lock()
	hostDev = nil
	hostMu.Unlock()
}

// dialer opens a GATT client to addr. It is a field on BLEDevice so tests can
// substitute a fake client without a host adapter.
type dialer func(ctx context.Context, addr string) (gattClient, error)

func dialHost(ctx context.Context, addr string) (gattClient, error) {
	dev, err := hostDevice()
	if err != nil {
		return nil, err
	}
	client, err := dev.Dial(ctx, ble.NewAddr(addr))
	if err != nil {
		return nil, err
	}
	return client, nil
}

// BLEDevice is a remote peripheral reached through go-ble
type BLEDevice struct {
	address string
	logger  *logrus.Logger
	dial    dialer

	mu   sync.Mutex
	conn *BLEConnection
}

// NewDevice creates a go-ble backed device for address. No radio activity
// happens until Connect.
func NewDevice(address string, logger *logrus.Logger) device.Device {
	if logger == nil {
		logger = logrus.New()
	}
	return &BLEDevice{
		address: strings.ToUpper(strings.TrimSpace(address)),
		logger:  logger,
		dial:    dialHost,
	}
}

func (d *BLEDevice) Address() string {
	return d.address
}

// Connect dials the peripheral and discovers its GATT profile.
func (d *BLEDevice) Connect(ctx context.Context, opts *device.ConnectOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.address == "" {
		return fmt.Errorf("device address is empty")
	}
	if d.conn != nil && d.conn.IsConnected() {
		return device.ErrAlreadyConnected
	}

	timeout := opts.Timeout()
	log := d.logger.WithFields(logrus.Fields{"address": d.address, "timeout": timeout})
	log.Info("Connecting to BLE device...")

	connCtx, cancel := device.WithConnectDeadline(ctx, timeout)
	defer cancel()

	client, err := d.dial(connCtx, d.address)
	if err != nil {
		log.WithError(err).Error("Failed to dial BLE device")
		if errors.Is(connCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: connecting to %s: %w", device.ErrTimeout, d.address, connCtx.Err())
		}
		return fmt.Errorf("failed to connect to device with address %q: %w", d.address, NormalizeError(err))
	}

	conn, err := newConnection(client, d.logger)
	if err != nil {
		log.WithError(err).Error("Failed to discover profile")
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			log.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection during profile discovery failure")
		}
		return fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}
	d.conn = conn

	log.WithField("characteristics", len(conn.chars)).Info("BLE device connected successfully")
	return nil
}

// Disconnect closes the link. It returns ErrNotConnected when there is none.
func (d *BLEDevice) Disconnect() error {
	d.mu.Lock()
	conn := d.conn
	d.conn = nil
	d.mu.Unlock()

	if conn == nil || !conn.IsConnected() {
		return device.ErrNotConnected
	}
	return conn.Close()
}

func (d *BLEDevice) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil && d.conn.IsConnected()
}

func (d *BLEDevice) GetConnection() device.Connection {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil || !d.conn.IsConnected() {
		return nil
	}
	return d.conn
}
