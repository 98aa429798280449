package tinyble

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sysofwan/ha-triones/internal/device"
)

// remote is a connected peripheral as seen through tinygo
type remote interface {
	Discover() ([]remoteChar, error)
	Disconnect() error
}

type remoteChar interface {
	UUID() string
	Write(p []byte) (int, error)
	WriteWithoutResponse(p []byte) (int, error)
	// EnableNotifications with a nil callback disables notifications.
	EnableNotifications(cb func([]byte)) error
}

// tinygo does not report characteristic properties on every platform, so
// every characteristic is assumed to support the operations we use and the
// peripheral rejects the ones it does not.
const assumedProps = device.PropRead | device.PropWrite | device.PropWriteWithoutResponse | device.PropNotify

// Device is a remote peripheral reached through tinygo bluetooth
type Device struct {
	address string
	logger  *logrus.Logger

	connect func(ctx context.Context, address string) (remote, error)
	watch   func(address string, cb func())
	unwatch func(address string)

	mu   sync.Mutex
	conn *connection
}

// NewDevice creates a tinygo backed device for address
func NewDevice(address string, logger *logrus.Logger) device.Device {
	if logger == nil {
		logger = logrus.New()
	}
	return &Device{
		address: strings.ToUpper(strings.TrimSpace(address)),
		logger:  logger,
		connect: host.connect,
		watch:   host.watch,
		unwatch: host.unwatch,
	}
}

func (d *Device) Address() string { return d.address }

func (d *Device) Connect(ctx context.Context, opts *device.ConnectOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.address == "" {
		return fmt.Errorf("device address is empty")
	}
	if d.conn != nil && d.conn.alive() {
		return device.ErrAlreadyConnected
	}

	log := d.logger.WithField("address", d.address)
	log.WithField("timeout", opts.Timeout()).Info("Connecting to BLE device...")

	connCtx, cancel := device.WithConnectDeadline(ctx, opts.Timeout())
	defer cancel()

	r, err := d.connect(connCtx, d.address)
	if err != nil {
		if errors.Is(connCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: connecting to %s", device.ErrTimeout, d.address)
		}
		log.WithError(err).Error("Failed to connect")
		return err
	}

	chars, err := r.Discover()
	if err != nil {
		log.WithError(err).Error("Failed to discover characteristics")
		if derr := r.Disconnect(); derr != nil {
			log.WithField("cancel_error", derr).Warn("Failed to drop link after discovery failure")
		}
		return fmt.Errorf("failed to discover profile: %w", normalizeError(err))
	}

	conn := newConnection(r, chars, log)
	d.conn = conn
	d.watch(d.address, conn.lost)

	log.WithField("characteristics", len(conn.chars)).Info("BLE device connected successfully")
	return nil
}

func (d *Device) Disconnect() error {
	d.mu.Lock()
	conn := d.conn
	d.conn = nil
	d.mu.Unlock()

	if conn == nil || !conn.alive() {
		return device.ErrNotConnected
	}
	d.unwatch(d.address)
	return conn.close()
}

func (d *Device) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil && d.conn.alive()
}

func (d *Device) GetConnection() device.Connection {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil || !d.conn.alive() {
		return nil
	}
	return d.conn
}

type connection struct {
	remote remote
	logger *logrus.Entry

	writeMu sync.Mutex
	chars   []*characteristic

	mu   sync.Mutex
	dead bool
}

func newConnection(r remote, raw []remoteChar, logger *logrus.Entry) *connection {
	c := &connection{remote: r, logger: logger}
	seen := make(map[string]bool, len(raw))
	for _, rc := range raw {
		uuid := device.NormalizeUUID(rc.UUID())
		if seen[uuid] {
			continue
		}
		seen[uuid] = true
		logger.WithField("char_uuid", uuid).Debug("Found characteristic")
		c.chars = append(c.chars, &characteristic{uuid: uuid, raw: rc, conn: c})
	}
	return c
}

func (c *connection) alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.dead
}

func (c *connection) lost() {
	c.mu.Lock()
	c.dead = true
	c.mu.Unlock()
	c.logger.Warn("Peripheral reported disconnection")
}

func (c *connection) close() error {
	for _, ch := range c.chars {
		if ch.subscribed() {
			_ = ch.Unsubscribe()
		}
	}
	c.mu.Lock()
	c.dead = true
	c.mu.Unlock()
	return normalizeError(c.remote.Disconnect())
}

func (c *connection) Characteristics() []device.Characteristic {
	out := make([]device.Characteristic, len(c.chars))
	for i, ch := range c.chars {
		out[i] = ch
	}
	return out
}

func (c *connection) GetCharacteristic(uuid string) (device.Characteristic, error) {
	want := device.NormalizeUUID(uuid)
	for _, ch := range c.chars {
		if ch.uuid == want {
			return ch, nil
		}
	}
	return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{uuid}}
}

type characteristic struct {
	uuid string
	raw  remoteChar
	conn *connection

	mu      sync.Mutex
	handler func([]byte)
}

func (c *characteristic) UUID() string                { return c.uuid }
func (c *characteristic) Properties() device.Property { return assumedProps }

func (c *characteristic) Write(data []byte, withResponse bool) error {
	if !c.conn.alive() {
		return device.ErrNotConnected
	}
	c.conn.writeMu.Lock()
	defer c.conn.writeMu.Unlock()

	var err error
	if withResponse {
		_, err = c.raw.Write(data)
	} else {
		_, err = c.raw.WriteWithoutResponse(data)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", c.uuid, normalizeError(err))
	}
	return nil
}

func (c *characteristic) Subscribe(handler func([]byte)) error {
	if !c.conn.alive() {
		return device.ErrNotConnected
	}
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()

	err := c.raw.EnableNotifications(func(buf []byte) {
		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()
		if h != nil {
			h(bytes.Clone(buf))
		}
	})
	if err != nil {
		c.mu.Lock()
		c.handler = nil
		c.mu.Unlock()
		return fmt.Errorf("subscribe %s: %w", c.uuid, normalizeError(err))
	}
	return nil
}

func (c *characteristic) Unsubscribe() error {
	c.mu.Lock()
	c.handler = nil
	c.mu.Unlock()

	if !c.conn.alive() {
		return device.ErrNotConnected
	}
	if err := c.raw.EnableNotifications(nil); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", c.uuid, normalizeError(err))
	}
	return nil
}

func (c *characteristic) subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler != nil
}
