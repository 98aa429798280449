package goble

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sysofwan/ha-triones/internal/device"
)

// BLECharacteristic wraps a discovered ble.Characteristic on a live connection
type BLECharacteristic struct {
	uuid  string
	props device.Property
	raw   *ble.Characteristic
	conn  *BLEConnection

	mu      sync.Mutex
	handler func([]byte)
}

func (c *BLECharacteristic) UUID() string                { return c.uuid }
func (c *BLECharacteristic) Properties() device.Property { return c.props }

// Write sends data. withResponse selects an ATT write request over a command.
func (c *BLECharacteristic) Write(data []byte, withResponse bool) error {
	if !c.conn.IsConnected() {
		return device.ErrNotConnected
	}

	c.conn.writeMutex.Lock()
	defer c.conn.writeMutex.Unlock()

	if err := c.conn.client.WriteCharacteristic(c.raw, data, !withResponse); err != nil {
		return fmt.Errorf("write %s: %w", c.uuid, NormalizeError(err))
	}
	return nil
}

// Subscribe enables notifications (or indications when notify is absent).
// A second Subscribe replaces the handler.
func (c *BLECharacteristic) Subscribe(handler func(data []byte)) error {
	if !c.props.Has(device.PropNotify) && !c.props.Has(device.PropIndicate) {
		return fmt.Errorf("%w: characteristic %s does not support notifications", device.ErrUnsupported, c.uuid)
	}
	if !c.conn.IsConnected() {
		return device.ErrNotConnected
	}

	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()

	err := c.conn.client.Subscribe(c.raw, c.indicate(), func(req []byte) {
		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()
		if h != nil {
			// go-ble reuses its receive buffer
			h(bytes.Clone(req))
		}
	})
	if err != nil {
		c.mu.Lock()
		c.handler = nil
		c.mu.Unlock()
		return fmt.Errorf("subscribe %s: %w", c.uuid, NormalizeError(err))
	}
	return nil
}

// Unsubscribe disables notifications
func (c *BLECharacteristic) Unsubscribe() error {
	c.mu.Lock()
	c.handler = nil
	c.mu.Unlock()

	if !c.conn.IsConnected() {
		return device.ErrNotConnected
	}
	if err := c.conn.client.Unsubscribe(c.raw, c.indicate()); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", c.uuid, NormalizeError(err))
	}
	return nil
}

func (c *BLECharacteristic) subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler != nil
}

func (c *BLECharacteristic) indicate() bool {
	return !c.props.Has(device.PropNotify) && c.props.Has(device.PropIndicate)
}
