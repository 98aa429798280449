package goble

import (
	"context"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/sysofwan/ha-triones/internal/device"
	"github.com/sysofwan/ha-triones/internal/groutine"
)

// gattClient is the subset of ble.Client used by a connection
type gattClient interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	Unsubscribe(c *ble.Characteristic, ind bool) error
	CancelConnection() error
}

// BLEConnection represents a live BLE link with its discovered characteristics
type BLEConnection struct {
	client gattClient
	logger *logrus.Logger

	// writes on one link are serialised; go-ble does not queue ATT requests
	writeMutex sync.Mutex

	chars  []*BLECharacteristic
	byUUID map[string]*BLECharacteristic

	ctx    context.Context
	cancel context.CancelCauseFunc
}

func newConnection(client gattClient, logger *logrus.Logger) (*BLEConnection, error) {
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		return nil, err
	}

	c := &BLEConnection{
		client: client,
		logger: logger,
		byUUID: make(map[string]*BLECharacteristic),
	}
	c.ctx, c.cancel = context.WithCancelCause(context.Background())

	for _, svc := range profile.Services {
		svcUUID := device.NormalizeUUID(svc.UUID.String())
		for _, bc := range svc.Characteristics {
			uuid := device.NormalizeUUID(bc.UUID.String())
			logger.WithFields(logrus.Fields{
				"service_uuid": svcUUID,
				"char_uuid":    uuid,
				"properties":   toProperty(bc.Property).String(),
			}).Debug("Found characteristic")

			if _, dup := c.byUUID[uuid]; dup {
				// the first occurrence wins, matching lookup order
				continue
			}
			char := &BLECharacteristic{uuid: uuid, props: toProperty(bc.Property), raw: bc, conn: c}
			c.chars = append(c.chars, char)
			c.byUUID[uuid] = char
		}
	}

	if mon, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		groutine.Go(context.Background(), "ble-connection-monitor", func(ctx context.Context) {
			select {
			case <-mon.Disconnected():
				logger.WithField("goroutine", groutine.GetName(ctx)).Warn("Peripheral reported disconnection")
				c.cancel(device.ErrNotConnected)
			case <-c.ctx.Done():
			}
		})
	} else {
		logger.Debug("Client does not expose a Disconnected() channel")
	}

	return c, nil
}

// IsConnected reports whether the link is still up
func (c *BLEConnection) IsConnected() bool {
	return c.ctx.Err() == nil
}

// Characteristics returns every discovered characteristic in discovery order
func (c *BLEConnection) Characteristics() []device.Characteristic {
	out := make([]device.Characteristic, len(c.chars))
	for i, ch := range c.chars {
		out[i] = ch
	}
	return out
}

// GetCharacteristic finds a characteristic by UUID in any service
func (c *BLEConnection) GetCharacteristic(uuid string) (device.Characteristic, error) {
	ch, ok := c.byUUID[device.NormalizeUUID(uuid)]
	if !ok {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{uuid}}
	}
	return ch, nil
}

// Close unsubscribes any active notifications and cancels the link
func (c *BLEConnection) Close() error {
	if !c.IsConnected() {
		return device.ErrNotConnected
	}

	for _, ch := range c.chars {
		if !ch.subscribed() {
			continue
		}
		if err := ch.Unsubscribe(); err != nil {
			c.logger.WithFields(logrus.Fields{
				"char_uuid": ch.uuid,
				"error":     err,
			}).Warn("Failed to unsubscribe during disconnect")
		}
	}

	c.cancel(nil)
	err := NormalizeError(c.client.CancelConnection())
	if err != nil {
		c.logger.WithField("error", err).Warn("BLE device disconnected with errors")
	} else {
		c.logger.Info("BLE device disconnected successfully")
	}
	return err
}
