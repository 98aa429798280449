// Package tinyble implements device.Device and device.Scanner on
// tinygo.org/x/bluetooth, which talks to BlueZ over D-Bus on Linux and to
// CoreBluetooth on macOS.
package tinyble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/sysofwan/ha-triones/internal/device"
	"tinygo.org/x/bluetooth"
)

// hostAdapter wraps bluetooth.DefaultAdapter. Enable is retried until it
// succeeds once; a single connect handler fans disconnect events out to
// the devices that registered for them.
type hostAdapter struct {
	adapter *bluetooth.Adapter

	mu      sync.Mutex
	enabled bool

	// disconnect callbacks keyed by upper-cased address
	watchers *hashmap.Map[string, func()]
}

var host = &hostAdapter{
	adapter:  bluetooth.DefaultAdapter,
	watchers: hashmap.New[string, func()](),
}

func (h *hostAdapter) enable() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.enabled {
		return nil
	}
	if err := h.adapter.Enable(); err != nil {
		return normalizeError(err)
	}

	h.adapter.SetConnectHandler(func(dev bluetooth.Device, connected bool) {
		if connected {
			return
		}
		if cb, ok := h.watchers.Get(strings.ToUpper(dev.Address.String())); ok {
			cb()
		}
	})
	h.enabled = true
	return nil
}

func (h *hostAdapter) watch(address string, cb func()) {
	h.watchers.Set(strings.ToUpper(address), cb)
}

func (h *hostAdapter) unwatch(address string) {
	h.watchers.Del(strings.ToUpper(address))
}

// connect dials address. tinygo's Connect blocks with its own timeout, so it
// runs in a goroutine and ctx only bounds how long we wait for it.
func (h *hostAdapter) connect(ctx context.Context, address string) (remote, error) {
	if err := h.enable(); err != nil {
		return nil, err
	}

	var addr bluetooth.Address
	addr.Set(address)

	type connectResult struct {
		dev bluetooth.Device
		err error
	}
	ch := make(chan connectResult, 1)
	go func() {
		dev, err := h.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{dev, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			// a late success must not leak the link
			if r := <-ch; r.err == nil {
				_ = r.dev.Disconnect()
			}
		}()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, normalizeError(r.err)
		}
		return &hostRemote{dev: r.dev}, nil
	}
}

// scan reports advertisements until ctx is done
func (h *hostAdapter) scan(ctx context.Context, handler func(device.Advertisement)) error {
	if err := h.enable(); err != nil {
		return err
	}
	return runScan(ctx, h.adapter.Scan, h.adapter.StopScan, handler)
}

// stopRetryInterval paces StopScan retries while the scan is still starting
const stopRetryInterval = 20 * time.Millisecond

// runScan runs a blocking scan until ctx is done. StopScan fails when the scan
// has not started yet, so it is retried until the scan returns.
func runScan(
	ctx context.Context,
	start func(func(*bluetooth.Adapter, bluetooth.ScanResult)) error,
	stop func() error,
	handler func(device.Advertisement),
) error {
	if ctx.Err() != nil {
		return nil
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		for stop() != nil {
			select {
			case <-done:
				return
			case <-time.After(stopRetryInterval):
			}
		}
	}()

	err := start(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		if ctx.Err() != nil {
			return
		}
		handler(&advertisement{
			name: result.LocalName(),
			addr: result.Address.String(),
			rssi: int(result.RSSI),
		})
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("scan: %w", normalizeError(err))
	}
	return nil
}

// hostRemote adapts bluetooth.Device to remote
type hostRemote struct {
	dev bluetooth.Device
}

func (r *hostRemote) Disconnect() error {
	return r.dev.Disconnect()
}

func (r *hostRemote) Discover() ([]remoteChar, error) {
	svcs, err := r.dev.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("discover services: %w", err)
	}

	var out []remoteChar
	for _, svc := range svcs {
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("discover characteristics of %s: %w", svc.UUID().String(), err)
		}
		for i := range chars {
			out = append(out, &hostChar{char: chars[i]})
		}
	}
	return out, nil
}

type hostChar struct {
	char bluetooth.DeviceCharacteristic
}

func (c *hostChar) UUID() string                               { return c.char.UUID().String() }
func (c *hostChar) WriteWithoutResponse(p []byte) (int, error) { return c.char.WriteWithoutResponse(p) }
func (c *hostChar) EnableNotifications(cb func([]byte)) error {
	return c.char.EnableNotifications(cb)
}

type advertisement struct {
	name string
	addr string
	rssi int
}

func (a *advertisement) LocalName() string  { return a.name }
func (a *advertisement) Addr() string       { return a.addr }
func (a *advertisement) RSSI() int          { return a.rssi }
func (a *advertisement) Services() []string { return nil }
func (a *advertisement) Connectable() bool  { return true }

// normalizeError maps BlueZ and CoreBluetooth messages onto device errors
func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case device.ContainsIgnoreCase(msg, "not powered"),
		device.ContainsIgnoreCase(msg, "powered off"),
		device.ContainsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case device.ContainsIgnoreCase(msg, "not connected"):
		return fmt.Errorf("%w: %v", device.ErrNotConnected, err)
	case device.ContainsIgnoreCase(msg, "already connected"):
		return fmt.Errorf("%w: %v", device.ErrAlreadyConnected, err)
	case device.ContainsIgnoreCase(msg, "timeout"), device.ContainsIgnoreCase(msg, "timed out"):
		return fmt.Errorf("%w: %v", device.ErrTimeout, err)
	default:
		return err
	}
}

// scanner implements device.Scanner on the host adapter
type scanner struct {
	logger *logrus.Logger
}

// NewScanner creates a scanner on the default adapter
func NewScanner(logger *logrus.Logger) device.Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &scanner{logger: logger}
}

// Scan ignores allowDup; BlueZ and CoreBluetooth report every advertisement
// and discovery deduplicates them.
func (s *scanner) Scan(ctx context.Context, _ bool, handler func(device.Advertisement)) error {
	s.logger.Debug("Starting tinygo scan")
	return host.scan(ctx, handler)
}
