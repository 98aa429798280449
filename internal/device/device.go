package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NotFoundError represents an error when a BLE resource is not found
type NotFoundError struct {
	Resource string   // "service", "characteristic"
	UUIDs    []string // One or more UUIDs
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	NotInitialized   ConnectionState = "not_initialized"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrNotInitialized   = &ConnectionError{State: NotInitialized}
)

// Operation errors
var (
	ErrTimeout      = errors.New("timeout")
	ErrUnsupported  = errors.New("unsupported")
	ErrBluetoothOff = errors.New("bluetooth is turned off")
)

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// ContainsIgnoreCase checks substring case-insensitively. Backends use it to map
// library error strings onto the errors above.
func ContainsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Advertisement is a single advertising report seen during a scan
type Advertisement interface {
	LocalName() string
	Addr() string
	RSSI() int
	Services() []string
	Connectable() bool
}

// Scanner represents a BLE adapter capable of scanning for advertisements.
// Scan blocks until ctx is done; context expiry is not reported as an error.
type Scanner interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
}

// Property is a bit set of GATT characteristic properties
type Property uint8

const (
	PropRead Property = 1 << iota
	PropWrite
	PropWriteWithoutResponse
	PropNotify
	PropIndicate
)

// Has reports whether all bits of p2 are set in p
func (p Property) Has(p2 Property) bool {
	return p&p2 == p2
}

func (p Property) String() string {
	var parts []string
	names := []struct {
		bit  Property
		name string
	}{
		{PropRead, "read"},
		{PropWrite, "write"},
		{PropWriteWithoutResponse, "write-without-response"},
		{PropNotify, "notify"},
		{PropIndicate, "indicate"},
	}
	for _, n := range names {
		if p.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ",")
}

// Characteristic is a GATT characteristic on a live connection
type Characteristic interface {
	// UUID returns the normalized characteristic UUID (see NormalizeUUID).
	UUID() string
	Properties() Property
	Write(data []byte, withResponse bool) error
	// Subscribe enables notifications. The handler may be invoked from a
	// backend goroutine and must not retain data beyond the call.
	Subscribe(handler func(data []byte)) error
	Unsubscribe() error
}

// Connection represents a live BLE link with a discovered GATT profile
type Connection interface {
	// Characteristics returns every characteristic exposed by the peripheral,
	// in discovery order.
	Characteristics() []Characteristic
	// GetCharacteristic finds a characteristic by UUID in any service.
	GetCharacteristic(uuid string) (Characteristic, error)
}

// Device represents one remote peripheral
type Device interface {
	Address() string
	Connect(ctx context.Context, opts *ConnectOptions) error
	Disconnect() error
	IsConnected() bool
	// GetConnection returns nil when not connected.
	GetConnection() Connection
}

// ConnectOptions defines BLE connection options
type ConnectOptions struct {
	ConnectTimeout time.Duration
}

// DefaultConnectTimeout is used when ConnectOptions is nil or has no timeout
const DefaultConnectTimeout = 20 * time.Second

// Timeout returns the effective connect timeout
func (o *ConnectOptions) Timeout() time.Duration {
	if o == nil || o.ConnectTimeout <= 0 {
		return DefaultConnectTimeout
	}
	return o.ConnectTimeout
}

// WithConnectDeadline bounds a connect attempt by timeout unless ctx already
// carries a deadline, in which case the caller's deadline governs.
func WithConnectDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
