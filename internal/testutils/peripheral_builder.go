package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sysofwan/ha-triones/internal/device"
)

// CharacteristicConfig describes one characteristic of a fake peripheral
type CharacteristicConfig struct {
	UUID       string `json:"uuid"`
	Properties string `json:"properties,omitempty"` // e.g. "write,notify"
}

// ServiceConfig describes one service of a fake peripheral
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// PeripheralProfile is the JSON form accepted by PeripheralBuilder.FromJSON
type PeripheralProfile struct {
	Address  string          `json:"address,omitempty"`
	Services []ServiceConfig `json:"services"`
}

// OpKind identifies an operation recorded by FakePeripheral
type OpKind string

const (
	OpConnect     OpKind = "connect"
	OpDisconnect  OpKind = "disconnect"
	OpSubscribe   OpKind = "subscribe"
	OpUnsubscribe OpKind = "unsubscribe"
	OpWrite       OpKind = "write"
)

// Op is one recorded transport operation
type Op struct {
	Kind         OpKind
	UUID         string
	Data         []byte
	WithResponse bool
}

// PeripheralBuilder builds a FakePeripheral with a fluent API
type PeripheralBuilder struct {
	profile        PeripheralProfile
	replies        [][]byte
	replyDelay     time.Duration
	connectDelay   time.Duration
	connectErr     error
	writeErr       error
	subscribeErr   error
	unsubscribeErr error
}

// NewPeripheralBuilder creates a builder for a peripheral with no services
func NewPeripheralBuilder() *PeripheralBuilder {
	return &PeripheralBuilder{
		profile: PeripheralProfile{Address: "AA:BB:CC:DD:EE:FF"},
	}
}

// WithAddress sets the peripheral address
func (b *PeripheralBuilder) WithAddress(addr string) *PeripheralBuilder {
	b.profile.Address = addr
	return b
}

// WithService adds a service to the profile
func (b *PeripheralBuilder) WithService(uuid string) *PeripheralBuilder {
	b.profile.Services = append(b.profile.Services, ServiceConfig{UUID: uuid})
	return b
}

// WithCharacteristic adds a characteristic to the last added service
func (b *PeripheralBuilder) WithCharacteristic(uuid, properties string) *PeripheralBuilder {
	if len(b.profile.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}
	last := len(b.profile.Services) - 1
	b.profile.Services[last].Characteristics = append(b.profile.Services[last].Characteristics,
		CharacteristicConfig{UUID: uuid, Properties: properties})
	return b
}

// FromJSON replaces the profile with one decoded from JSON
func (b *PeripheralBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)

	var profile PeripheralProfile
	if err := json.Unmarshal([]byte(jsonStr), &profile); err != nil {
		panic(fmt.Sprintf("PeripheralBuilder.FromJSON: failed to unmarshal: %v", err))
	}
	if profile.Address == "" {
		profile.Address = b.profile.Address
	}
	b.profile = profile
	return b
}

// WithStatusReply makes the peripheral answer every status query by notifying
// the given frames in order.
func (b *PeripheralBuilder) WithStatusReply(frames ...[]byte) *PeripheralBuilder {
	b.replies = frames
	return b
}

// WithReplyDelay delays every notification
func (b *PeripheralBuilder) WithReplyDelay(d time.Duration) *PeripheralBuilder {
	b.replyDelay = d
	return b
}

// WithConnectDelay makes Connect block for d or until its context is done
func (b *PeripheralBuilder) WithConnectDelay(d time.Duration) *PeripheralBuilder {
	b.connectDelay = d
	return b
}

func (b *PeripheralBuilder) WithConnectError(err error) *PeripheralBuilder {
	b.connectErr = err
	return b
}

func (b *PeripheralBuilder) WithWriteError(err error) *PeripheralBuilder {
	b.writeErr = err
	return b
}

func (b *PeripheralBuilder) WithSubscribeError(err error) *PeripheralBuilder {
	b.subscribeErr = err
	return b
}

func (b *PeripheralBuilder) WithUnsubscribeError(err error) *PeripheralBuilder {
	b.unsubscribeErr = err
	return b
}

// Build creates the fake peripheral. The profile is copied; the builder may be reused.
func (b *PeripheralBuilder) Build() *FakePeripheral {
	p := &FakePeripheral{
		address:        b.profile.Address,
		replies:        b.replies,
		replyDelay:     b.replyDelay,
		connectDelay:   b.connectDelay,
		connectErr:     b.connectErr,
		writeErr:       b.writeErr,
		subscribeErr:   b.subscribeErr,
		unsubscribeErr: b.unsubscribeErr,
	}
	for _, svc := range b.profile.Services {
		for _, c := range svc.Characteristics {
			p.chars = append(p.chars, &fakeCharacteristic{
				peripheral: p,
				uuid:       device.NormalizeUUID(c.UUID),
				props:      ParseProperties(c.Properties),
			})
		}
	}
	return p
}

// ParseProperties converts "write,notify" style strings to device.Property.
// An empty string means read, write and notify.
func ParseProperties(props string) device.Property {
	if strings.TrimSpace(props) == "" {
		return device.PropRead | device.PropWrite | device.PropNotify
	}
	var p device.Property
	for _, name := range strings.Split(props, ",") {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "read":
			p |= device.PropRead
		case "write":
			p |= device.PropWrite
		case "write-without-response", "write_without_response":
			p |= device.PropWriteWithoutResponse
		case "notify":
			p |= device.PropNotify
		case "indicate":
			p |= device.PropIndicate
		default:
			panic(fmt.Sprintf("ParseProperties: unknown property %q", name))
		}
	}
	return p
}

// FakePeripheral is an in-memory device.Device. It records every transport
// operation in order and answers writes with the configured status frames.
type FakePeripheral struct {
	address string
	chars   []*fakeCharacteristic

	replies        [][]byte
	replyDelay     time.Duration
	connectDelay   time.Duration
	connectErr     error
	writeErr       error
	subscribeErr   error
	unsubscribeErr error

	mu        sync.Mutex
	connected bool
	ops       []Op
	wg        sync.WaitGroup
}

func (p *FakePeripheral) Address() string { return p.address }

func (p *FakePeripheral) Connect(ctx context.Context, _ *device.ConnectOptions) error {
	p.record(Op{Kind: OpConnect})

	if p.connectDelay > 0 {
		t := time.NewTimer(p.connectDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			// a configured connect error stands in for the stack's own
			// cancellation error, which is not always a context error
			if p.connectErr != nil {
				return p.connectErr
			}
			return ctx.Err()
		}
	}
	if p.connectErr != nil {
		return p.connectErr
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		return device.ErrAlreadyConnected
	}
	p.connected = true
	return nil
}

func (p *FakePeripheral) Disconnect() error {
	p.record(Op{Kind: OpDisconnect})

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return device.ErrNotConnected
	}
	p.connected = false
	for _, c := range p.chars {
		c.handler = nil
	}
	return nil
}

func (p *FakePeripheral) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *FakePeripheral) GetConnection() device.Connection {
	if !p.IsConnected() {
		return nil
	}
	return (*fakeConnection)(p)
}

// DropLink simulates the peripheral going away without a Disconnect call.
func (p *FakePeripheral) DropLink() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
}

// Notify pushes data to the subscriber of the characteristic, if any.
func (p *FakePeripheral) Notify(uuid string, data []byte) {
	p.mu.Lock()
	var handler func([]byte)
	for _, c := range p.chars {
		if device.EqualUUID(c.uuid, uuid) {
			handler = c.handler
		}
	}
	p.mu.Unlock()

	if handler != nil {
		handler(bytes.Clone(data))
	}
}

// Ops returns a copy of the recorded operations
func (p *FakePeripheral) Ops() []Op {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Op(nil), p.ops...)
}

// OpKinds returns the recorded operation kinds, in order
func (p *FakePeripheral) OpKinds() []OpKind {
	ops := p.Ops()
	kinds := make([]OpKind, len(ops))
	for i, op := range ops {
		kinds[i] = op.Kind
	}
	return kinds
}

// Count returns how many operations of kind were recorded
func (p *FakePeripheral) Count(kind OpKind) int {
	n := 0
	for _, k := range p.OpKinds() {
		if k == kind {
			n++
		}
	}
	return n
}

// Writes returns the payloads of every recorded write, in order
func (p *FakePeripheral) Writes() [][]byte {
	var out [][]byte
	for _, op := range p.Ops() {
		if op.Kind == OpWrite {
			out = append(out, op.Data)
		}
	}
	return out
}

// Wait blocks until every pending notification has been delivered
func (p *FakePeripheral) Wait() {
	p.wg.Wait()
}

func (p *FakePeripheral) record(op Op) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = append(p.ops, op)
}

// reply delivers the configured frames to every subscribed characteristic.
func (p *FakePeripheral) reply() {
	if len(p.replies) == 0 {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if p.replyDelay > 0 {
			time.Sleep(p.replyDelay)
		}
		for _, frame := range p.replies {
			p.mu.Lock()
			var handlers []func([]byte)
			for _, c := range p.chars {
				if c.handler != nil {
					handlers = append(handlers, c.handler)
				}
			}
			p.mu.Unlock()

			for _, h := range handlers {
				h(bytes.Clone(frame))
			}
		}
	}()
}

type fakeConnection FakePeripheral

func (c *fakeConnection) Characteristics() []device.Characteristic {
	out := make([]device.Characteristic, len(c.chars))
	for i, ch := range c.chars {
		out[i] = ch
	}
	return out
}

func (c *fakeConnection) GetCharacteristic(uuid string) (device.Characteristic, error) {
	for _, ch := range c.chars {
		if device.EqualUUID(ch.uuid, uuid) {
			return ch, nil
		}
	}
	return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{uuid}}
}

type fakeCharacteristic struct {
	peripheral *FakePeripheral
	uuid       string
	props      device.Property
	handler    func([]byte) // guarded by peripheral.mu
}

func (c *fakeCharacteristic) UUID() string                { return c.uuid }
func (c *fakeCharacteristic) Properties() device.Property { return c.props }

func (c *fakeCharacteristic) Write(data []byte, withResponse bool) error {
	p := c.peripheral
	p.record(Op{Kind: OpWrite, UUID: c.uuid, Data: bytes.Clone(data), WithResponse: withResponse})

	if p.writeErr != nil {
		return p.writeErr
	}
	if !p.IsConnected() {
		return device.ErrNotConnected
	}
	p.reply()
	return nil
}

func (c *fakeCharacteristic) Subscribe(handler func([]byte)) error {
	p := c.peripheral
	p.record(Op{Kind: OpSubscribe, UUID: c.uuid})

	if p.subscribeErr != nil {
		return p.subscribeErr
	}
	if !c.props.Has(device.PropNotify) && !c.props.Has(device.PropIndicate) {
		return fmt.Errorf("characteristic %s does not support notifications", c.uuid)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return device.ErrNotConnected
	}
	c.handler = handler
	return nil
}

func (c *fakeCharacteristic) Unsubscribe() error {
	p := c.peripheral
	p.record(Op{Kind: OpUnsubscribe, UUID: c.uuid})

	p.mu.Lock()
	c.handler = nil
	p.mu.Unlock()
	return p.unsubscribeErr
}
