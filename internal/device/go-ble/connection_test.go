package goble

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysofwan/ha-triones/internal/device"
)

type writeCall struct {
	uuid  string
	data  []byte
	noRsp bool
}

// fakeClient is a scripted gattClient
type fakeClient struct {
	mu sync.Mutex

	profile     *ble.Profile
	discoverErr error
	writeErr    error

	writes    []writeCall
	handlers  map[string]ble.NotificationHandler
	cancelled int
	gone      chan struct{}
}

func newFakeClient(profile *ble.Profile) *fakeClient {
	return &fakeClient{
		profile:  profile,
		handlers: map[string]ble.NotificationHandler{},
		gone:     make(chan struct{}),
	}
}

func (f *fakeClient) DiscoverProfile(bool) (*ble.Profile, error) {
	return f.profile, f.discoverErr
}

func (f *fakeClient) WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, writeCall{uuid: c.UUID.String(), data: append([]byte(nil), value...), noRsp: noRsp})
	return nil
}

func (f *fakeClient) Subscribe(c *ble.Characteristic, _ bool, h ble.NotificationHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[c.UUID.String()] = h
	return nil
}

func (f *fakeClient) Unsubscribe(c *ble.Characteristic, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, c.UUID.String())
	return nil
}

func (f *fakeClient) CancelConnection() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled++
	return nil
}

func (f *fakeClient) Disconnected() <-chan struct{} { return f.gone }

func (f *fakeClient) notify(uuid string, data []byte) {
	f.mu.Lock()
	h := f.handlers[uuid]
	f.mu.Unlock()
	if h != nil {
		h(data)
	}
}

func trionesProfile() *ble.Profile {
	return &ble.Profile{Services: []*ble.Service{
		{
			UUID: ble.UUID16(0xffd5),
			Characteristics: []*ble.Characteristic{
				{UUID: ble.UUID16(0xffd9), Property: ble.CharWrite | ble.CharWriteNR},
			},
		},
		{
			UUID: ble.UUID16(0xffd0),
			Characteristics: []*ble.Characteristic{
				{UUID: ble.UUID16(0xffd4), Property: ble.CharNotify},
				{UUID: ble.MustParse("0000ffd9-0000-1000-8000-00805f9b34fb"), Property: ble.CharRead},
			},
		},
	}}
}

func newTestDevice(client *fakeClient, dialErr error) *BLEDevice {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	d := NewDevice("aa:bb:cc:dd:ee:ff", logger).(*BLEDevice)
	d.dial = func(ctx context.Context, _ string) (gattClient, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return client, nil
	}
	return d
}

func TestDevice_ConnectDiscoversCharacteristics(t *testing.T) {
	client := newFakeClient(trionesProfile())
	d := newTestDevice(client, nil)

	assert.Equal(t, "AA:BB:CC:DD:EE:FF", d.Address())
	assert.Nil(t, d.GetConnection(), "GetConnection MUST be nil before Connect")

	require.NoError(t, d.Connect(context.Background(), nil))
	require.True(t, d.IsConnected())

	conn := d.GetConnection()
	require.NotNil(t, conn)

	var uuids []string
	for _, c := range conn.Characteristics() {
		uuids = append(uuids, c.UUID())
	}
	assert.Equal(t, []string{"ffd9", "ffd4"}, uuids, "duplicates MUST collapse to the first occurrence, in discovery order")

	w, err := conn.GetCharacteristic("0000FFD9-0000-1000-8000-00805F9B34FB")
	require.NoError(t, err)
	assert.True(t, w.Properties().Has(device.PropWrite|device.PropWriteWithoutResponse))

	_, err = conn.GetCharacteristic("ffe9")
	var nf *device.NotFoundError
	assert.ErrorAs(t, err, &nf)

	assert.ErrorIs(t, d.Connect(context.Background(), nil), device.ErrAlreadyConnected)
}

func TestDevice_ConnectFailures(t *testing.T) {
	t.Run("dial error", func(t *testing.T) {
		d := newTestDevice(nil, errors.New("central manager has invalid state: have=4 want=5: is Bluetooth turned on?"))
		err := d.Connect(context.Background(), nil)
		assert.ErrorIs(t, err, device.ErrBluetoothOff)
		assert.False(t, d.IsConnected())
	})

	t.Run("dial timeout", func(t *testing.T) {
		d := newTestDevice(nil, nil)
		d.dial = func(ctx context.Context, _ string) (gattClient, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		err := d.Connect(context.Background(), &device.ConnectOptions{ConnectTimeout: 20 * time.Millisecond})
		assert.ErrorIs(t, err, device.ErrTimeout)
	})

	t.Run("caller deadline with stack cancel error", func(t *testing.T) {
		d := newTestDevice(nil, nil)
		d.dial = func(ctx context.Context, _ string) (gattClient, error) {
			<-ctx.Done()
			return nil, errors.New("connection canceled")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := d.Connect(ctx, &device.ConnectOptions{ConnectTimeout: 20 * time.Millisecond})
		assert.ErrorIs(t, err, device.ErrTimeout, "an expired caller deadline MUST be reported as a timeout")
	})

	t.Run("discovery error cancels the link", func(t *testing.T) {
		client := newFakeClient(nil)
		client.discoverErr = errors.New("att: timeout")
		d := newTestDevice(client, nil)

		err := d.Connect(context.Background(), nil)
		assert.ErrorContains(t, err, "failed to discover profile")
		assert.Equal(t, 1, client.cancelled, "a half-open link MUST be cancelled")
		assert.Nil(t, d.GetConnection())
	})
}

func TestCharacteristic_WriteAndNotify(t *testing.T) {
	client := newFakeClient(trionesProfile())
	d := newTestDevice(client, nil)
	require.NoError(t, d.Connect(context.Background(), nil))
	conn := d.GetConnection()

	w, _ := conn.GetCharacteristic("ffd9")
	require.NoError(t, w.Write([]byte{0xcc, 0x23, 0x33}, false))
	require.NoError(t, w.Write([]byte{0xef, 0x01, 0x77}, true))
	require.Len(t, client.writes, 2)
	assert.True(t, client.writes[0].noRsp, "withResponse=false MUST map to a write command")
	assert.False(t, client.writes[1].noRsp)

	n, _ := conn.GetCharacteristic("ffd4")
	var got [][]byte
	require.NoError(t, n.Subscribe(func(b []byte) { got = append(got, b) }))

	buf := []byte{0x66, 0x15, 0x23}
	client.notify("ffd4", buf)
	buf[2] = 0x00
	require.Len(t, got, 1)
	assert.Equal(t, []byte{0x66, 0x15, 0x23}, got[0], "handler data MUST NOT alias the backend buffer")

	err := w.Subscribe(func([]byte) {})
	assert.ErrorIs(t, err, device.ErrUnsupported)

	require.NoError(t, d.Disconnect())
	assert.Empty(t, client.handlers, "Disconnect MUST unsubscribe active notifications")
	assert.Equal(t, 1, client.cancelled)
	assert.ErrorIs(t, w.Write([]byte{1}, false), device.ErrNotConnected)
	assert.ErrorIs(t, d.Disconnect(), device.ErrNotConnected)
}

func TestCharacteristic_WriteError(t *testing.T) {
	client := newFakeClient(trionesProfile())
	client.writeErr = errors.New("device not connected")
	d := newTestDevice(client, nil)
	require.NoError(t, d.Connect(context.Background(), nil))

	w, _ := d.GetConnection().GetCharacteristic("ffd9")
	err := w.Write([]byte{1}, false)
	assert.ErrorIs(t, err, device.ErrNotConnected)
	assert.ErrorContains(t, err, "write ffd9")
}

func TestConnection_PeripheralDisconnect(t *testing.T) {
	client := newFakeClient(trionesProfile())
	d := newTestDevice(client, nil)
	hook := logtest.NewLocal(d.logger)
	require.NoError(t, d.Connect(context.Background(), nil))

	close(client.gone)
	assert.Eventually(t, func() bool { return !d.IsConnected() }, time.Second, 5*time.Millisecond,
		"a peripheral-side disconnect MUST mark the device disconnected")
	assert.Nil(t, d.GetConnection())

	var warned *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "Peripheral reported disconnection" {
			warned = e
		}
	}
	require.NotNil(t, warned, "link loss MUST be logged at warn level")
	assert.Equal(t, "ble-connection-monitor", warned.Data["goroutine"], "the log entry MUST name the monitor goroutine")

	// reconnect after link loss
	d.dial = func(context.Context, string) (gattClient, error) { return newFakeClient(trionesProfile()), nil }
	require.NoError(t, d.Connect(context.Background(), nil))
	assert.True(t, d.IsConnected())
}

func TestToProperty(t *testing.T) {
	tests := []struct {
		in   ble.Property
		want device.Property
	}{
		{ble.CharRead, device.PropRead},
		{ble.CharWrite | ble.CharWriteNR, device.PropWrite | device.PropWriteWithoutResponse},
		{ble.CharNotify | ble.CharIndicate, device.PropNotify | device.PropIndicate},
		{ble.CharBroadcast | ble.CharSignedWrite, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toProperty(tt.in), "ble property %#x", tt.in)
	}
}

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"Bluetooth is turned OFF", device.ErrBluetoothOff},
		{"device not connected", device.ErrNotConnected},
		{"peer disconnected", device.ErrNotConnected},
		{"device already connected", device.ErrAlreadyConnected},
		{"connection is not initialized", device.ErrNotInitialized},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.ErrorIs(t, NormalizeError(errors.New(tt.msg)), tt.want)
		})
	}

	assert.NoError(t, NormalizeError(nil))
	other := errors.New("something else")
	assert.Same(t, other, NormalizeError(other))
}

func TestHostDevice_FactoryErrorIsNotCached(t *testing.T) {
	orig := DeviceFactory
	t.Cleanup(func() {
		DeviceFactory = orig
		resetHostDevice()
	})
	resetHostDevice()

	calls := 0
	DeviceFactory = func() (ble.Device, error) {
		calls++
		return nil, errors.New("bluetooth is turned off")
	}

	_, err := hostDevice()
	assert.ErrorIs(t, err, device.ErrBluetoothOff)
	_, err = hostDevice()
	assert.Error(t, err)
	assert.Equal(t, 2, calls, "a failed adapter open MUST be retried")

	err = NewScanner(nil).Scan(context.Background(), false, func(device.Advertisement) {})
	assert.ErrorIs(t, err, device.ErrBluetoothOff)
}
