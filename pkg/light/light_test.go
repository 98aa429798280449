package light

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/sysofwan/ha-triones/pkg/protocol"
)

// mockController reports a fixed snapshot and records commands through testify/mock
type mockController struct {
	mock.Mock
	state protocol.State
}

func newMock(st protocol.State) *mockController {
	return &mockController{state: st}
}

func (m *mockController) MAC() string                       { return "AA:BB:CC:DD:EE:FF" }
func (m *mockController) IsOn() (bool, bool)                { return m.state.IsOn() }
func (m *mockController) RGBColor() (protocol.RGB, bool)    { return m.state.RGBColor() }
func (m *mockController) WhiteBrightness() (uint8, bool)    { return m.state.WhiteBrightness() }
func (m *mockController) TurnOn(ctx context.Context) error  { return m.Called().Error(0) }
func (m *mockController) TurnOff(ctx context.Context) error { return m.Called().Error(0) }
func (m *mockController) Update(ctx context.Context)        { m.Called() }
func (m *mockController) SetWhite(ctx context.Context, v uint8) error {
	return m.Called(v).Error(0)
}
func (m *mockController) SetColor(ctx context.Context, c protocol.RGB) error {
	return m.Called(c).Error(0)
}

func u8(v uint8) *uint8 { return &v }

func rgb(r, g, b uint8) *protocol.RGB { return &protocol.RGB{R: r, G: g, B: b} }

func state(p protocol.Power, c *protocol.RGB, white uint8) protocol.State {
	st := protocol.State{Power: p, Color: c}
	if white > 0 {
		st.White = &white
	}
	return st
}

func TestPresentationValues(t *testing.T) {
	tests := []struct {
		name       string
		st         protocol.State
		available  bool
		brightness *uint8
		color      *protocol.RGB
		mode       ColorMode
	}{
		{
			name: "unknown",
			st:   protocol.UnknownState(),
			mode: ColorModeUnknown,
		},
		{
			name:       "white brightness wins over colour",
			st:         state(protocol.PowerOn, rgb(0, 0, 0), 120),
			available:  true,
			brightness: u8(120),
			color:      rgb(0, 0, 0),
			mode:       ColorModeWhite,
		},
		{
			name:       "brightness from brightest channel",
			st:         state(protocol.PowerOn, rgb(10, 100, 50), 0),
			available:  true,
			brightness: u8(100),
			color:      rgb(26, 255, 128),
			mode:       ColorModeRGB,
		},
		{
			name:       "black without white",
			st:         state(protocol.PowerOff, rgb(0, 0, 0), 0),
			available:  true,
			brightness: u8(0),
			color:      rgb(0, 0, 0),
			mode:       ColorModeWhite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(newMock(tt.st), "Desk")

			assert.Equal(t, tt.available, l.Available())

			b, ok := l.Brightness()
			if tt.brightness == nil {
				assert.False(t, ok)
			} else {
				assert.True(t, ok)
				assert.Equal(t, *tt.brightness, b)
			}

			c, ok := l.RGBColor()
			if tt.color == nil {
				assert.False(t, ok)
			} else {
				assert.True(t, ok)
				assert.Equal(t, *tt.color, c)
			}

			assert.Equal(t, tt.mode, l.ColorMode())
		})
	}
}

func TestScaleToMax(t *testing.T) {
	assert.Equal(t, protocol.RGB{}, ScaleToMax(protocol.RGB{}))
	assert.Equal(t, protocol.RGB{R: 255}, ScaleToMax(protocol.RGB{R: 1}))
	assert.Equal(t, protocol.RGB{R: 255, G: 128, B: 0}, ScaleToMax(protocol.RGB{R: 200, G: 100, B: 0}))
	assert.Equal(t, protocol.RGB{R: 255, G: 255, B: 255}, ScaleToMax(protocol.RGB{R: 7, G: 7, B: 7}))
}

func TestApplyBrightness(t *testing.T) {
	assert.Equal(t, protocol.RGB{R: 128, G: 64, B: 0}, ApplyBrightness(protocol.RGB{R: 200, G: 100, B: 0}, 128))
	assert.Equal(t, protocol.RGB{R: 255}, ApplyBrightness(protocol.RGB{R: 3}, 255))
	assert.Equal(t, protocol.RGB{}, ApplyBrightness(protocol.RGB{R: 3}, 0))
}

func TestTurnOn(t *testing.T) {
	ctx := context.Background()

	t.Run("powers on when off and nothing else", func(t *testing.T) {
		m := newMock(state(protocol.PowerOff, rgb(1, 2, 3), 0))
		m.On("TurnOn").Return(nil).Once()

		require.NoError(t, New(m, "").TurnOn(ctx, TurnOnOptions{}))
		m.AssertExpectations(t)
	})

	t.Run("powers on when unknown", func(t *testing.T) {
		m := newMock(protocol.UnknownState())
		m.On("TurnOn").Return(nil).Once()

		require.NoError(t, New(m, "").TurnOn(ctx, TurnOnOptions{}))
		m.AssertExpectations(t)
	})

	t.Run("already on with same white is a no-op", func(t *testing.T) {
		m := newMock(state(protocol.PowerOn, rgb(0, 0, 0), 80))

		require.NoError(t, New(m, "").TurnOn(ctx, TurnOnOptions{White: u8(80)}))
		m.AssertNotCalled(t, "TurnOn")
		m.AssertNotCalled(t, "SetWhite", mock.Anything)
	})

	t.Run("white takes precedence over rgb", func(t *testing.T) {
		m := newMock(state(protocol.PowerOn, rgb(0, 0, 0), 80))
		m.On("SetWhite", uint8(200)).Return(nil).Once()

		require.NoError(t, New(m, "").TurnOn(ctx, TurnOnOptions{White: u8(200), RGB: rgb(255, 0, 0)}))
		m.AssertExpectations(t)
		m.AssertNotCalled(t, "SetColor", mock.Anything)
	})

	t.Run("rgb uses explicit brightness", func(t *testing.T) {
		m := newMock(state(protocol.PowerOn, rgb(0, 0, 255), 0))
		m.On("SetColor", protocol.RGB{R: 128, G: 64, B: 0}).Return(nil).Once()

		require.NoError(t, New(m, "").TurnOn(ctx, TurnOnOptions{RGB: rgb(200, 100, 0), Brightness: u8(128)}))
		m.AssertExpectations(t)
	})

	t.Run("rgb keeps current brightness", func(t *testing.T) {
		m := newMock(state(protocol.PowerOn, rgb(0, 0, 51), 0))
		m.On("SetColor", protocol.RGB{R: 51, G: 0, B: 0}).Return(nil).Once()

		require.NoError(t, New(m, "").TurnOn(ctx, TurnOnOptions{RGB: rgb(255, 0, 0)}))
		m.AssertExpectations(t)
	})

	t.Run("rgb defaults to full brightness when unknown", func(t *testing.T) {
		m := newMock(protocol.UnknownState())
		m.On("TurnOn").Return(nil).Once()
		m.On("SetColor", protocol.RGB{R: 255, G: 128, B: 0}).Return(nil).Once()

		require.NoError(t, New(m, "").TurnOn(ctx, TurnOnOptions{RGB: rgb(200, 100, 0)}))
		m.AssertExpectations(t)
	})

	t.Run("same rgb is not re-sent", func(t *testing.T) {
		m := newMock(state(protocol.PowerOn, rgb(100, 0, 0), 0))

		require.NoError(t, New(m, "").TurnOn(ctx, TurnOnOptions{RGB: rgb(255, 0, 0)}))
		m.AssertNotCalled(t, "SetColor", mock.Anything)
	})

	t.Run("brightness alone rescales current colour", func(t *testing.T) {
		m := newMock(state(protocol.PowerOn, rgb(100, 50, 0), 0))
		m.On("SetColor", protocol.RGB{R: 51, G: 25, B: 0}).Return(nil).Once()

		require.NoError(t, New(m, "").TurnOn(ctx, TurnOnOptions{Brightness: u8(51)}))
		m.AssertExpectations(t)
	})

	t.Run("brightness alone in white mode sets white", func(t *testing.T) {
		m := newMock(state(protocol.PowerOn, rgb(0, 0, 0), 10))
		m.On("SetWhite", uint8(90)).Return(nil).Once()

		require.NoError(t, New(m, "").TurnOn(ctx, TurnOnOptions{Brightness: u8(90)}))
		m.AssertExpectations(t)
	})

	t.Run("power error stops the sequence", func(t *testing.T) {
		m := newMock(protocol.UnknownState())
		m.On("TurnOn").Return(errors.New("boom")).Once()

		err := New(m, "").TurnOn(ctx, TurnOnOptions{White: u8(1)})
		assert.EqualError(t, err, "boom")
		m.AssertNotCalled(t, "SetWhite", mock.Anything)
	})
}

func TestTurnOffAndUpdateDelegate(t *testing.T) {
	m := newMock(protocol.UnknownState())
	m.On("TurnOff").Return(nil).Once()
	m.On("Update").Return().Once()

	l := New(m, "")
	require.NoError(t, l.TurnOff(context.Background()))
	l.Update(context.Background())

	m.AssertExpectations(t)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", l.Name(), "empty name MUST fall back to the address")
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", l.UniqueID())
}

func TestSnapshotJSON(t *testing.T) {
	l := New(newMock(state(protocol.PowerOn, rgb(200, 100, 0), 0)), "Desk")

	data, err := json.Marshal(l.Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "Desk",
		"address": "AA:BB:CC:DD:EE:FF",
		"available": true,
		"on": true,
		"brightness": 200,
		"rgb_color": {"r": 255, "g": 128, "b": 0},
		"color_mode": "rgb"
	}`, string(data))

	data, err = json.Marshal(New(newMock(protocol.UnknownState()), "Desk").Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Desk","address":"AA:BB:CC:DD:EE:FF","available":false,"color_mode":"unknown"}`, string(data))
}
