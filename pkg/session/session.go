package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sysofwan/ha-triones/internal/device"
	"github.com/sysofwan/ha-triones/pkg/protocol"
)

// Phase is the position of a Session in its connection lifecycle
type Phase int32

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseResolving
	PhaseReady
	PhaseQuerying
	PhaseWriting
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseResolving:
		return "resolving"
	case PhaseReady:
		return "ready"
	case PhaseQuerying:
		return "querying"
	case PhaseWriting:
		return "writing"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// link is a resolved characteristic pair on the current connection.
// It is discarded whenever the connection goes away.
type link struct {
	pair   Pair
	write  device.Characteristic
	notify device.Characteristic
}

// Session owns the connection to one light and its last known state.
//
// Public operations are serialised: at most one command or status query is in
// flight per Session. Accessors never block on I/O.
type Session struct {
	dev    device.Device
	opts   Options
	logger *logrus.Logger

	opMu sync.Mutex

	mu    sync.RWMutex
	phase Phase
	link  *link
	state protocol.State
}

// New creates a disconnected Session for dev. The connection is opened on the
// first operation that needs it.
func New(dev device.Device, opts Options, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	return &Session{
		dev:    dev,
		opts:   opts.withDefaults(),
		logger: logger,
		phase:  PhaseDisconnected,
		state:  protocol.UnknownState(),
	}
}

// MAC returns the device address the Session was created for.
func (s *Session) MAC() string {
	return s.dev.Address()
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// State returns a copy of the cached status snapshot.
func (s *Session) State() protocol.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// IsOn reports the cached power state; known is false when it is unknown.
func (s *Session) IsOn() (on bool, known bool) {
	return s.State().IsOn()
}

// RGBColor returns the cached colour, if any.
func (s *Session) RGBColor() (protocol.RGB, bool) {
	return s.State().RGBColor()
}

// WhiteBrightness returns the cached white brightness (1-255), if any.
func (s *Session) WhiteBrightness() (uint8, bool) {
	return s.State().WhiteBrightness()
}

// TurnOn writes the power-on command.
func (s *Session) TurnOn(ctx context.Context) error {
	return s.command(ctx, "turn on", protocol.EncodePowerOn())
}

// TurnOff writes the power-off command.
func (s *Session) TurnOff(ctx context.Context) error {
	return s.command(ctx, "turn off", protocol.EncodePowerOff())
}

// SetColor writes an RGB colour command.
func (s *Session) SetColor(ctx context.Context, c protocol.RGB) error {
	return s.command(ctx, "set color", protocol.EncodeSetColor(c.R, c.G, c.B))
}

// SetWhite writes a white intensity command.
func (s *Session) SetWhite(ctx context.Context, intensity uint8) error {
	return s.command(ctx, "set white", protocol.EncodeSetWhite(intensity))
}

// Update queries the device status and replaces the cached snapshot.
//
// Update never fails: on any error the snapshot becomes unknown and the error
// is logged. Callers detect failure through the accessors.
func (s *Session) Update(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	started := time.Now()
	st, err := s.refresh(ctx)

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()

	if err != nil {
		s.log().WithFields(logrus.Fields{
			"elapsed": time.Since(started).Round(time.Millisecond),
		}).Errorf("Failed to update status: %v", errSummary(err))
		s.log().Debugf("Status update error detail: %+v", err)

		if errors.Is(err, ErrTransport) {
			s.dropLink()
		}
	} else {
		s.log().WithFields(logrus.Fields{
			"power": st.Power,
			"color": st.Color,
			"white": st.White,
		}).Debug("Status updated")
	}
	s.settlePhase()
}

// Disconnect closes the connection. Calling it on a disconnected Session is a no-op.
func (s *Session) Disconnect() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	hadLink := s.link != nil
	s.link = nil
	s.phase = PhaseDisconnected
	s.mu.Unlock()

	if !s.dev.IsConnected() {
		if hadLink {
			s.log().Debug("Link already gone")
		}
		return nil
	}

	s.log().Info("Disconnecting...")
	if err := s.dev.Disconnect(); err != nil && !errors.Is(err, device.ErrNotConnected) {
		return fmt.Errorf("disconnect %s: %w", s.MAC(), err)
	}
	return nil
}

func (s *Session) command(ctx context.Context, op string, frame []byte) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	defer s.settlePhase()

	l, err := s.ensureConnected(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.setPhase(PhaseWriting)
	if err := s.writeFrame(l, frame); err != nil {
		s.dropLink()
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// refresh runs one complete status exchange. Panics from the transport are
// turned into errors so that Update keeps its contract.
func (s *Session) refresh(ctx context.Context) (st protocol.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			st = protocol.UnknownState()
			err = fmt.Errorf("%w: panic during status query: %v", ErrTransport, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return protocol.UnknownState(), err
	}

	l, err := s.ensureConnected(ctx)
	if err != nil {
		return protocol.UnknownState(), err
	}

	if err := sleepCtx(ctx, s.opts.NotifySettle); err != nil {
		return protocol.UnknownState(), err
	}

	payload, err := s.exchange(ctx, l)
	if err != nil {
		return protocol.UnknownState(), err
	}

	return protocol.DecodeStatus(payload)
}

// exchange subscribes to the notify characteristic, writes the status query
// and waits for the first notification.
func (s *Session) exchange(ctx context.Context, l *link) ([]byte, error) {
	s.setPhase(PhaseQuerying)

	reply := newOneShot[[]byte]()
	handler := func(data []byte) {
		if !reply.Fulfill(bytes.Clone(data)) {
			s.log().WithField("frame", protocol.FormatFrame(data)).Trace("Ignoring extra notification")
		}
	}

	if err := l.notify.Subscribe(handler); err != nil {
		return nil, fmt.Errorf("%w: subscribe %s: %w", ErrTransport, l.notify.UUID(), err)
	}
	defer func() {
		if err := l.notify.Unsubscribe(); err != nil {
			s.log().WithError(err).Debug("Unsubscribe failed")
		}
	}()

	if err := s.writeFrame(l, protocol.EncodeStatusQuery()); err != nil {
		return nil, err
	}

	payload, err := reply.Wait(ctx, s.opts.ResponseTimeout)
	if err != nil {
		return nil, err
	}
	s.log().WithField("frame", protocol.FormatFrame(payload)).Debug("Received status frame")
	return payload, nil
}

func (s *Session) writeFrame(l *link, frame []byte) error {
	withResponse := !l.write.Properties().Has(device.PropWriteWithoutResponse)
	s.log().WithFields(logrus.Fields{
		"frame":         protocol.FormatFrame(frame),
		"with_response": withResponse,
	}).Debug("Writing frame")

	if err := l.write.Write(frame, withResponse); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrTransport, l.write.UUID(), err)
	}
	return nil
}

// ensureConnected returns the current link, connecting and resolving the
// characteristic pair first when there is none.
func (s *Session) ensureConnected(ctx context.Context) (*link, error) {
	s.mu.RLock()
	l := s.link
	s.mu.RUnlock()

	if l != nil {
		if s.dev.IsConnected() {
			return l, nil
		}
		s.log().Info("Connection lost, reconnecting")
		s.mu.Lock()
		s.link = nil
		s.mu.Unlock()
	}

	s.setPhase(PhaseConnecting)
	fresh, err := s.connect(ctx)
	if err != nil {
		s.setPhase(PhaseDisconnected)
		return nil, err
	}
	if fresh {
		if err := sleepCtx(ctx, s.opts.ConnectSettle); err != nil {
			return nil, err
		}
	}

	s.setPhase(PhaseResolving)
	l, err = s.resolve()
	if err != nil {
		s.dropLink()
		return nil, err
	}

	s.mu.Lock()
	s.link = l
	s.phase = PhaseReady
	s.mu.Unlock()

	s.log().WithFields(logrus.Fields{
		"write":  l.pair.Write,
		"notify": l.pair.Notify,
	}).Info("Session ready")
	return l, nil
}

// connect opens the link and reports whether a new connection was made.
func (s *Session) connect(ctx context.Context) (bool, error) {
	if s.dev.IsConnected() {
		return false, nil
	}

	timeout := s.opts.ConnectTimeout
	s.log().WithField("timeout", timeout).Info("Connecting...")

	connCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.dev.Connect(connCtx, &device.ConnectOptions{ConnectTimeout: timeout})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, device.ErrAlreadyConnected):
		return false, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case errors.Is(connCtx.Err(), context.DeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, device.ErrTimeout):
		return false, fmt.Errorf("%w: %s after %s: %w", ErrConnectionTimeout, s.MAC(), timeout, err)
	default:
		return false, fmt.Errorf("%w: connect %s: %w", ErrTransport, s.MAC(), err)
	}
}

func (s *Session) resolve() (*link, error) {
	conn := s.dev.GetConnection()
	if conn == nil {
		return nil, fmt.Errorf("%w: no connection after connect", ErrNotConnected)
	}

	chars := conn.Characteristics()
	exposed := make([]string, 0, len(chars))
	for _, c := range chars {
		exposed = append(exposed, c.UUID())
	}

	pair, err := s.opts.Resolver.Resolve(exposed)
	if err != nil {
		return nil, err
	}

	write, err := conn.GetCharacteristic(pair.Write)
	if err != nil {
		return nil, &ResolutionError{Missing: []string{"write"}, Exposed: device.NormalizeUUIDs(exposed), Err: err}
	}
	notify, err := conn.GetCharacteristic(pair.Notify)
	if err != nil {
		return nil, &ResolutionError{Missing: []string{"notify"}, Exposed: device.NormalizeUUIDs(exposed), Err: err}
	}

	return &link{pair: pair, write: write, notify: notify}, nil
}

// dropLink forgets the characteristic pair and closes the connection.
func (s *Session) dropLink() {
	s.mu.Lock()
	s.link = nil
	s.phase = PhaseDisconnected
	s.mu.Unlock()

	if !s.dev.IsConnected() {
		return
	}
	if err := s.dev.Disconnect(); err != nil && !errors.Is(err, device.ErrNotConnected) {
		s.log().WithError(err).Warn("Disconnect after failure returned an error")
	}
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	prev := s.phase
	s.phase = p
	s.mu.Unlock()

	if prev != p {
		s.log().WithFields(logrus.Fields{"from": prev, "to": p}).Trace("Phase change")
	}
}

// settlePhase returns to Ready or Disconnected once an operation ends.
func (s *Session) settlePhase() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.link != nil {
		s.phase = PhaseReady
	} else {
		s.phase = PhaseDisconnected
	}
}

func (s *Session) log() *logrus.Entry {
	return s.logger.WithField("address", s.MAC())
}

// errSummary returns the top-level category of err for one-line log messages.
func errSummary(err error) string {
	for _, sentinel := range []error{
		ErrConnectionTimeout,
		ErrCharacteristicResolution,
		ErrResponseTimeout,
		protocol.ErrFrameTooShort,
		ErrTransport,
		ErrNotConnected,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
