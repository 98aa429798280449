package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/sysofwan/ha-triones/internal/device"
	"github.com/sysofwan/ha-triones/internal/groutine"
)

// DeviceFunc creates the transport device for an address
type DeviceFunc func(address string) (device.Device, error)

// Registry keeps one Session per device address. Sessions are independent:
// UpdateAll polls them concurrently.
type Registry struct {
	newDevice DeviceFunc
	opts      Options
	logger    *logrus.Logger
	sessions  *hashmap.Map[string, *Session]
}

// NewRegistry creates an empty registry
func NewRegistry(newDevice DeviceFunc, opts Options, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		newDevice: newDevice,
		opts:      opts,
		logger:    logger,
		sessions:  hashmap.New[string, *Session](),
	}
}

func registryKey(address string) string {
	return strings.ToUpper(strings.TrimSpace(address))
}

// Get returns the Session for address, if one exists.
func (r *Registry) Get(address string) (*Session, bool) {
	return r.sessions.Get(registryKey(address))
}

// GetOrCreate returns the Session for address, creating it on first use.
func (r *Registry) GetOrCreate(address string) (*Session, error) {
	key := registryKey(address)
	if s, ok := r.sessions.Get(key); ok {
		return s, nil
	}

	dev, err := r.newDevice(address)
	if err != nil {
		return nil, fmt.Errorf("create device %s: %w", address, err)
	}

	s, loaded := r.sessions.GetOrInsert(key, New(dev, r.opts, r.logger))
	if !loaded {
		r.logger.WithField("address", key).Debug("Session created")
	}
	return s, nil
}

// Remove disconnects and forgets the Session for address.
func (r *Registry) Remove(address string) error {
	key := registryKey(address)
	s, ok := r.sessions.Get(key)
	if !ok {
		return nil
	}
	if !r.sessions.Del(key) {
		return nil
	}
	return s.Disconnect()
}

// Sessions returns every Session ordered by address.
func (r *Registry) Sessions() []*Session {
	out := make([]*Session, 0, r.sessions.Len())
	r.sessions.Range(func(key string, s *Session) bool {
		// Range can still yield entries removed by Del
		if live, ok := r.sessions.Get(key); ok && live == s {
			out = append(out, s)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return registryKey(out[i].MAC()) < registryKey(out[j].MAC())
	})
	return out
}

// UpdateAll refreshes every Session concurrently and waits for all of them.
func (r *Registry) UpdateAll(ctx context.Context) {
	var g groutine.Group
	for _, s := range r.Sessions() {
		g.Go(ctx, "session-update", s.Update, "address", s.MAC())
	}
	g.Wait()
}

// Close disconnects every Session and empties the registry.
func (r *Registry) Close() error {
	var errs []error
	for _, s := range r.Sessions() {
		if !r.sessions.Del(registryKey(s.MAC())) {
			continue
		}
		if err := s.Disconnect(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
