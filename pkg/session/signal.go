package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// oneShot is a single-assignment signal. The first Fulfill wins; later calls
// are ignored. Each status query owns a fresh instance.
type oneShot[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
}

func newOneShot[T any]() *oneShot[T] {
	return &oneShot[T]{done: make(chan struct{})}
}

// Fulfill stores v if the signal is still pending and reports whether it did.
func (o *oneShot[T]) Fulfill(v T) bool {
	fulfilled := false
	o.once.Do(func() {
		o.value = v
		close(o.done)
		fulfilled = true
	})
	return fulfilled
}

// Wait blocks until the signal is fulfilled, the timeout expires or ctx is done.
func (o *oneShot[T]) Wait(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-o.done:
		return o.value, nil
	case <-timer.C:
		return zero, fmt.Errorf("%w: no notification within %s", ErrResponseTimeout, timeout)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
