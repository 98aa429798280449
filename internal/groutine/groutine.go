// Package groutine starts goroutines carrying pprof labels, so background
// monitors and per-light polls are identifiable in goroutine dumps.
package groutine

import (
	"context"
	"runtime/pprof"
	"sync"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Go starts fn in a goroutine labelled with name. Extra labels are given as
// key/value pairs, e.g. Go(ctx, "poll", fn, "address", mac).
//
// If parentCtx is nil, context.Background() is used.
func Go(parentCtx context.Context, name string, fn func(ctx context.Context), labels ...string) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	set := pprof.Labels(append([]string{"goroutine_name", name}, labels...)...)

	go pprof.Do(parentCtx, set, func(ctx context.Context) {
		ctx = context.WithValue(ctx, goroutineNameKey, name)
		fn(ctx)
	})
}

// GetName retrieves the goroutine name from the context.
func GetName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(goroutineNameKey).(string); ok {
		return v
	}
	return ""
}

// Group runs labelled goroutines and waits for all of them. The zero value
// is ready to use; a Group must not be copied after first use.
type Group struct {
	wg sync.WaitGroup
}

// Go starts fn as a member of the group
func (g *Group) Go(ctx context.Context, name string, fn func(ctx context.Context), labels ...string) {
	g.wg.Add(1)
	Go(ctx, name, func(ctx context.Context) {
		defer g.wg.Done()
		fn(ctx)
	}, labels...)
}

// Wait blocks until every goroutine started by Go has returned
func (g *Group) Wait() {
	g.wg.Wait()
}
