package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/term"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter displays a countdown while a scan runs.
//
// Usage:
//
//	p := NewCountdownProgressPrinter(w, "Scanning for lights", "Scanning", d, "Processing results")
//	p.Start()
//	defer p.Stop()
//
// A ProgressPrinter is single-use. When w is not a terminal it prints nothing.
type ProgressPrinter struct {
	w          io.Writer
	enabled    bool
	prefix     string
	phase      atomic.Value        // stores string - current phase name
	stopPhases map[string]struct{} // set of phases that trigger a graceful shutdown
	duration   time.Duration
	startTime  time.Time
	found      atomic.Int64

	started  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{} // closed when goroutine exits
}

// NewCountdownProgressPrinter creates a progress printer that counts down from duration.
// stopPhases are phase names that will trigger automatic cleanup when set via Callback.
func NewCountdownProgressPrinter(w io.Writer, prefix, phase string, duration time.Duration, stopPhases ...string) *ProgressPrinter {
	stopSet := make(map[string]struct{})
	for _, p := range stopPhases {
		stopSet[p] = struct{}{}
	}
	p := &ProgressPrinter{
		w:          w,
		enabled:    isTerminal(w),
		prefix:     prefix,
		stopPhases: stopSet,
		duration:   duration,
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	p.phase.Store(phase)
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Start begins displaying progress updates in a background goroutine.
// Panics if called more than once on the same ProgressPrinter instance.
func (p *ProgressPrinter) Start() {
	if !p.started.CompareAndSwap(false, true) {
		panic("ProgressPrinter.Start called more than once")
	}
	p.startTime = time.Now()

	if !p.enabled {
		close(p.done)
		return
	}

	p.printProgress(p.phase.Load().(string), 0)
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(progressUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
				phase := p.phase.Load().(string)
				if _, stop := p.stopPhases[phase]; stop {
					return
				}
				p.printProgress(phase, p.remaining())
			}
		}
	}()
}

// remaining rounds the time left to the nearest second, never below zero
func (p *ProgressPrinter) remaining() int {
	left := p.duration - time.Since(p.startTime)
	if left <= 0 {
		return 0
	}
	return int(left.Seconds() + 0.5)
}

// printProgress displays a progress line with optional remaining seconds
// and the number of devices found so far
func (p *ProgressPrinter) printProgress(phase string, seconds int) {
	status := phase + "..."
	if seconds > 0 {
		status = fmt.Sprintf("%s %ds", phase, seconds)
	}
	if n := p.found.Load(); n > 0 {
		status = fmt.Sprintf("%s, %d found", status, n)
	}
	fmt.Fprintf(p.w, "\r%s (%s)   ", p.prefix, status)
}

// Found counts one more discovered device. It is safe to call from the scan callback.
func (p *ProgressPrinter) Found() {
	p.found.Add(1)
}

// Callback returns a progress callback function that updates the phase.
// If the new phase is a stop phase, Stop() is called automatically.
func (p *ProgressPrinter) Callback() func(phase string) {
	return func(phase string) {
		p.phase.Store(phase)
		if _, stop := p.stopPhases[phase]; stop {
			p.Stop()
		}
	}
}

// Stop stops the progress display and clears the line. Safe to call more than once.
func (p *ProgressPrinter) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
		if !p.started.Load() {
			return
		}
		<-p.done
		if p.enabled {
			fmt.Fprint(p.w, clearLineSequence)
		}
	})
}
