// Package timer tracks the elapsed practice time of a session.
package timer

import (
	"fmt"
	"sync"
	"time"
)

// Zero is the display value of an idle, reset tracker.
const Zero = "00:00"

// TickSource produces a tick channel and a function that releases it.
type TickSource func(interval time.Duration) (<-chan time.Time, func())

// SystemTicker is the default TickSource backed by time.Ticker.
func SystemTicker(interval time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithTicker overrides the tick source (used by tests).
func WithTicker(src TickSource) Option {
	return func(t *Tracker) {
		t.ticker = src
	}
}

// WithInterval overrides the tick interval (default one second).
func WithInterval(d time.Duration) Option {
	return func(t *Tracker) {
		t.interval = d
	}
}

// Tracker is a start/pause/resume/reset/stop clock that reports the
// formatted elapsed time on every tick.
type Tracker struct {
	mu       sync.Mutex
	emitMu   sync.Mutex // orders display callbacks with their state changes
	elapsed  int
	running  bool
	halt     chan struct{}
	onTick   func(string)
	ticker   TickSource
	interval time.Duration
}

// NewTracker creates an idle tracker. onTick may be nil and must not call
// back into the tracker.
func NewTracker(onTick func(string), opts ...Option) *Tracker {
	t := &Tracker{
		onTick:   onTick,
		ticker:   SystemTicker,
		interval: time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins ticking. It is a no-op while already running.
func (t *Tracker) Start() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	halt := make(chan struct{})
	t.halt = halt
	ticks, release := t.ticker(t.interval)
	t.mu.Unlock()

	go t.loop(halt, ticks, release)
}

// Resume is equivalent to Start.
func (t *Tracker) Resume() {
	t.Start()
}

// Pause stops ticking without clearing the counter. No-op when idle.
func (t *Tracker) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.haltLocked()
}

// Reset stops ticking and zeroes the counter.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.haltLocked()
	t.elapsed = 0
	t.emitMu.Lock()
	t.mu.Unlock()

	t.emit(Zero)
	t.emitMu.Unlock()
}

// Stop stops ticking, zeroes the counter and returns the time captured
// just before zeroing.
func (t *Tracker) Stop() string {
	t.mu.Lock()
	t.haltLocked()
	captured := Format(t.elapsed)
	t.elapsed = 0
	t.emitMu.Lock()
	t.mu.Unlock()

	t.emit(Zero)
	t.emitMu.Unlock()
	return captured
}

// Close releases the ticker goroutine without notifying the display.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.haltLocked()
}

// IsActive reports whether the tracker is running.
func (t *Tracker) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Elapsed returns the elapsed seconds.
func (t *Tracker) Elapsed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

// Formatted returns the elapsed time as MM:SS.
func (t *Tracker) Formatted() string {
	return Format(t.Elapsed())
}

// haltLocked must be called with mu held.
func (t *Tracker) haltLocked() {
	if !t.running {
		return
	}
	t.running = false
	close(t.halt)
	t.halt = nil
}

func (t *Tracker) loop(halt chan struct{}, ticks <-chan time.Time, release func()) {
	defer release()
	for {
		select {
		case <-halt:
			return
		case <-ticks:
			t.mu.Lock()
			// A tick racing a pause belongs to the previous run.
			if t.halt != halt {
				t.mu.Unlock()
				return
			}
			t.elapsed++
			display := Format(t.elapsed)
			t.emitMu.Lock()
			t.mu.Unlock()

			t.emit(display)
			t.emitMu.Unlock()
		}
	}
}

func (t *Tracker) emit(display string) {
	if t.onTick != nil {
		t.onTick(display)
	}
}

// Format renders seconds as zero-padded MM:SS. Minutes grow past two
// digits once they exceed 99.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
