// Package debounce collapses bursts of calls into a single trailing call.
package debounce

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Option configures a Debouncer.
type Option func(*options)

type options struct {
	clock clockwork.Clock
}

// WithClock sets the time source used to schedule invocations.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// Debouncer delays calls to fn until delay has passed without a newer call.
// Only the argument of the last call in a burst reaches fn.
type Debouncer[T any] struct {
	fn    func(T)
	delay time.Duration
	clock clockwork.Clock

	mu    sync.Mutex
	timer clockwork.Timer
	gen   uint64
}

// New creates a Debouncer for fn.
func New[T any](fn func(T), delay time.Duration, opts ...Option) *Debouncer[T] {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Debouncer[T]{
		fn:    fn,
		delay: delay,
		clock: o.clock,
	}
}

// Wrap returns a function with fn's signature that debounces its calls.
func Wrap[T any](fn func(T), delay time.Duration, opts ...Option) func(T) {
	return New(fn, delay, opts...).Call
}

// Call cancels any pending invocation and schedules fn(arg) after the delay.
func (d *Debouncer[T]) Call(arg T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()

	gen := d.gen

	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.fire(gen, arg)
	})
}

// Cancel drops the pending invocation, if any.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
}

// Pending reports whether an invocation is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.timer != nil
}

// stopLocked stops the current timer and invalidates its callback. A timer
// that has already fired sees a stale generation and returns without calling fn.
func (d *Debouncer[T]) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	d.gen++
}

func (d *Debouncer[T]) fire(gen uint64, arg T) {
	d.mu.Lock()

	if gen != d.gen {
		d.mu.Unlock()

		return
	}

	d.timer = nil
	d.gen++
	d.mu.Unlock()

	d.fn(arg)
}
