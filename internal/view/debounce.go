package view

import "time"

// DefaultQuietInterval is how long raw input must stay unchanged before it
// is considered stable.
const DefaultQuietInterval = 500 * time.Millisecond

// AfterFunc schedules fn after d and returns a function that cancels it.
// It matches time.AfterFunc so tests can substitute a manual clock.
type AfterFunc func(d time.Duration, fn func()) (stop func() bool)

func realAfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// Debouncer turns rapidly changing raw input into a stable value. The timer
// fires on its own goroutine, but the stable value only changes on the UI
// loop, and only if no newer raw value arrived in the meantime.
type Debouncer[T comparable] struct {
	dispatcher Dispatcher
	quiet      time.Duration
	afterFunc  AfterFunc

	raw      T
	stable   T
	gen      uint64
	cancel   func() bool
	stopped  bool
	onChange func(T)
}

func NewDebouncer[T comparable](dispatcher Dispatcher, quiet time.Duration, initial T, afterFunc AfterFunc) *Debouncer[T] {
	if quiet <= 0 {
		quiet = DefaultQuietInterval
	}
	if afterFunc == nil {
		afterFunc = realAfterFunc
	}
	return &Debouncer[T]{
		dispatcher: dispatcher,
		quiet:      quiet,
		afterFunc:  afterFunc,
		raw:        initial,
		stable:     initial,
	}
}

// OnChange registers the callback run on the UI loop when the stable value
// changes.
func (d *Debouncer[T]) OnChange(fn func(T)) {
	d.onChange = fn
}

func (d *Debouncer[T]) Raw() T {
	return d.raw
}

func (d *Debouncer[T]) Stable() T {
	return d.stable
}

// Pending reports whether a raw value is waiting out its quiet interval.
func (d *Debouncer[T]) Pending() bool {
	return d.cancel != nil
}

// Set records a new raw value and restarts the quiet interval.
func (d *Debouncer[T]) Set(raw T) {
	if d.stopped {
		return
	}
	d.raw = raw
	d.gen++
	if d.cancel != nil {
		d.cancel()
	}

	gen := d.gen
	d.cancel = d.afterFunc(d.quiet, func() {
		d.dispatcher.Dispatch(func() { d.settle(gen) })
	})
}

// Reset replaces both values without emitting.
func (d *Debouncer[T]) Reset(value T) {
	d.gen++
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.raw = value
	d.stable = value
}

// Stop cancels any pending stabilization. Nothing is emitted afterwards.
func (d *Debouncer[T]) Stop() {
	d.stopped = true
	d.gen++
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Debouncer[T]) settle(gen uint64) {
	if d.stopped || gen != d.gen {
		return
	}
	d.cancel = nil
	if d.raw == d.stable {
		return
	}
	d.stable = d.raw
	if d.onChange != nil {
		d.onChange(d.stable)
	}
}
