package view

import (
	"context"
	"sync"
)

// Dispatcher hands a callback to the UI loop. All view state is owned by
// that loop, so goroutines doing I/O never touch it directly.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(fn func())

func (f DispatchFunc) Dispatch(fn func()) {
	f(fn)
}

// Loop is a single-goroutine callback queue used where no terminal event
// loop exists (web requests, one-shot commands, tests). Dispatch never
// blocks, so it is safe to call from the loop itself.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	closed  bool
	wake    chan struct{}
}

func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

func (l *Loop) Dispatch(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes callbacks until ctx is done. Callbacks dispatched after that
// are dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Close()
	for {
		l.Flush()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// RunUntil executes callbacks until done reports true or ctx is done. done
// is checked on the calling goroutine after every drained batch.
func (l *Loop) RunUntil(ctx context.Context, done func() bool) error {
	for {
		l.Flush()
		if done() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Flush runs every queued callback, including ones queued while flushing.
func (l *Loop) Flush() {
	for {
		l.mu.Lock()
		batch := l.pending
		l.pending = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn()
		}
	}
}

func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.pending = nil
	l.mu.Unlock()
}
