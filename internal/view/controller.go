package view

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Controller runs fetch cycles for a group of panels that share one
// parameter set. It must only be used from the UI loop; fetches run on
// their own goroutines and hand results back through the Dispatcher.
type Controller[P comparable] struct {
	dispatcher Dispatcher
	logger     *zap.Logger
	loaders    []Loader[P]

	ctx     context.Context
	cancel  context.CancelFunc
	params  P
	mounted bool
	closed  bool
	cycles  uint64

	listeners []func()
	wg        sync.WaitGroup
}

func NewController[P comparable](dispatcher Dispatcher, logger *zap.Logger, loaders ...Loader[P]) *Controller[P] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller[P]{
		dispatcher: dispatcher,
		logger:     logger,
		loaders:    loaders,
	}
}

// OnChange registers a callback run on the UI loop after every state
// transition of any panel.
func (c *Controller[P]) OnChange(fn func()) {
	c.listeners = append(c.listeners, fn)
}

func (c *Controller[P]) Params() P {
	return c.params
}

// Cycles is the number of fetch cycles started so far.
func (c *Controller[P]) Cycles() uint64 {
	return c.cycles
}

// Busy reports whether any panel still waits for its latest request.
func (c *Controller[P]) Busy() bool {
	for _, loader := range c.loaders {
		if loader.busy() {
			return true
		}
	}
	return false
}

// Mount starts the first cycle. Requests are bound to ctx; cancelling it
// cancels everything in flight.
func (c *Controller[P]) Mount(ctx context.Context, params P) {
	if c.closed {
		return
	}
	if c.mounted {
		c.Apply(params)
		return
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mounted = true
	c.params = params
	c.run(true)
}

// Apply starts a cycle for params unless they equal the current set.
// It reports whether a cycle was started.
func (c *Controller[P]) Apply(params P) bool {
	if c.closed {
		return false
	}
	if params == c.params {
		return false
	}
	c.params = params
	if !c.mounted {
		return false
	}
	return c.run(false)
}

// Refresh refetches every panel with the current parameters.
func (c *Controller[P]) Refresh() {
	if c.closed || !c.mounted {
		return
	}
	c.run(true)
}

// Close cancels in-flight requests and drops any result still on its way.
func (c *Controller[P]) Close() {
	if c.closed {
		return
	}
	c.closed = true
	for _, loader := range c.loaders {
		loader.stop()
	}
	if c.cancel != nil {
		c.cancel()
	}
}

// Wait blocks until every fetch goroutine has returned.
func (c *Controller[P]) Wait() {
	c.wg.Wait()
}

func (c *Controller[P]) run(force bool) bool {
	params := c.params
	started := 0
	for _, loader := range c.loaders {
		ctx, token, ok := loader.begin(c.ctx, params, force)
		if !ok {
			continue
		}
		started++
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			apply, err := loader.load(ctx, params)
			c.dispatcher.Dispatch(func() { c.commit(loader, token, apply, err) })
		}()
	}
	if started == 0 {
		return false
	}

	c.cycles++
	c.logger.Debug("fetch cycle started",
		zap.Uint64("cycle", c.cycles),
		zap.Int("panels", started),
		zap.Bool("forced", force))
	c.notify()
	return true
}

func (c *Controller[P]) commit(loader Loader[P], token uint64, apply func(), err error) {
	if c.closed {
		return
	}
	if !loader.current(token) {
		c.logger.Debug("discarding stale result",
			zap.String("panel", loader.Name()),
			zap.Uint64("token", token))
		return
	}

	apply()
	if err != nil {
		c.logger.Info("panel failed",
			zap.String("panel", loader.Name()),
			zap.Uint64("token", token),
			zap.Error(err))
	} else {
		c.logger.Debug("panel loaded",
			zap.String("panel", loader.Name()),
			zap.Uint64("token", token))
	}
	c.notify()
}

func (c *Controller[P]) notify() {
	for _, fn := range c.listeners {
		fn()
	}
}
