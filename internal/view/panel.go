package view

import "context"

// FetchFunc loads the data of one panel for a parameter set. It runs on its
// own goroutine and must not touch view state.
type FetchFunc[P comparable, T any] func(ctx context.Context, params P) (T, error)

// Loader is implemented by Panel. It lets a Controller drive panels with
// different data types.
type Loader[P comparable] interface {
	Name() string
	begin(base context.Context, params P, force bool) (context.Context, uint64, bool)
	load(ctx context.Context, params P) (apply func(), err error)
	current(token uint64) bool
	busy() bool
	stop()
}

// Panel is one independently loading section of a page. Its token is minted
// by the owning Controller each time the panel is asked to refetch, and only
// a result carrying the latest token is committed.
type Panel[P comparable, T any] struct {
	name  string
	fetch FetchFunc[P, T]
	scope func(P) P

	state     State[P, T]
	token     uint64
	requested P
	started   bool
	inflight  bool
	cancel    context.CancelFunc
}

func NewPanel[P comparable, T any](name string, fetch FetchFunc[P, T]) *Panel[P, T] {
	return &Panel[P, T]{name: name, fetch: fetch}
}

// Scoped narrows the parameters the panel depends on. The panel is only
// refetched when the scoped projection changes, or on a forced refresh.
// It must be called before the panel is mounted.
func (p *Panel[P, T]) Scoped(scope func(P) P) *Panel[P, T] {
	p.scope = scope
	return p
}

func (p *Panel[P, T]) Name() string {
	return p.name
}

func (p *Panel[P, T]) State() State[P, T] {
	return p.state
}

func (p *Panel[P, T]) key(params P) P {
	if p.scope == nil {
		return params
	}
	return p.scope(params)
}

func (p *Panel[P, T]) begin(base context.Context, params P, force bool) (context.Context, uint64, bool) {
	if !force && p.started && p.key(params) == p.key(p.requested) {
		return nil, 0, false
	}
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(base)
	p.cancel = cancel
	p.token++
	p.requested = params
	p.started = true
	p.inflight = true

	if p.state.Status == Loaded {
		p.state.Stale = true
	} else {
		p.state = State[P, T]{Status: Loading}
	}
	return ctx, p.token, true
}

func (p *Panel[P, T]) load(ctx context.Context, params P) (func(), error) {
	data, err := p.fetch(ctx, params)
	return func() { p.settle(params, data, err) }, err
}

func (p *Panel[P, T]) settle(params P, data T, err error) {
	p.inflight = false
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if err != nil {
		p.state = State[P, T]{Status: Failed, Params: params, Err: errorMessage(err)}
		return
	}
	p.state = State[P, T]{Status: Loaded, Data: data, Params: params}
}

func (p *Panel[P, T]) current(token uint64) bool {
	return token == p.token
}

func (p *Panel[P, T]) busy() bool {
	return p.inflight
}

func (p *Panel[P, T]) stop() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.inflight = false
}
