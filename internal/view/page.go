package view

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Joseda-hg/lazydash/internal/model"
)

// Env carries what every page needs from its host (terminal UI, web
// request or command).
type Env struct {
	Dispatcher    Dispatcher
	Logger        *zap.Logger
	Location      *Location
	QuietInterval time.Duration
	AfterFunc     AfterFunc
}

type PageConfig struct {
	Name     string
	Path     string
	Defaults model.FilterParams
	// URLKeys are mirrored to the address: read once on mount and
	// replaced on every change.
	URLKeys []string
	Panels  []Loader[model.FilterParams]
}

// Action is a side effect started from a page, such as triggering a sync.
// progress may be called from the action's goroutine.
type Action func(ctx context.Context, progress func(string)) (string, error)

// Page ties filters, the debounced keyword, the fetch controller and the
// address together. Like Controller, it belongs to the UI loop.
type Page struct {
	name    string
	path    string
	urlKeys []string
	env     Env
	logger  *zap.Logger

	defaults model.FilterParams
	filters  *Filters
	keyword  *Debouncer[string]
	ctrl     *Controller[model.FilterParams]

	ctx       context.Context
	cancel    context.CancelFunc
	mounted   bool
	busy      bool
	status    string
	statusErr bool

	listeners []func()
	wg        sync.WaitGroup
}

func NewPage(env Env, cfg PageConfig) *Page {
	logger := env.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("page", cfg.Name))

	p := &Page{
		name:     cfg.Name,
		path:     CleanPath(cfg.Path),
		urlKeys:  cfg.URLKeys,
		env:      env,
		logger:   logger,
		defaults: cfg.Defaults,
		filters:  NewFilters(cfg.Defaults),
		keyword:  NewDebouncer(env.Dispatcher, env.QuietInterval, cfg.Defaults.Query, env.AfterFunc),
		ctrl:     NewController(env.Dispatcher, logger, cfg.Panels...),
	}
	p.keyword.OnChange(func(value string) {
		p.update(p.filters.SetKeyword(value))
	})
	p.ctrl.OnChange(p.notify)
	return p
}

func (p *Page) Name() string {
	return p.name
}

func (p *Page) Path() string {
	return p.path
}

// Mount reads the mirrored parameters from the address, then starts the
// first fetch cycle. After this the address is only written, never read.
func (p *Page) Mount(ctx context.Context) {
	if p.mounted {
		return
	}
	params := p.defaults
	if loc := p.env.Location; loc != nil && loc.Path() == p.path {
		params = params.MergeValues(Pick(loc.Query(), p.urlKeys...))
	}
	p.filters = NewFilters(params)
	p.keyword.Reset(p.filters.Params().Query)

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mounted = true
	p.syncLocation()
	p.ctrl.Mount(p.ctx, p.filters.Params())
}

// Unmount stops the debouncer, cancels in-flight work and drops every
// result still on its way.
func (p *Page) Unmount() {
	if !p.mounted {
		return
	}
	p.mounted = false
	p.keyword.Stop()
	p.ctrl.Close()
	p.cancel()
}

// Wait blocks until every goroutine started by the page has returned.
func (p *Page) Wait() {
	p.ctrl.Wait()
	p.wg.Wait()
}

func (p *Page) OnChange(fn func()) {
	p.listeners = append(p.listeners, fn)
}

// Params is the effective parameter set: the keyword is the stabilized one.
func (p *Page) Params() model.FilterParams {
	return p.filters.Params()
}

// Keyword is the raw, not yet stabilized keyword.
func (p *Page) Keyword() string {
	return p.keyword.Raw()
}

func (p *Page) Loading() bool {
	return p.ctrl.Busy()
}

// Busy reports whether an action is running.
func (p *Page) Busy() bool {
	return p.busy
}

func (p *Page) Status() (string, bool) {
	return p.status, p.statusErr
}

func (p *Page) Cycles() uint64 {
	return p.ctrl.Cycles()
}

func (p *Page) SetKeyword(raw string) {
	p.keyword.Set(raw)
}

func (p *Page) SetPage(page int) {
	p.update(p.filters.SetPage(page))
}

// NextPage advances unless the current page is already the last one.
func (p *Page) NextPage(pageCount int) bool {
	current := p.filters.Params().Page
	if current >= pageCount {
		return false
	}
	p.update(p.filters.SetPage(current + 1))
	return true
}

func (p *Page) PrevPage() bool {
	current := p.filters.Params().Page
	if current <= 1 {
		return false
	}
	p.update(p.filters.SetPage(current - 1))
	return true
}

func (p *Page) SetDateRange(start, end model.Date) {
	p.update(p.filters.SetDateRange(start, end))
}

func (p *Page) SetSortBy(sortBy string) {
	p.update(p.filters.SetSortBy(sortBy))
}

func (p *Page) SetMode(mode string) {
	p.update(p.filters.SetMode(mode))
}

func (p *Page) SetStatus(status string) {
	p.update(p.filters.SetStatus(status))
}

func (p *Page) SetJudgment(judgment string) {
	p.update(p.filters.SetJudgment(judgment))
}

// Refresh refetches every panel even though no parameter changed.
func (p *Page) Refresh() {
	p.status = ""
	p.statusErr = false
	p.ctrl.Refresh()
}

// Trigger runs action on its own goroutine. When it succeeds every panel is
// refetched, so server-side changes caused by the action show up. Only one
// action runs at a time.
func (p *Page) Trigger(name string, action Action) bool {
	if !p.mounted || p.busy {
		return false
	}
	p.busy = true
	p.setStatus(name+"...", false)

	ctx := p.ctx
	dispatcher := p.env.Dispatcher
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		progress := func(msg string) {
			dispatcher.Dispatch(func() {
				if p.mounted && p.busy {
					p.setStatus(msg, false)
				}
			})
		}
		msg, err := action(ctx, progress)
		dispatcher.Dispatch(func() { p.finish(name, msg, err) })
	}()
	return true
}

func (p *Page) finish(name, msg string, err error) {
	if !p.mounted {
		return
	}
	p.busy = false
	if err != nil {
		p.logger.Warn("action failed", zap.String("action", name), zap.Error(err))
		p.setStatus(errorMessage(err), true)
		return
	}
	p.logger.Info("action finished", zap.String("action", name), zap.String("result", msg))
	p.setStatus(msg, false)
	p.ctrl.Refresh()
}

func (p *Page) update(changed bool) {
	if !changed {
		return
	}
	p.syncLocation()
	p.ctrl.Apply(p.filters.Params())
	p.notify()
}

func (p *Page) syncLocation() {
	loc := p.env.Location
	if loc == nil || !p.mounted || loc.Path() != p.path {
		return
	}
	loc.Replace(p.path, Pick(p.filters.Params().Values(), p.urlKeys...))
}

func (p *Page) setStatus(msg string, isErr bool) {
	p.status = msg
	p.statusErr = isErr
	p.notify()
}

func (p *Page) notify() {
	for _, fn := range p.listeners {
		fn()
	}
}
