package tui

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"
	"go.uber.org/zap"

	"github.com/Joseda-hg/lazydash/internal/api"
	"github.com/Joseda-hg/lazydash/internal/model"
	"github.com/Joseda-hg/lazydash/internal/screens"
	"github.com/Joseda-hg/lazydash/internal/view"
)

const (
	viewHeader = "header"
	viewFooter = "footer"
	viewSearch = "search"
	viewHelp   = "help"
	viewRecord = "record"
)

// tabs are the top-level screens reachable with the number keys.
var tabs = []struct {
	key   rune
	path  string
	label string
}{
	{'1', screens.PathDashboard, "Dashboard"},
	{'2', screens.PathKnowledgeBases, "Knowledge Bases"},
	{'3', screens.PathQueries, "Queries"},
	{'4', screens.PathEvaluation, "Evaluation"},
}

type Options struct {
	Client        *api.Client
	Logger        *zap.Logger
	Address       string
	QuietInterval time.Duration
	PollInterval  time.Duration
	DefaultDays   int
}

type UI struct {
	gui      *gocui.Gui
	ctx      context.Context
	deps     screens.Deps
	logger   *zap.Logger
	location *view.Location

	screen   screens.Screen
	record   *screens.Record
	selected int
	drawn    map[string]bool

	searchEditor *searchEditor
	searchActive bool
	searchValue  string
	searchBefore string
	helpActive   bool
	status       string
}

// guardedDispatcher forwards callbacks to the gui until stopped. Loads that
// finish after the main loop returned are dropped rather than queued on a
// gui nobody reads any more.
type guardedDispatcher struct {
	stopped atomic.Bool
	next    view.DispatchFunc
}

func newGuardedDispatcher(next view.DispatchFunc) *guardedDispatcher {
	return &guardedDispatcher{next: next}
}

func (d *guardedDispatcher) Dispatch(fn func()) {
	if d.stopped.Load() {
		return
	}
	d.next(fn)
}

func (d *guardedDispatcher) stop() {
	d.stopped.Store(true)
}

func Run(ctx context.Context, opts Options) error {
	address := opts.Address
	if address == "" {
		address = screens.PathDashboard
	}
	location, err := view.ParseLocation(address)
	if err != nil {
		return fmt.Errorf("open %q: %w", address, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	dispatcher := newGuardedDispatcher(func(fn func()) {
		gui.Update(func(*gocui.Gui) error {
			fn()
			return nil
		})
	})

	ui := newUI(ctx, screens.Deps{
		Client: opts.Client,
		Env: view.Env{
			Dispatcher:    dispatcher,
			Logger:        logger,
			Location:      location,
			QuietInterval: opts.QuietInterval,
		},
		DefaultDays:  opts.DefaultDays,
		PollInterval: opts.PollInterval,
	})
	ui.gui = gui
	defer ui.close()
	defer dispatcher.stop()

	gui.SetManagerFunc(ui.layout)
	if err := ui.bindKeys(gui); err != nil {
		return err
	}
	ui.mount()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			gui.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
		case <-done:
		}
	}()

	if err := gui.MainLoop(); err != nil && !goerrors.Is(err, gocui.ErrQuit) {
		return err
	}
	return nil
}

func newUI(ctx context.Context, deps screens.Deps) *UI {
	logger := deps.Env.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ui := &UI{
		ctx:      ctx,
		deps:     deps,
		logger:   logger,
		location: deps.Env.Location,
		drawn:    make(map[string]bool),
	}
	ui.searchEditor = &searchEditor{ui: ui}
	return ui
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	global := []struct {
		key     any
		handler func(*gocui.Gui, *gocui.View) error
	}{
		{gocui.KeyCtrlC, u.quit},
		{'q', u.quit},
		{'r', u.refresh},
		{'n', u.nextPage},
		{'p', u.prevPage},
		{'m', u.cycleMode},
		{'t', u.cycleStatus},
		{'s', u.cycleSort},
		{'f', u.toggleJudgment},
		{'d', u.cyclePreset},
		{'S', u.triggerSync},
		{'E', u.evaluate},
		{'/', u.startSearch},
		{'?', u.toggleHelp},
		{'j', u.moveDown},
		{'k', u.moveUp},
		{gocui.KeyArrowDown, u.moveDown},
		{gocui.KeyArrowUp, u.moveUp},
		{gocui.KeyEnter, u.open},
		{gocui.KeyEsc, u.back},
	}
	for _, binding := range global {
		if err := gui.SetKeybinding("", binding.key, gocui.ModNone, binding.handler); err != nil {
			return err
		}
	}
	for _, tab := range tabs {
		if err := gui.SetKeybinding("", tab.key, gocui.ModNone, u.switchTab(tab.path)); err != nil {
			return err
		}
	}
	if err := gui.SetKeybinding(viewSearch, gocui.KeyEnter, gocui.ModNone, u.submitSearch); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewSearch, gocui.KeyEsc, gocui.ModNone, u.cancelSearch); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, gocui.KeyEsc, gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, 'q', gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	return nil
}

// mount builds the screen for the current address and starts loading it.
// The previous screen is unmounted first, dropping its pending results.
func (u *UI) mount() {
	if u.screen != nil {
		u.screen.Page().Unmount()
	}
	u.closeRecord()

	screen, ok := screens.ForPath(u.deps, u.location.Path())
	if !ok {
		u.logger.Warn("unknown address, showing the dashboard", zap.String("address", u.location.String()))
		u.location.Replace(screens.PathDashboard, nil)
	}
	u.screen = screen
	u.selected = 0
	u.status = ""
	u.logger.Debug("screen mounted", zap.String("page", screen.Page().Name()), zap.String("address", u.location.String()))
	screen.Page().Mount(u.ctx)
}

// navigate pushes a new address, like following a link.
func (u *UI) navigate(path string) {
	u.location.Push(path, nil)
	u.mount()
}

func (u *UI) close() {
	u.closeRecord()
	if u.screen != nil {
		u.screen.Page().Unmount()
	}
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}

	headerView, err := gui.SetView(viewHeader, 0, 0, maxX-1, 2, 0)
	if err != nil && !isUnknownView(err) {
		return err
	}
	headerView.Frame = false
	headerView.Wrap = false
	u.renderHeader(headerView)

	footerY1 := max(maxY-1, 1)
	footerY0 := max(footerY1-2, 1)
	footerView, err := gui.SetView(viewFooter, 0, footerY0, maxX-1, footerY1, 0)
	if err != nil && !isUnknownView(err) {
		return err
	}
	footerView.Frame = false
	footerView.Wrap = true
	footerView.FgColor = gocui.ColorDefault
	u.renderFooter(footerView)

	bodyTop := 3
	bodyBottom := footerY0 - 1
	specs := u.panels()
	wanted := make(map[string]bool, len(specs))
	if bodyBottom-bodyTop >= 2 {
		rects := computeLayout(maxX, bodyTop, bodyBottom, len(specs))
		for i, p := range specs {
			r := rects[i]
			wanted[p.name] = true
			v, err := gui.SetView(p.name, r.x0, r.y0, r.x1, r.y1, 0)
			if err != nil && !isUnknownView(err) {
				return err
			}
			v.Title = p.title
			v.Wrap = !p.list
			applyViewStyle(v, p.list)
			v.Clear()
			fmt.Fprint(v, p.render(max(r.x1-r.x0-1, 1)))
		}
	}
	for name := range u.drawn {
		if !wanted[name] {
			_ = gui.DeleteView(name)
		}
	}
	u.drawn = wanted

	if u.record != nil {
		if err := u.showRecord(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewRecord)
	}

	if u.searchActive {
		if err := u.showSearch(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewSearch)
	}

	if u.helpActive {
		if err := u.showHelp(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewHelp)
	}

	gui.Cursor = u.searchActive
	return nil
}

type rect struct {
	x0, y0, x1, y1 int
}

// computeLayout splits the body into two columns; the left one takes the
// extra panel when the count is odd. A single panel spans the full width.
func computeLayout(width, top, bottom, count int) []rect {
	if count == 0 {
		return nil
	}
	left := (count + 1) / 2
	right := count - left
	split := width - 1
	if right > 0 {
		split = max(width/2, 26) - 1
	}

	rects := make([]rect, 0, count)
	rects = append(rects, stack(0, split, top, bottom, left)...)
	if right > 0 {
		rects = append(rects, stack(split+1, width-1, top, bottom, right)...)
	}
	return rects
}

func stack(x0, x1, top, bottom, count int) []rect {
	height := bottom - top + 1
	each := max(height/count, 3)
	rects := make([]rect, 0, count)
	y := top
	for i := range count {
		y1 := y + each - 1
		if i == count-1 || y1 > bottom {
			y1 = bottom
		}
		rects = append(rects, rect{x0: x0, y0: y, x1: x1, y1: max(y1, y+1)})
		y = y1 + 1
	}
	return rects
}

func (u *UI) renderHeader(view *gocui.View) {
	view.Clear()
	var labels []string
	for _, tab := range tabs {
		label := fmt.Sprintf("%c %s", tab.key, tab.label)
		if u.screen != nil && u.screen.Page().Path() == tab.path {
			label = "[" + label + "]"
		}
		labels = append(labels, label)
	}
	fmt.Fprintln(view, strings.Join(labels, "  "))
	if u.screen == nil {
		return
	}
	page := u.screen.Page()
	fmt.Fprintf(view, "%s | %s\n", u.screen.Title(), u.location.String())
	fmt.Fprint(view, filterSummary(page.Params(), page.Keyword()))
}

func (u *UI) renderFooter(view *gocui.View) {
	view.Clear()
	view.SetOrigin(0, 0)

	fmt.Fprintln(view, "n/p page | d range | m mode | t status | s sort | f judgment | / search | enter open | esc back")
	fmt.Fprintln(view, "S sync | E evaluate | r refresh | 1-4 screens | ? help | q quit")
	fmt.Fprint(view, u.statusLine())
}

// statusLine prefers local messages over the page's action status.
func (u *UI) statusLine() string {
	if u.status != "" {
		return u.status
	}
	if u.screen == nil {
		return ""
	}
	msg, isErr := u.screen.Page().Status()
	if isErr {
		return colorRed + msg + colorReset
	}
	return msg
}

func (u *UI) showRecord(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(50, maxX*2/3)
	height := max(10, maxY/2)
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewRecord, x0, y0, x0+width, y0+height, 0)
	if err != nil && !isUnknownView(err) {
		return err
	}
	state := u.record.Panel.State()
	view.Title = panelTitle(fmt.Sprintf("Record #%d (esc close)", u.record.ID()), state.Status, state.Stale)
	view.Wrap = true
	view.Clear()
	fmt.Fprint(view, stateText(state, width-1, renderRecord))
	fmt.Fprint(view, "\n\n"+stateText(u.record.Evaluation.State(), width-1, renderRecordEvaluation))
	_, _ = gui.SetViewOnTop(viewRecord)
	return nil
}

func (u *UI) showHelp(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := 20
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewHelp, x0, y0, x0+width, y0+height, 0)
	if err != nil && !isUnknownView(err) {
		return err
	}
	if isUnknownView(err) {
		view.Title = "Help"
		view.Wrap = true
	}
	view.Clear()
	fmt.Fprint(view, helpText())
	_, _ = gui.SetCurrentView(viewHelp)
	return nil
}

func (u *UI) closePopup(gui *gocui.Gui, name string) {
	if gui == nil {
		return
	}
	_ = gui.DeleteView(name)
	_, _ = gui.SetCurrentView(viewHeader)
}

func (u *UI) switchTab(path string) func(*gocui.Gui, *gocui.View) error {
	return func(_ *gocui.Gui, _ *gocui.View) error {
		if u.inputActive() {
			return nil
		}
		if u.screen != nil && u.screen.Page().Path() == path {
			return nil
		}
		u.navigate(path)
		return nil
	}
}

func (u *UI) refresh(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.status = ""
	u.screen.Page().Refresh()
	return nil
}

func (u *UI) nextPage(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	pager, ok := u.screen.(interface{ NextPage() bool })
	if !ok {
		return nil
	}
	if pager.NextPage() {
		u.selected = 0
	}
	return nil
}

func (u *UI) prevPage(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.screen.Page().PrevPage() {
		u.selected = 0
	}
	return nil
}

func (u *UI) cycleMode(_ *gocui.Gui, _ *gocui.View) error {
	return withScreen(u, func(s interface{ CycleMode() }) { s.CycleMode() })
}

func (u *UI) cycleStatus(_ *gocui.Gui, _ *gocui.View) error {
	return withScreen(u, func(s interface{ CycleStatus() }) { s.CycleStatus() })
}

func (u *UI) cycleSort(_ *gocui.Gui, _ *gocui.View) error {
	return withScreen(u, func(s interface{ CycleSort() }) { s.CycleSort() })
}

func (u *UI) toggleJudgment(_ *gocui.Gui, _ *gocui.View) error {
	return withScreen(u, func(s interface{ ToggleJudgment() }) { s.ToggleJudgment() })
}

func (u *UI) cyclePreset(_ *gocui.Gui, _ *gocui.View) error {
	return withScreen(u, func(s interface{ CyclePreset() }) { s.CyclePreset() })
}

func (u *UI) triggerSync(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	dashboard, ok := u.screen.(*screens.Dashboard)
	if !ok {
		u.status = "sync runs from the dashboard (1)"
		return nil
	}
	u.status = ""
	if !dashboard.TriggerSync(model.SyncHourly) {
		u.status = "an action is already running"
	}
	return nil
}

func (u *UI) evaluate(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	evaluator, ok := u.screen.(interface{ Evaluate(force bool) bool })
	if !ok {
		u.status = "evaluation runs from the evaluation page (4) or a knowledge base"
		return nil
	}
	u.status = ""
	if !evaluator.Evaluate(false) {
		u.status = "an action is already running"
	}
	return nil
}

// withScreen runs fn when the current screen supports it and resets the
// selection, since the listing is about to change.
func withScreen[S any](u *UI, fn func(S)) error {
	if u.inputActive() {
		return nil
	}
	s, ok := u.screen.(S)
	if !ok {
		return nil
	}
	u.selected = 0
	fn(s)
	return nil
}

func (u *UI) moveDown(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.record != nil {
		return nil
	}
	if count, _ := u.rows(); u.selected < count-1 {
		u.selected++
	}
	return nil
}

func (u *UI) moveUp(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.record != nil {
		return nil
	}
	if u.selected > 0 {
		u.selected--
	}
	return nil
}

func (u *UI) open(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.record != nil {
		return nil
	}
	count, open := u.rows()
	if count == 0 || u.selected >= count {
		return nil
	}
	open(u.selected)
	return nil
}

func (u *UI) openRecord(id int64) {
	u.closeRecord()
	u.record = screens.NewRecord(u.deps)
	u.record.Show(u.ctx, id)
}

func (u *UI) closeRecord() {
	if u.record == nil {
		return
	}
	u.record.Close()
	u.record = nil
}

// back closes the record popup, or else returns to the previous address.
func (u *UI) back(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.record != nil {
		u.closeRecord()
		u.closePopup(gui, viewRecord)
		return nil
	}
	if u.location.Back() {
		u.mount()
	}
	return nil
}

func (u *UI) toggleHelp(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() && !u.helpActive {
		return nil
	}
	u.helpActive = !u.helpActive
	return nil
}

func (u *UI) closeHelp(gui *gocui.Gui, _ *gocui.View) error {
	u.helpActive = false
	u.closePopup(gui, viewHelp)
	return nil
}

func (u *UI) inputActive() bool {
	return u.searchActive || u.helpActive
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	return gocui.ErrQuit
}

func isUnknownView(err error) bool {
	return goerrors.Is(err, gocui.ErrUnknownView)
}

func helpText() string {
	return strings.Join([]string{
		"Screens:",
		"  1 Dashboard | 2 Knowledge Bases | 3 Queries | 4 Evaluation",
		"  enter open selected row | esc close record / go back",
		"  j/k or arrows move selection",
		"",
		"Filters:",
		"  d cycle date range (7/14/30/90 days)",
		"  m cycle injection mode | t cycle evaluation status",
		"  s cycle sort (evaluation) | f fail-only / all (evaluation)",
		"  / search knowledge bases (applied after typing pauses)",
		"  n/p next/previous page",
		"",
		"Actions:",
		"  S sync (dashboard) | E evaluate (evaluation, knowledge base)",
		"  r refresh every panel",
		"",
		"Other:",
		"  ? help | esc/q close help | q quit",
	}, "\n")
}

func applyViewStyle(view *gocui.View, list bool) {
	view.Frame = true
	view.Highlight = false
	view.SelBgColor = gocui.ColorBlue
	view.SelFgColor = gocui.ColorBlack
	if list {
		view.FrameColor = gocui.ColorCyan
		view.TitleColor = gocui.ColorCyan
	} else {
		view.FrameColor = gocui.ColorDefault
		view.TitleColor = gocui.ColorDefault
	}
}
