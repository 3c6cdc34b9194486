package view

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseda-hg/lazydash/internal/model"
)

type controllerFixture struct {
	loop   *Loop
	source *fakeSource
	panel  *Panel[model.FilterParams, string]
	ctrl   *Controller[model.FilterParams]
	// delivered counts results handed back to the loop, stale ones included
	delivered int
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	fx := &controllerFixture{loop: NewLoop(), source: newFakeSource()}
	counting := DispatchFunc(func(fn func()) {
		fx.loop.Dispatch(func() {
			fx.delivered++
			fn()
		})
	})
	fx.panel = NewPanel("list", fx.source.fetch)
	fx.ctrl = NewController(counting, nil, Loader[model.FilterParams](fx.panel))
	t.Cleanup(func() {
		fx.ctrl.Close()
		fx.ctrl.Wait()
	})
	return fx
}

func TestLatestTokenWinsWhenOlderResponseArrivesLast(t *testing.T) {
	fx := newControllerFixture(t)
	first := model.FilterParams{Page: 1, PageSize: 20}
	second := model.FilterParams{Page: 2, PageSize: 20}

	fx.ctrl.Mount(context.Background(), first)
	k1 := fx.source.next(t)
	require.True(t, fx.ctrl.Apply(second))
	k2 := fx.source.next(t)

	k2.resolve("page two")
	runUntil(t, fx.loop, func() bool { return fx.panel.State().IsLoaded() })

	k1.resolve("page one")
	fx.ctrl.Wait()
	fx.loop.Flush()

	state := fx.panel.State()
	assert.Equal(t, Loaded, state.Status)
	assert.Equal(t, "page two", state.Data)
	assert.Equal(t, second, state.Params)
	assert.False(t, state.Stale)
}

func TestLatestTokenWinsWhenOlderResponseArrivesFirst(t *testing.T) {
	fx := newControllerFixture(t)

	fx.ctrl.Mount(context.Background(), model.FilterParams{Page: 1})
	k1 := fx.source.next(t)
	fx.ctrl.Apply(model.FilterParams{Page: 2})
	k2 := fx.source.next(t)

	k1.resolve("page one")
	runUntil(t, fx.loop, func() bool { return fx.delivered == 1 })
	assert.Equal(t, Loading, fx.panel.State().Status, "stale result must not settle the panel")

	k2.resolve("page two")
	runUntil(t, fx.loop, func() bool { return !fx.ctrl.Busy() })
	assert.Equal(t, "page two", fx.panel.State().Data)
}

func TestApplyingEqualParamsMintsNoToken(t *testing.T) {
	fx := newControllerFixture(t)
	params := model.FilterParams{Page: 1, PageSize: 20, Mode: model.ModeRagRetrieval}

	fx.ctrl.Mount(context.Background(), params)
	fx.source.next(t).resolve("rows")
	runUntil(t, fx.loop, func() bool { return fx.panel.State().IsLoaded() })
	token := fx.panel.token
	cycles := fx.ctrl.Cycles()

	same := params
	assert.False(t, fx.ctrl.Apply(same))

	assert.Equal(t, token, fx.panel.token)
	assert.Equal(t, cycles, fx.ctrl.Cycles())
	assert.Equal(t, Loaded, fx.panel.State().Status)
	assert.False(t, fx.panel.State().Stale)
	fx.source.assertIdle(t)
}

func TestKeepsDataWhileRefetching(t *testing.T) {
	fx := newControllerFixture(t)

	fx.ctrl.Mount(context.Background(), model.FilterParams{Page: 1})
	assert.True(t, fx.panel.State().Spinner(), "nothing to show yet")

	fx.source.next(t).resolve("page one")
	runUntil(t, fx.loop, func() bool { return fx.panel.State().IsLoaded() })

	fx.ctrl.Apply(model.FilterParams{Page: 2})
	state := fx.panel.State()
	assert.False(t, state.Spinner())
	assert.True(t, state.Stale)
	assert.Equal(t, "page one", state.Data)

	fx.source.next(t).resolve("page two")
	runUntil(t, fx.loop, func() bool { return !fx.panel.State().Stale })
	assert.Equal(t, "page two", fx.panel.State().Data)
}

func TestFailureReplacesDataWithMessage(t *testing.T) {
	fx := newControllerFixture(t)

	fx.ctrl.Mount(context.Background(), model.FilterParams{Page: 1})
	fx.source.next(t).resolve("rows")
	runUntil(t, fx.loop, func() bool { return fx.panel.State().IsLoaded() })

	fx.ctrl.Apply(model.FilterParams{Page: 2})
	fx.source.next(t).fail(messageError("Knowledge base not found"))
	runUntil(t, fx.loop, func() bool { return fx.panel.State().Status == Failed })
	assert.Equal(t, "Knowledge base not found", fx.panel.State().Err)
	assert.Empty(t, fx.panel.State().Data)

	fx.ctrl.Apply(model.FilterParams{Page: 3})
	assert.Equal(t, Loading, fx.panel.State().Status, "a failed panel has nothing to keep")
	fx.source.next(t).fail(messageError(""))
	runUntil(t, fx.loop, func() bool { return fx.panel.State().Status == Failed })
	assert.Equal(t, FallbackError, fx.panel.State().Err)
}

func TestPanelsCommitIndependently(t *testing.T) {
	loop := NewLoop()
	overviewSource := newFakeSource()
	trendSource := newFakeSource()
	overview := NewPanel("overview", overviewSource.fetch)
	trends := NewPanel("trends", trendSource.fetch)
	ctrl := NewController(loop, nil, Loader[model.FilterParams](overview), Loader[model.FilterParams](trends))
	defer ctrl.Wait()
	defer ctrl.Close()

	ctrl.Mount(context.Background(), model.FilterParams{StartDate: "2024-05-01", EndDate: "2024-05-07"})
	overviewCall := overviewSource.next(t)
	trendCall := trendSource.next(t)

	trendCall.fail(errors.New("trend backend down"))
	runUntil(t, loop, func() bool { return trends.State().Status == Failed })
	assert.Equal(t, Loading, overview.State().Status)

	overviewCall.resolve("summary")
	runUntil(t, loop, func() bool { return overview.State().IsLoaded() })
	assert.Equal(t, Failed, trends.State().Status)
	assert.Equal(t, "trend backend down", trends.State().Err)
}

func TestScopedPanelSkipsUnrelatedChanges(t *testing.T) {
	loop := NewLoop()
	detailSource := newFakeSource()
	listSource := newFakeSource()
	detail := NewPanel("detail", detailSource.fetch).Scoped(func(p model.FilterParams) model.FilterParams {
		return model.FilterParams{KnowledgeID: p.KnowledgeID}
	})
	list := NewPanel("queries", listSource.fetch)
	ctrl := NewController(loop, nil, Loader[model.FilterParams](detail), Loader[model.FilterParams](list))
	defer ctrl.Wait()
	defer ctrl.Close()

	ctrl.Mount(context.Background(), model.FilterParams{KnowledgeID: 4, Page: 1})
	detailCall := detailSource.next(t)
	listSource.next(t).resolve("page one")

	ctrl.Apply(model.FilterParams{KnowledgeID: 4, Page: 2})
	listSource.next(t).resolve("page two")
	detailSource.assertIdle(t)

	// the detail request from the first cycle is still the latest for its panel
	detailCall.resolve("kb 4")
	runUntil(t, loop, func() bool { return detail.State().IsLoaded() && !list.State().Stale && list.State().IsLoaded() })
	assert.Equal(t, "kb 4", detail.State().Data)
	assert.Equal(t, "page two", list.State().Data)

	ctrl.Refresh()
	detailSource.next(t).resolve("kb 4 again")
	listSource.next(t).resolve("page two again")
	runUntil(t, loop, func() bool { return !ctrl.Busy() })
	assert.Equal(t, "kb 4 again", detail.State().Data)
}

func TestSupersededRequestIsCancelled(t *testing.T) {
	fx := newControllerFixture(t)
	fx.source.observeCancel = true

	fx.ctrl.Mount(context.Background(), model.FilterParams{Page: 1})
	k1 := fx.source.next(t)
	fx.ctrl.Apply(model.FilterParams{Page: 2})
	k2 := fx.source.next(t)

	assert.ErrorIs(t, k1.ctx.Err(), context.Canceled)
	assert.NoError(t, k2.ctx.Err())

	k2.resolve("page two")
	runUntil(t, fx.loop, func() bool { return !fx.ctrl.Busy() })
	assert.Equal(t, "page two", fx.panel.State().Data)
}

func TestCloseDropsLateResults(t *testing.T) {
	fx := newControllerFixture(t)

	fx.ctrl.Mount(context.Background(), model.FilterParams{Page: 1})
	call := fx.source.next(t)
	fx.ctrl.Close()

	call.resolve("late")
	fx.ctrl.Wait()
	fx.loop.Flush()

	assert.Equal(t, Loading, fx.panel.State().Status)
	assert.False(t, fx.ctrl.Apply(model.FilterParams{Page: 2}))
}
