package tui

import (
	"time"

	"github.com/Joseda-hg/lazydash/internal/model"
	"github.com/Joseda-hg/lazydash/internal/screens"
	"github.com/Joseda-hg/lazydash/internal/view"
)

// panelSpec is one framed view of the current screen. list marks the panel
// whose rows the selection moves through.
type panelSpec struct {
	name   string
	title  string
	list   bool
	render func(width int) string
}

func panelOf[T any](panel *view.Panel[model.FilterParams, T], title string, render func(T, int) string) panelSpec {
	state := panel.State()
	return panelSpec{
		name:  panel.Name(),
		title: panelTitle(title, state.Status, state.Stale),
		render: func(width int) string {
			return stateText(state, width, render)
		},
	}
}

func listOf[T any](panel *view.Panel[model.FilterParams, T], title string, selected int, render func(T, int, int) string) panelSpec {
	ps := panelOf(panel, title, func(data T, width int) string {
		return render(data, width, selected)
	})
	ps.list = true
	return ps
}

func (u *UI) panels() []panelSpec {
	now := time.Now()
	if u.deps.Now != nil {
		now = u.deps.Now()
	}

	switch s := u.screen.(type) {
	case *screens.Dashboard:
		return []panelSpec{
			panelOf(s.Overview, "Overview", renderOverview),
			panelOf(s.Trends, "Daily trend", renderTrends),
			listOf(s.TopKnowledgeBases, "Top knowledge bases", u.selected, renderTopKnowledgeBases),
			panelOf(s.Hourly, "Hourly ("+string(s.Page().Params().EndDate)+")", renderHourly),
			panelOf(s.Sync, "Sync", func(status model.SyncStatus, _ int) string {
				return renderSync(status, now)
			}),
		}
	case *screens.KnowledgeBases:
		return []panelSpec{
			listOf(s.List, "Knowledge bases", u.selected, renderKnowledgeBases),
		}
	case *screens.KnowledgeBase:
		return []panelSpec{
			panelOf(s.Detail, "Knowledge base", renderKnowledgeBaseDetail),
			panelOf(s.Stats, "Usage", renderKnowledgeBaseStats),
			panelOf(s.EvaluationStats, "Evaluation", renderKnowledgeBaseEvaluation),
			listOf(s.Queries, "Queries", u.selected, renderQueryRecords),
		}
	case *screens.Queries:
		return []panelSpec{
			listOf(s.List, "Queries", u.selected, renderQueryRecords),
		}
	case *screens.Evaluation:
		params := s.Page().Params()
		return []panelSpec{
			panelOf(s.Trends, "Evaluation trend", renderEvaluationTrends),
			panelOf(s.Comparison, "vs previous period", renderEvaluationComparison),
			listOf(s.LowScoreQueries, "Low-score queries", u.selected, func(data model.LowScoreQueries, width, selected int) string {
				return renderLowScoreQueries(data, width, selected, params.Page, params.PageSize)
			}),
			panelOf(s.LowScoreKnowledgeBases, "Low-score knowledge bases", renderLowScoreKnowledgeBases),
		}
	}
	return nil
}

// rows reports how many rows the selection can move through and what
// opening one of them does.
func (u *UI) rows() (int, func(int)) {
	switch s := u.screen.(type) {
	case *screens.Dashboard:
		state := s.TopKnowledgeBases.State()
		if !state.IsLoaded() {
			return 0, nil
		}
		items := state.Data.Items
		return len(items), func(i int) { u.navigate(screens.KnowledgeBasePath(items[i].KnowledgeID)) }
	case *screens.KnowledgeBases:
		state := s.List.State()
		if !state.IsLoaded() {
			return 0, nil
		}
		items := state.Data.Items
		return len(items), func(i int) { u.navigate(screens.KnowledgeBasePath(items[i].ID)) }
	case *screens.KnowledgeBase:
		return recordRows(u, s.Queries.State())
	case *screens.Queries:
		return recordRows(u, s.List.State())
	case *screens.Evaluation:
		state := s.LowScoreQueries.State()
		if !state.IsLoaded() {
			return 0, nil
		}
		records := state.Data.Records
		return len(records), func(i int) { u.openRecord(records[i].RagRecordRefID) }
	}
	return 0, nil
}

func recordRows(u *UI, state view.State[model.FilterParams, model.Page[model.QueryRecord]]) (int, func(int)) {
	if !state.IsLoaded() {
		return 0, nil
	}
	items := state.Data.Items
	return len(items), func(i int) { u.openRecord(items[i].ID) }
}

func searchable(screen screens.Screen) bool {
	_, ok := screen.(*screens.KnowledgeBases)
	return ok
}
