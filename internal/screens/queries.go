package screens

import (
	"context"

	"go.uber.org/zap"

	"github.com/Joseda-hg/lazydash/internal/api"
	"github.com/Joseda-hg/lazydash/internal/model"
	"github.com/Joseda-hg/lazydash/internal/view"
)

const queryPageSize = 20

type Queries struct {
	deps Deps
	page *view.Page
	List *view.Panel[model.FilterParams, model.Page[model.QueryRecord]]
}

func NewQueries(deps Deps) *Queries {
	client := deps.Client
	q := &Queries{deps: deps}
	q.List = view.NewPanel("queries", func(ctx context.Context, p model.FilterParams) (model.Page[model.QueryRecord], error) {
		return client.Queries(ctx, api.QueryListParams{
			Page:          p.Page,
			PageSize:      p.PageSize,
			InjectionMode: p.Mode,
			StartDate:     p.StartDate,
			EndDate:       p.EndDate,
		})
	})
	q.page = view.NewPage(deps.Env, view.PageConfig{
		Name:     "queries",
		Path:     PathQueries,
		Defaults: model.FilterParams{Page: 1, PageSize: queryPageSize},
		URLKeys:  []string{"mode", "start_date", "end_date", "page"},
		Panels:   []view.Loader[model.FilterParams]{q.List},
	})
	return q
}

func (q *Queries) Title() string {
	return "Queries"
}

func (q *Queries) Page() *view.Page {
	return q.page
}

func (q *Queries) NextPage() bool {
	return nextPage(q.page, q.List)
}

func (q *Queries) CycleMode() {
	q.page.SetMode(cycle(withAll(model.Modes), q.page.Params().Mode))
}

// CyclePreset narrows the listing to the next date preset; after the
// longest preset the range is cleared.
func (q *Queries) CyclePreset() {
	params := q.page.Params()
	if params.StartDate.IsZero() {
		start, end := model.LastDays(q.deps.now(), DatePresets[0])
		q.page.SetDateRange(start, end)
		return
	}
	days := params.Days()
	if days >= DatePresets[len(DatePresets)-1] {
		q.page.SetDateRange("", "")
		return
	}
	start, end := model.LastDays(q.deps.now(), nextPreset(days))
	q.page.SetDateRange(start, end)
}

// Record loads a single RAG record and its evaluation on demand. It has no
// filters, so it drives a controller keyed by the record id directly.
type Record struct {
	ctrl       *view.Controller[int64]
	Panel      *view.Panel[int64, model.RagRecord]
	Evaluation *view.Panel[int64, model.RecordEvaluation]
}

func NewRecord(deps Deps) *Record {
	client := deps.Client
	r := &Record{}
	r.Panel = view.NewPanel("rag_record", func(ctx context.Context, id int64) (model.RagRecord, error) {
		return client.RagRecord(ctx, id)
	})
	r.Evaluation = view.NewPanel("rag_record_evaluation", func(ctx context.Context, id int64) (model.RecordEvaluation, error) {
		return client.RecordEvaluation(ctx, id)
	})
	logger := deps.Env.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r.ctrl = view.NewController[int64](deps.Env.Dispatcher, logger.With(zap.String("page", "rag_record")), r.Panel, r.Evaluation)
	return r
}

// Show loads the record with the given id. Showing the record that is
// already shown does nothing. Only the first call's ctx is used.
func (r *Record) Show(ctx context.Context, id int64) {
	r.ctrl.Mount(ctx, id)
}

func (r *Record) ID() int64 {
	return r.ctrl.Params()
}

// Loading reports whether either panel is still waiting for its first data.
func (r *Record) Loading() bool {
	return r.Panel.State().Status == view.Loading || r.Evaluation.State().Status == view.Loading
}

func (r *Record) OnChange(fn func()) {
	r.ctrl.OnChange(fn)
}

func (r *Record) Close() {
	r.ctrl.Close()
}

func (r *Record) Wait() {
	r.ctrl.Wait()
}
