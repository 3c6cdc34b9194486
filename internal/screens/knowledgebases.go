package screens

import (
	"context"
	"fmt"

	"github.com/Joseda-hg/lazydash/internal/api"
	"github.com/Joseda-hg/lazydash/internal/model"
	"github.com/Joseda-hg/lazydash/internal/view"
)

const (
	knowledgeBasePageSize = 20
	kbQueryPageSize       = 10
	kbStatsDays           = 30
)

type KnowledgeBases struct {
	page *view.Page
	List *view.Panel[model.FilterParams, model.Page[model.KnowledgeBase]]
}

func NewKnowledgeBases(deps Deps) *KnowledgeBases {
	client := deps.Client
	k := &KnowledgeBases{}
	k.List = view.NewPanel("knowledge_bases", func(ctx context.Context, p model.FilterParams) (model.Page[model.KnowledgeBase], error) {
		return client.KnowledgeBases(ctx, api.KnowledgeBaseListParams{
			Query:    p.Query,
			Page:     p.Page,
			PageSize: p.PageSize,
		})
	})
	k.page = view.NewPage(deps.Env, view.PageConfig{
		Name:     "knowledge_bases",
		Path:     PathKnowledgeBases,
		Defaults: model.FilterParams{Page: 1, PageSize: knowledgeBasePageSize},
		URLKeys:  []string{"q", "page"},
		Panels:   []view.Loader[model.FilterParams]{k.List},
	})
	return k
}

func (k *KnowledgeBases) Title() string {
	return "Knowledge Bases"
}

func (k *KnowledgeBases) Page() *view.Page {
	return k.page
}

func (k *KnowledgeBases) NextPage() bool {
	return nextPage(k.page, k.List)
}

// KnowledgeBasePath is the address of one knowledge base.
func KnowledgeBasePath(id int64) string {
	return fmt.Sprintf("%s/%d", PathKnowledgeBases, id)
}

// KnowledgeBase is the detail page: metadata, a usage series and the
// queries that hit the knowledge base.
type KnowledgeBase struct {
	deps Deps
	id   int64
	page *view.Page

	Detail          *view.Panel[model.FilterParams, model.KnowledgeBaseDetail]
	Stats           *view.Panel[model.FilterParams, model.KnowledgeBaseStats]
	EvaluationStats *view.Panel[model.FilterParams, model.KnowledgeBaseEvaluationStats]
	Queries         *view.Panel[model.FilterParams, model.Page[model.QueryRecord]]
}

func NewKnowledgeBase(deps Deps, id int64) *KnowledgeBase {
	client := deps.Client
	k := &KnowledgeBase{deps: deps, id: id}

	k.Detail = view.NewPanel("knowledge_base", func(ctx context.Context, p model.FilterParams) (model.KnowledgeBaseDetail, error) {
		return client.KnowledgeBase(ctx, p.KnowledgeID)
	}).Scoped(func(p model.FilterParams) model.FilterParams {
		return model.FilterParams{KnowledgeID: p.KnowledgeID}
	})

	k.Stats = view.NewPanel("knowledge_base_stats", func(ctx context.Context, p model.FilterParams) (model.KnowledgeBaseStats, error) {
		return client.KnowledgeBaseStats(ctx, p.KnowledgeID, api.KnowledgeBaseStatsParams{Days: trendDays(p)})
	}).Scoped(func(p model.FilterParams) model.FilterParams {
		return model.FilterParams{KnowledgeID: p.KnowledgeID, StartDate: p.StartDate, EndDate: p.EndDate}
	})

	k.EvaluationStats = view.NewPanel("knowledge_base_evaluation", func(ctx context.Context, p model.FilterParams) (model.KnowledgeBaseEvaluationStats, error) {
		return client.KnowledgeBaseEvaluationStats(ctx, p.KnowledgeID)
	}).Scoped(func(p model.FilterParams) model.FilterParams {
		return model.FilterParams{KnowledgeID: p.KnowledgeID}
	})

	k.Queries = view.NewPanel("knowledge_base_queries", func(ctx context.Context, p model.FilterParams) (model.Page[model.QueryRecord], error) {
		return client.KnowledgeBaseQueries(ctx, p.KnowledgeID, api.KnowledgeBaseQueriesParams{
			Page:             p.Page,
			PageSize:         p.PageSize,
			InjectionMode:    p.Mode,
			EvaluationStatus: p.Status,
		})
	}).Scoped(func(p model.FilterParams) model.FilterParams {
		p.StartDate, p.EndDate = "", ""
		return p
	})

	start, end := model.LastDays(deps.now(), kbStatsDays)
	k.page = view.NewPage(deps.Env, view.PageConfig{
		Name: "knowledge_base",
		Path: KnowledgeBasePath(id),
		Defaults: model.FilterParams{
			Page:        1,
			PageSize:    kbQueryPageSize,
			KnowledgeID: id,
			StartDate:   start,
			EndDate:     end,
		},
		URLKeys: []string{"mode", "status", "page"},
		Panels:  []view.Loader[model.FilterParams]{k.Detail, k.Stats, k.EvaluationStats, k.Queries},
	})
	return k
}

func (k *KnowledgeBase) Title() string {
	if state := k.Detail.State(); state.IsLoaded() && state.Data.Name != "" {
		return state.Data.Name
	}
	return fmt.Sprintf("Knowledge Base #%d", k.id)
}

func (k *KnowledgeBase) Page() *view.Page {
	return k.page
}

func (k *KnowledgeBase) ID() int64 {
	return k.id
}

func (k *KnowledgeBase) NextPage() bool {
	return nextPage(k.page, k.Queries)
}

func (k *KnowledgeBase) CycleMode() {
	k.page.SetMode(cycle(withAll(model.Modes), k.page.Params().Mode))
}

func (k *KnowledgeBase) CycleStatus() {
	k.page.SetStatus(cycle(withAll(model.RecordStatuses), k.page.Params().Status))
}

// Evaluate evaluates the pending records of this knowledge base and
// refetches the page when the job ends.
func (k *KnowledgeBase) Evaluate(force bool) bool {
	id := k.id
	req := model.EvaluationRequest{Mode: model.EvaluateByKnowledgeBase, KnowledgeID: &id, Force: force}
	return k.page.Trigger("evaluation", evaluationAction(k.deps, req))
}
