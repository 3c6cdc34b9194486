package screens

import (
	"context"
	"fmt"
	"time"

	"github.com/Joseda-hg/lazydash/internal/api"
	"github.com/Joseda-hg/lazydash/internal/model"
	"github.com/Joseda-hg/lazydash/internal/view"
)

const (
	lowScorePageSize = 20
	lowScoreKBLimit  = 10
)

// knowledgeBaseSorts maps a query score to the matching knowledge-base
// average so both rankings sort by the same metric.
var knowledgeBaseSorts = map[string]string{
	"total_score":                   "avg_total_score",
	"faithfulness_score":            "avg_faithfulness",
	"trulens_groundedness":          "avg_groundedness",
	"ragas_query_context_relevance": "avg_query_context_relevance",
	"trulens_context_relevance":     "avg_context_relevance",
}

type Evaluation struct {
	deps Deps
	page *view.Page

	Trends                 *view.Panel[model.FilterParams, model.EvaluationTrends]
	Comparison             *view.Panel[model.FilterParams, model.EvaluationComparison]
	LowScoreQueries        *view.Panel[model.FilterParams, model.LowScoreQueries]
	LowScoreKnowledgeBases *view.Panel[model.FilterParams, model.LowScoreKnowledgeBases]
}

func NewEvaluation(deps Deps) *Evaluation {
	client := deps.Client
	e := &Evaluation{deps: deps}

	e.Trends = view.NewPanel("evaluation_trends", func(ctx context.Context, p model.FilterParams) (model.EvaluationTrends, error) {
		return client.EvaluationTrends(ctx, api.EvaluationTrendsParams{
			Days:        trendDays(p),
			KnowledgeID: p.KnowledgeID,
		})
	}).Scoped(func(p model.FilterParams) model.FilterParams {
		return model.FilterParams{StartDate: p.StartDate, EndDate: p.EndDate, KnowledgeID: p.KnowledgeID}
	})

	// The selected range against the range of the same length right before it.
	e.Comparison = view.NewPanel("evaluation_comparison", func(ctx context.Context, p model.FilterParams) (model.EvaluationComparison, error) {
		prevStart, prevEnd := model.PreviousPeriod(p.StartDate, p.EndDate)
		return client.CompareEvaluations(ctx, api.CompareParams{
			Period1Start: prevStart,
			Period1End:   prevEnd,
			Period2Start: p.StartDate,
			Period2End:   p.EndDate,
			KnowledgeID:  p.KnowledgeID,
		})
	}).Scoped(func(p model.FilterParams) model.FilterParams {
		return model.FilterParams{StartDate: p.StartDate, EndDate: p.EndDate, KnowledgeID: p.KnowledgeID}
	})

	e.LowScoreQueries = view.NewPanel("low_score_queries", func(ctx context.Context, p model.FilterParams) (model.LowScoreQueries, error) {
		return client.LowScoreQueries(ctx, api.LowScoreParams{
			StartDate:   p.StartDate,
			EndDate:     p.EndDate,
			KnowledgeID: p.KnowledgeID,
			Judgment:    p.Judgment,
			SortBy:      p.SortBy,
			Limit:       p.PageSize,
			Offset:      p.Offset(),
		})
	})

	e.LowScoreKnowledgeBases = view.NewPanel("low_score_knowledge_bases", func(ctx context.Context, p model.FilterParams) (model.LowScoreKnowledgeBases, error) {
		return client.LowScoreKnowledgeBases(ctx, api.LowScoreParams{
			StartDate: p.StartDate,
			EndDate:   p.EndDate,
			Judgment:  p.Judgment,
			SortBy:    knowledgeBaseSorts[p.SortBy],
			Limit:     lowScoreKBLimit,
		})
	}).Scoped(func(p model.FilterParams) model.FilterParams {
		return model.FilterParams{StartDate: p.StartDate, EndDate: p.EndDate, Judgment: p.Judgment, SortBy: p.SortBy}
	})

	start, end := model.LastDays(deps.now(), deps.days())
	e.page = view.NewPage(deps.Env, view.PageConfig{
		Name: "evaluation",
		Path: PathEvaluation,
		Defaults: model.FilterParams{
			Page:      1,
			PageSize:  lowScorePageSize,
			SortBy:    model.LowScoreQuerySorts[0],
			Judgment:  model.JudgmentAll,
			StartDate: start,
			EndDate:   end,
		},
		URLKeys: []string{"start_date", "end_date", "sort_by", "judgment", "page"},
		Panels:  []view.Loader[model.FilterParams]{e.Trends, e.Comparison, e.LowScoreQueries, e.LowScoreKnowledgeBases},
	})
	return e
}

func (e *Evaluation) Title() string {
	return "Evaluation"
}

func (e *Evaluation) Page() *view.Page {
	return e.page
}

// NextPage pages through the low-score queries using the reported total.
func (e *Evaluation) NextPage() bool {
	state := e.LowScoreQueries.State()
	if !state.IsLoaded() {
		return false
	}
	return e.page.NextPage(model.PageCount(state.Data.Total, e.page.Params().PageSize))
}

func (e *Evaluation) CycleSort() {
	e.page.SetSortBy(cycle(model.LowScoreQuerySorts, e.page.Params().SortBy))
}

func (e *Evaluation) ToggleJudgment() {
	if e.page.Params().Judgment == model.JudgmentFail {
		e.page.SetJudgment(model.JudgmentAll)
		return
	}
	e.page.SetJudgment(model.JudgmentFail)
}

func (e *Evaluation) SetPreset(days int) {
	start, end := model.LastDays(e.deps.now(), days)
	e.page.SetDateRange(start, end)
}

func (e *Evaluation) CyclePreset() {
	e.SetPreset(nextPreset(e.page.Params().Days()))
}

// Evaluate starts an evaluation of the selected range, polls it until it
// ends and then refetches the page.
func (e *Evaluation) Evaluate(force bool) bool {
	params := e.page.Params()
	req := model.EvaluationRequest{
		Mode:      model.EvaluateByDateRange,
		StartDate: params.StartDate,
		EndDate:   params.EndDate,
		Force:     force,
	}
	if id := params.KnowledgeID; id != 0 {
		req = model.EvaluationRequest{Mode: model.EvaluateByKnowledgeBase, KnowledgeID: &id, Force: force}
	}
	return e.page.Trigger("evaluation", evaluationAction(e.deps, req))
}

func evaluationAction(deps Deps, req model.EvaluationRequest) view.Action {
	client := deps.Client
	interval := deps.PollInterval
	return func(ctx context.Context, progress func(string)) (string, error) {
		return RunEvaluation(ctx, client, req, interval, progress)
	}
}

// RunEvaluation triggers an evaluation job and waits for it to finish,
// reporting progress after every poll.
func RunEvaluation(ctx context.Context, client *api.Client, req model.EvaluationRequest, interval time.Duration, progress func(string)) (string, error) {
	job, err := client.TriggerEvaluation(ctx, req)
	if err != nil {
		return "", err
	}
	if progress != nil {
		progress(fmt.Sprintf("evaluation %s started: %d records pending", job.JobID, job.PendingEvaluation))
	}

	final, err := client.WaitEvaluation(ctx, job.JobID, interval, func(status model.EvaluationStatus) {
		if progress != nil {
			progress(ProgressLine(status))
		}
	})
	if err != nil {
		return "", err
	}
	if final.Status == model.EvaluationFailed {
		return "", fmt.Errorf("evaluation %s failed after %d of %d records", final.JobID, final.Completed, final.Total)
	}
	return fmt.Sprintf("evaluation %s completed: %d evaluated, %d failed, %d skipped",
		final.JobID, final.Completed, final.Failed, final.Skipped), nil
}

func ProgressLine(status model.EvaluationStatus) string {
	done := status.Completed + status.Failed + status.Skipped
	return fmt.Sprintf("evaluation %s %s: %d/%d", status.JobID, status.Status, done, status.Total)
}
