package api

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Joseda-hg/lazydash/internal/model"
)

// DefaultPollInterval is how often WaitEvaluation checks the job status.
const DefaultPollInterval = 2 * time.Second

type EvaluationTrendsParams struct {
	Days        int
	KnowledgeID int64
}

// CompareParams selects the two periods to compare. All four dates are
// required by the backend.
type CompareParams struct {
	Period1Start model.Date
	Period1End   model.Date
	Period2Start model.Date
	Period2End   model.Date
	KnowledgeID  int64
}

type LowScoreParams struct {
	StartDate   model.Date
	EndDate     model.Date
	KnowledgeID int64
	Judgment    string
	SortBy      string
	Limit       int
	Offset      int
}

func (p LowScoreParams) query() url.Values {
	return newQuery().
		date("start_date", p.StartDate).
		date("end_date", p.EndDate).
		id("knowledge_id", p.KnowledgeID).
		str("judgment", p.Judgment).
		str("sort_by", p.SortBy).
		num("limit", p.Limit).
		num("offset", p.Offset).
		values()
}

func (c *Client) TriggerEvaluation(ctx context.Context, req model.EvaluationRequest) (model.EvaluationJob, error) {
	var out model.EvaluationJob
	if req.Mode == model.EvaluateByKnowledgeBase && (req.KnowledgeID == nil || *req.KnowledgeID == 0) {
		return out, fmt.Errorf("trigger evaluation: knowledge id is required for mode %s", req.Mode)
	}
	err := c.post(ctx, "/daily/evaluation/trigger", req, &out)
	return out, err
}

func (c *Client) EvaluationStatus(ctx context.Context, jobID string) (model.EvaluationStatus, error) {
	var out model.EvaluationStatus
	err := c.get(ctx, "/daily/evaluation/status/"+url.PathEscape(jobID), nil, &out)
	return out, err
}

func (c *Client) EvaluationTrends(ctx context.Context, params EvaluationTrendsParams) (model.EvaluationTrends, error) {
	var out model.EvaluationTrends
	q := newQuery().
		num("days", params.Days).
		id("knowledge_id", params.KnowledgeID)
	err := c.get(ctx, "/daily/evaluation/trends", q.values(), &out)
	return out, err
}

func (c *Client) CompareEvaluations(ctx context.Context, params CompareParams) (model.EvaluationComparison, error) {
	var out model.EvaluationComparison
	if params.Period1Start.IsZero() || params.Period1End.IsZero() || params.Period2Start.IsZero() || params.Period2End.IsZero() {
		return out, fmt.Errorf("compare evaluations: both periods need a start and an end date")
	}
	q := newQuery().
		date("period1_start", params.Period1Start).
		date("period1_end", params.Period1End).
		date("period2_start", params.Period2Start).
		date("period2_end", params.Period2End).
		id("knowledge_id", params.KnowledgeID)
	err := c.get(ctx, "/daily/evaluation/compare", q.values(), &out)
	return out, err
}

func (c *Client) RecordEvaluation(ctx context.Context, ragRecordID int64) (model.RecordEvaluation, error) {
	var out model.RecordEvaluation
	err := c.get(ctx, fmt.Sprintf("/daily/evaluation/rag-records/%d/evaluation", ragRecordID), nil, &out)
	return out, err
}

func (c *Client) KnowledgeBaseEvaluationStats(ctx context.Context, knowledgeID int64) (model.KnowledgeBaseEvaluationStats, error) {
	var out model.KnowledgeBaseEvaluationStats
	err := c.get(ctx, fmt.Sprintf("/daily/evaluation/knowledge-bases/%d/evaluation-stats", knowledgeID), nil, &out)
	return out, err
}

func (c *Client) LowScoreQueries(ctx context.Context, params LowScoreParams) (model.LowScoreQueries, error) {
	var out model.LowScoreQueries
	err := c.get(ctx, "/daily/evaluation/low-score/queries", params.query(), &out)
	return out, err
}

func (c *Client) LowScoreKnowledgeBases(ctx context.Context, params LowScoreParams) (model.LowScoreKnowledgeBases, error) {
	var out model.LowScoreKnowledgeBases
	params.KnowledgeID = 0
	err := c.get(ctx, "/daily/evaluation/low-score/knowledge-bases", params.query(), &out)
	return out, err
}

// WaitEvaluation polls the job status every interval until the job reaches
// a terminal status, the context is cancelled, or a poll fails. Polls are
// not retried.
func (c *Client) WaitEvaluation(ctx context.Context, jobID string, interval time.Duration, onProgress func(model.EvaluationStatus)) (model.EvaluationStatus, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last model.EvaluationStatus
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}

		status, err := c.EvaluationStatus(ctx, jobID)
		if err != nil {
			return last, fmt.Errorf("poll evaluation %s: %w", jobID, err)
		}
		last = status
		if onProgress != nil {
			onProgress(status)
		}
		if status.Done() {
			return status, nil
		}
	}
}
