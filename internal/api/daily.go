package api

import (
	"context"
	"fmt"

	"github.com/Joseda-hg/lazydash/internal/model"
)

type OverviewParams struct {
	StartDate model.Date
	EndDate   model.Date
}

type TrendsParams struct {
	Days        int
	Granularity string
}

type TopKnowledgeBasesParams struct {
	TargetDate model.Date
	StartDate  model.Date
	EndDate    model.Date
	Limit      int
}

type KnowledgeBaseListParams struct {
	Query    string
	Page     int
	PageSize int
}

type KnowledgeBaseStatsParams struct {
	Days int
}

type KnowledgeBaseQueriesParams struct {
	Page             int
	PageSize         int
	InjectionMode    string
	EvaluationStatus string
}

type QueryListParams struct {
	Page          int
	PageSize      int
	InjectionMode string
	StartDate     model.Date
	EndDate       model.Date
}

func (c *Client) Overview(ctx context.Context, params OverviewParams) (model.Overview, error) {
	var out model.Overview
	q := newQuery().
		date("start_date", params.StartDate).
		date("end_date", params.EndDate)
	err := c.get(ctx, "/daily/overview", q.values(), &out)
	return out, err
}

func (c *Client) Trends(ctx context.Context, params TrendsParams) (model.Trends, error) {
	var out model.Trends
	q := newQuery().
		num("days", params.Days).
		str("granularity", params.Granularity)
	err := c.get(ctx, "/daily/trends", q.values(), &out)
	return out, err
}

func (c *Client) HourlyStats(ctx context.Context, day model.Date) (model.HourlyStats, error) {
	var out model.HourlyStats
	if day.IsZero() {
		return out, fmt.Errorf("hourly stats: date is required")
	}
	err := c.get(ctx, fmt.Sprintf("/daily/%s/hourly", day), nil, &out)
	return out, err
}

func (c *Client) TopKnowledgeBases(ctx context.Context, params TopKnowledgeBasesParams) (model.TopKnowledgeBases, error) {
	var out model.TopKnowledgeBases
	q := newQuery().
		date("target_date", params.TargetDate).
		date("start_date", params.StartDate).
		date("end_date", params.EndDate).
		num("limit", params.Limit)
	err := c.get(ctx, "/daily/knowledge-bases/top", q.values(), &out)
	return out, err
}

func (c *Client) KnowledgeBases(ctx context.Context, params KnowledgeBaseListParams) (model.Page[model.KnowledgeBase], error) {
	var out model.Page[model.KnowledgeBase]
	q := newQuery().
		str("q", params.Query).
		num("page", params.Page).
		num("page_size", params.PageSize)
	err := c.get(ctx, "/daily/knowledge-bases", q.values(), &out)
	return out, err
}

func (c *Client) KnowledgeBase(ctx context.Context, id int64) (model.KnowledgeBaseDetail, error) {
	var out model.KnowledgeBaseDetail
	err := c.get(ctx, fmt.Sprintf("/daily/knowledge-bases/%d", id), nil, &out)
	return out, err
}

func (c *Client) KnowledgeBaseStats(ctx context.Context, id int64, params KnowledgeBaseStatsParams) (model.KnowledgeBaseStats, error) {
	var out model.KnowledgeBaseStats
	q := newQuery().num("days", params.Days)
	err := c.get(ctx, fmt.Sprintf("/daily/knowledge-bases/%d/stats", id), q.values(), &out)
	return out, err
}

func (c *Client) KnowledgeBaseQueries(ctx context.Context, id int64, params KnowledgeBaseQueriesParams) (model.Page[model.QueryRecord], error) {
	var out model.Page[model.QueryRecord]
	q := newQuery().
		num("page", params.Page).
		num("page_size", params.PageSize).
		str("injection_mode", params.InjectionMode).
		str("evaluation_status", params.EvaluationStatus)
	err := c.get(ctx, fmt.Sprintf("/daily/knowledge-bases/%d/queries", id), q.values(), &out)
	return out, err
}

func (c *Client) Queries(ctx context.Context, params QueryListParams) (model.Page[model.QueryRecord], error) {
	var out model.Page[model.QueryRecord]
	q := newQuery().
		num("page", params.Page).
		num("page_size", params.PageSize).
		str("injection_mode", params.InjectionMode).
		date("start_date", params.StartDate).
		date("end_date", params.EndDate)
	err := c.get(ctx, "/daily/queries", q.values(), &out)
	return out, err
}

func (c *Client) RagRecord(ctx context.Context, id int64) (model.RagRecord, error) {
	var out model.RagRecord
	err := c.get(ctx, fmt.Sprintf("/daily/rag-records/%d", id), nil, &out)
	return out, err
}

func (c *Client) SyncStatus(ctx context.Context) (model.SyncStatus, error) {
	var out model.SyncStatus
	err := c.get(ctx, "/daily/sync/status", nil, &out)
	return out, err
}

// TriggerSync runs a sync on the backend and returns once it has finished.
func (c *Client) TriggerSync(ctx context.Context, syncType string) (model.SyncResult, error) {
	var out model.SyncResult
	if syncType == "" {
		syncType = model.SyncHourly
	}
	payload := struct {
		SyncType string `json:"sync_type"`
	}{SyncType: syncType}
	err := c.post(ctx, "/daily/sync/trigger", payload, &out)
	return out, err
}
