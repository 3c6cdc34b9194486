package screens

import (
	"context"
	"fmt"

	"github.com/Joseda-hg/lazydash/internal/api"
	"github.com/Joseda-hg/lazydash/internal/model"
	"github.com/Joseda-hg/lazydash/internal/view"
)

const topKnowledgeBaseLimit = 10

type Dashboard struct {
	deps Deps
	page *view.Page

	Overview          *view.Panel[model.FilterParams, model.Overview]
	Trends            *view.Panel[model.FilterParams, model.Trends]
	TopKnowledgeBases *view.Panel[model.FilterParams, model.TopKnowledgeBases]
	Hourly            *view.Panel[model.FilterParams, model.HourlyStats]
	Sync              *view.Panel[model.FilterParams, model.SyncStatus]
}

func NewDashboard(deps Deps) *Dashboard {
	client := deps.Client
	d := &Dashboard{deps: deps}

	d.Overview = view.NewPanel("overview", func(ctx context.Context, p model.FilterParams) (model.Overview, error) {
		return client.Overview(ctx, api.OverviewParams{StartDate: p.StartDate, EndDate: p.EndDate})
	}).Scoped(dateScope)

	d.Trends = view.NewPanel("trends", func(ctx context.Context, p model.FilterParams) (model.Trends, error) {
		return client.Trends(ctx, api.TrendsParams{Days: trendDays(p), Granularity: "day"})
	}).Scoped(dateScope)

	d.TopKnowledgeBases = view.NewPanel("top_knowledge_bases", func(ctx context.Context, p model.FilterParams) (model.TopKnowledgeBases, error) {
		return client.TopKnowledgeBases(ctx, api.TopKnowledgeBasesParams{
			StartDate: p.StartDate,
			EndDate:   p.EndDate,
			Limit:     topKnowledgeBaseLimit,
		})
	}).Scoped(dateScope)

	d.Hourly = view.NewPanel("hourly", func(ctx context.Context, p model.FilterParams) (model.HourlyStats, error) {
		return client.HourlyStats(ctx, p.EndDate)
	}).Scoped(func(p model.FilterParams) model.FilterParams {
		return model.FilterParams{EndDate: p.EndDate}
	})

	d.Sync = view.NewPanel("sync_status", func(ctx context.Context, _ model.FilterParams) (model.SyncStatus, error) {
		return client.SyncStatus(ctx)
	}).Scoped(noScope)

	start, end := model.LastDays(deps.now(), deps.days())
	d.page = view.NewPage(deps.Env, view.PageConfig{
		Name:     "dashboard",
		Path:     PathDashboard,
		Defaults: model.FilterParams{Page: 1, StartDate: start, EndDate: end},
		URLKeys:  []string{"start_date", "end_date"},
		Panels: []view.Loader[model.FilterParams]{
			d.Overview, d.Trends, d.TopKnowledgeBases, d.Hourly, d.Sync,
		},
	})
	return d
}

func (d *Dashboard) Title() string {
	return "Dashboard"
}

func (d *Dashboard) Page() *view.Page {
	return d.page
}

// SetPreset selects the last n days ending today.
func (d *Dashboard) SetPreset(days int) {
	start, end := model.LastDays(d.deps.now(), days)
	d.page.SetDateRange(start, end)
}

func (d *Dashboard) CyclePreset() {
	d.SetPreset(nextPreset(d.page.Params().Days()))
}

// TriggerSync asks the backend to sync and, once it reports back,
// refetches every panel.
func (d *Dashboard) TriggerSync(syncType string) bool {
	client := d.deps.Client
	return d.page.Trigger("sync", func(ctx context.Context, progress func(string)) (string, error) {
		progress(fmt.Sprintf("running %s sync...", syncLabel(syncType)))
		return RunSync(ctx, client, syncType)
	})
}

// RunSync triggers a sync and turns a non-success status into an error.
func RunSync(ctx context.Context, client *api.Client, syncType string) (string, error) {
	result, err := client.TriggerSync(ctx, syncType)
	if err != nil {
		return "", err
	}
	switch result.Status {
	case "error", "failed":
		if result.Message != "" {
			return "", fmt.Errorf("sync %s: %s", result.Status, result.Message)
		}
		return "", fmt.Errorf("sync %s", result.Status)
	}
	message := result.Message
	if message == "" {
		message = "Sync completed"
	}
	return fmt.Sprintf("%s (%s)", message, syncLabel(syncType)), nil
}

func syncLabel(syncType string) string {
	if syncType == "" {
		return model.SyncHourly
	}
	return syncType
}
