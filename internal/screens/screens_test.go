package screens

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseda-hg/lazydash/internal/api"
	"github.com/Joseda-hg/lazydash/internal/model"
	"github.com/Joseda-hg/lazydash/internal/view"
)

var today = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

// backend answers every request with the registered payload for its path
// and records what it was asked.
type backend struct {
	t         *testing.T
	mu        sync.Mutex
	requests  []*http.Request
	bodies    []string
	responses map[string]func() (int, any)
}

func newBackend(t *testing.T) (*backend, *api.Client) {
	t.Helper()
	b := &backend{t: t, responses: map[string]func() (int, any){}}
	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(srv.Close)
	return b, api.New(srv.URL, api.WithHTTPClient(srv.Client()))
}

func (b *backend) serve(w http.ResponseWriter, r *http.Request) {
	var body strings.Builder
	if r.Body != nil {
		var raw json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err == nil {
			body.Write(raw)
		}
	}
	path := strings.TrimPrefix(r.URL.Path, "/api")

	b.mu.Lock()
	b.requests = append(b.requests, r)
	b.bodies = append(b.bodies, body.String())
	respond, ok := b.responses[r.Method+" "+path]
	b.mu.Unlock()

	status, payload := http.StatusOK, any(map[string]any{})
	if ok {
		status, payload = respond()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(b.t, json.NewEncoder(w).Encode(payload))
}

func (b *backend) on(route string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses[route] = func() (int, any) { return http.StatusOK, payload }
}

func (b *backend) onFunc(route string, fn func() (int, any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses[route] = fn
}

// count reports how many requests hit path, without the /api prefix.
func (b *backend) count(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.requests {
		if strings.TrimPrefix(r.URL.Path, "/api") == path {
			n++
		}
	}
	return n
}

// last returns the query of the latest request to path.
func (b *backend) last(path string) map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.requests) - 1; i >= 0; i-- {
		r := b.requests[i]
		if strings.TrimPrefix(r.URL.Path, "/api") != path {
			continue
		}
		out := map[string]string{}
		for key := range r.URL.Query() {
			out[key] = r.URL.Query().Get(key)
		}
		return out
	}
	return nil
}

func (b *backend) body(path string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.requests) - 1; i >= 0; i-- {
		if strings.TrimPrefix(b.requests[i].URL.Path, "/api") == path {
			return b.bodies[i]
		}
	}
	return ""
}

type harness struct {
	loop     *view.Loop
	location *view.Location
	deps     Deps
}

func newHarness(t *testing.T, client *api.Client, address string) *harness {
	t.Helper()
	location, err := view.ParseLocation(address)
	require.NoError(t, err)
	loop := view.NewLoop()
	return &harness{
		loop:     loop,
		location: location,
		deps: Deps{
			Client:       client,
			Env:          view.Env{Dispatcher: loop, Location: location},
			Now:          func() time.Time { return today },
			DefaultDays:  7,
			PollInterval: time.Millisecond,
		},
	}
}

func (h *harness) mount(t *testing.T, page *view.Page) {
	t.Helper()
	page.Mount(context.Background())
	t.Cleanup(func() {
		page.Unmount()
		page.Wait()
	})
	h.settle(t, page)
}

// settle runs the loop until no action runs and no panel is loading.
func (h *harness) settle(t *testing.T, page *view.Page) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.loop.RunUntil(ctx, func() bool {
		return !page.Busy() && !page.Loading()
	}))
}

func TestDashboardReadsRangeFromAddress(t *testing.T) {
	b, client := newBackend(t)
	h := newHarness(t, client, "/?start_date=2026-10-01&end_date=2026-10-14")
	dashboard := NewDashboard(h.deps)
	h.mount(t, dashboard.Page())

	assert.Equal(t, map[string]string{"start_date": "2026-10-01", "end_date": "2026-10-14"}, b.last("/daily/overview"))
	assert.Equal(t, map[string]string{"days": "14", "granularity": "day"}, b.last("/daily/trends"))
	assert.Equal(t, 1, b.count("/daily/2026-10-14/hourly"))
	assert.Equal(t, 1, b.count("/daily/sync/status"))
	assert.True(t, dashboard.Overview.State().IsLoaded())
}

func TestDashboardPresetOnlyRefetchesDatedPanels(t *testing.T) {
	b, client := newBackend(t)
	h := newHarness(t, client, "/")
	dashboard := NewDashboard(h.deps)
	h.mount(t, dashboard.Page())

	assert.Equal(t, "/?end_date=2026-10-18&start_date=2026-10-12", h.location.String())

	dashboard.SetPreset(30)
	h.settle(t, dashboard.Page())

	assert.Equal(t, 2, b.count("/daily/overview"))
	assert.Equal(t, 2, b.count("/daily/trends"))
	assert.Equal(t, 1, b.count("/daily/2026-10-18/hourly"), "end date unchanged")
	assert.Equal(t, 1, b.count("/daily/sync/status"))
	assert.Equal(t, "2026-09-19", b.last("/daily/overview")["start_date"])
	assert.Equal(t, 1, h.location.HistoryLen())
}

func TestDashboardSyncRefetchesEveryPanel(t *testing.T) {
	b, client := newBackend(t)
	b.on("POST /daily/sync/trigger", map[string]any{"status": "success", "message": "Synced 12 records"})
	h := newHarness(t, client, "/")
	dashboard := NewDashboard(h.deps)
	h.mount(t, dashboard.Page())

	require.True(t, dashboard.TriggerSync(model.SyncDaily))
	assert.False(t, dashboard.TriggerSync(model.SyncDaily), "one action at a time")
	h.settle(t, dashboard.Page())

	assert.JSONEq(t, `{"sync_type":"daily"}`, b.body("/daily/sync/trigger"))
	for _, path := range []string{"/daily/overview", "/daily/trends", "/daily/knowledge-bases/top", "/daily/2026-10-18/hourly", "/daily/sync/status"} {
		assert.Equal(t, 2, b.count(path), path)
	}
	msg, isErr := dashboard.Page().Status()
	assert.False(t, isErr)
	assert.Equal(t, "Synced 12 records (daily)", msg)
}

func TestDashboardSyncFailureKeepsData(t *testing.T) {
	b, client := newBackend(t)
	b.on("POST /daily/sync/trigger", map[string]any{"status": "error", "message": "raw database unreachable"})
	h := newHarness(t, client, "/")
	dashboard := NewDashboard(h.deps)
	h.mount(t, dashboard.Page())

	require.True(t, dashboard.TriggerSync(""))
	h.settle(t, dashboard.Page())

	msg, isErr := dashboard.Page().Status()
	assert.True(t, isErr)
	assert.Equal(t, "sync error: raw database unreachable", msg)
	assert.Equal(t, 1, b.count("/daily/overview"))
	assert.JSONEq(t, `{"sync_type":"hourly"}`, b.body("/daily/sync/trigger"))
}

func TestQueriesModeResetsPage(t *testing.T) {
	b, client := newBackend(t)
	b.on("GET /daily/queries", map[string]any{"items": []any{}, "total": 95, "page": 3, "page_size": 20})
	h := newHarness(t, client, "/queries?page=3")
	queries := NewQueries(h.deps)
	h.mount(t, queries.Page())

	assert.Equal(t, map[string]string{"page": "3", "page_size": "20"}, b.last("/daily/queries"))

	queries.CycleMode()
	h.settle(t, queries.Page())

	assert.Equal(t, map[string]string{"page": "1", "page_size": "20", "injection_mode": model.ModeRagRetrieval}, b.last("/daily/queries"))
	assert.Equal(t, "/queries?mode=rag_retrieval", h.location.String())
}

func TestQueriesNextPageStopsAtLastPage(t *testing.T) {
	b, client := newBackend(t)
	b.on("GET /daily/queries", map[string]any{"items": []any{}, "total": 45, "page": 3, "page_size": 20})
	h := newHarness(t, client, "/queries?page=3")
	queries := NewQueries(h.deps)
	h.mount(t, queries.Page())

	assert.False(t, queries.NextPage())
	assert.Equal(t, 1, b.count("/daily/queries"))
}

func TestQueriesPresetCyclesThenClears(t *testing.T) {
	_, client := newBackend(t)
	h := newHarness(t, client, "/queries")
	queries := NewQueries(h.deps)
	h.mount(t, queries.Page())

	var lengths []int
	for range len(DatePresets) + 1 {
		queries.CyclePreset()
		lengths = append(lengths, queries.Page().Params().Days())
	}
	assert.Equal(t, []int{7, 14, 30, 90, 0}, lengths)
	h.settle(t, queries.Page())
}

func TestKnowledgeBaseDetailScopes(t *testing.T) {
	b, client := newBackend(t)
	b.on("GET /daily/knowledge-bases/42", map[string]any{"id": 42, "name": "Handbook"})
	h := newHarness(t, client, "/knowledge-bases/42?status=failed")
	kb := NewKnowledgeBase(h.deps, 42)
	h.mount(t, kb.Page())

	assert.Equal(t, "Handbook", kb.Title())
	assert.Equal(t, map[string]string{"days": "30"}, b.last("/daily/knowledge-bases/42/stats"))
	assert.Equal(t, "failed", b.last("/daily/knowledge-bases/42/queries")["evaluation_status"])

	kb.CycleMode()
	h.settle(t, kb.Page())

	assert.Equal(t, 1, b.count("/daily/knowledge-bases/42"))
	assert.Equal(t, 1, b.count("/daily/knowledge-bases/42/stats"))
	assert.Equal(t, 1, b.count("/daily/evaluation/knowledge-bases/42/evaluation-stats"))
	assert.Equal(t, 2, b.count("/daily/knowledge-bases/42/queries"))
}

func TestKnowledgeBaseEvaluatePollsUntilDone(t *testing.T) {
	b, client := newBackend(t)
	b.on("POST /daily/evaluation/trigger", map[string]any{"job_id": "job-1", "total_records": 3, "pending_evaluation": 3})
	var mu sync.Mutex
	polls := 0
	b.onFunc("GET /daily/evaluation/status/job-1", func() (int, any) {
		mu.Lock()
		defer mu.Unlock()
		polls++
		if polls < 3 {
			return http.StatusOK, model.EvaluationStatus{JobID: "job-1", Status: model.EvaluationRunning, Total: 3, Completed: polls}
		}
		return http.StatusOK, model.EvaluationStatus{JobID: "job-1", Status: model.EvaluationCompleted, Total: 3, Completed: 2, Skipped: 1}
	})
	h := newHarness(t, client, "/knowledge-bases/42")
	kb := NewKnowledgeBase(h.deps, 42)
	h.mount(t, kb.Page())

	require.True(t, kb.Evaluate(true))
	h.settle(t, kb.Page())

	assert.JSONEq(t, `{"mode":"by_kb","knowledge_id":42,"force":true}`, b.body("/daily/evaluation/trigger"))
	assert.Equal(t, 3, b.count("/daily/evaluation/status/job-1"))
	msg, isErr := kb.Page().Status()
	assert.False(t, isErr)
	assert.Equal(t, "evaluation job-1 completed: 2 evaluated, 0 failed, 1 skipped", msg)
	assert.Equal(t, 2, b.count("/daily/knowledge-bases/42"))
}

func TestEvaluationFailedJobIsAnError(t *testing.T) {
	b, client := newBackend(t)
	b.on("POST /daily/evaluation/trigger", map[string]any{"job_id": "job-2", "total_records": 4, "pending_evaluation": 4})
	b.on("GET /daily/evaluation/status/job-2", model.EvaluationStatus{JobID: "job-2", Status: model.EvaluationFailed, Total: 4, Completed: 1, Failed: 3})
	h := newHarness(t, client, "/evaluation")
	evaluation := NewEvaluation(h.deps)
	h.mount(t, evaluation.Page())

	require.True(t, evaluation.Evaluate(false))
	h.settle(t, evaluation.Page())

	assert.JSONEq(t, `{"mode":"by_date_range","start_date":"2026-10-12","end_date":"2026-10-18","force":false}`, b.body("/daily/evaluation/trigger"))
	msg, isErr := evaluation.Page().Status()
	assert.True(t, isErr)
	assert.Equal(t, "evaluation job-2 failed after 1 of 4 records", msg)
	assert.Equal(t, 1, b.count("/daily/evaluation/low-score/queries"), "no refetch after a failed action")
}

func TestEvaluationSortFollowsKnowledgeBaseRanking(t *testing.T) {
	b, client := newBackend(t)
	h := newHarness(t, client, "/evaluation?judgment=fail")
	evaluation := NewEvaluation(h.deps)
	h.mount(t, evaluation.Page())

	assert.Equal(t, map[string]string{
		"start_date": "2026-10-12",
		"end_date":   "2026-10-18",
		"judgment":   "fail",
		"sort_by":    "avg_total_score",
		"limit":      "10",
	}, b.last("/daily/evaluation/low-score/knowledge-bases"))

	evaluation.CycleSort()
	h.settle(t, evaluation.Page())

	assert.Equal(t, "faithfulness_score", b.last("/daily/evaluation/low-score/queries")["sort_by"])
	assert.Equal(t, "avg_faithfulness", b.last("/daily/evaluation/low-score/knowledge-bases")["sort_by"])
	assert.Equal(t, 1, b.count("/daily/evaluation/trends"))
	assert.Equal(t, map[string]string{"days": "7"}, b.last("/daily/evaluation/trends"))
}

func TestEvaluationTrendDaysAreCapped(t *testing.T) {
	b, client := newBackend(t)
	h := newHarness(t, client, "/evaluation?start_date=2026-01-01&end_date=2026-10-18")
	evaluation := NewEvaluation(h.deps)
	h.mount(t, evaluation.Page())

	assert.Equal(t, "90", b.last("/daily/evaluation/trends")["days"])
}

func TestDashboardTrendDaysAreCapped(t *testing.T) {
	b, client := newBackend(t)
	h := newHarness(t, client, "/?start_date=2026-01-01&end_date=2026-10-18")
	dashboard := NewDashboard(h.deps)
	h.mount(t, dashboard.Page())

	assert.Equal(t, map[string]string{"days": "90", "granularity": "day"}, b.last("/daily/trends"))
	assert.Equal(t, "2026-01-01", b.last("/daily/overview")["start_date"], "dated panels keep the full range")
}

func TestEvaluationComparesWithPreviousPeriod(t *testing.T) {
	b, client := newBackend(t)
	b.on("GET /daily/evaluation/compare", map[string]any{
		"period1": map[string]any{"date_range": "2026-10-05 ~ 2026-10-11", "evaluated_count": 8, "pass_rate": 0.5},
		"period2": map[string]any{"date_range": "2026-10-12 ~ 2026-10-18", "evaluated_count": 10, "pass_rate": 0.7},
		"changes": map[string]any{"pass_rate_change": 0.2, "improvement": true},
	})
	h := newHarness(t, client, "/evaluation")
	evaluation := NewEvaluation(h.deps)
	h.mount(t, evaluation.Page())

	assert.Equal(t, map[string]string{
		"period1_start": "2026-10-05",
		"period1_end":   "2026-10-11",
		"period2_start": "2026-10-12",
		"period2_end":   "2026-10-18",
	}, b.last("/daily/evaluation/compare"))
	state := evaluation.Comparison.State()
	require.True(t, state.IsLoaded())
	assert.True(t, state.Data.Changes.Improvement)

	evaluation.ToggleJudgment()
	h.settle(t, evaluation.Page())
	assert.Equal(t, 1, b.count("/daily/evaluation/compare"), "judgment does not change the periods")

	evaluation.SetPreset(14)
	h.settle(t, evaluation.Page())
	assert.Equal(t, 2, b.count("/daily/evaluation/compare"))
	assert.Equal(t, "2026-09-21", b.last("/daily/evaluation/compare")["period1_start"])
	assert.Equal(t, "2026-10-04", b.last("/daily/evaluation/compare")["period1_end"])
}

func TestRecordShowsOnDemand(t *testing.T) {
	b, client := newBackend(t)
	b.on("GET /daily/rag-records/9", map[string]any{"id": 9, "name": "policy.pdf"})
	b.on("GET /daily/evaluation/rag-records/9/evaluation", map[string]any{
		"rag_record_ref_id": 9,
		"evaluation_status": "completed",
		"evaluation_result": map[string]any{"id": 1, "evaluation_judgment": "fail", "total_score": 0.41, "threshold": 0.6},
	})
	h := newHarness(t, client, "/queries")
	record := NewRecord(h.deps)
	t.Cleanup(func() {
		record.Close()
		record.Wait()
	})

	record.Show(context.Background(), 9)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.loop.RunUntil(ctx, func() bool { return !record.Loading() }))

	record.Show(context.Background(), 9)
	assert.Equal(t, int64(9), record.ID())
	assert.Equal(t, "policy.pdf", record.Panel.State().Data.Name)
	evaluation := record.Evaluation.State()
	require.True(t, evaluation.IsLoaded())
	require.NotNil(t, evaluation.Data.Result)
	assert.Equal(t, "fail", evaluation.Data.Result.EvaluationJudgment)
	assert.Equal(t, 1, b.count("/daily/rag-records/9"))
	assert.Equal(t, 1, b.count("/daily/evaluation/rag-records/9/evaluation"))
}

func TestProgressLine(t *testing.T) {
	status := model.EvaluationStatus{JobID: "j", Status: model.EvaluationRunning, Total: 10, Completed: 3, Failed: 1, Skipped: 1}
	assert.Equal(t, "evaluation j running: 5/10", ProgressLine(status))
}

func TestForPathKeepsDeepLinkFilters(t *testing.T) {
	b, client := newBackend(t)
	h := newHarness(t, client, "/queries/?mode=rag_retrieval")
	screen, ok := ForPath(h.deps, "/queries/")
	require.True(t, ok)
	h.mount(t, screen.Page())

	assert.Equal(t, model.ModeRagRetrieval, screen.Page().Params().Mode)
	assert.Equal(t, model.ModeRagRetrieval, b.last("/daily/queries")["injection_mode"])
	assert.Equal(t, "/queries?mode=rag_retrieval", h.location.String())
}

func TestForPath(t *testing.T) {
	_, client := newBackend(t)
	deps := Deps{Client: client, Env: view.Env{Dispatcher: view.NewLoop()}}

	tests := []struct {
		path  string
		title string
		ok    bool
	}{
		{path: "/", title: "Dashboard", ok: true},
		{path: "", title: "Dashboard", ok: true},
		{path: "/knowledge-bases/", title: "Knowledge Bases", ok: true},
		{path: "/knowledge-bases/12", title: "Knowledge Base #12", ok: true},
		{path: "/queries", title: "Queries", ok: true},
		{path: "/evaluation", title: "Evaluation", ok: true},
		{path: "/knowledge-bases/abc", title: "Dashboard", ok: false},
		{path: "/missing", title: "Dashboard", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			screen, ok := ForPath(deps, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.title, screen.Title())
		})
	}
}
