package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseda-hg/lazydash/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, WithHTTPClient(srv.Client()))
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(payload))
}

func TestQueriesSendsOnlyDefinedParameters(t *testing.T) {
	var gotPath, gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"items":     []map[string]any{{"id": 7, "raw_id": 70, "injection_mode": "rag_retrieval", "query": "hello"}},
			"total":     45,
			"page":      2,
			"page_size": 20,
		})
	})

	page, err := client.Queries(context.Background(), QueryListParams{
		Page:          2,
		PageSize:      20,
		InjectionMode: model.ModeRagRetrieval,
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/daily/queries", gotPath)
	assert.Equal(t, "injection_mode=rag_retrieval&page=2&page_size=20", gotQuery)
	assert.Equal(t, 3, page.PageCount())
	require.Len(t, page.Items, 1)
	assert.Equal(t, "hello", page.Items[0].Query)
}

func TestTrendsRequestsDaysFromRange(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writeJSON(t, w, http.StatusOK, model.Trends{
			Granularity: "day",
			Data:        []model.TrendPoint{{Date: "2024-05-06", TotalQueries: 3}, {Date: "2024-05-07", TotalQueries: 5}},
		})
	})

	start, _ := model.ParseDate("2024-05-01")
	end, _ := model.ParseDate("2024-05-07")
	trends, err := client.Trends(context.Background(), TrendsParams{Days: model.DaysInRange(start, end), Granularity: "day"})
	require.NoError(t, err)

	assert.Equal(t, "days=7&granularity=day", gotQuery)
	assert.Len(t, trends.Data, 2)
}

func TestErrorCarriesServerDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{"detail": "Knowledge base not found"})
	})

	_, err := client.KnowledgeBase(context.Background(), 42)
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Knowledge base not found", err.Error())
	assert.True(t, IsNotFound(err))
}

func TestErrorFallsBackToGenericMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := client.SyncStatus(context.Background())
	require.Error(t, err)
	assert.Equal(t, "request failed with status 502", err.Error())
}

func TestErrorJoinsValidationMessages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"msg": "ensure this value is greater than or equal to 1"}, {"msg": "field required"}},
		})
	})

	_, err := client.Trends(context.Background(), TrendsParams{Days: -1})
	require.Error(t, err)
	assert.Equal(t, "ensure this value is greater than or equal to 1; field required", err.Error())
}

func TestTriggerSyncPostsType(t *testing.T) {
	var body map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/daily/sync/trigger", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(t, w, http.StatusOK, model.SyncResult{Status: "success", Message: "Sync completed"})
	})

	result, err := client.TriggerSync(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"sync_type": "hourly"}, body)
	assert.Equal(t, "success", result.Status)
}

func TestTriggerEvaluationRequiresKnowledgeIDForByKB(t *testing.T) {
	client := New("http://127.0.0.1:1")
	_, err := client.TriggerEvaluation(context.Background(), model.EvaluationRequest{Mode: model.EvaluateByKnowledgeBase})
	require.Error(t, err)
}

func TestLowScoreKnowledgeBasesDropsKnowledgeFilter(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writeJSON(t, w, http.StatusOK, model.LowScoreKnowledgeBases{})
	})

	_, err := client.LowScoreKnowledgeBases(context.Background(), LowScoreParams{
		KnowledgeID: 9,
		Judgment:    model.JudgmentFail,
		SortBy:      "fail_rate",
		Limit:       10,
	})
	require.NoError(t, err)
	assert.Equal(t, "judgment=fail&limit=10&sort_by=fail_rate", gotQuery)
}

func TestCompareEvaluationsSendsBothPeriods(t *testing.T) {
	var gotPath, gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		writeJSON(t, w, http.StatusOK, map[string]any{
			"period1": map[string]any{"date_range": "2024-04-24 ~ 2024-04-30", "evaluated_count": 10, "pass_rate": 0.5},
			"period2": map[string]any{"date_range": "2024-05-01 ~ 2024-05-07", "evaluated_count": 12, "pass_rate": 0.75},
			"changes": map[string]any{"pass_rate_change": 0.25, "avg_score_change": nil, "improvement": true},
		})
	})

	got, err := client.CompareEvaluations(context.Background(), CompareParams{
		Period1Start: "2024-04-24",
		Period1End:   "2024-04-30",
		Period2Start: "2024-05-01",
		Period2End:   "2024-05-07",
		KnowledgeID:  3,
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/daily/evaluation/compare", gotPath)
	assert.Equal(t, "knowledge_id=3&period1_end=2024-04-30&period1_start=2024-04-24&period2_end=2024-05-07&period2_start=2024-05-01", gotQuery)
	assert.Equal(t, 12, got.Period2.EvaluatedCount)
	require.NotNil(t, got.Changes.PassRateChange)
	assert.InDelta(t, 0.25, *got.Changes.PassRateChange, 1e-9)
	assert.Nil(t, got.Changes.AvgScoreChange)
	assert.True(t, got.Changes.Improvement)
}

func TestCompareEvaluationsRequiresDates(t *testing.T) {
	client := New("http://127.0.0.1:1")
	_, err := client.CompareEvaluations(context.Background(), CompareParams{Period2Start: "2024-05-01", Period2End: "2024-05-07"})
	require.Error(t, err)
}

func TestRecordEvaluationDecodesResult(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeJSON(t, w, http.StatusOK, map[string]any{
			"rag_record_ref_id": 9,
			"raw_id":            90,
			"evaluation_status": "completed",
			"evaluation_result": map[string]any{
				"id":                  4,
				"evaluation_judgment": "pass",
				"total_score":         0.82,
				"core_metrics":        map[string]any{"faithfulness_score": 0.9},
				"threshold":           0.6,
			},
			"raw_data": map[string]any{"user_prompt": "refund policy?", "chunks_count": 2},
		})
	})

	got, err := client.RecordEvaluation(context.Background(), 9)
	require.NoError(t, err)

	assert.Equal(t, "/api/daily/evaluation/rag-records/9/evaluation", gotPath)
	require.NotNil(t, got.Result)
	assert.Equal(t, "pass", got.Result.EvaluationJudgment)
	require.NotNil(t, got.Result.CoreMetrics.FaithfulnessScore)
	assert.InDelta(t, 0.9, *got.Result.CoreMetrics.FaithfulnessScore, 1e-9)
	assert.Nil(t, got.Result.CoreMetrics.TrulensGroundedness)
	require.NotNil(t, got.RawData)
	assert.Equal(t, "refund policy?", got.RawData.UserPrompt)
}

func TestRecordEvaluationNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{"detail": "RAG record not found"})
	})

	_, err := client.RecordEvaluation(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "RAG record not found", err.Error())
}

func TestKnowledgeBaseEvaluationStatsPath(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeJSON(t, w, http.StatusOK, model.KnowledgeBaseEvaluationStats{RagRetrievalCount: 20, EvaluatedCount: 5, EvaluationCoverage: 0.25})
	})

	got, err := client.KnowledgeBaseEvaluationStats(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "/api/daily/evaluation/knowledge-bases/42/evaluation-stats", gotPath)
	assert.Equal(t, model.KnowledgeBaseEvaluationStats{RagRetrievalCount: 20, EvaluatedCount: 5, EvaluationCoverage: 0.25}, got)
}

func TestWaitEvaluationStopsOnTerminalStatus(t *testing.T) {
	var polls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/daily/evaluation/status/job-1", r.URL.Path)
		n := polls.Add(1)
		status := model.EvaluationRunning
		if n >= 3 {
			status = model.EvaluationCompleted
		}
		writeJSON(t, w, http.StatusOK, model.EvaluationStatus{JobID: "job-1", Status: status, Total: 3, Completed: int(n)})
	})

	var seen []string
	final, err := client.WaitEvaluation(context.Background(), "job-1", 5*time.Millisecond, func(status model.EvaluationStatus) {
		seen = append(seen, status.Status)
	})
	require.NoError(t, err)

	assert.Equal(t, model.EvaluationCompleted, final.Status)
	assert.EqualValues(t, 3, polls.Load())
	if diff := cmp.Diff([]string{"running", "running", "completed"}, seen); diff != "" {
		t.Fatalf("progress mismatch (-want +got):\n%s", diff)
	}
}

func TestWaitEvaluationReturnsPollError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{"detail": "Evaluation job not found"})
	})

	_, err := client.WaitEvaluation(context.Background(), "gone", time.Millisecond, nil)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestWaitEvaluationHonorsCancellation(t *testing.T) {
	client := New("http://127.0.0.1:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.WaitEvaluation(ctx, "job", time.Hour, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
