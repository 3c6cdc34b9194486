package model

// Evaluation job statuses. Completed and failed are terminal.
const (
	EvaluationStarted   = "started"
	EvaluationRunning   = "running"
	EvaluationCompleted = "completed"
	EvaluationFailed    = "failed"
)

// Evaluation trigger modes.
const (
	EvaluateByKnowledgeBase = "by_kb"
	EvaluateByDateRange     = "by_date_range"
)

// Judgment filters for low-score rankings.
const (
	JudgmentAll  = "all"
	JudgmentFail = "fail"
)

// LowScoreQuerySorts are the sort keys accepted by the low-score queries ranking.
var LowScoreQuerySorts = []string{
	"total_score",
	"faithfulness_score",
	"trulens_groundedness",
	"ragas_query_context_relevance",
	"trulens_context_relevance",
}

// LowScoreKnowledgeBaseSorts are the sort keys accepted by the low-score knowledge-base ranking.
var LowScoreKnowledgeBaseSorts = []string{
	"avg_total_score",
	"avg_faithfulness",
	"avg_groundedness",
	"avg_query_context_relevance",
	"avg_context_relevance",
	"fail_rate",
}

type EvaluationRequest struct {
	Mode        string `json:"mode"`
	KnowledgeID *int64 `json:"knowledge_id,omitempty"`
	StartDate   Date   `json:"start_date,omitempty"`
	EndDate     Date   `json:"end_date,omitempty"`
	Force       bool   `json:"force"`
}

type EvaluationJob struct {
	JobID             string `json:"job_id"`
	TotalRecords      int    `json:"total_records"`
	PendingEvaluation int    `json:"pending_evaluation"`
}

type EvaluationStatus struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// Done reports whether the job reached a terminal status.
func (s EvaluationStatus) Done() bool {
	return s.Status == EvaluationCompleted || s.Status == EvaluationFailed
}

type EvaluationTrendPoint struct {
	Date               string   `json:"date"`
	TotalRagQueries    int      `json:"total_rag_queries"`
	EvaluatedCount     int      `json:"evaluated_count"`
	EvaluationCoverage float64  `json:"evaluation_coverage"`
	PassCount          int      `json:"pass_count"`
	FailCount          int      `json:"fail_count"`
	UndeterminedCount  int      `json:"undetermined_count"`
	PassRate           *float64 `json:"pass_rate"`
	AvgTotalScore      *float64 `json:"avg_total_score"`
	AvgRetrievalScore  *float64 `json:"avg_retrieval_score"`
	AvgGenerationScore *float64 `json:"avg_generation_score"`
}

type TrendComparison struct {
	PassRateChange *float64 `json:"pass_rate_change"`
	AvgScoreChange *float64 `json:"avg_score_change"`
}

// PeriodStats summarises the evaluations of one side of a comparison.
type PeriodStats struct {
	DateRange      string   `json:"date_range"`
	EvaluatedCount int      `json:"evaluated_count"`
	PassRate       *float64 `json:"pass_rate"`
	AvgTotalScore  *float64 `json:"avg_total_score"`
}

type PeriodChanges struct {
	TrendComparison
	Improvement bool `json:"improvement"`
}

// EvaluationComparison compares period1 (earlier) with period2 (later);
// changes are period2 minus period1.
type EvaluationComparison struct {
	Period1 PeriodStats   `json:"period1"`
	Period2 PeriodStats   `json:"period2"`
	Changes PeriodChanges `json:"changes"`
}

type NonRagStats struct {
	DirectInjectionCount   int     `json:"direct_injection_count"`
	SelectedDocumentsCount int     `json:"selected_documents_count"`
	NonRagRatio            float64 `json:"non_rag_ratio"`
}

type EvaluationTrends struct {
	Trends      []EvaluationTrendPoint     `json:"trends"`
	Comparison  map[string]TrendComparison `json:"comparison"`
	NonRagStats *NonRagStats               `json:"non_rag_stats"`
}

type LowScoreQuery struct {
	RagRecordRefID             int64    `json:"rag_record_ref_id"`
	RawID                      int64    `json:"raw_id"`
	RecordDate                 string   `json:"record_date"`
	KnowledgeID                *int64   `json:"knowledge_id"`
	KnowledgeName              string   `json:"knowledge_name"`
	UserPrompt                 string   `json:"user_prompt"`
	EvaluationJudgment         string   `json:"evaluation_judgment"`
	TotalScore                 *float64 `json:"total_score"`
	FaithfulnessScore          *float64 `json:"faithfulness_score"`
	TrulensGroundedness        *float64 `json:"trulens_groundedness"`
	RagasQueryContextRelevance *float64 `json:"ragas_query_context_relevance"`
	TrulensContextRelevance    *float64 `json:"trulens_context_relevance"`
	EvaluatedAt                string   `json:"evaluated_at"`
}

type LowScoreQueries struct {
	Records        []LowScoreQuery `json:"records"`
	Total          int             `json:"total"`
	FiltersApplied map[string]any  `json:"filters_applied"`
}

type LowScoreKnowledgeBase struct {
	KnowledgeID                   int64    `json:"knowledge_id"`
	KnowledgeName                 string   `json:"knowledge_name"`
	Namespace                     string   `json:"namespace"`
	EvaluatedCount                int      `json:"evaluated_count"`
	PassCount                     int      `json:"pass_count"`
	FailCount                     int      `json:"fail_count"`
	UndeterminedCount             int      `json:"undetermined_count"`
	PassRate                      *float64 `json:"pass_rate"`
	FailRate                      *float64 `json:"fail_rate"`
	AvgTotalScore                 *float64 `json:"avg_total_score"`
	AvgFaithfulnessScore          *float64 `json:"avg_faithfulness_score"`
	AvgTrulensGroundedness        *float64 `json:"avg_trulens_groundedness"`
	AvgRagasQueryContextRelevance *float64 `json:"avg_ragas_query_context_relevance"`
	AvgTrulensContextRelevance    *float64 `json:"avg_trulens_context_relevance"`
}

type LowScoreKnowledgeBases struct {
	KnowledgeBases []LowScoreKnowledgeBase `json:"knowledge_bases"`
	Total          int                     `json:"total"`
}

// Evaluation statuses of a single RAG record.
const (
	RecordPending   = "pending"
	RecordCompleted = "completed"
	RecordFailed    = "failed"
	RecordSkipped   = "skipped"
)

var RecordStatuses = []string{RecordPending, RecordCompleted, RecordFailed, RecordSkipped}

type CoreMetrics struct {
	FaithfulnessScore          *float64 `json:"faithfulness_score"`
	TrulensGroundedness        *float64 `json:"trulens_groundedness"`
	RagasQueryContextRelevance *float64 `json:"ragas_query_context_relevance"`
	TrulensContextRelevance    *float64 `json:"trulens_context_relevance"`
	RagasContextPrecisionEmb   *float64 `json:"ragas_context_precision_emb"`
}

type EvaluationResult struct {
	ID                 int64       `json:"id"`
	EvaluationJudgment string      `json:"evaluation_judgment"`
	TotalScore         *float64    `json:"total_score"`
	RetrievalScore     *float64    `json:"retrieval_score"`
	GenerationScore    *float64    `json:"generation_score"`
	CoreMetrics        CoreMetrics `json:"core_metrics"`
	Threshold          float64     `json:"threshold"`
	EvaluatedAt        string      `json:"evaluated_at"`
}

type RawDataPreview struct {
	UserPrompt    string   `json:"user_prompt"`
	ChunksCount   *int     `json:"chunks_count"`
	ChunksPreview []string `json:"chunks_preview"`
}

// RecordEvaluation is the evaluation of one RAG record. Result is nil until
// the record has been evaluated.
type RecordEvaluation struct {
	RagRecordRefID   int64             `json:"rag_record_ref_id"`
	RawID            int64             `json:"raw_id"`
	EvaluationStatus string            `json:"evaluation_status"`
	Result           *EvaluationResult `json:"evaluation_result"`
	RawData          *RawDataPreview   `json:"raw_data"`
}

type KnowledgeBaseEvaluationStats struct {
	RagRetrievalCount  int      `json:"rag_retrieval_count"`
	EvaluatedCount     int      `json:"evaluated_count"`
	EvaluationCoverage float64  `json:"evaluation_coverage"`
	PassCount          int      `json:"pass_count"`
	FailCount          int      `json:"fail_count"`
	UndeterminedCount  int      `json:"undetermined_count"`
	PassRate           *float64 `json:"pass_rate"`
	AvgTotalScore      *float64 `json:"avg_total_score"`
}
