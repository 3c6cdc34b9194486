package model

// OverviewSummary aggregates counters over the requested range.
type OverviewSummary struct {
	TotalQueries           int `json:"total_queries"`
	RagRetrievalCount      int `json:"rag_retrieval_count"`
	DirectInjectionCount   int `json:"direct_injection_count"`
	SelectedDocumentsCount int `json:"selected_documents_count"`
	ActiveKBCount          int `json:"active_kb_count"`
	ActiveUserCount        int `json:"active_user_count"`
}

type OverviewComparison struct {
	TotalQueriesChange *float64 `json:"total_queries_change"`
	RagRetrievalChange *float64 `json:"rag_retrieval_change"`
}

type DailyCount struct {
	Date                   string `json:"date"`
	TotalQueries           int    `json:"total_queries"`
	RagRetrievalCount      int    `json:"rag_retrieval_count"`
	DirectInjectionCount   int    `json:"direct_injection_count"`
	SelectedDocumentsCount int    `json:"selected_documents_count"`
	ActiveKBCount          int    `json:"active_kb_count"`
	ActiveUserCount        int    `json:"active_user_count"`
}

type Overview struct {
	Summary    OverviewSummary     `json:"summary"`
	Comparison *OverviewComparison `json:"comparison"`
	Daily      []DailyCount        `json:"daily"`
	StartDate  string              `json:"start_date"`
	EndDate    string              `json:"end_date"`
}

// TrendPoint is one bucket of a trend series. Hour and Datetime are only
// set for hourly granularity.
type TrendPoint struct {
	Date                   string `json:"date"`
	Datetime               string `json:"datetime,omitempty"`
	Hour                   *int   `json:"hour,omitempty"`
	TotalQueries           int    `json:"total_queries"`
	RagRetrievalCount      int    `json:"rag_retrieval_count"`
	DirectInjectionCount   int    `json:"direct_injection_count"`
	SelectedDocumentsCount int    `json:"selected_documents_count"`
	ActiveKBCount          int    `json:"active_kb_count"`
}

type Trends struct {
	Granularity string       `json:"granularity"`
	Data        []TrendPoint `json:"data"`
}

type HourlyCount struct {
	Hour                   int `json:"hour"`
	TotalQueries           int `json:"total_queries"`
	RagRetrievalCount      int `json:"rag_retrieval_count"`
	DirectInjectionCount   int `json:"direct_injection_count"`
	SelectedDocumentsCount int `json:"selected_documents_count"`
}

type HourlyStats struct {
	Date   string        `json:"date"`
	Hourly []HourlyCount `json:"hourly"`
}

type TopKnowledgeBase struct {
	Rank                   int    `json:"rank"`
	KnowledgeID            int64  `json:"knowledge_id"`
	KnowledgeName          string `json:"knowledge_name"`
	Namespace              string `json:"namespace"`
	TotalQueries           int    `json:"total_queries"`
	RagRetrievalCount      int    `json:"rag_retrieval_count"`
	DirectInjectionCount   int    `json:"direct_injection_count"`
	SelectedDocumentsCount int    `json:"selected_documents_count"`
	PrimaryMode            string `json:"primary_mode"`
}

type TopKnowledgeBases struct {
	Date  string             `json:"date"`
	Items []TopKnowledgeBase `json:"items"`
}

// KnowledgeBase is a row of the global knowledge-base listing.
type KnowledgeBase struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Namespace         string `json:"namespace"`
	KBType            string `json:"kb_type"`
	IsActive          *bool  `json:"is_active"`
	CreatedByUserID   *int64 `json:"created_by_user_id"`
	CreatedByUserName string `json:"created_by_user_name"`
	RecentQueries     int    `json:"recent_queries"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

type KnowledgeBaseDetail struct {
	ID                int64          `json:"id"`
	Name              string         `json:"name"`
	Namespace         string         `json:"namespace"`
	KBType            string         `json:"kb_type"`
	IsActive          *bool          `json:"is_active"`
	CreatedByUserID   *int64         `json:"created_by_user_id"`
	CreatedByUserName string         `json:"created_by_user_name"`
	RetrievalConfig   map[string]any `json:"retrieval_config"`
	CreatedAt         string         `json:"created_at"`
	UpdatedAt         string         `json:"updated_at"`
}

type KnowledgeBaseSummary struct {
	KnowledgeID            int64  `json:"knowledge_id"`
	KnowledgeName          string `json:"knowledge_name"`
	Namespace              string `json:"namespace"`
	TotalQueries           int    `json:"total_queries"`
	RagRetrievalCount      int    `json:"rag_retrieval_count"`
	DirectInjectionCount   int    `json:"direct_injection_count"`
	SelectedDocumentsCount int    `json:"selected_documents_count"`
}

type KnowledgeBaseStats struct {
	Summary KnowledgeBaseSummary `json:"summary"`
	Daily   []DailyCount         `json:"daily"`
}

// QueryRecord is a single query as listed globally or per knowledge base.
type QueryRecord struct {
	ID               int64  `json:"id"`
	RawID            int64  `json:"raw_id"`
	RecordDate       string `json:"record_date"`
	ContextType      string `json:"context_type"`
	InjectionMode    string `json:"injection_mode"`
	EvaluationStatus string `json:"evaluation_status"`
	KnowledgeID      *int64 `json:"knowledge_id"`
	KnowledgeName    string `json:"knowledge_name"`
	Query            string `json:"query"`
	ChunksCount      *int   `json:"chunks_count"`
	CreatedAt        string `json:"created_at"`
}

type RagRecord struct {
	ID                 int64          `json:"id"`
	RawID              int64          `json:"raw_id"`
	KnowledgeID        *int64         `json:"knowledge_id"`
	ContextType        string         `json:"context_type"`
	InjectionMode      string         `json:"injection_mode"`
	EvaluationStatus   string         `json:"evaluation_status"`
	EvaluationResultID *int64         `json:"evaluation_result_id"`
	RecordDate         string         `json:"record_date"`
	Name               string         `json:"name"`
	TypeData           map[string]any `json:"type_data"`
	ExtractedText      string         `json:"extracted_text"`
	CreatedAt          string         `json:"created_at"`
}

// Sync types accepted by the trigger endpoint.
const (
	SyncHourly = "hourly"
	SyncDaily  = "daily"
	SyncFull   = "full"
)

type SyncCheckpoint struct {
	LastSyncTime  string `json:"last_sync_time"`
	LastRawID     int64  `json:"last_raw_id"`
	Status        string `json:"status"`
	RecordsSynced int    `json:"records_synced"`
	ErrorMessage  string `json:"error_message"`
}

type SyncStatus struct {
	RawDBConfigured bool            `json:"raw_db_configured"`
	Hourly          *SyncCheckpoint `json:"hourly"`
	Daily           *SyncCheckpoint `json:"daily"`
}

type SyncResult struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Result  map[string]any `json:"result"`
}
