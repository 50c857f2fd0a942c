package model

import "time"

// DocumentStatus tracks a document through its processing lifecycle.
type DocumentStatus string

const (
	DocStatusPending    DocumentStatus = "pending"
	DocStatusProcessing DocumentStatus = "processing"
	DocStatusCompleted  DocumentStatus = "completed"
	DocStatusFailed     DocumentStatus = "failed"
)

// Document is a procurement/legal document registered for processing.
type Document struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	SourcePath string         `json:"source_path"`
	Status     DocumentStatus `json:"status"`
	PageCount  int            `json:"page_count"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Page is a single page of extracted text. Immutable once extracted.
type Page struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
	WordCount  int    `json:"word_count"`
}

// Batch is a contiguous run of pages processed together in one extraction
// cycle. Derived from pages, never persisted on its own.
type Batch struct {
	BatchNumber      int    `json:"batch_number"`
	Pages            []Page `json:"pages"`
	TotalWords       int    `json:"total_words"`
	ConsolidatedText string `json:"consolidated_text"`
}

// PageNumbers returns the page numbers covered by the batch, in order.
func (b Batch) PageNumbers() []int {
	nums := make([]int, len(b.Pages))
	for i, p := range b.Pages {
		nums[i] = p.PageNumber
	}
	return nums
}

// StageCounts tallies what a batch (or a whole run) produced.
type StageCounts struct {
	Sections       int `json:"sections"`
	Entities       int `json:"entities"`
	TimelineEvents int `json:"timeline_events"`
	Risks          int `json:"risks"`
}

// Add accumulates counts from another StageCounts.
func (c *StageCounts) Add(other StageCounts) {
	c.Sections += other.Sections
	c.Entities += other.Entities
	c.TimelineEvents += other.TimelineEvents
	c.Risks += other.Risks
}

// BatchOutcome records the result of processing one batch.
type BatchOutcome struct {
	DocumentID       string      `json:"document_id"`
	BatchNumber      int         `json:"batch_number"`
	PagesProcessed   int         `json:"pages_processed"`
	Success          bool        `json:"success"`
	Error            string      `json:"error,omitempty"`
	Counts           StageCounts `json:"counts"`
	ProcessingTimeMs int64       `json:"processing_time_ms"`
}

// ProcessResult is the aggregate outcome of a full document run.
type ProcessResult struct {
	DocumentID   string         `json:"document_id"`
	Status       DocumentStatus `json:"status"`
	AllSucceeded bool           `json:"all_succeeded"`
	Batches      []BatchOutcome `json:"batches"`
	Counts       StageCounts    `json:"counts"`
	TokenUsage   TokenUsage     `json:"token_usage"`
	Conflicts    int            `json:"conflicts"`
	DroppedLinks int            `json:"dropped_links"`
	DurationMs   int64          `json:"duration_ms"`
}

// TokenUsage tracks aggregate token consumption across oracle calls.
type TokenUsage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens"`
	CacheReadTokens     int `json:"cache_read_tokens"`
}

// Add accumulates usage from another TokenUsage.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationTokens += other.CacheCreationTokens
	u.CacheReadTokens += other.CacheReadTokens
}

// DocumentStats holds per-stage record counts for a document.
type DocumentStats struct {
	DocumentID     string         `json:"document_id"`
	Status         DocumentStatus `json:"status"`
	Pages          int            `json:"pages"`
	Sections       int            `json:"sections"`
	Entities       int            `json:"entities"`
	TimelineEvents int            `json:"timeline_events"`
	Risks          int            `json:"risks"`
	Embeddings     int            `json:"embeddings"`
	Conversations  int            `json:"conversations"`
}
