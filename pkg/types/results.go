package types

import "time"

// DocumentStatus tracks a document through the processing state machine.
// FAILED is reachable from any state; previously committed chunk results
// are retained, there is no rollback.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "PENDING"
	StatusAnalyzing  DocumentStatus = "ANALYZING"
	StatusChunking   DocumentStatus = "CHUNKING"
	StatusExtracting DocumentStatus = "EXTRACTING"
	StatusResolving  DocumentStatus = "RESOLVING"
	StatusWriting    DocumentStatus = "WRITING"
	StatusCompleted  DocumentStatus = "COMPLETED"
	StatusDegraded   DocumentStatus = "COMPLETED_WITH_DEGRADATION"
	StatusFailed     DocumentStatus = "FAILED"
	StatusSkipped    DocumentStatus = "SKIPPED"
)

// ChunkError records a contained chunk-level failure. Chunk failures never
// abort sibling chunks or sibling documents.
type ChunkError struct {
	ChunkIndex int    `json:"chunk_index"`
	Stage      string `json:"stage"`
	Message    string `json:"message"`
}

// DocumentResult summarizes one document's resolution pass.
type DocumentResult struct {
	DocumentID           string         `json:"document_id"`
	Status               DocumentStatus `json:"status"`
	Chunks               int            `json:"chunks"`
	EntitiesCreated      int            `json:"entities_created"`
	EntitiesReused       int            `json:"entities_reused"`
	RelationshipsCreated int            `json:"relationships_created"`
	RelationshipsSkipped int            `json:"relationships_skipped"`
	Errors               []ChunkError   `json:"errors,omitempty"`
	DegradedChunks       int            `json:"degraded_chunks"`
	ProcessingTime       time.Duration  `json:"processing_time"`
}

// Degraded reports whether any chunk fell back to a lower-quality strategy
// or was lost to a contained failure.
func (r *DocumentResult) Degraded() bool {
	return r.DegradedChunks > 0 || len(r.Errors) > 0
}

// BatchResult summarizes a batch of documents processed concurrently.
type BatchResult struct {
	Results              []*DocumentResult `json:"results"`
	Succeeded            int               `json:"succeeded"`
	Failed               int               `json:"failed"`
	EntitiesCreated      int               `json:"entities_created"`
	RelationshipsCreated int               `json:"relationships_created"`
	TotalProcessingTime  time.Duration     `json:"total_processing_time"`
}
