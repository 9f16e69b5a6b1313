package dto

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soundprediction/akgraph/pkg/types"
)

// Validation errors
var (
	ErrEmptyID        = errors.New("id cannot be empty")
	ErrEmptyContent   = errors.New("content cannot be empty")
	ErrEmptyDocuments = errors.New("documents cannot be empty")
	ErrIDTooLong      = errors.New("id exceeds maximum length (256)")
	ErrTitleTooLong   = errors.New("title exceeds maximum length (1024)")
	ErrContentTooLong = errors.New("content exceeds maximum length (10MB)")
)

// Maximum field lengths to prevent abuse
const (
	MaxIDLength       = 256
	MaxTitleLength    = 1024
	MaxContentLength  = 10 * 1024 * 1024 // 10MB
	MaxDocumentsCount = 100
)

// DocumentRequest is one document submitted for processing.
type DocumentRequest struct {
	ID        string                 `json:"id" binding:"required"`
	Title     string                 `json:"title,omitempty"`
	Content   string                 `json:"content" binding:"required"`
	Domain    string                 `json:"domain,omitempty"`
	Subdomain string                 `json:"subdomain,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Validate performs validation on DocumentRequest
func (r *DocumentRequest) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyID
	}
	if len(r.ID) > MaxIDLength {
		return ErrIDTooLong
	}
	if len(r.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if strings.TrimSpace(r.Content) == "" {
		return ErrEmptyContent
	}
	if len(r.Content) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// ToDocument converts the request into the pipeline's document type.
func (r *DocumentRequest) ToDocument() types.Document {
	return types.Document{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		Domain:    r.Domain,
		Subdomain: r.Subdomain,
		Metadata:  r.Metadata,
		CreatedAt: time.Now().UTC(),
	}
}

// BatchRequest is a batch of documents submitted for asynchronous
// processing.
type BatchRequest struct {
	Documents []DocumentRequest `json:"documents" binding:"required,dive"`
}

// Validate performs validation on BatchRequest
func (r *BatchRequest) Validate() error {
	if len(r.Documents) == 0 {
		return ErrEmptyDocuments
	}
	if len(r.Documents) > MaxDocumentsCount {
		return fmt.Errorf("documents count exceeds maximum (%d)", MaxDocumentsCount)
	}
	for i, doc := range r.Documents {
		if err := doc.Validate(); err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
	}
	return nil
}

// BatchResponse acknowledges an accepted batch.
type BatchResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ProcessID string `json:"process_id"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
