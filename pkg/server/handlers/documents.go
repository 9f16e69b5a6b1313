package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/akgraph"
	"github.com/soundprediction/akgraph/pkg/server/dto"
	"github.com/soundprediction/akgraph/pkg/types"
	"github.com/soundprediction/akgraph/pkg/utils"
)

// DocumentsHandler handles document processing requests
type DocumentsHandler struct {
	graph  akgraph.Akgraph
	logger *slog.Logger
}

// NewDocumentsHandler creates a new documents handler
func NewDocumentsHandler(g akgraph.Akgraph, logger *slog.Logger) *DocumentsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentsHandler{graph: g, logger: logger}
}

// generateProcessID generates a unique process ID for tracking async operations
func generateProcessID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("proc_%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("proc_%s", hex.EncodeToString(bytes))
}

// Process handles POST /api/v1/documents - synchronous single-document
// processing. The result reports created and reused records and any
// contained chunk failures.
func (h *DocumentsHandler) Process(c *gin.Context) {
	var req dto.DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	result, err := h.graph.ProcessDocument(c.Request.Context(), req.ToDocument())
	if err != nil {
		h.logger.Error("document processing failed", "document_id", req.ID, "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "processing_failed", Message: err.Error()})
		return
	}

	status := http.StatusOK
	if result.Status == types.StatusFailed {
		status = http.StatusInternalServerError
	}
	c.JSON(status, result)
}

// ProcessBatch handles POST /api/v1/documents/batch - asynchronous batch
// processing. The batch is queued and a process ID returned immediately.
func (h *DocumentsHandler) ProcessBatch(c *gin.Context) {
	var req dto.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	processID := generateProcessID()
	docs := make([]types.Document, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = d.ToDocument()
	}

	utils.SafeGo(func() {
		ctx := context.WithValue(context.Background(), types.ContextKeyRequestSource, "server")
		h.logger.Info("starting batch processing", "process_id", processID, "documents", len(docs))

		batch, err := h.graph.ProcessDocuments(ctx, docs)
		if err != nil {
			h.logger.Error("batch processing failed", "process_id", processID, "error", err)
			return
		}
		h.logger.Info("batch processing finished",
			"process_id", processID,
			"succeeded", batch.Succeeded,
			"failed", batch.Failed,
			"entities_created", batch.EntitiesCreated,
			"relationships_created", batch.RelationshipsCreated,
		)
	}, func(err error) {
		h.logger.Error("batch processing panicked", "process_id", processID, "error", err)
	})

	c.JSON(http.StatusAccepted, dto.BatchResponse{
		Success:   true,
		Message:   fmt.Sprintf("Queued %d documents for processing", len(docs)),
		ProcessID: processID,
	})
}
