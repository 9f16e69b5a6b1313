package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/akgraph"
	"github.com/soundprediction/akgraph/pkg/server/dto"
)

// StatsHandler handles graph statistics requests
type StatsHandler struct {
	graph akgraph.Akgraph
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(g akgraph.Akgraph) *StatsHandler {
	return &StatsHandler{graph: g}
}

// Stats handles GET /api/v1/stats
func (h *StatsHandler) Stats(c *gin.Context) {
	stats, err := h.graph.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "stats_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entities":      stats.Entities,
		"relationships": stats.Relationships,
		"entity_types":  stats.EntityTypes,
		"documents":     stats.Documents,
	})
}

// EntityTypes handles GET /api/v1/types
func (h *StatsHandler) EntityTypes(c *gin.Context) {
	kinds, err := h.graph.EntityTypes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "types_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entity_types": kinds})
}
