package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shared-sketch/backend/internal/model"
)

// maxJournalLimit caps ?limit on /api/journal.
const maxJournalLimit = 1000

// JournalReader lists recorded canvas activity.
type JournalReader interface {
	List(ctx context.Context, limit int) ([]*model.JournalEntry, error)
}

// JournalHandler serves the activity journal.
type JournalHandler struct {
	journal JournalReader
}

// NewJournalHandler creates a new JournalHandler.
func NewJournalHandler(journal JournalReader) *JournalHandler {
	return &JournalHandler{journal: journal}
}

// List handles GET /api/journal - newest entries first.
func (h *JournalHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxJournalLimit {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be between 1 and "+strconv.Itoa(maxJournalLimit))
			return
		}
		limit = n
	}

	entries, err := h.journal.List(c.Request.Context(), limit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list journal: "+err.Error())
		return
	}
	if entries == nil {
		entries = []*model.JournalEntry{}
	}

	c.JSON(http.StatusOK, entries)
}

// RegisterRoutes registers the journal route on a Gin router group.
func (h *JournalHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/journal", h.List)
}
