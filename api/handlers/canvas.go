package handlers

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shared-sketch/backend/internal/export"
	"github.com/shared-sketch/backend/internal/hub"
	"github.com/shared-sketch/backend/internal/metrics"
	"github.com/shared-sketch/backend/internal/model"
	"github.com/shared-sketch/backend/internal/protocol"
)

// queryTimeout bounds how long a request waits behind the hub queue.
const queryTimeout = 5 * time.Second

// Canvas is the read side of the hub.
type Canvas interface {
	Snapshot(ctx context.Context) ([]model.Stroke, error)
	Stats(ctx context.Context) (hub.Stats, error)
}

// CanvasHandler serves the current canvas and hub counters.
type CanvasHandler struct {
	canvas  Canvas
	margin  float64
	dropped func() uint64
}

// NewCanvasHandler creates a new CanvasHandler. margin is the PDF page margin
// in millimetres; dropped reports journal drops for /metrics and may be nil.
func NewCanvasHandler(canvas Canvas, margin float64, dropped func() uint64) *CanvasHandler {
	if dropped == nil {
		dropped = func() uint64 { return 0 }
	}
	return &CanvasHandler{
		canvas:  canvas,
		margin:  margin,
		dropped: dropped,
	}
}

// CanvasResponse is the JSON form of the canvas history.
type CanvasResponse struct {
	Lines [][]protocol.Vertex `json:"lines"`
}

// Get handles GET /api/canvas - returns every stroke in the history.
func (h *CanvasHandler) Get(c *gin.Context) {
	strokes, ok := h.snapshot(c)
	if !ok {
		return
	}

	response := CanvasResponse{Lines: make([][]protocol.Vertex, len(strokes))}
	for i, s := range strokes {
		response.Lines[i] = protocol.Vertices(s)
	}
	c.JSON(http.StatusOK, response)
}

// PDF handles GET /api/canvas.pdf - renders the history as a PDF download.
func (h *CanvasHandler) PDF(c *gin.Context) {
	strokes, ok := h.snapshot(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WritePDF(&buf, strokes, h.margin); err != nil {
		sendError(c, http.StatusInternalServerError, "EXPORT_FAILED", err.Error())
		return
	}

	c.Header("Content-Disposition", "attachment; filename=sketch.pdf")
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// Stats handles GET /api/stats.
func (h *CanvasHandler) Stats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	stats, err := h.canvas.Stats(ctx)
	if err != nil {
		sendHubError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Metrics handles GET /metrics - Prometheus text exposition.
func (h *CanvasHandler) Metrics(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	stats, err := h.canvas.Stats(ctx)
	if err != nil {
		sendHubError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := metrics.WriteText(&buf, metrics.Families(stats, h.dropped())); err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.Data(http.StatusOK, metrics.ContentType, buf.Bytes())
}

func (h *CanvasHandler) snapshot(c *gin.Context) ([]model.Stroke, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	strokes, err := h.canvas.Snapshot(ctx)
	if err != nil {
		sendHubError(c, err)
		return nil, false
	}
	return strokes, true
}

// RegisterRoutes registers the canvas routes on a Gin router group.
func (h *CanvasHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/canvas", h.Get)
	rg.GET("/canvas.pdf", h.PDF)
	rg.GET("/stats", h.Stats)
}

// RegisterMetricsRoute registers /metrics at the root of r.
func (h *CanvasHandler) RegisterMetricsRoute(r gin.IRoutes) {
	r.GET("/metrics", h.Metrics)
}
