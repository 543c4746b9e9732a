// Package handlers provides HTTP API request handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/shared-sketch/backend/internal/hub"
	"github.com/shared-sketch/backend/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler upgrades drawing clients and bridges them to the hub.
type WebSocketHandler struct {
	ctx    context.Context
	hub    *hub.Hub
	config session.Config
}

// NewWebSocketHandler creates a new WebSocketHandler. Sessions run until ctx
// is cancelled or their connection ends.
func NewWebSocketHandler(ctx context.Context, h *hub.Hub, config session.Config) *WebSocketHandler {
	return &WebSocketHandler{
		ctx:    ctx,
		hub:    h,
		config: config,
	}
}

// Connect handles GET /ws - runs a drawing session over a WebSocket.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	select {
	case <-h.hub.Done():
		sendError(c, http.StatusServiceUnavailable, "HUB_UNAVAILABLE", "Hub is not running")
		return
	default:
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		log.WithError(err).WithField("remote", c.Request.RemoteAddr).Warn("websocket upgrade failed")
		return
	}

	id := h.hub.NewClientID(c.Request.RemoteAddr)
	session.New(id, conn, h.hub, h.config).Serve(h.ctx)
}

// RegisterRoutes registers the WebSocket route on a Gin router.
func (h *WebSocketHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws", h.Connect)
}
