package handlers

import (
	"github.com/gin-gonic/gin"

	apierrors "github.com/devtrackhq/devtrack/internal/errors"
	"github.com/devtrackhq/devtrack/internal/middleware"
	"github.com/devtrackhq/devtrack/internal/realtime"
)

// WSHandler upgrades authenticated requests to channel subscriptions.
type WSHandler struct {
	hub *realtime.Hub
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(hub *realtime.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Serve upgrades the connection and hands it to the hub. The client is
// automatically subscribed to its own user channel and may join project
// channels it is authorized for.
func (h *WSHandler) Serve(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	h.hub.Serve(c.Writer, c.Request, userID)
}
