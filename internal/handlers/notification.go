package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/devtrackhq/devtrack/internal/constants"
	"github.com/devtrackhq/devtrack/internal/dto"
	apierrors "github.com/devtrackhq/devtrack/internal/errors"
	"github.com/devtrackhq/devtrack/internal/middleware"
	"github.com/devtrackhq/devtrack/internal/services"
)

// NotificationHandler coordinates notification-related HTTP handlers.
type NotificationHandler struct {
	notificationService *services.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// List returns the current user's most recent notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	notifications, err := h.notificationService.ListForUser(userID, constants.NotificationListLimit)
	if err != nil {
		apierrors.InternalError(c, "Failed to list notifications")
		return
	}

	c.JSON(http.StatusOK, dto.ToNotificationDTOs(notifications))
}

// MarkRead marks one of the current user's notifications as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notificationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid notification ID")
		return
	}

	userID, _ := middleware.GetUserID(c)
	if err := h.notificationService.MarkRead(notificationID, userID); err != nil {
		apierrors.InternalError(c, "Failed to mark notification read")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notification marked read"})
}

// MarkAllRead marks every notification of the current user as read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	if err := h.notificationService.MarkAllRead(userID); err != nil {
		apierrors.InternalError(c, "Failed to mark notifications read")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked read"})
}
