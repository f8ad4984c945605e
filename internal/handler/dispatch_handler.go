package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-delivery-service/internal/dispatch"
	"github.com/vhvplatform/go-delivery-service/internal/domain"
	apperrors "github.com/vhvplatform/go-delivery-service/internal/shared/errors"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
)

// NotificationReader is the read side of the notification store
type NotificationReader interface {
	FindByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, req *domain.ListNotificationsRequest) ([]*domain.Notification, int64, error)
}

// DispatchHandler handles HTTP requests for notification dispatch and history
type DispatchHandler struct {
	orchestrator  *dispatch.Orchestrator
	notifications NotificationReader
	log           *logger.Logger
}

// NewDispatchHandler creates a new dispatch handler
func NewDispatchHandler(orchestrator *dispatch.Orchestrator, notifications NotificationReader, log *logger.Logger) *DispatchHandler {
	return &DispatchHandler{
		orchestrator:  orchestrator,
		notifications: notifications,
		log:           log,
	}
}

// Dispatch accepts a dispatch request and delivers or schedules it
func (h *DispatchHandler) Dispatch(c *gin.Context) {
	var req domain.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("Invalid request", err))
		return
	}

	notification, err := h.orchestrator.Dispatch(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTemplateNotFound):
			c.JSON(http.StatusNotFound, apperrors.NewNotFoundError("Template not found", err))
		case errors.Is(err, domain.ErrMissingVariable):
			c.JSON(http.StatusBadRequest, apperrors.NewValidationError("Missing template variables", err))
		default:
			h.log.Error("Failed to dispatch notification", "error", err, "recipient_id", req.RecipientID)
			c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to dispatch notification", err))
		}
		return
	}

	c.JSON(http.StatusCreated, notification)
}

// GetNotification retrieves a single notification by ID
func (h *DispatchHandler) GetNotification(c *gin.Context) {
	id := c.Param("id")

	notification, err := h.notifications.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, apperrors.NewNotFoundError("Notification not found", err))
			return
		}
		h.log.Error("Failed to get notification", "error", err, "id", id)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to get notification", err))
		return
	}

	c.JSON(http.StatusOK, notification)
}

// ListNotifications retrieves notification history with filters
func (h *DispatchHandler) ListNotifications(c *gin.Context) {
	var req domain.ListNotificationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("Invalid request", err))
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	notifications, total, err := h.notifications.List(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to list notifications", "error", err)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to list notifications", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      notifications,
		"total":     total,
		"page":      req.Page,
		"page_size": req.PageSize,
	})
}

// CancelNotification cancels a pending or scheduled notification
func (h *DispatchHandler) CancelNotification(c *gin.Context) {
	id := c.Param("id")

	if err := h.orchestrator.Cancel(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotificationNotFound):
			c.JSON(http.StatusNotFound, apperrors.NewNotFoundError("Notification not found", err))
		case errors.Is(err, domain.ErrNotCancellable):
			c.JSON(http.StatusConflict, apperrors.NewConflictError("Notification is no longer cancellable", err))
		default:
			h.log.Error("Failed to cancel notification", "error", err, "id", id)
			c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to cancel notification", err))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notification cancelled"})
}
