package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-delivery-service/internal/domain"
	apperrors "github.com/vhvplatform/go-delivery-service/internal/shared/errors"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
)

// QueueReader is the operator-facing slice of the queue repository
type QueueReader interface {
	ListByStatus(ctx context.Context, status domain.QueueStatus, page, pageSize int) ([]*domain.QueuedNotification, int64, error)
	Retry(ctx context.Context, id string) error
}

// QueueHandler exposes the scheduling queue for operators
type QueueHandler struct {
	queue QueueReader
	log   *logger.Logger
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(queue QueueReader, log *logger.Logger) *QueueHandler {
	return &QueueHandler{
		queue: queue,
		log:   log,
	}
}

// ListQueue lists queue rows filtered by status
func (h *QueueHandler) ListQueue(c *gin.Context) {
	status := domain.QueueStatus(c.DefaultQuery("status", string(domain.QueueStatusPending)))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	rows, total, err := h.queue.ListByStatus(c.Request.Context(), status, page, pageSize)
	if err != nil {
		h.log.Error("Failed to list queue rows", "error", err, "status", status)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to list queue", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      rows,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// RetryQueued re-arms a terminally failed queue row for one more attempt
func (h *QueueHandler) RetryQueued(c *gin.Context) {
	id := c.Param("id")

	if err := h.queue.Retry(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrQueueExhausted) {
			c.JSON(http.StatusConflict, apperrors.NewConflictError("Queue row is not retryable", err))
			return
		}
		h.log.Error("Failed to retry queue row", "error", err, "id", id)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to retry queue row", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Queue row rescheduled"})
}
