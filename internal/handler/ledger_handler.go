package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-delivery-service/internal/domain"
	apperrors "github.com/vhvplatform/go-delivery-service/internal/shared/errors"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
)

// LedgerReader is the read side of the delivery ledger
type LedgerReader interface {
	ListAttempts(ctx context.Context, notificationID string) ([]*domain.DeliveryAttempt, error)
	ListStatuses(ctx context.Context, notificationID string) ([]*domain.DeliveryStatus, error)
	ChannelCounts(ctx context.Context) (map[domain.Channel]domain.ChannelStats, error)
}

// StatsSource aggregates notification and queue counters
type StatsSource interface {
	CountByStatus(ctx context.Context) (map[domain.NotificationStatus]int64, int64, error)
	CountByType(ctx context.Context) (map[domain.EventType]int64, error)
}

// QueueDepthSource reports the number of not-yet-claimed queue rows
type QueueDepthSource interface {
	CountPending(ctx context.Context) (int64, error)
}

// LedgerHandler serves the delivery ledger and aggregate statistics
type LedgerHandler struct {
	ledger LedgerReader
	stats  StatsSource
	queue  QueueDepthSource
	log    *logger.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(ledger LedgerReader, stats StatsSource, queue QueueDepthSource, log *logger.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger: ledger,
		stats:  stats,
		queue:  queue,
		log:    log,
	}
}

// ListAttempts returns the append-only attempt history for a notification
func (h *LedgerHandler) ListAttempts(c *gin.Context) {
	id := c.Param("id")

	attempts, err := h.ledger.ListAttempts(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to list delivery attempts", "error", err, "id", id)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to list delivery attempts", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  attempts,
		"total": len(attempts),
	})
}

// ListStatuses returns the latest per-channel delivery status rows
func (h *LedgerHandler) ListStatuses(c *gin.Context) {
	id := c.Param("id")

	statuses, err := h.ledger.ListStatuses(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to list delivery statuses", "error", err, "id", id)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to list delivery statuses", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  statuses,
		"total": len(statuses),
	})
}

// GetStats returns aggregate delivery statistics
func (h *LedgerHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	byStatus, total, err := h.stats.CountByStatus(ctx)
	if err != nil {
		h.log.Error("Failed to count notifications by status", "error", err)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to compute statistics", err))
		return
	}

	byType, err := h.stats.CountByType(ctx)
	if err != nil {
		h.log.Error("Failed to count notifications by type", "error", err)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to compute statistics", err))
		return
	}

	byChannel, err := h.ledger.ChannelCounts(ctx)
	if err != nil {
		h.log.Error("Failed to count delivery outcomes by channel", "error", err)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to compute statistics", err))
		return
	}

	depth, err := h.queue.CountPending(ctx)
	if err != nil {
		h.log.Error("Failed to count pending queue rows", "error", err)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to compute statistics", err))
		return
	}

	c.JSON(http.StatusOK, &domain.DeliveryStats{
		Total:      total,
		ByStatus:   byStatus,
		ByType:     byType,
		ByChannel:  byChannel,
		QueueDepth: depth,
	})
}
