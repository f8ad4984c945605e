package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-delivery-service/internal/domain"
	apperrors "github.com/vhvplatform/go-delivery-service/internal/shared/errors"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
)

// PreferencesStore is the slice of the preferences repository the handler needs
type PreferencesStore interface {
	GetByUserID(ctx context.Context, userID string) (*domain.NotificationPreferences, error)
	Upsert(ctx context.Context, prefs *domain.NotificationPreferences) error
	Delete(ctx context.Context, userID string) error
}

// PreferencesHandler handles HTTP requests for per-user delivery preferences
type PreferencesHandler struct {
	preferences PreferencesStore
	log         *logger.Logger
}

// NewPreferencesHandler creates a new preferences handler
func NewPreferencesHandler(preferences PreferencesStore, log *logger.Logger) *PreferencesHandler {
	return &PreferencesHandler{
		preferences: preferences,
		log:         log,
	}
}

// GetPreferences retrieves a user's preferences, defaults when unset
func (h *PreferencesHandler) GetPreferences(c *gin.Context) {
	userID := c.Param("user_id")

	prefs, err := h.preferences.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("Failed to get preferences", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to get preferences", err))
		return
	}

	c.JSON(http.StatusOK, prefs)
}

// UpdatePreferences applies partial changes to a user's preferences
func (h *PreferencesHandler) UpdatePreferences(c *gin.Context) {
	userID := c.Param("user_id")

	var req domain.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("Invalid request", err))
		return
	}

	prefs, err := h.preferences.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("Failed to load preferences", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to load preferences", err))
		return
	}

	applyPreferenceUpdate(prefs, &req)

	if err := h.preferences.Upsert(c.Request.Context(), prefs); err != nil {
		h.log.Error("Failed to save preferences", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to save preferences", err))
		return
	}

	c.JSON(http.StatusOK, prefs)
}

// DeletePreferences resets a user back to the default policy
func (h *PreferencesHandler) DeletePreferences(c *gin.Context) {
	userID := c.Param("user_id")

	if err := h.preferences.Delete(c.Request.Context(), userID); err != nil {
		h.log.Error("Failed to delete preferences", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to delete preferences", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Preferences reset to defaults"})
}

func applyPreferenceUpdate(prefs *domain.NotificationPreferences, req *domain.UpdatePreferencesRequest) {
	if req.EmailEnabled != nil {
		prefs.EmailEnabled = *req.EmailEnabled
	}
	if req.SMSEnabled != nil {
		prefs.SMSEnabled = *req.SMSEnabled
	}
	if req.PushEnabled != nil {
		prefs.PushEnabled = *req.PushEnabled
	}
	if req.WebhookEnabled != nil {
		prefs.WebhookEnabled = *req.WebhookEnabled
	}
	if req.InAppEnabled != nil {
		prefs.InAppEnabled = *req.InAppEnabled
	}
	if req.QuietHours != nil {
		prefs.QuietHours = *req.QuietHours
	}
	if req.TypeOverrides != nil {
		prefs.TypeOverrides = req.TypeOverrides
	}
}
