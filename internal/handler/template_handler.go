package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-delivery-service/internal/domain"
	apperrors "github.com/vhvplatform/go-delivery-service/internal/shared/errors"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
	"github.com/vhvplatform/go-delivery-service/internal/template"
)

// TemplateWriter is the slice of the template repository the handler needs
type TemplateWriter interface {
	Upsert(ctx context.Context, template *domain.Template) error
	FindByName(ctx context.Context, name string) (*domain.Template, error)
	List(ctx context.Context) ([]*domain.Template, error)
	Deactivate(ctx context.Context, name string) error
}

// TemplateHandler handles HTTP requests for notification templates
type TemplateHandler struct {
	templates TemplateWriter
	renderer  *template.Renderer
	log       *logger.Logger
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(templates TemplateWriter, log *logger.Logger) *TemplateHandler {
	return &TemplateHandler{
		templates: templates,
		renderer:  template.NewRenderer(templates),
		log:       log,
	}
}

// UpsertTemplate creates a template or updates the one with the same name
func (h *TemplateHandler) UpsertTemplate(c *gin.Context) {
	var req domain.UpsertTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("Invalid request", err))
		return
	}

	for _, ch := range req.Channels {
		if !ch.IsValid() {
			c.JSON(http.StatusBadRequest, apperrors.NewValidationError("Unknown channel: "+string(ch), nil))
			return
		}
	}

	template := &domain.Template{
		Name:            req.Name,
		Type:            req.Type,
		TitleTemplate:   req.TitleTemplate,
		BodyTemplate:    req.BodyTemplate,
		Channels:        req.Channels,
		DefaultPriority: req.DefaultPriority,
		Variables:       req.Variables,
		IsActive:        true,
	}

	if err := h.templates.Upsert(c.Request.Context(), template); err != nil {
		h.log.Error("Failed to upsert template", "error", err, "name", req.Name)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to save template", err))
		return
	}

	c.JSON(http.StatusOK, template)
}

// GetTemplate retrieves an active template by name
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	name := c.Param("name")

	template, err := h.templates.FindByName(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, domain.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, apperrors.NewNotFoundError("Template not found", err))
			return
		}
		h.log.Error("Failed to get template", "error", err, "name", name)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to get template", err))
		return
	}

	c.JSON(http.StatusOK, template)
}

// ListTemplates retrieves all active templates
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	templates, err := h.templates.List(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to list templates", "error", err)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to list templates", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  templates,
		"total": len(templates),
	})
}

// RenderTemplate previews a template with the supplied variables without
// dispatching anything
func (h *TemplateHandler) RenderTemplate(c *gin.Context) {
	name := c.Param("name")

	var variables map[string]string
	if err := c.ShouldBindJSON(&variables); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("Invalid request", err))
		return
	}

	missing, err := h.renderer.Validate(c.Request.Context(), name, variables)
	if err != nil {
		if errors.Is(err, domain.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, apperrors.NewNotFoundError("Template not found", err))
			return
		}
		h.log.Error("Failed to validate template variables", "error", err, "name", name)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to render template", err))
		return
	}
	if len(missing) > 0 {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("Missing template variables", domain.MissingVariableError(missing)))
		return
	}

	rendered, err := h.renderer.Render(c.Request.Context(), name, variables)
	if err != nil {
		h.log.Error("Failed to render template", "error", err, "name", name)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to render template", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"title": rendered.Title,
		"body":  rendered.Body,
	})
}

// DeactivateTemplate soft-deletes a template by name
func (h *TemplateHandler) DeactivateTemplate(c *gin.Context) {
	name := c.Param("name")

	if err := h.templates.Deactivate(c.Request.Context(), name); err != nil {
		if errors.Is(err, domain.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, apperrors.NewNotFoundError("Template not found", err))
			return
		}
		h.log.Error("Failed to deactivate template", "error", err, "name", name)
		c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Failed to deactivate template", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Template deactivated"})
}
