package template

import (
	"context"
	"regexp"
	"strings"

	"github.com/vhvplatform/go-delivery-service/internal/domain"
)

// placeholderPattern matches {{name}} placeholders left unresolved after
// substitution
var placeholderPattern = regexp.MustCompile(`\{\{[a-zA-Z0-9_]+\}\}`)

// Store looks up templates by name
type Store interface {
	FindByName(ctx context.Context, name string) (*domain.Template, error)
}

// Rendered is the output of applying variables to a template
type Rendered struct {
	Title string
	Body  string
}

// Renderer renders named templates with literal placeholder substitution
type Renderer struct {
	store Store
}

// NewRenderer creates a new renderer
func NewRenderer(store Store) *Renderer {
	return &Renderer{store: store}
}

// Render resolves a template by name and substitutes variables into its
// title and body. Unresolved placeholders become empty text, not an error;
// callers that want missing variables to be fatal run Validate first.
func (r *Renderer) Render(ctx context.Context, name string, variables map[string]string) (*Rendered, error) {
	tmpl, err := r.store.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}

	return &Rendered{
		Title: Apply(tmpl.TitleTemplate, variables),
		Body:  Apply(tmpl.BodyTemplate, variables),
	}, nil
}

// Validate reports every variable the template declares that is absent from
// the input map
func (r *Renderer) Validate(ctx context.Context, name string, variables map[string]string) ([]string, error) {
	tmpl, err := r.store.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}

	return Missing(tmpl, variables), nil
}

// Apply performs literal text replacement of {{name}} placeholders.
// Placeholders without a matching variable are removed.
func Apply(text string, variables map[string]string) string {
	for name, value := range variables {
		text = strings.ReplaceAll(text, "{{"+name+"}}", value)
	}
	return placeholderPattern.ReplaceAllString(text, "")
}

// Missing returns the declared variables absent from the input map
func Missing(tmpl *domain.Template, variables map[string]string) []string {
	var missing []string
	for _, name := range tmpl.Variables {
		if _, ok := variables[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
