package template

import (
	"context"
	"testing"

	"github.com/vhvplatform/go-delivery-service/internal/domain"
)

type stubStore struct {
	templates map[string]*domain.Template
}

func (s *stubStore) FindByName(_ context.Context, name string) (*domain.Template, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return nil, domain.TemplateNotFoundError(name)
	}
	return tmpl, nil
}

// TestApply tests the placeholder substitution rules
func TestApply(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		variables map[string]string
		expected  string
	}{
		{
			name:      "single variable",
			text:      "Hello {{name}}!",
			variables: map[string]string{"name": "John"},
			expected:  "Hello John!",
		},
		{
			name:      "multiple variables",
			text:      "Booking {{booking_id}} confirmed for {{date}}",
			variables: map[string]string{"booking_id": "B-42", "date": "2026-09-01"},
			expected:  "Booking B-42 confirmed for 2026-09-01",
		},
		{
			name:      "no variables",
			text:      "Hello World!",
			variables: map[string]string{},
			expected:  "Hello World!",
		},
		{
			name:      "unresolved placeholder becomes empty",
			text:      "Hello {{name}}, order {{order_id}} shipped",
			variables: map[string]string{"name": "Ann"},
			expected:  "Hello Ann, order  shipped",
		},
		{
			name:      "substitution is literal, not recursive",
			text:      "Value: {{a}}",
			variables: map[string]string{"a": "{{b}}", "b": "nope"},
			expected:  "Value: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Apply(tt.text, tt.variables)
			if result != tt.expected {
				t.Errorf("Apply() = %q, want %q", result, tt.expected)
			}
		})
	}
}

// TestRenderIdempotent verifies rendering the same template with the same
// variables twice yields byte-identical output
func TestRenderIdempotent(t *testing.T) {
	store := &stubStore{templates: map[string]*domain.Template{
		"booking-confirmed": {
			Name:          "booking-confirmed",
			TitleTemplate: "Booking {{booking_id}} confirmed",
			BodyTemplate:  "See you on {{date}}, {{name}}.",
			Variables:     []string{"booking_id", "date", "name"},
		},
	}}
	renderer := NewRenderer(store)

	vars := map[string]string{"booking_id": "B-7", "date": "tomorrow", "name": "Kim"}
	first, err := renderer.Render(context.Background(), "booking-confirmed", vars)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	second, err := renderer.Render(context.Background(), "booking-confirmed", vars)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if first.Title != second.Title || first.Body != second.Body {
		t.Errorf("Render() not idempotent: %+v vs %+v", first, second)
	}
	if first.Title != "Booking B-7 confirmed" {
		t.Errorf("Title = %q", first.Title)
	}
}

// TestRenderUnknownTemplate verifies the not-found error surfaces
func TestRenderUnknownTemplate(t *testing.T) {
	renderer := NewRenderer(&stubStore{templates: map[string]*domain.Template{}})

	_, err := renderer.Render(context.Background(), "nope", nil)
	if err == nil {
		t.Fatal("expected error for unknown template")
	}
}

// TestValidate reports declared variables absent from the input
func TestValidate(t *testing.T) {
	store := &stubStore{templates: map[string]*domain.Template{
		"payment-failed": {
			Name:          "payment-failed",
			TitleTemplate: "Payment failed",
			BodyTemplate:  "Order {{order_id}} payment of {{amount}} failed",
			Variables:     []string{"order_id", "amount"},
		},
	}}
	renderer := NewRenderer(store)

	missing, err := renderer.Validate(context.Background(), "payment-failed", map[string]string{"order_id": "O-1"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(missing) != 1 || missing[0] != "amount" {
		t.Errorf("Validate() missing = %v, want [amount]", missing)
	}

	missing, err = renderer.Validate(context.Background(), "payment-failed", map[string]string{"order_id": "O-1", "amount": "10"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("Validate() missing = %v, want none", missing)
	}
}

// BenchmarkApply benchmarks placeholder substitution
func BenchmarkApply(b *testing.B) {
	text := "Hello {{name}}, your booking {{booking_id}} at {{venue}} is confirmed for {{date}}."
	vars := map[string]string{
		"name":       "John Doe",
		"booking_id": "B-1234",
		"venue":      "Court 3",
		"date":       "2026-09-01",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Apply(text, vars)
	}
}
