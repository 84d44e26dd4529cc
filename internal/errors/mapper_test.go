package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	mapper := NewDefaultErrorMapper()

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"slack missing channel", errors.New("channel_not_found"), ErrNotFound},
		{"jira 404", errors.New("issue does not exist"), ErrNotFound},
		{"rate limit", errors.New("too many requests"), ErrTransient},
		{"timeout", errors.New("request timeout while waiting"), ErrTransient},
		{"connection", errors.New("connection refused"), ErrTransient},
		{"bad request", errors.New("bad request body"), ErrInvalidInput},
		{"unknown", errors.New("something odd"), ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapper.MapError(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Errorf("MapError(nil) = %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("MapError(%v) = %v, want category %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMapError_ContextErrors(t *testing.T) {
	mapper := NewDefaultErrorMapper()

	if got := mapper.MapError(context.Canceled); !errors.Is(got, context.Canceled) {
		t.Errorf("cancellation should propagate as-is, got %v", got)
	}
	if got := mapper.MapError(context.DeadlineExceeded); !errors.Is(got, ErrTransient) {
		t.Errorf("deadline should map to transient, got %v", got)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(Transient("jira 502")) {
		t.Error("transient errors are retryable")
	}
	if !IsRetryable(fmt.Errorf("wrapped: %w", ErrConflict)) {
		t.Error("conflicts are retryable")
	}
	if IsRetryable(NotFound("CAMP-1")) {
		t.Error("not-found is definitive, never retried")
	}
	if IsRetryable(context.Canceled) {
		t.Error("cancellation is not retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
}

func TestCategory(t *testing.T) {
	mapper := NewDefaultErrorMapper()

	if got := mapper.Category(NotFound("CAMP-1")); got != "ErrNotFound" {
		t.Errorf("Category = %q", got)
	}
	if got := mapper.Category(errors.New("opaque")); got != "Unknown" {
		t.Errorf("Category = %q", got)
	}
	if got := mapper.Category(nil); got != "" {
		t.Errorf("Category(nil) = %q", got)
	}
}

func TestIsCategory(t *testing.T) {
	err := Wrap(Transient("jira down"), "sweep failed")
	if !IsCategory(err, ErrTransient) {
		t.Error("wrapping should preserve the category")
	}
	if IsCategory(nil, ErrTransient) {
		t.Error("nil never matches a category")
	}
}
