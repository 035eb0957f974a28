package services_test

import (
	"errors"
	"strings"
	"testing"

	"lossless/internal/queue"
	"lossless/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalService, "ingesting", "download", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"ingesting", "download", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "reporting", "render", "chart failed", errors.New("disk full"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker for nil input, got %v", err)
	}
}

func TestFailureStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want queue.Status
	}{
		{
			name: "validation goes to review",
			err:  services.Wrap(services.ErrValidation, "ingesting", "prepare", "invalid", nil),
			want: queue.StatusReview,
		},
		{
			name: "configuration goes to review",
			err:  services.Wrap(services.ErrConfiguration, "preprocessing", "recipe", "bad cutoff", nil),
			want: queue.StatusReview,
		},
		{
			name: "not found goes to review",
			err:  services.Wrap(services.ErrNotFound, "ingesting", "read", "missing file", nil),
			want: queue.StatusReview,
		},
		{
			name: "transient fails",
			err:  services.Wrap(services.ErrTransient, "preprocessing", "filter", "filter failed", errors.New("io")),
			want: queue.StatusFailed,
		},
		{
			name: "nil fails",
			err:  nil,
			want: queue.StatusFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.FailureStatus(tt.err); got != tt.want {
				t.Fatalf("FailureStatus = %s, want %s", got, tt.want)
			}
		})
	}
}
