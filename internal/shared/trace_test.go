package shared

import (
	"context"
	"testing"
)

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	// Default placeholder.
	if got := TraceID(ctx); got != "-" {
		t.Fatalf("expected -, got %q", got)
	}

	ctx = WithTraceID(ctx, "trace-1")
	if got := TraceID(ctx); got != "trace-1" {
		t.Fatalf("expected trace-1, got %q", got)
	}

	// Overwrite.
	ctx = WithTraceID(ctx, "trace-2")
	if got := TraceID(ctx); got != "trace-2" {
		t.Fatalf("expected trace-2, got %q", got)
	}
}

func TestTaskID_DefaultEmpty(t *testing.T) {
	ctx := context.Background()
	if got := TaskID(ctx); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	ctx = WithTaskID(ctx, "t-42")
	if got := TaskID(ctx); got != "t-42" {
		t.Fatalf("expected t-42, got %q", got)
	}
}

func TestOrganizationID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := OrganizationID(ctx); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	ctx = WithOrganizationID(ctx, "org-7")
	if got := OrganizationID(ctx); got != "org-7" {
		t.Fatalf("expected org-7, got %q", got)
	}
}

func TestNewTraceID_Unique(t *testing.T) {
	a, b := NewTraceID(), NewTraceID()
	if a == "" || a == b {
		t.Fatalf("expected distinct non-empty ids, got %q and %q", a, b)
	}
}
