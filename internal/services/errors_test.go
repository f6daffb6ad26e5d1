package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"labelflow/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrValidation, "lineage", "create", "field set mismatch", base)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected wrapped error to match marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to retain cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "lineage: create: field set mismatch") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected default detail, got %v", err)
	}
}

func TestIsStructural(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		expect bool
	}{
		{"validation", services.Wrap(services.ErrValidation, "schema", "parse", "", nil), true},
		{"not found", services.Wrap(services.ErrNotFound, "lineage", "head", "", nil), true},
		{"configuration", services.Wrap(services.ErrConfiguration, "config", "load", "", nil), true},
		{"transient", services.Wrap(services.ErrTransient, "provider", "call", "", nil), false},
		{"external", services.Wrap(services.ErrExternalTool, "provider", "call", "", nil), false},
	}
	for _, tc := range cases {
		if got := services.IsStructural(tc.err); got != tc.expect {
			t.Errorf("%s: IsStructural = %v, want %v", tc.name, got, tc.expect)
		}
	}
}

func TestContextRoundTrips(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithItemID(ctx, 42)
	ctx = services.WithSubject(ctx, "plates/IMG_0042.jpg")
	ctx = services.WithProvider(ctx, "gpt4v")
	ctx = services.WithRequestID(ctx, "req-1")

	if id, ok := services.ItemIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("item id = %d, %v", id, ok)
	}
	if ref, ok := services.SubjectFromContext(ctx); !ok || ref != "plates/IMG_0042.jpg" {
		t.Fatalf("subject = %q, %v", ref, ok)
	}
	if name, ok := services.ProviderFromContext(ctx); !ok || name != "gpt4v" {
		t.Fatalf("provider = %q, %v", name, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-1" {
		t.Fatalf("request id = %q, %v", rid, ok)
	}
}
