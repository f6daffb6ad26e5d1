package preflight_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"labelflow/internal/config"
	"labelflow/internal/preflight"
	"labelflow/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryAccess("Versions directory", dir)
	if !result.Passed {
		t.Fatalf("expected pass for %s: %s", dir, result.Detail)
	}

	result = preflight.CheckDirectoryAccess("Versions directory", filepath.Join(dir, "missing"))
	if result.Passed {
		t.Fatal("expected failure for missing directory")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	result = preflight.CheckDirectoryAccess("Versions directory", file)
	if result.Passed || !strings.Contains(result.Detail, "not a directory") {
		t.Fatalf("unexpected result for file path: %+v", result)
	}
}

func TestCheckDiskSpace(t *testing.T) {
	result := preflight.CheckDiskSpace(t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass on temp volume: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "MiB free") {
		t.Fatalf("detail should report free space: %s", result.Detail)
	}
}

func TestCheckPromptSchema(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompt.txt")
	if err := os.WriteFile(promptPath, []byte(testsupport.SamplePrompt), 0o644); err != nil {
		t.Fatalf("write prompt: %v", err)
	}

	result := preflight.CheckPromptSchema(promptPath)
	if !result.Passed {
		t.Fatalf("expected pass: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "5 fields") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}

	if err := os.WriteFile(promptPath, []byte("no fields declared here\n"), 0o644); err != nil {
		t.Fatalf("write prompt: %v", err)
	}
	result = preflight.CheckPromptSchema(promptPath)
	if result.Passed {
		t.Fatal("expected failure for fieldless prompt")
	}
}

func TestCheckBatchDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	result := preflight.CheckBatchDatabase(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("expected pass: %s", result.Detail)
	}
}

func TestCheckProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{"content": `{"ok":true}`},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	result := preflight.CheckProvider(context.Background(), config.Provider{
		Name:    "gemini",
		Model:   "demo",
		APIKey:  "test",
		BaseURL: server.URL,
	})
	if !result.Passed {
		t.Fatalf("expected pass: %s", result.Detail)
	}

	result = preflight.CheckProvider(context.Background(), config.Provider{Name: "gemini", Model: "demo"})
	if result.Passed || result.Detail != "API key missing" {
		t.Fatalf("unexpected result without key: %+v", result)
	}
}

func TestRunAllReportsEveryCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	// Skip the network-bound provider check.
	cfg.Providers = nil

	results := preflight.RunAll(context.Background(), cfg)
	if len(results) != 7 {
		t.Fatalf("expected 7 results, got %d: %+v", len(results), results)
	}
	if !preflight.AllPassed(results) {
		t.Fatalf("expected all checks to pass: %+v", results)
	}
}
