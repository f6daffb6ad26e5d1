package main

import (
	"os"
	"testing"

	"labelflow/internal/testsupport"
)

func TestPreflightCommand(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithProviders())

	out, _, err := runCLI(t, []string{"preflight"}, env.configPath)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	requireContains(t, out, "[OK]")
	requireContains(t, out, "Prompt schema")
	requireContains(t, out, "Batch database")
}

func TestPreflightCommandReportsFailure(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithProviders())

	if err := os.Remove(env.cfg.Paths.PromptPath); err != nil {
		t.Fatalf("remove prompt: %v", err)
	}

	out, _, err := runCLI(t, []string{"preflight"}, env.configPath)
	if err == nil {
		t.Fatal("expected preflight to fail without a prompt file")
	}
	requireContains(t, out, "[FAIL]")
}
