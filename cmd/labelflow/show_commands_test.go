package main

import (
	"context"
	"testing"

	"labelflow/internal/lineage"
	"labelflow/internal/testsupport"
)

func seedLineage(t *testing.T, env *cliTestEnv, ref string) {
	t.Helper()

	manager := testsupport.MustNewManager(t, env.cfg)
	content := map[string]string{
		"country":   "Australia",
		"locality":  "Cape York, 12km N of Coen",
		"collector": "J. Smith",
		"date":      "12.iv.1987",
		"habitat":   "open eucalypt woodland",
	}

	if _, err := manager.CreateVersion(context.Background(), ref, lineage.CreateParams{
		Creator:       "gemini",
		Content:       content,
		IsAIGenerated: true,
		Costs:         lineage.CostData{InputUnits: 1000, OutputUnits: 120, InputCost: 0.002, OutputCost: 0.001},
	}); err != nil {
		t.Fatalf("seed gemini version: %v", err)
	}
	if _, err := manager.CreateVersion(context.Background(), ref, lineage.CreateParams{
		Creator:       "claude",
		Content:       content,
		IsAIGenerated: true,
		Costs:         lineage.CostData{InputUnits: 900, OutputUnits: 110, InputCost: 0.003, OutputCost: 0.001},
	}); err != nil {
		t.Fatalf("seed claude version: %v", err)
	}
}

func TestShowCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	seedLineage(t, env, "scan-001")

	out, _, err := runCLI(t, []string{"show", "scan-001"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Creator:  claude (model)")
	requireContains(t, out, "Australia")
	requireContains(t, out, "open eucalypt woodland")
	requireContains(t, out, "$0.0040")
}

func TestShowCommandMissingLineage(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"show", "never-transcribed"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown image")
	}
}

func TestHistoryCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	seedLineage(t, env, "scan-001")

	out, _, err := runCLI(t, []string{"history", "scan-001"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "gemini")
	requireContains(t, out, "claude")
	requireContains(t, out, "1.00")
}

func TestValidateCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	seedLineage(t, env, "scan-001")

	out, _, err := runCLI(t, []string{"validate", "scan-001"}, env.configPath)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	requireContains(t, out, "country")
	requireContains(t, out, "two models agree")

	out, _, err = runCLI(t, []string{"validate", "scan-001", "habitat"}, env.configPath)
	if err != nil {
		t.Fatalf("validate habitat: %v", err)
	}
	requireContains(t, out, "habitat")

	_, _, err = runCLI(t, []string{"validate", "scan-001", "elevation"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}
