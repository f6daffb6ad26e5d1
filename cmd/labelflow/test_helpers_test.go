package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"labelflow/internal/batch"
	"labelflow/internal/config"
	"labelflow/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *batch.Store
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()

	var content strings.Builder
	fmt.Fprintf(&content, "[paths]\nversions_dir = %q\nimages_dir = %q\nlog_dir = %q\nprompt_path = %q\n\n",
		cfg.Paths.VersionsDir, cfg.Paths.ImagesDir, cfg.Paths.LogDir, cfg.Paths.PromptPath)
	fmt.Fprintf(&content, "[logging]\nformat = %q\nlevel = %q\n\n", cfg.Logging.Format, cfg.Logging.Level)
	fmt.Fprintf(&content, "[batch]\nstale_reset_minutes = %d\n\n", cfg.Batch.StaleResetMinutes)
	for _, entry := range cfg.Providers {
		fmt.Fprintf(&content, "[[providers]]\nname = %q\nmodel = %q\napi_key = %q\n",
			entry.Name, entry.Model, entry.APIKey)
		if entry.BaseURL != "" {
			fmt.Fprintf(&content, "base_url = %q\n", entry.BaseURL)
		}
		content.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(content.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
