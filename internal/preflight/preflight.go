package preflight

import (
	"context"

	"labelflow/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckConfig(cfg))
	results = append(results, CheckDirectoryAccess("Versions directory", cfg.Paths.VersionsDir))
	results = append(results, CheckDirectoryAccess("Images directory", cfg.Paths.ImagesDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDiskSpace(cfg.Paths.VersionsDir))
	results = append(results, CheckPromptSchema(cfg.Paths.PromptPath))
	results = append(results, CheckBatchDatabase(ctx, cfg))

	for _, entry := range cfg.Providers {
		results = append(results, CheckProvider(ctx, entry))
	}

	return results
}

// AllPassed reports whether every result in the set passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
