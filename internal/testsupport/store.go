package testsupport

import (
	"context"
	"testing"

	"labelflow/internal/batch"
	"labelflow/internal/config"
	"labelflow/internal/lineage"
	"labelflow/internal/logging"
	"labelflow/internal/schema"
)

// MustOpenStore opens a batch.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *batch.Store {
	t.Helper()

	store, err := batch.Open(cfg)
	if err != nil {
		t.Fatalf("open batch store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close batch store: %v", err)
		}
	})
	return store
}

// MustNewManager builds a lineage.Manager over the config's versions dir
// using the schema parsed from its prompt file.
func MustNewManager(t testing.TB, cfg *config.Config) *lineage.Manager {
	t.Helper()

	store, err := lineage.NewStore(cfg.Paths.VersionsDir)
	if err != nil {
		t.Fatalf("open lineage store: %v", err)
	}
	fieldSchema := MustParseSchema(t, cfg)
	manager, err := lineage.NewManager(store, fieldSchema, logging.NewNop())
	if err != nil {
		t.Fatalf("new lineage manager: %v", err)
	}
	return manager
}

// MustParseSchema parses the field schema from the config's prompt file.
func MustParseSchema(t testing.TB, cfg *config.Config) *schema.FieldSchema {
	t.Helper()

	prompt := MustReadPrompt(t, cfg)
	fieldSchema, err := schema.Parse(prompt)
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	return fieldSchema
}

// AddItems enqueues the provided image paths and returns the created items.
func AddItems(t testing.TB, store *batch.Store, paths ...string) []*batch.Item {
	t.Helper()

	items := make([]*batch.Item, 0, len(paths))
	for _, path := range paths {
		item, err := store.Add(context.Background(), path)
		if err != nil {
			t.Fatalf("add %s: %v", path, err)
		}
		items = append(items, item)
	}
	return items
}
