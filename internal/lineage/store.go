package lineage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"labelflow/internal/services"
)

const lockRetryDelay = 50 * time.Millisecond

// Store persists one lineage file per subject under the versions directory.
// Every mutation rewrites the whole file atomically; a file lock serializes
// writers so only one process owns a subject at a time.
type Store struct {
	dir string
}

// NewStore opens (and creates if needed) the versions directory.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "lineage", "store", "versions directory not set", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "lineage", "store", "create versions directory", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the versions directory backing the store.
func (s *Store) Dir() string { return s.dir }

// SanitizeRef turns an image reference into a filesystem-legal file token:
// path separators and colons become underscores and a trailing image
// extension is stripped.
func SanitizeRef(ref string) string {
	token := strings.TrimSpace(ref)
	token = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		default:
			return r
		}
	}, token)
	ext := strings.ToLower(filepath.Ext(token))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".tif", ".tiff", ".gif", ".bmp", ".webp":
		token = strings.TrimSuffix(token, token[len(token)-len(ext):])
	}
	return token
}

func (s *Store) recordPath(ref string) string {
	return filepath.Join(s.dir, SanitizeRef(ref)+".json")
}

func (s *Store) lockPath(ref string) string {
	return filepath.Join(s.dir, SanitizeRef(ref)+".lock")
}

// Lock acquires the subject's file lock, blocking (with retries) until it is
// held or the context expires. The returned release function must be called.
func (s *Store) Lock(ctx context.Context, ref string) (func(), error) {
	lock := flock.New(s.lockPath(ref))
	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "lineage", "lock", ref, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrExternalTool, "lineage", "lock", ref+": not acquired", nil)
	}
	return func() { _ = lock.Unlock() }, nil
}

// Load reads a subject's record. A missing file yields an empty record rather
// than an error; the subject simply has no versions yet.
func (s *Store) Load(ctx context.Context, ref string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.recordPath(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Record{ImageRef: ref}, nil
		}
		return nil, services.Wrap(services.ErrExternalTool, "lineage", "load", ref, err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "lineage", "load", fmt.Sprintf("%s: corrupt record", ref), err)
	}
	if record.ImageRef == "" {
		record.ImageRef = ref
	}
	return &record, nil
}

// Save rewrites a subject's record wholesale: serialize to a temp file in the
// same directory, then rename over the destination.
func (s *Store) Save(ctx context.Context, record *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record == nil || strings.TrimSpace(record.ImageRef) == "" {
		return services.Wrap(services.ErrValidation, "lineage", "save", "record has no image reference", nil)
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "lineage", "save", record.ImageRef, err)
	}
	target := s.recordPath(record.ImageRef)
	tmp, err := os.CreateTemp(s.dir, SanitizeRef(record.ImageRef)+".*.tmp")
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "lineage", "save", record.ImageRef, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return services.Wrap(services.ErrExternalTool, "lineage", "save", record.ImageRef, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return services.Wrap(services.ErrExternalTool, "lineage", "save", record.ImageRef, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return services.Wrap(services.ErrExternalTool, "lineage", "save", record.ImageRef, err)
	}
	return nil
}

// Delete removes a subject's persisted record entirely. The lock file stays
// behind: another process may still hold it, and removing it would let a new
// locker create a second file both sides then "hold".
func (s *Store) Delete(ref string) error {
	err := os.Remove(s.recordPath(ref))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrExternalTool, "lineage", "delete", ref, err)
	}
	return nil
}

// List returns the subject image references with persisted records, sorted by
// file token.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "lineage", "list", s.dir, err)
	}
	var refs []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil || record.ImageRef == "" {
			continue
		}
		refs = append(refs, record.ImageRef)
	}
	sort.Strings(refs)
	return refs, nil
}
