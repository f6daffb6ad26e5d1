package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"labelflow/internal/config"
)

// MustReadPrompt reads the prompt file referenced by the config.
func MustReadPrompt(t testing.TB, cfg *config.Config) string {
	t.Helper()

	data, err := os.ReadFile(cfg.Paths.PromptPath)
	if err != nil {
		t.Fatalf("read prompt: %v", err)
	}
	return string(data)
}

// WriteImage creates a tiny placeholder image file under the config's
// images dir and returns its path.
func WriteImage(t testing.TB, cfg *config.Config, name string) string {
	t.Helper()

	path := filepath.Join(cfg.Paths.ImagesDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	// Minimal JPEG marker pair; enough for code that only reads bytes.
	if err := os.WriteFile(path, []byte{0xff, 0xd8, 0xff, 0xd9}, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}
