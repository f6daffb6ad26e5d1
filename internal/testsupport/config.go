package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"labelflow/internal/config"
)

// SamplePrompt is the transcription prompt used by test configurations. It
// declares five fields in the prompt schema format.
const SamplePrompt = `Transcribe the specimen label in the image. Respond with JSON using
exactly these keys:

country: country of collection
locality: collecting locality as written
collector: collector name(s)
date: collection date as written
habitat: habitat notes

Use "N/A" for information not present on the label.
`

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It writes a sample prompt file, defaults one provider entry, and applies
// any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.VersionsDir = filepath.Join(base, "versions")
	cfgVal.Paths.ImagesDir = filepath.Join(base, "images")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.PromptPath = filepath.Join(base, "prompt.txt")
	cfgVal.Providers = []config.Provider{
		{
			Name:   "gemini",
			Model:  "demo-model",
			APIKey: "test",
		},
	}

	if err := os.WriteFile(cfgVal.Paths.PromptPath, []byte(SamplePrompt), 0o644); err != nil {
		t.Fatalf("write prompt: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPrompt replaces the sample prompt file contents.
func WithPrompt(prompt string) ConfigOption {
	return func(b *configBuilder) {
		if err := os.WriteFile(b.cfg.Paths.PromptPath, []byte(prompt), 0o644); err != nil {
			b.t.Fatalf("write prompt: %v", err)
		}
	}
}

// WithProviders replaces the provider entries on the test config.
func WithProviders(providers ...config.Provider) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Providers = providers
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.VersionsDir)
}
