package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"labelflow/internal/batch"
	"labelflow/internal/config"
	"labelflow/internal/lineage"
	"labelflow/internal/logging"
	"labelflow/internal/provider"
	"labelflow/internal/schema"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) withStore(fn func(*config.Config, *batch.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := batch.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

func (c *commandContext) newManager(cfg *config.Config) (*lineage.Manager, *schema.FieldSchema, string, error) {
	prompt, err := os.ReadFile(cfg.Paths.PromptPath)
	if err != nil {
		return nil, nil, "", fmt.Errorf("read prompt %s: %w", cfg.Paths.PromptPath, err)
	}
	fieldSchema, err := schema.Parse(string(prompt))
	if err != nil {
		return nil, nil, "", err
	}
	store, err := lineage.NewStore(cfg.Paths.VersionsDir)
	if err != nil {
		return nil, nil, "", err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, "", err
	}
	manager, err := lineage.NewManager(store, fieldSchema, logger)
	if err != nil {
		return nil, nil, "", err
	}
	return manager, fieldSchema, string(prompt), nil
}

func (c *commandContext) adapters(cfg *config.Config) ([]provider.Adapter, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no providers configured; add a [[providers]] entry to %s", configHint(c.configFlag))
	}
	adapters := make([]provider.Adapter, 0, len(cfg.Providers))
	for _, entry := range cfg.Providers {
		adapters = append(adapters, provider.NewClient(entry))
	}
	return adapters, nil
}

// cancelFilePath is the marker a separate "labelflow cancel" invocation
// writes to stop an in-flight run between items.
func cancelFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "cancel.requested")
}

func configHint(flag *string) string {
	if flag != nil && strings.TrimSpace(*flag) != "" {
		return strings.TrimSpace(*flag)
	}
	if path, err := config.DefaultConfigPath(); err == nil {
		return path
	}
	return "the configuration file"
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
