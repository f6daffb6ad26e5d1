package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProviders()
	c.normalizeBatch()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.VersionsDir) == "" {
		c.Paths.VersionsDir = defaultVersionsDir
	}
	if c.Paths.VersionsDir, err = expandPath(c.Paths.VersionsDir); err != nil {
		return fmt.Errorf("paths.versions_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ImagesDir) == "" {
		c.Paths.ImagesDir = defaultImagesDir
	}
	if c.Paths.ImagesDir, err = expandPath(c.Paths.ImagesDir); err != nil {
		return fmt.Errorf("paths.images_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.PromptPath) == "" {
		c.Paths.PromptPath = defaultPromptPath
	}
	if c.Paths.PromptPath, err = expandPath(c.Paths.PromptPath); err != nil {
		return fmt.Errorf("paths.prompt_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeProviders() {
	for i := range c.Providers {
		p := &c.Providers[i]
		p.Name = strings.TrimSpace(p.Name)
		p.Model = strings.TrimSpace(p.Model)
		p.APIKey = strings.TrimSpace(p.APIKey)
		p.BaseURL = strings.TrimSpace(p.BaseURL)
		if p.APIKey == "" {
			envKey := "LABELFLOW_API_KEY_" + strings.ToUpper(strings.ReplaceAll(p.Name, "-", "_"))
			if value, ok := os.LookupEnv(envKey); ok {
				p.APIKey = strings.TrimSpace(value)
			}
		}
		if p.BaseURL == "" {
			p.BaseURL = defaultProviderBaseURL
		}
		if p.TimeoutSeconds <= 0 {
			p.TimeoutSeconds = defaultProviderTimeout
		}
	}
}

func (c *Config) normalizeBatch() {
	if c.Batch.StaleResetMinutes <= 0 {
		c.Batch.StaleResetMinutes = defaultStaleResetMinutes
	}
	if c.Batch.ErrorRetryInterval <= 0 {
		c.Batch.ErrorRetryInterval = defaultErrorRetryInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
