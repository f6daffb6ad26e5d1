package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.VersionsDir) == "" {
		return errors.New("paths.versions_dir must be set")
	}
	if strings.TrimSpace(c.Paths.PromptPath) == "" {
		return errors.New("paths.prompt_path must be set")
	}
	return nil
}

func (c *Config) validateProviders() error {
	seen := make(map[string]struct{}, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d].name must be set", i)
		}
		key := strings.ToLower(p.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("providers: duplicate name %q", p.Name)
		}
		seen[key] = struct{}{}
		if p.Model == "" {
			return fmt.Errorf("providers[%d].model must be set", i)
		}
		if p.InputCostPerMTok < 0 || p.OutputCostPerMTok < 0 {
			return fmt.Errorf("providers[%d]: token costs must not be negative", i)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
