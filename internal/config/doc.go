// Package config loads, normalizes, and validates labelflow configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for provider
// API keys. The Config type centralizes every knob the CLI needs: the versions
// directory, the prompt schema file, the configured provider endpoints, and
// batch timing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
