// Package services defines shared utilities consumed by the batch machine,
// the lineage manager, and external provider integrations.
//
// Key responsibilities:
//   - Context helpers that stamp batch item IDs, subject references, provider
//     names, and correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (structural vs transient) consistent across components.
//
// Use these helpers when wiring new components so operational behaviour
// (error handling, observability) stays uniform across the system.
package services
