// Package main hosts the labelflow CLI entrypoint and command graph.
//
// The Cobra-based command tree covers batch queue maintenance, running the
// transcription state machine, lineage inspection, preflight checks, and
// configuration scaffolding. It centralizes configuration resolution and
// store construction so subcommands can focus on user experience instead of
// wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
