// Package provider contains the transcription backends used to generate
// label versions. The only production implementation is an OpenAI-compatible
// vision chat client; the Adapter interface keeps the processing loop
// testable without network access.
package provider
