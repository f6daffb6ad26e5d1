// Package batch persists the transcription queue in SQLite and drives it
// through a pausable sequential state machine. Items move through
// to_process, in_process, and then processed or failed; a failure pauses
// the run so an operator can inspect it before resuming.
package batch
