// Package lineage owns the append-only version history of transcribed
// subjects.
//
// Each subject (one specimen-label image) maps to a single persisted record
// holding its ordered version chain. Versions are immutable once stored; a
// new version either extends the chain or, when the creator matches the
// current head's creator, replaces the head in place so the chain holds one
// entry per distinct author transition. Every create re-runs the comparison
// against the predecessor and recomputes cumulative cost totals so the head
// version always describes the whole lineage's spend.
//
// Records live one file per subject under the versions directory and are
// rewritten wholesale on every mutation, guarded by a file lock. Concurrent
// writers to the same subject must be serialized by the caller; the lock
// makes violations fail loudly instead of corrupting the record.
package lineage
