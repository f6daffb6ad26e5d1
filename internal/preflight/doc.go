// Package preflight provides readiness checks for the directories,
// databases, and provider APIs a batch run depends on.
//
// These checks run in two contexts:
//   - The CLI "labelflow preflight" command prints every result so an
//     operator can fix the environment before queueing work.
//   - "labelflow run" executes them once up front and refuses to start when
//     any check fails, to avoid burning provider credit on a doomed batch.
package preflight
