// Package schema derives the authoritative field set for a subject from its
// transcription prompt and validates version content against it.
//
// The prompt declares one field per line as "fieldName: description". The
// resulting FieldSchema is fixed the first time a subject produces a version
// and every later version must supply exactly the same field names.
package schema
