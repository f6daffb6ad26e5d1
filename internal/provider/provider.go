package provider

import (
	"context"

	"labelflow/internal/lineage"
)

// Request describes a single transcription job for one label image.
type Request struct {
	// ImagePath is the local path of the image to transcribe.
	ImagePath string
	// Prompt is the full transcription prompt, including the field list.
	Prompt string
}

// Result is the raw outcome of a transcription call. The caller is
// responsible for extracting field values from RawContent.
type Result struct {
	RawContent string
	Model      string
	Costs      lineage.CostData
}

// Adapter is implemented by transcription backends. A failed call returns
// an error; the caller decides how the failure is recorded.
type Adapter interface {
	// Name identifies the adapter and doubles as the version creator name.
	Name() string
	// ProcessImage transcribes a single image.
	ProcessImage(ctx context.Context, req Request) (*Result, error)
	// HealthCheck verifies the backend is reachable with the configured
	// credentials.
	HealthCheck(ctx context.Context) error
}
