package lineage

import (
	"strings"
	"time"

	"labelflow/internal/compare"
)

// BaseVersionID is the sentinel predecessor id carried by the first version in
// a subject's chain.
const BaseVersionID = "base"

// FieldValue is one transcribed field: the value itself plus reviewer notes.
type FieldValue struct {
	Value string `json:"value"`
	Notes string `json:"notes,omitempty"`
}

// GenerationInfo records the provenance of a version.
type GenerationInfo struct {
	CreatedBy     string              `json:"created_by"`
	CreatedAt     time.Time           `json:"created_at"`
	IsAIGenerated bool                `json:"is_ai_generated"`
	SchemaID      string              `json:"schema_id"`
	OldVersionID  string              `json:"old_version_id"`
	CreatedByType compare.CreatorType `json:"created_by_type"`
}

// CostData captures the resource spend of a single version.
type CostData struct {
	InputUnits  int64   `json:"input_units"`
	OutputUnits int64   `json:"output_units"`
	InputCost   float64 `json:"input_cost"`
	OutputCost  float64 `json:"output_cost"`
	Minutes     float64 `json:"minutes"`
}

// Add accumulates another version's spend into the receiver.
func (c *CostData) Add(other CostData) {
	c.InputUnits += other.InputUnits
	c.OutputUnits += other.OutputUnits
	c.InputCost += other.InputCost
	c.OutputCost += other.OutputCost
	c.Minutes += other.Minutes
}

// TotalCost returns the monetary cost of this entry.
func (c CostData) TotalCost() float64 {
	return c.InputCost + c.OutputCost
}

// Costs pairs a version's own spend with the cumulative totals over the whole
// chain up to and including it, so the head version is always self-describing
// of total lineage cost.
type Costs struct {
	Own     CostData `json:"own"`
	Overall CostData `json:"overall"`
}

// Version is one immutable snapshot in a subject's lineage.
type Version struct {
	ID          string                `json:"version_id"`
	Generation  GenerationInfo        `json:"generation_info"`
	Content     map[string]FieldValue `json:"content"`
	Costs       Costs                 `json:"costs"`
	Comparisons []*compare.Result     `json:"comparisons,omitempty"`
}

// FieldValues flattens the content to plain field->value pairs.
func (v *Version) FieldValues() map[string]string {
	values := make(map[string]string, len(v.Content))
	for name, fv := range v.Content {
		values[name] = fv.Value
	}
	return values
}

// CompareInput adapts the version for the comparison engine.
func (v *Version) CompareInput() compare.Input {
	return compare.Input{
		VersionID: v.ID,
		CreatedBy: v.Generation.CreatedByType,
		Fields:    v.FieldValues(),
	}
}

// IsBase reports whether this version opened the chain.
func (v *Version) IsBase() bool {
	return v.Generation.OldVersionID == BaseVersionID
}

// Record is the persisted lineage for one subject: the image reference, the
// established field set, and the ordered version chain, oldest first.
type Record struct {
	ImageRef string     `json:"image_ref"`
	SchemaID string     `json:"schema_id"`
	Fields   []string   `json:"fields"`
	Versions []*Version `json:"versions"`
}

// Head returns the most recent version, or nil for an empty record.
func (r *Record) Head() *Version {
	if r == nil || len(r.Versions) == 0 {
		return nil
	}
	return r.Versions[len(r.Versions)-1]
}

// FindVersion resolves a version id within the record.
func (r *Record) FindVersion(id string) *Version {
	if r == nil {
		return nil
	}
	for _, v := range r.Versions {
		if v.ID == id {
			return v
		}
	}
	return nil
}

func versionIDFor(creator string, createdAt time.Time) string {
	token := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(creator))
	if token == "" {
		token = "unknown"
	}
	return token + "-" + createdAt.UTC().Format("20060102T150405.000000000Z")
}

func creatorType(isAIGenerated bool) compare.CreatorType {
	if isAIGenerated {
		return compare.CreatorModel
	}
	return compare.CreatorUser
}
