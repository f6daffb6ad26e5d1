package compare

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"labelflow/internal/schema"
	"labelflow/internal/services"
	"labelflow/internal/textdist"
)

// CreatorType identifies the kind of author behind a version.
type CreatorType string

const (
	CreatorModel CreatorType = "model"
	CreatorUser  CreatorType = "user"
)

// Input is one side of a comparison: a version's identity, its author kind,
// and its field values.
type Input struct {
	VersionID string
	CreatedBy CreatorType
	Fields    map[string]string
}

// Result captures the per-field agreement between two versions of a subject.
//
// AlignmentRating is a strict exact-match ratio: a graded partial score never
// counts toward MatchCount, it only appears in PerField for diagnostic
// display.
type Result struct {
	ComparedTo      string             `json:"compared_to"`
	AlignmentRating float64            `json:"alignment_rating"`
	MatchCount      int                `json:"match_count"`
	FieldCount      int                `json:"field_count"`
	CreatedByTypes  [2]CreatorType     `json:"created_by_types"`
	PerField        map[string]float64 `json:"per_field"`
}

var foldCaser = cases.Fold()

// Compare scores the newer version against an older one. Both inputs must
// carry the same field name set; the result is tagged with the older
// version's id.
func Compare(older, newer Input) (*Result, error) {
	if err := checkFieldSets(older.Fields, newer.Fields); err != nil {
		return nil, err
	}

	result := &Result{
		ComparedTo:     older.VersionID,
		FieldCount:     len(older.Fields),
		CreatedByTypes: [2]CreatorType{older.CreatedBy, newer.CreatedBy},
		PerField:       make(map[string]float64, len(older.Fields)),
	}

	for name, oldValue := range older.Fields {
		score := fieldScore(oldValue, newer.Fields[name])
		result.PerField[name] = score
		if score >= 1 {
			result.MatchCount++
		}
	}
	if result.FieldCount > 0 {
		result.AlignmentRating = float64(result.MatchCount) / float64(result.FieldCount)
	}
	return result, nil
}

// CompareAll scores the head version against every earlier version, returning
// one result per earlier version in the order given.
func CompareAll(head Input, earlier []Input) ([]*Result, error) {
	results := make([]*Result, 0, len(earlier))
	for _, previous := range earlier {
		result, err := Compare(previous, head)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// fieldScore implements the per-field rule: 1 for a case/whitespace
// insensitive exact match, 0 when either side is the N/A sentinel without an
// exact match, otherwise graded partial credit from the edit distance.
func fieldScore(a, b string) float64 {
	if canonicalValue(a) == canonicalValue(b) {
		return 1
	}
	if schema.IsNotApplicable(a) || schema.IsNotApplicable(b) {
		return 0
	}
	return 1 - textdist.Distance(strings.TrimSpace(a), strings.TrimSpace(b))
}

func canonicalValue(value string) string {
	return foldCaser.String(strings.Join(strings.Fields(value), " "))
}

func checkFieldSets(a, b map[string]string) error {
	if len(a) != len(b) {
		return fieldSetError(len(a), len(b))
	}
	for name := range a {
		if _, ok := b[name]; !ok {
			return services.Wrap(services.ErrValidation, "compare", "fields", fmt.Sprintf("field %q missing from one side", name), nil)
		}
	}
	return nil
}

func fieldSetError(a, b int) error {
	return services.Wrap(services.ErrValidation, "compare", "fields", fmt.Sprintf("field counts differ (%d vs %d)", a, b), nil)
}
