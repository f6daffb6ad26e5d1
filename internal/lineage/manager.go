package lineage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"labelflow/internal/compare"
	"labelflow/internal/logging"
	"labelflow/internal/schema"
	"labelflow/internal/services"
)

// ErrEmptyLineage marks reads against a subject that has no versions yet.
var ErrEmptyLineage = errors.New("empty lineage")

// Manager owns the ordered version history of transcribed subjects. It is a
// stateless service over the store: subjects are identified per call and all
// mutable state lives in the persisted records.
type Manager struct {
	store  *Store
	schema *schema.FieldSchema
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes the manager.
type Option func(*Manager)

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a lineage manager over the given store and prompt
// schema.
func NewManager(store *Store, fieldSchema *schema.FieldSchema, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "lineage", "manager", "store required", nil)
	}
	if fieldSchema == nil {
		return nil, services.Wrap(services.ErrConfiguration, "lineage", "manager", "field schema required", nil)
	}
	m := &Manager{
		store:  store,
		schema: fieldSchema,
		logger: logging.NewComponentLogger(logger, "lineage"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CreateParams carries everything needed to commit a new version.
type CreateParams struct {
	Creator       string
	Content       map[string]string
	Costs         CostData
	IsAIGenerated bool
	// PredecessorID optionally pins the expected predecessor; when empty the
	// current head is used. The first version of a subject uses the base
	// sentinel regardless.
	PredecessorID string
}

// CreateVersion commits a new immutable version to the subject's chain and
// returns its id. The content must supply exactly the subject's established
// field set; on the very first call the prompt schema establishes that set.
// When the creator matches the current head's creator the head is replaced in
// place instead of extending the chain.
func (m *Manager) CreateVersion(ctx context.Context, imageRef string, params CreateParams) (string, error) {
	creator := strings.TrimSpace(params.Creator)
	if creator == "" {
		return "", services.Wrap(services.ErrValidation, "lineage", "create", "creator required", nil)
	}

	release, err := m.store.Lock(ctx, imageRef)
	if err != nil {
		return "", err
	}
	defer release()

	record, err := m.store.Load(ctx, imageRef)
	if err != nil {
		return "", err
	}

	fields, schemaID, err := m.establishedFields(record)
	if err != nil {
		return "", err
	}
	if err := validateContentKeys(fields, params.Content); err != nil {
		return "", err
	}

	predecessor := record.Head()
	if params.PredecessorID != "" && params.PredecessorID != BaseVersionID {
		pinned := record.FindVersion(params.PredecessorID)
		if pinned == nil {
			return "", services.Wrap(services.ErrNotFound, "lineage", "create", fmt.Sprintf("predecessor %s not in chain", params.PredecessorID), nil)
		}
		if head := record.Head(); head != nil && pinned.ID != head.ID {
			return "", services.Wrap(services.ErrValidation, "lineage", "create", fmt.Sprintf("predecessor %s is not the head", params.PredecessorID), nil)
		}
	}

	// Same-author edits overwrite rather than append, so the chain holds one
	// entry per distinct author transition.
	if predecessor != nil && predecessor.Generation.CreatedBy == creator {
		record.Versions = record.Versions[:len(record.Versions)-1]
		predecessor = record.Head()
	}

	createdAt := m.now().UTC()
	version := &Version{
		ID: m.uniqueVersionID(record, creator, createdAt),
		Generation: GenerationInfo{
			CreatedBy:     creator,
			CreatedAt:     createdAt,
			IsAIGenerated: params.IsAIGenerated,
			SchemaID:      schemaID,
			OldVersionID:  BaseVersionID,
			CreatedByType: creatorType(params.IsAIGenerated),
		},
		Content: contentWithEmptyNotes(params.Content),
		Costs:   Costs{Own: params.Costs},
	}

	if predecessor != nil {
		version.Generation.OldVersionID = predecessor.ID
		result, err := compare.Compare(predecessor.CompareInput(), version.CompareInput())
		if err != nil {
			return "", err
		}
		version.Comparisons = []*compare.Result{result}
	}

	if len(record.Versions) == 0 {
		record.Fields = fields
		record.SchemaID = schemaID
	}
	record.Versions = append(record.Versions, version)
	rollUpCosts(record)

	if err := m.store.Save(ctx, record); err != nil {
		return "", err
	}

	logger := logging.WithContext(ctx, m.logger)
	logger.Info("version stored",
		logging.String(logging.FieldSubject, imageRef),
		logging.String(logging.FieldVersionID, version.ID),
		logging.String("created_by", creator),
		logging.Int("chain_length", len(record.Versions)),
		logging.Float64("overall_cost", version.Costs.Overall.TotalCost()),
	)
	return version.ID, nil
}

// Head returns the subject's most recent version.
func (m *Manager) Head(ctx context.Context, imageRef string) (*Version, error) {
	record, err := m.store.Load(ctx, imageRef)
	if err != nil {
		return nil, err
	}
	head := record.Head()
	if head == nil {
		return nil, emptyLineageError(imageRef)
	}
	return head, nil
}

// History returns the full version chain, oldest first.
func (m *Manager) History(ctx context.Context, imageRef string) ([]*Version, error) {
	record, err := m.store.Load(ctx, imageRef)
	if err != nil {
		return nil, err
	}
	if len(record.Versions) == 0 {
		return nil, emptyLineageError(imageRef)
	}
	return record.Versions, nil
}

// CompareHeadToAll scores the head against every earlier version in the
// chain, one result per earlier version.
func (m *Manager) CompareHeadToAll(ctx context.Context, imageRef string) ([]*compare.Result, error) {
	record, err := m.store.Load(ctx, imageRef)
	if err != nil {
		return nil, err
	}
	head := record.Head()
	if head == nil {
		return nil, emptyLineageError(imageRef)
	}
	earlier := make([]compare.Input, 0, len(record.Versions)-1)
	for _, v := range record.Versions[:len(record.Versions)-1] {
		earlier = append(earlier, v.CompareInput())
	}
	return compare.CompareAll(head.CompareInput(), earlier)
}

// FieldValidationRating derives the 0-3 confidence signal for one field of
// the subject's head version: 0 when there is nothing to compare or the field
// disagrees, then 1-3 depending on how many of the compared versions were
// human-edited.
func (m *Manager) FieldValidationRating(ctx context.Context, imageRef, fieldName string) (int, error) {
	canonical := m.schema.Canonical(fieldName)
	if canonical == "" {
		return 0, services.Wrap(services.ErrNotFound, "lineage", "validation", fmt.Sprintf("unknown field %q", fieldName), nil)
	}
	head, err := m.Head(ctx, imageRef)
	if err != nil {
		return 0, err
	}
	if head.IsBase() || len(head.Comparisons) == 0 {
		return 0, nil
	}
	result := head.Comparisons[0]
	for _, candidate := range head.Comparisons {
		if candidate.ComparedTo == head.Generation.OldVersionID {
			result = candidate
			break
		}
	}
	score, ok := result.PerField[canonical]
	if !ok || score < 1 {
		return 0, nil
	}
	users := 0
	for _, kind := range result.CreatedByTypes {
		if kind == compare.CreatorUser {
			users++
		}
	}
	return 1 + users, nil
}

// Delete removes the subject's persisted lineage entirely.
func (m *Manager) Delete(ctx context.Context, imageRef string) error {
	release, err := m.store.Lock(ctx, imageRef)
	if err != nil {
		return err
	}
	defer release()
	return m.store.Delete(imageRef)
}

// Subjects lists the image references with persisted lineages.
func (m *Manager) Subjects() ([]string, error) {
	return m.store.List()
}

// Schema returns the prompt schema the manager validates against.
func (m *Manager) Schema() *schema.FieldSchema { return m.schema }

func (m *Manager) establishedFields(record *Record) ([]string, string, error) {
	if len(record.Versions) == 0 {
		return m.schema.Fields(), m.schema.ID(), nil
	}
	if len(record.Fields) > 0 {
		return record.Fields, record.SchemaID, nil
	}
	// Older records predate the stored field list; the first version's keys
	// are authoritative.
	first := record.Versions[0]
	fields := make([]string, 0, len(first.Content))
	for name := range first.Content {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields, first.Generation.SchemaID, nil
}

func (m *Manager) uniqueVersionID(record *Record, creator string, createdAt time.Time) string {
	id := versionIDFor(creator, createdAt)
	for bump := 1; record.FindVersion(id) != nil; bump++ {
		id = versionIDFor(creator, createdAt.Add(time.Duration(bump)*time.Nanosecond))
	}
	return id
}

// rollUpCosts recomputes the cumulative totals for every version in chain
// order, keeping overall figures monotonically non-decreasing along the
// chain even after an in-place replacement.
func rollUpCosts(record *Record) {
	var running CostData
	for _, v := range record.Versions {
		running.Add(v.Costs.Own)
		v.Costs.Overall = running
	}
}

func contentWithEmptyNotes(content map[string]string) map[string]FieldValue {
	out := make(map[string]FieldValue, len(content))
	for name, value := range content {
		out[name] = FieldValue{Value: value}
	}
	return out
}

func validateContentKeys(fields []string, content map[string]string) error {
	var missing, extra []string
	declared := make(map[string]struct{}, len(fields))
	for _, name := range fields {
		declared[name] = struct{}{}
		if _, ok := content[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range content {
		if _, ok := declared[name]; !ok {
			extra = append(extra, name)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(extra)
	detail := ""
	if len(missing) > 0 {
		detail = "missing " + strings.Join(missing, ", ")
	}
	if len(extra) > 0 {
		if detail != "" {
			detail += "; "
		}
		detail += "unexpected " + strings.Join(extra, ", ")
	}
	return services.Wrap(services.ErrValidation, "lineage", "create", detail, nil)
}

func emptyLineageError(ref string) error {
	return services.Wrap(services.ErrNotFound, "lineage", "read", ref, ErrEmptyLineage)
}
