package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"labelflow/internal/services"
)

// NotApplicable is the sentinel value recorded for a field the transcriber
// could not read from the label.
const NotApplicable = "N/A"

// IsNotApplicable reports whether a value is the N/A sentinel.
func IsNotApplicable(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), NotApplicable)
}

// FieldSchema is the authoritative, ordered field set for a subject, derived
// once from the transcription prompt.
type FieldSchema struct {
	id           string
	fields       []string
	descriptions map[string]string
	index        map[string]string // lowercased name -> canonical name
}

// Parse derives a FieldSchema from prompt text. Fields are declared one per
// line as "fieldName: description"; lines that are blank, start the field name
// with whitespace, or lack a colon are prose and are skipped.
func Parse(promptText string) (*FieldSchema, error) {
	s := &FieldSchema{
		descriptions: make(map[string]string),
		index:        make(map[string]string),
	}
	for _, line := range strings.Split(promptText, "\n") {
		name, description, ok := splitFieldLine(line)
		if !ok {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := s.index[key]; dup {
			return nil, services.Wrap(services.ErrValidation, "schema", "parse", fmt.Sprintf("duplicate field %q", name), nil)
		}
		s.fields = append(s.fields, name)
		s.descriptions[name] = description
		s.index[key] = name
	}
	if len(s.fields) == 0 {
		return nil, services.Wrap(services.ErrValidation, "schema", "parse", "prompt declares no fields", nil)
	}
	s.id = fingerprint(s.fields)
	return s, nil
}

// FromFields builds a schema directly from an established field list. Used
// when reloading a subject whose field set was fixed by its first version.
func FromFields(fields []string) (*FieldSchema, error) {
	var b strings.Builder
	for _, name := range fields {
		b.WriteString(name)
		b.WriteString(":\n")
	}
	return Parse(b.String())
}

// ID returns a stable identifier for the field set, independent of
// descriptions and field order.
func (s *FieldSchema) ID() string { return s.id }

// Fields returns the declared field names in prompt order.
func (s *FieldSchema) Fields() []string {
	cp := make([]string, len(s.fields))
	copy(cp, s.fields)
	return cp
}

// Description returns the prompt description for a field.
func (s *FieldSchema) Description(name string) string {
	return s.descriptions[s.Canonical(name)]
}

// Canonical maps a case-insensitive field name to its declared spelling, or
// returns "" when the field is unknown.
func (s *FieldSchema) Canonical(name string) string {
	return s.index[strings.ToLower(strings.TrimSpace(name))]
}

// Validate checks that content supplies exactly the declared field set.
func (s *FieldSchema) Validate(content map[string]string) error {
	var missing, extra []string
	for _, name := range s.fields {
		if _, ok := content[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range content {
		if s.Canonical(name) == "" || s.Canonical(name) != name {
			extra = append(extra, name)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(extra)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		parts = append(parts, "unexpected "+strings.Join(extra, ", "))
	}
	return services.Wrap(services.ErrValidation, "schema", "validate", strings.Join(parts, "; "), nil)
}

// ExtractContent parses a provider's raw response into the schema's field set.
// JSON objects are preferred; otherwise "field: value" lines are read. Unknown
// keys are dropped and undeclared fields are filled with the N/A sentinel.
func (s *FieldSchema) ExtractContent(raw string) map[string]string {
	content := make(map[string]string, len(s.fields))
	for _, name := range s.fields {
		content[name] = NotApplicable
	}

	if parsed := tryJSONObject(raw); parsed != nil {
		for key, value := range parsed {
			if canonical := s.Canonical(key); canonical != "" {
				content[canonical] = cleanValue(value)
			}
		}
		return content
	}

	for _, line := range strings.Split(raw, "\n") {
		name, value, ok := splitFieldLine(line)
		if !ok {
			continue
		}
		if canonical := s.Canonical(name); canonical != "" {
			content[canonical] = cleanValue(value)
		}
	}
	return content
}

func splitFieldLine(line string) (name, rest string, ok bool) {
	if line == "" || line != strings.TrimLeft(line, " \t") {
		return "", "", false
	}
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	name = strings.TrimSpace(line[:idx])
	if name == "" || strings.ContainsAny(name, " \t") {
		return "", "", false
	}
	return name, strings.TrimSpace(line[idx+1:]), true
}

func tryJSONObject(raw string) map[string]any {
	trimmed := strings.TrimSpace(raw)
	// Tolerate fenced responses from chat models.
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil
	}
	return parsed
}

func cleanValue(value any) string {
	switch v := value.(type) {
	case nil:
		return NotApplicable
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return NotApplicable
		}
		return trimmed
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func fingerprint(fields []string) string {
	sorted := make([]string, len(fields))
	for i, name := range fields {
		sorted[i] = strings.ToLower(name)
	}
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return hex.EncodeToString(sum[:8])
}
