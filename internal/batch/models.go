package batch

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a batch item.
type Status string

const (
	StatusToProcess Status = "to_process"
	StatusInProcess Status = "in_process"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusToProcess,
	StatusInProcess,
	StatusProcessed,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Item represents a batch item persisted in SQLite. One item is one label
// image awaiting transcription.
type Item struct {
	ID           int64
	ImageRef     string
	ImagePath    string
	Status       Status
	RunID        string
	Provider     string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
}

// SetFailed marks the item as failed with the given error message and
// clears the in-flight marker.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.StartedAt = nil
}

// SetProcessed marks the item as successfully completed.
func (i *Item) SetProcessed() {
	i.Status = StatusProcessed
	i.ErrorMessage = ""
	i.StartedAt = nil
}

// Stats aggregates item counts per status.
type Stats struct {
	Total     int
	ToProcess int
	InProcess int
	Processed int
	Failed    int
}

// DatabaseHealth captures diagnostic information about the batch database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}
