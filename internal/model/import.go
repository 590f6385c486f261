package model

import "time"

// ImportStatus represents the current state of a raw file import.
type ImportStatus string

const (
	ImportStatusRunning   ImportStatus = "running"
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusFailed    ImportStatus = "failed"
)

// ImportRecord is one entry in the import history.
type ImportRecord struct {
	ID          string       `json:"id"`
	Filename    string       `json:"filename"`
	Dataset     string       `json:"dataset"`
	State       string       `json:"state"`
	Category    string       `json:"category"`
	Status      ImportStatus `json:"status"`
	RecordCount int          `json:"recordCount"`
	Error       string       `json:"error,omitempty"`
	ImportedBy  string       `json:"importedBy"`
	StartedAt   time.Time    `json:"startedAt"`
	DurationMs  int64        `json:"durationMs"`
}
