package core

import (
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/flightlog/internal/schema"
)

// Format describes how one kind of logbook export maps onto the canonical
// import fields.
type Format struct {
	Key         string
	Label       string
	Description string

	// Columns maps a normalized header cell (see NormalizeHeader) to its
	// canonical field.
	Columns map[string]schema.Field

	// FlightTypes and FlightModes translate lowercased cell values.
	FlightTypes map[string]FlightType
	FlightModes map[string]FlightMode

	// Delimiter, when set, is the delimiter the export program writes.
	// Explicit caller settings take precedence.
	Delimiter rune
}

// RunStatus is the outcome of an import run.
type RunStatus string

const (
	RunCommitted  RunStatus = "committed"
	RunDryRun     RunStatus = "dry_run"
	RunAborted    RunStatus = "aborted"
	RunFailed     RunStatus = "failed"
	RunRolledBack RunStatus = "rolled_back"
)

// ImportStats counts what happened to the rows and records of a run.
type ImportStats struct {
	Rows         int `json:"rows"`
	RowErrors    int `json:"row_errors"`
	Merged       int `json:"merged_towflights"`
	MergeErrors  int `json:"merge_errors"`
	ClubSkipped  int `json:"club_skipped"`
	RecordErrors int `json:"record_errors"`
	Inserted     int `json:"inserted"`
	Updated      int `json:"updated"`
	Deleted      int `json:"deleted"`
	Skipped      int `json:"skipped"`
	Duplicates   int `json:"duplicates"`
}

// MissingReport lists natural keys that could not be resolved during a run.
type MissingReport struct {
	Pilots        []string `json:"pilots,omitempty"`
	Planes        []string `json:"planes,omitempty"`
	LaunchMethods []string `json:"launch_methods,omitempty"`
}

// Empty reports whether nothing was missing.
func (m MissingReport) Empty() bool {
	return len(m.Pilots) == 0 && len(m.Planes) == 0 && len(m.LaunchMethods) == 0
}

// ImportRun is the audit entry of one import.
type ImportRun struct {
	ID         uuid.UUID     `json:"id"`
	FileName   string        `json:"file_name"`
	Format     string        `json:"format"`
	Mode       string        `json:"mode"`
	Status     RunStatus     `json:"status"`
	Stats      ImportStats   `json:"stats"`
	Missing    MissingReport `json:"missing"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// NewImportRun starts an audit entry with a fresh id.
func NewImportRun(fileName, format, mode string) *ImportRun {
	return &ImportRun{
		ID:        uuid.New(),
		FileName:  fileName,
		Format:    format,
		Mode:      mode,
		StartedAt: time.Now().UTC(),
	}
}

// Finish stamps the run with its final status.
func (r *ImportRun) Finish(status RunStatus, err error) {
	r.Status = status
	r.FinishedAt = time.Now().UTC()
	if err != nil {
		r.Error = err.Error()
	}
}

// Duration returns how long the run took.
func (r *ImportRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
