// Package state keeps the flow journal: a SQLite database recording how
// each stage of each flow went (statements run, errors, duration).
//
// The journal sits beside the vault database and is informational only;
// the authoritative run history is metadata.runinfo.
package state

import (
	"context"
	"time"
)

// Stage names recorded by flows.
const (
	StageStaging    = "staging"
	StageHash       = "hash"
	StageHubs       = "hubs"
	StageLinks      = "links"
	StageSatellites = "satellites"
)

// StageRecord is one stage execution of a flow.
type StageRecord struct {
	ID         string        `json:"id"`
	RunID      int64         `json:"run_id"`
	Source     string        `json:"source"`
	SourceFile string        `json:"source_file,omitempty"`
	Stage      string        `json:"stage"`
	Statements int           `json:"statements"`
	Errors     int           `json:"errors"`
	FirstError string        `json:"first_error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// StageFilter narrows ListStages. Zero fields match everything.
type StageFilter struct {
	RunID  int64
	Source string
	Limit  int
}

// Store persists stage records.
type Store interface {
	RecordStage(ctx context.Context, rec StageRecord) error
	ListStages(ctx context.Context, filter StageFilter) ([]StageRecord, error)
	Close() error
}
