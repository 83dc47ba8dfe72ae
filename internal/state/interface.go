package state

import (
	"io"
	"time"
)

// RunRecorder is what the orchestrator writes while a run is in progress.
type RunRecorder interface {
	CreateRun(r *Run) error
	FinishRun(id string, status RunStatus, cycles int, errMsg string, endedAt time.Time) error
	RecordAttempt(a *Attempt) error
}

// HistoryReader serves the status command.
type HistoryReader interface {
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]Run, error)
	ListAttempts(runID string) ([]Attempt, error)
	AttemptStats(runID string) (*AttemptStats, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store composes the persistence interfaces.
type Store interface {
	io.Closer
	Migrator
	RunRecorder
	HistoryReader
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store         = (*DB)(nil)
	_ RunRecorder   = (*DB)(nil)
	_ HistoryReader = (*DB)(nil)
)
