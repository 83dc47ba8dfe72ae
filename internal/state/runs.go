package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunStopped     RunStatus = "stopped"
	RunAborted     RunStatus = "aborted"
	RunInterrupted RunStatus = "interrupted"
)

// Phase is the manipulation step an attempt belongs to.
type Phase string

const (
	PhasePick  Phase = "pick"
	PhasePlace Phase = "place"
)

// Run is one orchestration run.
type Run struct {
	ID        string     `json:"id"`
	Mode      string     `json:"mode"`
	Items     []string   `json:"items"`
	Status    RunStatus  `json:"status"`
	Cycles    int        `json:"cycles"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Attempt is one pick or place request.
type Attempt struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Cycle     int       `json:"cycle"`
	ItemID    string    `json:"item_id"`
	Phase     Phase     `json:"phase"`
	Number    int       `json:"number"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AttemptStats aggregates attempts for a run.
type AttemptStats struct {
	Picks        int
	PickFailures int
	Places       int
	PlaceFailed  int
}

// CreateRun inserts a new run.
func (db *DB) CreateRun(r *Run) error {
	items, err := json.Marshal(r.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO runs (id, mode, items, status, cycles, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Mode, string(items), string(r.Status), r.Cycles, formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records the terminal status of a run.
func (db *DB) FinishRun(id string, status RunStatus, cycles int, errMsg string, endedAt time.Time) error {
	_, err := db.Exec(`
		UPDATE runs SET status = ?, cycles = ?, error = ?, ended_at = ?
		WHERE id = ?
	`, string(status), cycles, nullString(errMsg), formatTime(endedAt), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil, nil when absent.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, mode, items, status, cycles, error, started_at, ended_at
		FROM runs WHERE id = ?
	`, id)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. A non-positive limit returns all.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `
		SELECT id, mode, items, status, cycles, error, started_at, ended_at
		FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// RecordAttempt inserts an attempt and sets its ID.
func (db *DB) RecordAttempt(a *Attempt) error {
	res, err := db.Exec(`
		INSERT INTO attempts (run_id, cycle, item_id, phase, number, success, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.RunID, a.Cycle, a.ItemID, string(a.Phase), a.Number, a.Success, nullString(a.Error), formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = id
	}
	return nil
}

// ListAttempts returns a run's attempts in insertion order.
func (db *DB) ListAttempts(runID string) ([]Attempt, error) {
	rows, err := db.Query(`
		SELECT id, run_id, cycle, item_id, phase, number, success, error, created_at
		FROM attempts WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var errMsg sql.NullString
		var createdAt string
		if err := rows.Scan(&a.ID, &a.RunID, &a.Cycle, &a.ItemID, &a.Phase, &a.Number, &a.Success, &errMsg, &createdAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Error = errMsg.String
		a.CreatedAt, _ = parseTime(createdAt)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// AttemptStats counts a run's attempts by phase and outcome.
func (db *DB) AttemptStats(runID string) (*AttemptStats, error) {
	row := db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN phase = 'pick' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN phase = 'pick' AND success = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN phase = 'place' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN phase = 'place' AND success = 0 THEN 1 ELSE 0 END), 0)
		FROM attempts WHERE run_id = ?
	`, runID)

	var s AttemptStats
	if err := row.Scan(&s.Picks, &s.PickFailures, &s.Places, &s.PlaceFailed); err != nil {
		return nil, fmt.Errorf("attempt stats: %w", err)
	}
	return &s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var items string
	var errMsg, endedAt sql.NullString
	var startedAt string
	if err := s.Scan(&r.ID, &r.Mode, &items, &r.Status, &r.Cycles, &errMsg, &startedAt, &endedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(items), &r.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	r.Error = errMsg.String
	r.StartedAt, _ = parseTime(startedAt)
	r.EndedAt = parseNullableTime(endedAt)
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
