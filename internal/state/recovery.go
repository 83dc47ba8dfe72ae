package state

import (
	"fmt"
	"time"
)

// MarkInterrupted closes out runs still marked running. Only one orchestrator
// runs per state directory, so any such run belongs to a process that died
// without recording its end. Returns the number of runs updated.
func (db *DB) MarkInterrupted(now time.Time) (int64, error) {
	result, err := db.Exec(`
		UPDATE runs SET status = ?, ended_at = ?, error = COALESCE(error, 'process exited without finishing the run')
		WHERE status = ?
	`, string(RunInterrupted), formatTime(now), string(RunRunning))
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}
