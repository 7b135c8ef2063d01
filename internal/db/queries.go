package db

import (
	"database/sql"
	"fmt"
)

// RunEvent represents a row in the run_events table.
type RunEvent struct {
	ID        int
	RunID     string
	Event     string
	State     string
	Attempt   int
	Detail    string
	Timestamp string
}

// CheckRun represents a row in the check_runs table.
type CheckRun struct {
	ID         int
	RunID      string
	State      string
	Attempt    int
	CheckName  string
	Passed     bool
	ExitCode   int
	DurationMs int
	Summary    string
	Timestamp  string
}

// LogRunEvent inserts a run event, e.g. a state-machine transition.
func (d *DB) LogRunEvent(runID, event, state string, attempt int, detail string) error {
	_, err := d.conn.Exec(
		`INSERT INTO run_events (run_id, event, state, attempt, detail) VALUES (?, ?, ?, ?, ?)`,
		runID, event, state, attempt, detail,
	)
	if err != nil {
		return fmt.Errorf("log run event: %w", err)
	}
	return nil
}

// GetRunHistory returns all events for a run, ordered by timestamp descending.
func (d *DB) GetRunHistory(runID string) ([]RunEvent, error) {
	rows, err := d.conn.Query(
		`SELECT id, run_id, event, state, attempt, detail, timestamp
		 FROM run_events WHERE run_id = ? ORDER BY timestamp DESC, id DESC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get run history: %w", err)
	}
	defer rows.Close()

	var events []RunEvent
	for rows.Next() {
		var e RunEvent
		var state, detail sql.NullString
		var attempt sql.NullInt64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Event, &state, &attempt, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		if state.Valid {
			e.State = state.String
		}
		if attempt.Valid {
			e.Attempt = int(attempt.Int64)
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// LogCheckRun inserts a check run record.
func (d *DB) LogCheckRun(runID, state string, attempt int, checkName string, passed bool, exitCode int, durationMs int, summary string) error {
	_, err := d.conn.Exec(
		`INSERT INTO check_runs (run_id, state, attempt, check_name, passed, exit_code, duration_ms, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, state, attempt, checkName, passed, exitCode, durationMs, summary,
	)
	if err != nil {
		return fmt.Errorf("log check run: %w", err)
	}
	return nil
}

// GetCheckHistory returns all check runs for a run, ordered by id descending.
func (d *DB) GetCheckHistory(runID string) ([]CheckRun, error) {
	rows, err := d.conn.Query(
		`SELECT id, run_id, state, attempt, check_name, passed, exit_code, duration_ms, summary, timestamp
		 FROM check_runs WHERE run_id = ? ORDER BY id DESC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get check history: %w", err)
	}
	defer rows.Close()

	var runs []CheckRun
	for rows.Next() {
		var r CheckRun
		var exitCode, durationMs sql.NullInt64
		var summary sql.NullString
		if err := rows.Scan(&r.ID, &r.RunID, &r.State, &r.Attempt, &r.CheckName, &r.Passed, &exitCode, &durationMs, &summary, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan check run: %w", err)
		}
		if exitCode.Valid {
			r.ExitCode = int(exitCode.Int64)
		}
		if durationMs.Valid {
			r.DurationMs = int(durationMs.Int64)
		}
		if summary.Valid {
			r.Summary = summary.String
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetLatestCheckRun returns the most recent check run for a run and check name.
func (d *DB) GetLatestCheckRun(runID, checkName string) (*CheckRun, error) {
	row := d.conn.QueryRow(
		`SELECT id, run_id, state, attempt, check_name, passed, exit_code, duration_ms, summary, timestamp
		 FROM check_runs WHERE run_id = ? AND check_name = ? ORDER BY id DESC LIMIT 1`,
		runID, checkName,
	)
	var r CheckRun
	var exitCode, durationMs sql.NullInt64
	var summary sql.NullString
	err := row.Scan(&r.ID, &r.RunID, &r.State, &r.Attempt, &r.CheckName, &r.Passed, &exitCode, &durationMs, &summary, &r.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest check run: %w", err)
	}
	if exitCode.Valid {
		r.ExitCode = int(exitCode.Int64)
	}
	if durationMs.Valid {
		r.DurationMs = int(durationMs.Int64)
	}
	if summary.Valid {
		r.Summary = summary.String
	}
	return &r, nil
}
