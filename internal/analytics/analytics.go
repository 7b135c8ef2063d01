package analytics

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"
)

// DB is the interface for database queries used by analytics.
type DB interface {
	Conn() *sql.DB
}

// StateDuration holds duration stats for an operational state, aggregated
// across every run that passed through it.
type StateDuration struct {
	State string  `json:"state"`
	Count int     `json:"count"`
	Avg   float64 `json:"avg_minutes"`
	P50   float64 `json:"p50_minutes"`
	P95   float64 `json:"p95_minutes"`
}

// timestamp formats to try when parsing timestamps from the database
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, f := range timestampFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}

// QueryStateDurations returns average and percentile durations per state.
// Each stateChange event is paired with the immediately preceding event
// for the same run_id (by id order); the elapsed time is attributed to the
// state the run was IN before the transition fired, i.e. the row's own
// "state" column one step back.
func QueryStateDurations(database DB, since string) ([]StateDuration, error) {
	query := `
		SELECT re1.run_id, re1.state, re1.timestamp as end_ts,
			(SELECT re2.timestamp FROM run_events re2
			 WHERE re2.run_id = re1.run_id AND re2.id < re1.id
			 ORDER BY re2.id DESC LIMIT 1) as start_ts,
			(SELECT re2.state FROM run_events re2
			 WHERE re2.run_id = re1.run_id AND re2.id < re1.id
			 ORDER BY re2.id DESC LIMIT 1) as prior_state
		FROM run_events re1
		WHERE re1.event = 'stateChange'`

	args := []interface{}{}
	if since != "" {
		query += ` AND re1.timestamp >= ?`
		args = append(args, since)
	}

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query state durations: %w", err)
	}
	defer rows.Close()

	stateDurations := make(map[string][]float64)
	for rows.Next() {
		var runID, state, endTS string
		var startTS, priorState sql.NullString
		if err := rows.Scan(&runID, &state, &endTS, &startTS, &priorState); err != nil {
			return nil, fmt.Errorf("scan state duration: %w", err)
		}
		if !startTS.Valid || !priorState.Valid || priorState.String == "" {
			continue
		}
		start, err := parseTimestamp(startTS.String)
		if err != nil {
			continue
		}
		end, err := parseTimestamp(endTS)
		if err != nil {
			continue
		}
		minutes := end.Sub(start).Minutes()
		if minutes > 0 {
			stateDurations[priorState.String] = append(stateDurations[priorState.String], minutes)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []StateDuration
	for state, durations := range stateDurations {
		sort.Float64s(durations)
		results = append(results, StateDuration{
			State: state,
			Count: len(durations),
			Avg:   avg(durations),
			P50:   percentile(durations, 50),
			P95:   percentile(durations, 95),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].State < results[j].State
	})
	return results, nil
}

// CheckFailureRate holds pass/fail stats for a named check across runs.
type CheckFailureRate struct {
	CheckName   string  `json:"check_name"`
	Total       int     `json:"total"`
	FirstPass   float64 `json:"first_pass_pct"`
	AfterRetry  float64 `json:"after_retry_pct"`
	FailRate    float64 `json:"fail_rate_pct"`
	CommonFails string  `json:"common_failures"`
}

// QueryCheckFailureRates returns pass/fail stats per check name, including
// which fraction of runs passed on the first attempt versus only after a
// RETRY-driven re-run of GENERATING.
func QueryCheckFailureRates(database DB, since string) ([]CheckFailureRate, error) {
	query := `
		SELECT check_name,
			COUNT(*) as total,
			SUM(CASE WHEN passed = 1 THEN 1 ELSE 0 END) as passed,
			SUM(CASE WHEN passed = 1 AND attempt = 1 THEN 1 ELSE 0 END) as first_pass
		FROM check_runs
		WHERE 1=1`

	args := []interface{}{}
	if since != "" {
		query += ` AND timestamp >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY check_name ORDER BY check_name`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query check failure rates: %w", err)
	}
	defer rows.Close()

	var results []CheckFailureRate
	for rows.Next() {
		var name string
		var total, passed, firstPass int
		if err := rows.Scan(&name, &total, &passed, &firstPass); err != nil {
			return nil, fmt.Errorf("scan check failure rate: %w", err)
		}
		results = append(results, CheckFailureRate{
			CheckName:  name,
			Total:      total,
			FirstPass:  pct(firstPass, total),
			AfterRetry: pct(passed-firstPass, total),
			FailRate:   pct(total-passed, total),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range results {
		summaryQuery := `
			SELECT summary, COUNT(*) as cnt
			FROM check_runs
			WHERE check_name = ? AND passed = 0 AND summary != ''`
		sArgs := []interface{}{results[i].CheckName}
		if since != "" {
			summaryQuery += ` AND timestamp >= ?`
			sArgs = append(sArgs, since)
		}
		summaryQuery += ` GROUP BY summary ORDER BY cnt DESC LIMIT 3`

		sRows, err := database.Conn().Query(summaryQuery, sArgs...)
		if err != nil {
			continue
		}
		var rules []string
		for sRows.Next() {
			var summary string
			var cnt int
			if err := sRows.Scan(&summary, &cnt); err != nil {
				break
			}
			if summary != "" {
				rules = append(rules, summary)
			}
		}
		_ = sRows.Err()
		sRows.Close()
		if len(rules) > 0 {
			results[i].CommonFails = rules[0]
			if len(rules) > 1 {
				results[i].CommonFails += ", " + rules[1]
			}
		}
	}

	return results, nil
}

// RunEventView holds a single event for a run-detail timeline.
type RunEventView struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Event     string `json:"event"`
	State     string `json:"state,omitempty"`
	Attempt   int    `json:"attempt,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// QueryRunDetail returns the full timeline of state transitions and check
// runs for a single run, oldest first.
func QueryRunDetail(database DB, runID string) ([]RunEventView, error) {
	var results []RunEventView

	reRows, err := database.Conn().Query(
		`SELECT timestamp, event, state, attempt, detail
		 FROM run_events WHERE run_id = ? ORDER BY timestamp, id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query run events: %w", err)
	}
	defer reRows.Close()

	for reRows.Next() {
		var e RunEventView
		var state, detail sql.NullString
		var attempt sql.NullInt64
		if err := reRows.Scan(&e.Timestamp, &e.Event, &state, &attempt, &detail); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		e.Type = "run"
		if state.Valid {
			e.State = state.String
		}
		if attempt.Valid {
			e.Attempt = int(attempt.Int64)
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		results = append(results, e)
	}
	if err := reRows.Err(); err != nil {
		return nil, err
	}

	crRows, err := database.Conn().Query(
		`SELECT timestamp, check_name, state, attempt, passed, duration_ms, summary
		 FROM check_runs WHERE run_id = ? ORDER BY timestamp, id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query check runs: %w", err)
	}
	defer crRows.Close()

	for crRows.Next() {
		var ts, checkName, state string
		var attempt, durationMs int
		var passed bool
		var summary sql.NullString
		if err := crRows.Scan(&ts, &checkName, &state, &attempt, &passed, &durationMs, &summary); err != nil {
			return nil, fmt.Errorf("scan check run: %w", err)
		}

		status := "PASS"
		if !passed {
			status = "FAIL"
		}
		detail := fmt.Sprintf("%s: %s (%dms)", checkName, status, durationMs)
		if summary.Valid && summary.String != "" {
			detail += " - " + summary.String
		}

		results = append(results, RunEventView{
			Timestamp: ts,
			Type:      "check",
			Event:     checkName,
			State:     state,
			Attempt:   attempt,
			Detail:    detail,
		})
	}
	if err := crRows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp < results[j].Timestamp
	})

	return results, nil
}

// --- helpers ---

func avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return math.Round(sum/float64(len(values))*10) / 10
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper || upper >= len(sorted) {
		return math.Round(sorted[lower]*10) / 10
	}
	weight := rank - float64(lower)
	return math.Round((sorted[lower]*(1-weight)+sorted[upper]*weight)*10) / 10
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}
