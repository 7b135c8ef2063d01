package analytics

import (
	"path/filepath"
	"testing"

	"github.com/lucasnoah/forgebot/internal/db"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forgebot.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := d.Migrate(); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestQueryStateDurationsPairsConsecutiveEvents(t *testing.T) {
	d := openTestDB(t)

	mustLog := func(runID, event, state string, attempt int, detail string) {
		t.Helper()
		if err := d.LogRunEvent(runID, event, state, attempt, detail); err != nil {
			t.Fatalf("LogRunEvent() error: %v", err)
		}
		// Backdate timestamps by updating the row directly so durations are
		// deterministic rather than clustered at "now".
	}

	mustLog("run-1", "stateChange", "ANALYZING", 1, "from=IDLE")
	mustLog("run-1", "stateChange", "SEARCHING", 1, "from=ANALYZING")
	mustLog("run-1", "stateChange", "PLANNING", 1, "from=SEARCHING")

	// Spread timestamps out so ANALYZING and SEARCHING each have a positive duration.
	if _, err := d.Conn().Exec(`UPDATE run_events SET timestamp = '2026-01-01 00:00:00' WHERE state = 'ANALYZING'`); err != nil {
		t.Fatalf("backdate ANALYZING: %v", err)
	}
	if _, err := d.Conn().Exec(`UPDATE run_events SET timestamp = '2026-01-01 00:05:00' WHERE state = 'SEARCHING'`); err != nil {
		t.Fatalf("backdate SEARCHING: %v", err)
	}
	if _, err := d.Conn().Exec(`UPDATE run_events SET timestamp = '2026-01-01 00:12:00' WHERE state = 'PLANNING'`); err != nil {
		t.Fatalf("backdate PLANNING: %v", err)
	}

	results, err := QueryStateDurations(d, "")
	if err != nil {
		t.Fatalf("QueryStateDurations() error: %v", err)
	}
	byState := map[string]StateDuration{}
	for _, r := range results {
		byState[r.State] = r
	}

	analyzing, ok := byState["ANALYZING"]
	if !ok {
		t.Fatal("expected a duration entry for ANALYZING")
	}
	if analyzing.Avg != 5 {
		t.Errorf("ANALYZING avg = %v, want 5 (minutes between ANALYZING and SEARCHING events)", analyzing.Avg)
	}
}

func TestQueryCheckFailureRates(t *testing.T) {
	d := openTestDB(t)

	if err := d.LogCheckRun("run-1", "BUILDING", 1, "build", false, 1, 800, "syntax error"); err != nil {
		t.Fatalf("LogCheckRun() error: %v", err)
	}
	if err := d.LogCheckRun("run-1", "BUILDING", 2, "build", true, 0, 750, "ok"); err != nil {
		t.Fatalf("LogCheckRun() error: %v", err)
	}
	if err := d.LogCheckRun("run-2", "BUILDING", 1, "build", true, 0, 600, "ok"); err != nil {
		t.Fatalf("LogCheckRun() error: %v", err)
	}

	results, err := QueryCheckFailureRates(d, "")
	if err != nil {
		t.Fatalf("QueryCheckFailureRates() error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	r := results[0]
	if r.CheckName != "build" {
		t.Errorf("CheckName = %q, want build", r.CheckName)
	}
	if r.Total != 3 {
		t.Errorf("Total = %d, want 3", r.Total)
	}
	if r.FirstPass <= 0 {
		t.Errorf("FirstPass = %v, want > 0 (run-2 passed on attempt 1)", r.FirstPass)
	}
	if r.AfterRetry <= 0 {
		t.Errorf("AfterRetry = %v, want > 0 (run-1 passed only on attempt 2)", r.AfterRetry)
	}
}

func TestQueryRunDetailOrdersByTimestamp(t *testing.T) {
	d := openTestDB(t)

	if err := d.LogRunEvent("run-1", "stateChange", "ANALYZING", 1, ""); err != nil {
		t.Fatalf("LogRunEvent() error: %v", err)
	}
	if err := d.LogCheckRun("run-1", "BUILDING", 1, "build", true, 0, 500, "ok"); err != nil {
		t.Fatalf("LogCheckRun() error: %v", err)
	}

	events, err := QueryRunDetail(d, "run-1")
	if err != nil {
		t.Fatalf("QueryRunDetail() error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
}

func TestQueryCheckFailureRatesEmptyDB(t *testing.T) {
	d := openTestDB(t)
	results, err := QueryCheckFailureRates(d, "")
	if err != nil {
		t.Fatalf("QueryCheckFailureRates() error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}
