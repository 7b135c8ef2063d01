package analytics

import (
	"github.com/lucasnoah/forgebot/internal/db"
	"github.com/lucasnoah/forgebot/internal/workflow"
)

// EventLogger adapts a *db.DB into a workflow.Subscriber, recording every
// state transition the Machine commits into the run_events table. Wire it
// with Machine.Subscribe so analytics queries have data to work with
// without the orchestrator itself taking a dependency on SQLite.
type EventLogger struct {
	db *db.DB
}

// NewEventLogger wraps database for use as a workflow.Subscriber.
func NewEventLogger(database *db.DB) *EventLogger {
	return &EventLogger{db: database}
}

// Subscriber returns a workflow.Subscriber bound to this logger, suitable
// for passing to Machine.Subscribe.
func (l *EventLogger) Subscriber() workflow.Subscriber {
	return l.onStateChange
}

func (l *EventLogger) onStateChange(evt workflow.StateChangeEvent) {
	detail := "from=" + string(evt.From)
	_ = l.db.LogRunEvent(evt.RunID, "stateChange", string(evt.To), 0, detail)
}

// LogCheckResult records a check run against the analytics store, keyed by
// run, state, attempt and check name.
func (l *EventLogger) LogCheckResult(runID string, state workflow.State, attempt int, checkName string, result workflow.CheckResult, durationMs int) {
	_ = l.db.LogCheckRun(runID, string(state), attempt, checkName, result.Passed, 0, durationMs, result.Summary)
}
