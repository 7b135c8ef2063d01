package workflow

import (
	"errors"
	"testing"
)

func TestRecovery_Classify_Fatal(t *testing.T) {
	r := NewRecovery(3)

	c := r.Classify(StateAnalyzing, errors.New("authentication failed: bad token"))
	if c.Severity != SeverityFatal || c.Code != CodeFatal {
		t.Errorf("Classify() = %+v, want fatal/%s", c, CodeFatal)
	}
}

func TestRecovery_Classify_FixCycleIsRetryable(t *testing.T) {
	r := NewRecovery(3)

	c := r.Classify(StateBuilding, errors.New("exit status 1"))
	if c.Severity != SeverityRetryable {
		t.Errorf("Severity = %q, want %q", c.Severity, SeverityRetryable)
	}
	if c.RetryTarget != StateGenerating {
		t.Errorf("RetryTarget = %q, want %q", c.RetryTarget, StateGenerating)
	}
}

func TestRecovery_Classify_FixCycleBeatsTransientPattern(t *testing.T) {
	r := NewRecovery(3)

	// a timeout inside the fix cycle is still classified retryable, not
	// transient: fix-cycle membership takes precedence.
	c := r.Classify(StateTesting, errors.New("request timed out"))
	if c.Severity != SeverityRetryable {
		t.Errorf("Severity = %q, want %q", c.Severity, SeverityRetryable)
	}
}

func TestRecovery_Classify_TransientOutsideFixCycle(t *testing.T) {
	r := NewRecovery(3)

	c := r.Classify(StateSearching, errors.New("503 service unavailable"))
	if c.Severity != SeverityTransient || c.Code != CodeTransient {
		t.Errorf("Classify() = %+v, want transient/%s", c, CodeTransient)
	}
	if c.HasRetryTarget() {
		t.Error("HasRetryTarget() = true for a transient classification")
	}
}

func TestRecovery_Classify_Unrecoverable(t *testing.T) {
	r := NewRecovery(3)

	c := r.Classify(StateSearching, errors.New("index corrupted"))
	if c.Severity != SeverityFatal || c.Code != CodeUnrecoverable {
		t.Errorf("Classify() = %+v, want fatal/%s", c, CodeUnrecoverable)
	}
}

func TestRecovery_ShouldRetry(t *testing.T) {
	r := NewRecovery(3)
	c := Classification{Severity: SeverityRetryable, RetryTarget: StateGenerating}

	if !r.ShouldRetry(1, c, 3) {
		t.Error("ShouldRetry(attempt=1, max=3) = false, want true")
	}
	if r.ShouldRetry(3, c, 3) {
		t.Error("ShouldRetry(attempt=3, max=3) = true, want false")
	}
}

func TestRecovery_ShouldRetry_FallsBackToDefaultMax(t *testing.T) {
	r := NewRecovery(2)
	c := Classification{Severity: SeverityRetryable, RetryTarget: StateGenerating}

	if !r.ShouldRetry(1, c, 0) {
		t.Error("ShouldRetry(attempt=1, max=0) = false, want true (fallback to default max 2)")
	}
	if r.ShouldRetry(2, c, 0) {
		t.Error("ShouldRetry(attempt=2, max=0) = true, want false (fallback to default max 2)")
	}
}

func TestRecovery_ShouldRetry_NonRetryableNeverRetries(t *testing.T) {
	r := NewRecovery(3)
	c := Classification{Severity: SeverityTransient}

	if r.ShouldRetry(1, c, 3) {
		t.Error("ShouldRetry() = true for a non-retryable classification")
	}
}

func TestNewRecovery_DefaultsNonPositiveMaxAttempts(t *testing.T) {
	r := NewRecovery(0)
	if r.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", r.MaxAttempts)
	}

	r = NewRecovery(-1)
	if r.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", r.MaxAttempts)
	}
}
