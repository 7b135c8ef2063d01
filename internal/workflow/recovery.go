package workflow

import "strings"

// fatalPatterns trigger a fatal classification regardless of state.
var fatalPatterns = []string{
	"authentication failed",
	"auth failed",
	"unauthorized",
	"invalid credentials",
	"missing required credential",
	"invalid configuration",
	"no handler registered",
}

// transientPatterns trigger a transient classification in states outside
// the fix cycle.
var transientPatterns = []string{
	"rate limit",
	"rate-limited",
	"429",
	"connection reset",
	"econnreset",
	"socket hang up",
	"timeout",
	"timed out",
	"502",
	"503",
	"504",
}

// Recovery classifies handler failures and decides whether a run should
// retry. It is stateless and safe to share across runs.
type Recovery struct {
	MaxAttempts int
}

// NewRecovery returns a Recovery with the given default maxAttempts (used
// when a run doesn't override it). A maxAttempts <= 0 defaults to 3.
func NewRecovery(maxAttempts int) *Recovery {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Recovery{MaxAttempts: maxAttempts}
}

// Classify applies the classification rules, in order, to an error
// encountered while state was the current operational state.
func (r *Recovery) Classify(state State, err error) Classification {
	msg := err.Error()
	lower := strings.ToLower(msg)

	if matchesAny(lower, fatalPatterns) {
		return Classification{Severity: SeverityFatal, Code: CodeFatal, Message: msg}
	}

	if InFixCycle(state) {
		return Classification{
			Severity:    SeverityRetryable,
			Code:        CodeRetryable,
			Message:     msg,
			RetryTarget: StateGenerating,
		}
	}

	if matchesAny(lower, transientPatterns) {
		return Classification{Severity: SeverityTransient, Code: CodeTransient, Message: msg}
	}

	return Classification{Severity: SeverityFatal, Code: CodeUnrecoverable, Message: msg}
}

func matchesAny(lower string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// ShouldRetry answers the retry question for a classification reached at
// the given attempt count, against maxAttempts (falling back to r's
// default when maxAttempts <= 0).
func (r *Recovery) ShouldRetry(attempt int, c Classification, maxAttempts int) bool {
	if maxAttempts <= 0 {
		maxAttempts = r.MaxAttempts
	}
	return c.Severity == SeverityRetryable && c.HasRetryTarget() && attempt < maxAttempts
}
