package checks

// ParseResult holds the normalized output from a parser. The Runner uses
// Passed (combined with the command's own exit code) to decide whether a
// BUILDING or TESTING check succeeded, and folds Summary/Findings into the
// workflow.CheckResult the GENERATING handler's next attempt sees.
type ParseResult struct {
	Passed   bool        `json:"passed"`
	Summary  string      `json:"summary"`
	Findings interface{} `json:"findings"`
}

// Parser converts the raw stdout/stderr/exit-code of one configured check
// command into a structured ParseResult. A RunConfig names a parser per
// check by key (see config.Check.Parser); the Runner falls back to
// GenericParser for any key it doesn't recognize.
type Parser interface {
	Parse(stdout string, stderr string, exitCode int) ParseResult
}
