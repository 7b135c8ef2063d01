package checks

import "fmt"

// GenericParser is the fallback parser the Runner uses for any check whose
// RunConfig entry names no parser, or an unrecognized one. It captures the
// exit code and raw output so a failing build/test command is never
// silently reduced to just "failed".
type GenericParser struct{}

// maxOutputLen caps how much stdout/stderr the generic parser retains in findings.
const maxOutputLen = 8000

// genericResult is the Findings value GenericParser returns: the exit code,
// the stdout/stderr lengths, and (on failure) the tail of the combined output.
type genericResult struct {
	ExitCode     int    `json:"exit_code"`
	StdoutLength int    `json:"stdout_length"`
	StderrLength int    `json:"stderr_length"`
	Output       string `json:"output,omitempty"`
}

func (p *GenericParser) Parse(stdout string, stderr string, exitCode int) ParseResult {
	passed := exitCode == 0
	summary := fmt.Sprintf("exit code %d, stdout=%d bytes, stderr=%d bytes", exitCode, len(stdout), len(stderr))
	if passed {
		summary = "passed (exit code 0)"
	}

	// For failures, include actual output so agents can see the errors.
	findings := ""
	if !passed {
		combined := stdout
		if stderr != "" {
			if combined != "" {
				combined += "\n"
			}
			combined += stderr
		}
		// Keep the tail — error summaries and tracebacks are usually at the end.
		if len(combined) > maxOutputLen {
			combined = "…(truncated)\n" + combined[len(combined)-maxOutputLen:]
		}
		findings = combined
	}

	return ParseResult{
		Passed:   passed,
		Summary:  summary,
		Findings: genericResult{ExitCode: exitCode, StdoutLength: len(stdout), StderrLength: len(stderr), Output: findings},
	}
}
