package checks

import (
	"context"
	"fmt"

	"github.com/lucasnoah/forgebot/internal/config"
	"github.com/lucasnoah/forgebot/internal/workflow"
)

// maxFindingsLen caps how much parser-findings detail gets folded into a
// CheckResult's Summary. The REVIEWING prompt carries this summary
// alongside the diff; a multi-megabyte eslint/vitest JSON dump would drown
// out the diff it's meant to explain.
const maxFindingsLen = 4000

// Adapter satisfies the handlers package's CheckRunner interface by
// dispatching a named check (e.g. "build", "test") from a RunConfig onto
// the deterministic Runner.
type Adapter struct {
	runner *Runner
	checks map[string]config.Check
}

// NewAdapter wraps runner with the named checks from cfg.
func NewAdapter(runner *Runner, cfg *config.RunConfig) *Adapter {
	return &Adapter{runner: runner, checks: cfg.Checks}
}

// Run executes the named check against root and reports pass/fail. On
// failure, the parser's structured findings (e.g. eslint rule violations,
// failing vitest assertions, tsc diagnostics) are folded into the summary
// so the GENERATING handler's next attempt, and the REVIEWING prompt, see
// more than a bare pass/fail bit.
func (a *Adapter) Run(ctx context.Context, root string, name string) (*workflow.CheckResult, error) {
	cc, ok := a.checks[name]
	if !ok {
		return nil, fmt.Errorf("no %q check configured", name)
	}

	result, err := a.runner.Run(root, CheckConfig{
		Name:       name,
		Command:    cc.Command,
		Parser:     cc.Parser,
		Timeout:    cc.Duration(),
		AutoFix:    cc.AutoFix,
		FixCommand: cc.FixCommand,
	})
	if err != nil {
		return nil, fmt.Errorf("run check %q: %w", name, err)
	}

	return &workflow.CheckResult{Passed: result.Passed, Summary: summarize(result)}, nil
}

// summarize appends truncated parser findings to a failed check's summary
// line. A passing check's summary already says everything the caller
// needs.
func summarize(result *Result) string {
	if result.Passed || result.Findings == "" || result.Findings == `""` {
		return result.Summary
	}
	findings := result.Findings
	if len(findings) > maxFindingsLen {
		findings = findings[:maxFindingsLen] + "…(truncated)"
	}
	return fmt.Sprintf("%s\nfindings: %s", result.Summary, findings)
}
