package checks

import (
	"context"
	"strings"
	"testing"

	"github.com/lucasnoah/forgebot/internal/config"
)

func TestAdapter_Run_UnknownCheckErrors(t *testing.T) {
	a := NewAdapter(NewRunner(&mockCmd{}), &config.RunConfig{Checks: map[string]config.Check{}})

	_, err := a.Run(context.Background(), "/tmp/test", "build")
	if err == nil {
		t.Fatal("expected error for an unconfigured check")
	}
}

func TestAdapter_Run_PassingCheckSummaryHasNoFindings(t *testing.T) {
	mock := &mockCmd{results: []mockResult{{Stdout: "ok", ExitCode: 0}}}
	a := NewAdapter(NewRunner(mock), &config.RunConfig{
		Checks: map[string]config.Check{"test": {Command: "go test ./...", Parser: "generic"}},
	})

	result, err := a.Run(context.Background(), "/tmp/test", "test")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !result.Passed {
		t.Error("Passed = false, want true")
	}
	if strings.Contains(result.Summary, "findings:") {
		t.Errorf("Summary = %q, want no findings on a passing check", result.Summary)
	}
}

func TestAdapter_Run_FailingCheckFoldsFindingsIntoSummary(t *testing.T) {
	mock := &mockCmd{results: []mockResult{{Stdout: "boom: nil pointer dereference", ExitCode: 1}}}
	a := NewAdapter(NewRunner(mock), &config.RunConfig{
		Checks: map[string]config.Check{"test": {Command: "go test ./...", Parser: "generic"}},
	})

	result, err := a.Run(context.Background(), "/tmp/test", "test")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Passed {
		t.Error("Passed = true, want false")
	}
	if !strings.Contains(result.Summary, "findings:") || !strings.Contains(result.Summary, "nil pointer dereference") {
		t.Errorf("Summary = %q, want it to fold in the generic parser's findings", result.Summary)
	}
}

func TestSummarize_TruncatesLongFindings(t *testing.T) {
	long := strings.Repeat("x", maxFindingsLen+500)
	result := &Result{Passed: false, Summary: "exit code 1", Findings: `"` + long + `"`}

	got := summarize(result)
	if len(got) >= len(long) {
		t.Errorf("summarize() did not truncate: got %d chars", len(got))
	}
	if !strings.Contains(got, "…(truncated)") {
		t.Error("summarize() missing truncation marker")
	}
}
