package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"

	appctx "github.com/lucasnoah/forgebot/internal/context"
	"github.com/lucasnoah/forgebot/internal/workflow"
)

type mockCodeHost struct {
	issue      *workflow.Issue
	issueErr   error
	submission *workflow.Submission
	submitErr  error
}

func (m *mockCodeHost) GetIssue(ctx context.Context, owner, repo string, number int) (*workflow.Issue, error) {
	return m.issue, m.issueErr
}

func (m *mockCodeHost) CreateChangeRequest(ctx context.Context, owner, repo, branch, title, body string) (*workflow.Submission, error) {
	return m.submission, m.submitErr
}

type mockGenerator struct {
	out string
	err error
}

func (m *mockGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.out, m.err
}

type mockSearcher struct {
	hits []workflow.SearchHit
	err  error
}

func (m *mockSearcher) Search(ctx context.Context, root string, terms []string) ([]workflow.SearchHit, error) {
	return m.hits, m.err
}

type mockPatchEngine struct {
	result *workflow.ApplyResult
	err    error
}

func (m *mockPatchEngine) Apply(ctx context.Context, root string, patches []workflow.Patch) (*workflow.ApplyResult, error) {
	return m.result, m.err
}

type mockCheckRunner struct {
	result *workflow.CheckResult
	err    error
}

func (m *mockCheckRunner) Run(ctx context.Context, root string, name string) (*workflow.CheckResult, error) {
	return m.result, m.err
}

type mockGitRunner struct {
	diff string
	err  error
}

func (m *mockGitRunner) Diff(dir string) (string, error)         { return m.diff, m.err }
func (m *mockGitRunner) DiffSummary(dir string) (string, error)  { return "", nil }
func (m *mockGitRunner) FilesChanged(dir string) (string, error) { return "", nil }
func (m *mockGitRunner) Log(dir string) (string, error)          { return "", nil }

func TestAnalyzing(t *testing.T) {
	deps := Deps{LLM: &mockGenerator{out: "nil pointer in parser\n- parser.go\n- lexer.go"}}
	h := Analyzing(deps)

	data := workflow.Data{Issue: &workflow.Issue{Title: "crash on empty input", Body: "parser panics"}}
	patch, err := h(context.Background(), data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.Analysis == nil {
		t.Fatal("expected Analysis patch")
	}
	if patch.Analysis.Summary != "nil pointer in parser" {
		t.Errorf("summary = %q", patch.Analysis.Summary)
	}
	if len(patch.Analysis.QueryTerms) != 2 {
		t.Errorf("expected 2 query terms, got %v", patch.Analysis.QueryTerms)
	}
}

func TestAnalyzing_NoIssue(t *testing.T) {
	h := Analyzing(Deps{LLM: &mockGenerator{}})
	_, err := h(context.Background(), workflow.Data{})
	if err == nil {
		t.Fatal("expected error when issue is missing")
	}
}

func TestSearching(t *testing.T) {
	hits := []workflow.SearchHit{{File: "parser.go", Line: 10, Excerpt: "func Parse"}}
	deps := Deps{Search: &mockSearcher{hits: hits}, Root: "/repo"}
	h := Searching(deps)

	data := workflow.Data{Analysis: &workflow.Analysis{QueryTerms: []string{"parser.go"}}}
	patch, err := h(context.Background(), data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(patch.SearchResults) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(patch.SearchResults))
	}
}

func TestSearching_NoAnalysis(t *testing.T) {
	h := Searching(Deps{Search: &mockSearcher{}})
	_, err := h(context.Background(), workflow.Data{})
	if err == nil {
		t.Fatal("expected error when analysis is missing")
	}
}

func TestPlanning(t *testing.T) {
	deps := Deps{LLM: &mockGenerator{out: "1. add nil check\n2. add test"}}
	h := Planning(deps)

	data := workflow.Data{
		Analysis:      &workflow.Analysis{Summary: "nil pointer in parser"},
		SearchResults: []workflow.SearchHit{{File: "parser.go", Line: 10, Excerpt: "func Parse"}},
	}
	patch, err := h(context.Background(), data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.Plan == nil || len(patch.Plan.Steps) != 2 {
		t.Fatalf("expected 2 plan steps, got %+v", patch.Plan)
	}
}

func TestPlanning_NoSearchResults(t *testing.T) {
	h := Planning(Deps{LLM: &mockGenerator{}})
	data := workflow.Data{Analysis: &workflow.Analysis{Summary: "x"}}
	_, err := h(context.Background(), data)
	if err == nil {
		t.Fatal("expected error when search results are missing")
	}
}

func TestGenerating(t *testing.T) {
	out := "Added a nil check.\n--- file: parser.go\n@@ -1,1 +1,2 @@\n+if x == nil { return }\n"
	deps := Deps{LLM: &mockGenerator{out: out}}
	h := Generating(deps)

	data := workflow.Data{Plan: &workflow.Plan{Steps: []string{"1. add nil check"}}}
	patch, err := h(context.Background(), data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.Proposal == nil {
		t.Fatal("expected Proposal patch")
	}
	if len(patch.Proposal.Patches) != 1 || patch.Proposal.Patches[0].File != "parser.go" {
		t.Errorf("unexpected patches: %+v", patch.Proposal.Patches)
	}
}

func TestGenerating_NoPlan(t *testing.T) {
	h := Generating(Deps{LLM: &mockGenerator{}})
	_, err := h(context.Background(), workflow.Data{})
	if err == nil {
		t.Fatal("expected error when plan is missing")
	}
}

func TestGenerating_IncludesPriorRejection(t *testing.T) {
	var captured string
	deps := Deps{LLM: &captureGenerator{capture: &captured}}
	h := Generating(deps)

	data := workflow.Data{
		Plan:   &workflow.Plan{Steps: []string{"1. add nil check"}},
		Review: &workflow.ReviewResult{Approved: false, Notes: []string{"didn't handle the nil slice case"}},
	}
	if _, err := h(context.Background(), data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(captured, "didn't handle the nil slice case") {
		t.Errorf("expected prior rejection in prompt, got: %q", captured)
	}
}

type captureGenerator struct {
	capture *string
	out     string // response to return; "explanation text" when empty
}

func (c *captureGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	*c.capture = userPrompt
	if c.out != "" {
		return c.out, nil
	}
	return "explanation text", nil
}

func TestApplying(t *testing.T) {
	result := &workflow.ApplyResult{FilesChanged: []string{"parser.go"}}
	deps := Deps{Patch: &mockPatchEngine{result: result}, Root: "/repo"}
	h := Applying(deps)

	data := workflow.Data{Proposal: &workflow.Proposal{Patches: []workflow.Patch{{File: "parser.go", Diff: "..."}}}}
	patch, err := h(context.Background(), data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.ApplyResult != result {
		t.Errorf("expected ApplyResult passthrough")
	}
}

func TestApplying_NoProposal(t *testing.T) {
	h := Applying(Deps{Patch: &mockPatchEngine{}})
	_, err := h(context.Background(), workflow.Data{})
	if err == nil {
		t.Fatal("expected error when proposal is missing")
	}
}

func TestBuilding_Pass(t *testing.T) {
	deps := Deps{Checks: &mockCheckRunner{result: &workflow.CheckResult{Passed: true, Summary: "ok"}}}
	h := Building(deps)

	patch, err := h(context.Background(), workflow.Data{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.BuildResult == nil || !patch.BuildResult.Passed {
		t.Errorf("expected passing BuildResult, got %+v", patch.BuildResult)
	}
}

func TestBuilding_Fail(t *testing.T) {
	deps := Deps{Checks: &mockCheckRunner{result: &workflow.CheckResult{Passed: false, Summary: "compile error"}}}
	h := Building(deps)

	_, err := h(context.Background(), workflow.Data{})
	if err == nil {
		t.Fatal("expected error when build check fails")
	}
}

func TestTesting_Pass(t *testing.T) {
	deps := Deps{Checks: &mockCheckRunner{result: &workflow.CheckResult{Passed: true, Summary: "ok"}}}
	h := Testing(deps)

	patch, err := h(context.Background(), workflow.Data{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.TestResult == nil || !patch.TestResult.Passed {
		t.Errorf("expected passing TestResult, got %+v", patch.TestResult)
	}
}

func TestTesting_Fail(t *testing.T) {
	deps := Deps{Checks: &mockCheckRunner{result: &workflow.CheckResult{Passed: false, Summary: "2 failures"}}}
	h := Testing(deps)

	_, err := h(context.Background(), workflow.Data{})
	if err == nil {
		t.Fatal("expected error when test check fails")
	}
}

func TestReviewing_Approved(t *testing.T) {
	deps := Deps{LLM: &mockGenerator{out: "APPROVE\nlooks good"}}
	h := Reviewing(deps)

	data := workflow.Data{
		Proposal:   &workflow.Proposal{Explanation: "fixed nil check"},
		TestResult: &workflow.CheckResult{Passed: true, Summary: "all tests passed"},
	}
	patch, err := h(context.Background(), data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.Review == nil || !patch.Review.Approved {
		t.Fatalf("expected approved review, got %+v", patch.Review)
	}
}

func TestReviewing_Rejected(t *testing.T) {
	deps := Deps{LLM: &mockGenerator{out: "REJECT: missed an edge case"}}
	h := Reviewing(deps)

	data := workflow.Data{
		Proposal:   &workflow.Proposal{Explanation: "fixed nil check"},
		TestResult: &workflow.CheckResult{Passed: true, Summary: "all tests passed"},
	}
	patch, err := h(context.Background(), data)
	if err == nil {
		t.Fatal("expected error when review rejects the fix")
	}
	if patch.Review == nil || patch.Review.Approved {
		t.Fatalf("expected a rejected Review patch alongside the error, got %+v", patch.Review)
	}
	if len(patch.Review.Notes) == 0 || !strings.Contains(patch.Review.Notes[0], "missed an edge case") {
		t.Errorf("expected rejection reason in Review.Notes, got %v", patch.Review.Notes)
	}
}

func TestReviewing_MissingData(t *testing.T) {
	h := Reviewing(Deps{LLM: &mockGenerator{}})
	_, err := h(context.Background(), workflow.Data{})
	if err == nil {
		t.Fatal("expected error when proposal/test result are missing")
	}
}

func TestReviewing_IncludesDiffContext(t *testing.T) {
	var captured string
	deps := Deps{
		LLM:  &captureGenerator{capture: &captured, out: "APPROVE"},
		Diff: appctx.NewBuilder(&mockGitRunner{diff: "--- a/parser.go\n+++ b/parser.go\n"}),
		Root: "/repo/worktrees/run-1",
	}
	h := Reviewing(deps)

	data := workflow.Data{
		Proposal:   &workflow.Proposal{Explanation: "fixed nil check"},
		TestResult: &workflow.CheckResult{Passed: true, Summary: "all tests passed"},
	}
	if _, err := h(context.Background(), data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(captured, "parser.go") {
		t.Errorf("expected diff content in prompt, got: %q", captured)
	}
}

func TestReviewing_DiffBuildError(t *testing.T) {
	deps := Deps{
		LLM:  &mockGenerator{out: "APPROVE"},
		Diff: appctx.NewBuilder(&mockGitRunner{err: errors.New("merge-base: no such branch")}),
		Root: "/repo/worktrees/run-1",
	}
	h := Reviewing(deps)

	data := workflow.Data{
		Proposal:   &workflow.Proposal{Explanation: "fixed nil check"},
		TestResult: &workflow.CheckResult{Passed: true, Summary: "all tests passed"},
	}
	_, err := h(context.Background(), data)
	if err == nil {
		t.Fatal("expected error when diff context build fails")
	}
}

func TestSubmitting(t *testing.T) {
	submission := &workflow.Submission{PRNumber: 7, PRURL: "https://example.com/pr/7"}
	deps := Deps{CodeHost: &mockCodeHost{submission: submission}, Branch: "forgebot/run-1"}
	h := Submitting(deps)

	data := workflow.Data{
		Input:    workflow.Input{Owner: "acme", Repo: "widgets"},
		Proposal: &workflow.Proposal{Explanation: "fixed nil check\nmore detail"},
	}
	patch, err := h(context.Background(), data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.Submission != submission {
		t.Errorf("expected Submission passthrough")
	}
}

func TestSubmitting_NoProposal(t *testing.T) {
	h := Submitting(Deps{CodeHost: &mockCodeHost{}})
	_, err := h(context.Background(), workflow.Data{})
	if err == nil {
		t.Fatal("expected error when proposal is missing")
	}
}
