// Package handlers adapts the nine operational-state handlers onto the
// external collaborators described in the workflow orchestration engine's
// external interfaces: a code-host client, an LLM client, codebase
// search, a patch engine, and a deterministic check runner.
package handlers

import (
	"context"
	"fmt"

	appctx "github.com/lucasnoah/forgebot/internal/context"
	"github.com/lucasnoah/forgebot/internal/prompt"
	"github.com/lucasnoah/forgebot/internal/workflow"
)

// CodeHost is the subset of the code-host client a handler needs.
type CodeHost interface {
	GetIssue(ctx context.Context, owner, repo string, number int) (*workflow.Issue, error)
	CreateChangeRequest(ctx context.Context, owner, repo, branch, title, body string) (*workflow.Submission, error)
}

// Generator is the subset of the LLM client a handler needs: one prompt
// in, one completion out.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Searcher is the codebase search collaborator.
type Searcher interface {
	Search(ctx context.Context, root string, terms []string) ([]workflow.SearchHit, error)
}

// PatchEngine parses and applies unified diffs.
type PatchEngine interface {
	Apply(ctx context.Context, root string, patches []workflow.Patch) (*workflow.ApplyResult, error)
}

// CheckRunner runs a named deterministic check (build or test) against a
// checkout and reports pass/fail.
type CheckRunner interface {
	Run(ctx context.Context, root string, name string) (*workflow.CheckResult, error)
}

// Deps bundles the collaborators the nine handlers are built against, plus
// the local checkout root they operate on.
type Deps struct {
	CodeHost CodeHost
	LLM      Generator
	Search   Searcher
	Patch    PatchEngine
	Checks   CheckRunner
	Diff     *appctx.Builder
	Root     string
	Branch   string
}

// Register installs all nine handlers onto coordinator.
func Register(coordinator *workflow.Coordinator, deps Deps) {
	coordinator.Register(workflow.StateAnalyzing, Analyzing(deps))
	coordinator.Register(workflow.StateSearching, Searching(deps))
	coordinator.Register(workflow.StatePlanning, Planning(deps))
	coordinator.Register(workflow.StateGenerating, Generating(deps))
	coordinator.Register(workflow.StateApplying, Applying(deps))
	coordinator.Register(workflow.StateBuilding, Building(deps))
	coordinator.Register(workflow.StateTesting, Testing(deps))
	coordinator.Register(workflow.StateReviewing, Reviewing(deps))
	coordinator.Register(workflow.StateSubmitting, Submitting(deps))
}

const analysisSystemPrompt = `You analyze a bug report and produce a short root-cause summary
and a list of search terms likely to find the offending code. Respond with plain text: a summary
line, then one search term per line prefixed with "- ".`

// Analyzing asks the LLM client to turn the fetched issue into a
// structured Analysis.
func Analyzing(deps Deps) workflow.Handler {
	return func(ctx context.Context, data workflow.Data) (workflow.DataPatch, error) {
		if data.Issue == nil {
			return workflow.DataPatch{}, fmt.Errorf("analyzing: no issue in workflow data")
		}
		userPrompt, err := prompt.RenderAnalyze(prompt.Vars{
			"issue_title": data.Issue.Title,
			"issue_body":  data.Issue.Body,
		})
		if err != nil {
			return workflow.DataPatch{}, fmt.Errorf("analyzing: render prompt: %w", err)
		}
		out, err := deps.LLM.Generate(ctx, analysisSystemPrompt, userPrompt)
		if err != nil {
			return workflow.DataPatch{}, fmt.Errorf("analyzing: generate: %w", err)
		}
		summary, terms := splitSummaryAndTerms(out)
		return workflow.DataPatch{
			Analysis: &workflow.Analysis{Summary: summary, QueryTerms: terms},
		}, nil
	}
}

// Searching runs the codebase search collaborator over the analysis's
// query terms.
func Searching(deps Deps) workflow.Handler {
	return func(ctx context.Context, data workflow.Data) (workflow.DataPatch, error) {
		if data.Analysis == nil {
			return workflow.DataPatch{}, fmt.Errorf("searching: no analysis in workflow data")
		}
		hits, err := deps.Search.Search(ctx, deps.Root, data.Analysis.QueryTerms)
		if err != nil {
			return workflow.DataPatch{}, fmt.Errorf("searching: %w", err)
		}
		return workflow.DataPatch{SearchResults: hits}, nil
	}
}

const planSystemPrompt = `You write a short ordered fix plan given a bug analysis and a list of
candidate source locations. Respond with one step per line, numbered.`

// Planning asks the LLM client for an ordered fix plan.
func Planning(deps Deps) workflow.Handler {
	return func(ctx context.Context, data workflow.Data) (workflow.DataPatch, error) {
		if len(data.SearchResults) == 0 {
			return workflow.DataPatch{}, fmt.Errorf("planning: no search results in workflow data")
		}
		userPrompt, err := prompt.RenderPlan(prompt.Vars{
			"analysis_summary": data.Analysis.Summary,
			"search_hits":      formatHits(data.SearchResults),
		})
		if err != nil {
			return workflow.DataPatch{}, fmt.Errorf("planning: render prompt: %w", err)
		}
		out, err := deps.LLM.Generate(ctx, planSystemPrompt, userPrompt)
		if err != nil {
			return workflow.DataPatch{}, fmt.Errorf("planning: generate: %w", err)
		}
		return workflow.DataPatch{Plan: &workflow.Plan{Steps: splitLines(out)}}, nil
	}
}

const generateSystemPrompt = `You produce a fix for a bug given a plan. Respond with a short
explanation paragraph, then one or more unified diff hunks, each preceded by a line
"--- file: <path>".`

// Generating asks the LLM client to turn the plan into a patch proposal.
// This is the retry target for every failure in the fix cycle: a failed
// apply, build, test, or review is treated as evidence the fix itself was
// wrong, so recovery re-invokes this handler rather than the one that
// failed.
func Generating(deps Deps) workflow.Handler {
	return func(ctx context.Context, data workflow.Data) (workflow.DataPatch, error) {
		if data.Plan == nil {
			return workflow.DataPatch{}, fmt.Errorf("generating: no plan in workflow data")
		}
		var priorRejection string
		if data.Review != nil && !data.Review.Approved {
			priorRejection = firstLine(formatSteps(data.Review.Notes))
		}
		userPrompt, err := prompt.RenderGenerate(prompt.Vars{
			"plan_steps":      formatSteps(data.Plan.Steps),
			"prior_rejection": priorRejection,
		})
		if err != nil {
			return workflow.DataPatch{}, fmt.Errorf("generating: render prompt: %w", err)
		}
		out, err := deps.LLM.Generate(ctx, generateSystemPrompt, userPrompt)
		if err != nil {
			return workflow.DataPatch{}, fmt.Errorf("generating: generate: %w", err)
		}
		explanation, patches := splitExplanationAndPatches(out)
		return workflow.DataPatch{
			Proposal: &workflow.Proposal{Explanation: explanation, Patches: patches},
		}, nil
	}
}

// Applying hands the proposal's patches to the patch engine.
func Applying(deps Deps) workflow.Handler {
	return func(ctx context.Context, data workflow.Data) (workflow.DataPatch, error) {
		if data.Proposal == nil {
			return workflow.DataPatch{}, fmt.Errorf("applying: no proposal in workflow data")
		}
		result, err := deps.Patch.Apply(ctx, deps.Root, data.Proposal.Patches)
		if err != nil {
			return workflow.DataPatch{}, fmt.Errorf("applying: %w", err)
		}
		return workflow.DataPatch{ApplyResult: result}, nil
	}
}

// Building runs the configured build check.
func Building(deps Deps) workflow.Handler {
	return func(ctx context.Context, data workflow.Data) (workflow.DataPatch, error) {
		result, err := deps.Checks.Run(ctx, deps.Root, "build")
		if err != nil {
			return workflow.DataPatch{}, fmt.Errorf("building: %w", err)
		}
		if !result.Passed {
			return workflow.DataPatch{}, fmt.Errorf("building: %s", result.Summary)
		}
		return workflow.DataPatch{BuildResult: result}, nil
	}
}

// Testing runs the configured test check.
func Testing(deps Deps) workflow.Handler {
	return func(ctx context.Context, data workflow.Data) (workflow.DataPatch, error) {
		result, err := deps.Checks.Run(ctx, deps.Root, "test")
		if err != nil {
			return workflow.DataPatch{}, fmt.Errorf("testing: %w", err)
		}
		if !result.Passed {
			return workflow.DataPatch{}, fmt.Errorf("testing: %s", result.Summary)
		}
		return workflow.DataPatch{TestResult: result}, nil
	}
}

const reviewSystemPrompt = `You review a code fix for obvious regressions given its diff and
test output. Respond with either "APPROVE" or "REJECT: <reason>" on the first line, followed by
optional notes, one per line.`

// Reviewing asks the LLM client to sanity-check the applied fix.
func Reviewing(deps Deps) workflow.Handler {
	return func(ctx context.Context, data workflow.Data) (workflow.DataPatch, error) {
		if data.Proposal == nil || data.TestResult == nil {
			return workflow.DataPatch{}, fmt.Errorf("reviewing: missing proposal or test result")
		}
		var diffText string
		if deps.Diff != nil {
			diffCtx, err := deps.Diff.Build(deps.Root)
			if err != nil {
				return workflow.DataPatch{}, fmt.Errorf("reviewing: build diff context: %w", err)
			}
			diffText = diffCtx.Diff
		}
		userPrompt, err := prompt.RenderReview(prompt.Vars{
			"explanation":  data.Proposal.Explanation,
			"test_summary": data.TestResult.Summary,
			"diff":         diffText,
		})
		if err != nil {
			return workflow.DataPatch{}, fmt.Errorf("reviewing: render prompt: %w", err)
		}
		out, err := deps.LLM.Generate(ctx, reviewSystemPrompt, userPrompt)
		if err != nil {
			return workflow.DataPatch{}, fmt.Errorf("reviewing: generate: %w", err)
		}
		approved, notes := parseReview(out)
		review := &workflow.ReviewResult{Approved: approved, Notes: notes}
		if !approved {
			return workflow.DataPatch{Review: review}, fmt.Errorf("reviewing: rejected: %v", notes)
		}
		return workflow.DataPatch{Review: review}, nil
	}
}

// Submitting opens a change request via the code-host client.
func Submitting(deps Deps) workflow.Handler {
	return func(ctx context.Context, data workflow.Data) (workflow.DataPatch, error) {
		if data.Proposal == nil {
			return workflow.DataPatch{}, fmt.Errorf("submitting: no proposal in workflow data")
		}
		title := fmt.Sprintf("Fix: %s", firstLine(data.Proposal.Explanation))
		submission, err := deps.CodeHost.CreateChangeRequest(ctx, data.Input.Owner, data.Input.Repo, deps.Branch, title, data.Proposal.Explanation)
		if err != nil {
			return workflow.DataPatch{}, fmt.Errorf("submitting: %w", err)
		}
		return workflow.DataPatch{Submission: submission}, nil
	}
}
