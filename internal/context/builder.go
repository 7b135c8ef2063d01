// Package context assembles the git-diff context the REVIEWING handler
// hands to the LLM client alongside a fix's explanation and test output:
// the diff itself, a stat summary, the files it touched, and the commit
// log since the fix's worktree branched off main.
package context

import (
	"fmt"
	"strings"
)

// GitRunner provides the git operations a Builder needs. Interface for
// testing.
type GitRunner interface {
	Diff(dir string) (string, error)
	DiffSummary(dir string) (string, error)
	FilesChanged(dir string) (string, error)
	Log(dir string) (string, error)
}

// DiffContext is the assembled git state for an in-progress fix.
type DiffContext struct {
	Diff         string
	Summary      string
	FilesChanged []string
	Commits      string
}

// Builder assembles DiffContext from a run's worktree checkout.
type Builder struct {
	git GitRunner
}

// NewBuilder creates a Builder over git.
func NewBuilder(git GitRunner) *Builder {
	return &Builder{git: git}
}

// Build collects the diff, stat summary, file list, and commit log for
// the checkout at worktreePath. A nil Builder.git (no git collaborator
// configured) yields an empty, error-free DiffContext.
func (b *Builder) Build(worktreePath string) (*DiffContext, error) {
	if b.git == nil {
		return &DiffContext{}, nil
	}

	diff, err := b.git.Diff(worktreePath)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}

	summary, _ := b.git.DiffSummary(worktreePath)
	commits, _ := b.git.Log(worktreePath)

	var files []string
	if out, err := b.git.FilesChanged(worktreePath); err == nil && out != "" {
		files = strings.Split(strings.TrimSpace(out), "\n")
	}

	return &DiffContext{
		Diff:         diff,
		Summary:      summary,
		FilesChanged: files,
		Commits:      commits,
	}, nil
}
