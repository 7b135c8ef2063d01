// Package patch is the patch engine external collaborator: parse unified
// diffs, apply them to file content on disk, report a structured failure
// (hunk context mismatch, missing file) rather than a bare error where
// possible.
package patch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gitleaks/go-gitdiff/gitdiff"

	"github.com/lucasnoah/forgebot/internal/workflow"
)

// ApplyFailure describes why a single patch could not be applied.
type ApplyFailure struct {
	File   string
	Reason string
}

func (f *ApplyFailure) Error() string {
	return fmt.Sprintf("apply %s: %s", f.File, f.Reason)
}

// Engine applies unified-diff patches against files rooted at a checkout
// directory.
type Engine struct{}

// NewEngine returns a patch Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Apply parses and applies each patch in turn, writing the updated content
// back to disk atomically. It stops at the first patch that fails to
// parse or apply and returns an *ApplyFailure describing it.
func (e *Engine) Apply(ctx context.Context, root string, patches []workflow.Patch) (*workflow.ApplyResult, error) {
	var changed []string
	for _, p := range patches {
		if err := e.applyOne(root, p); err != nil {
			return nil, err
		}
		changed = append(changed, p.File)
	}
	return &workflow.ApplyResult{FilesChanged: changed}, nil
}

func (e *Engine) applyOne(root string, p workflow.Patch) error {
	ch, err := gitdiff.Parse(strings.NewReader(p.Diff))
	if err != nil {
		return &ApplyFailure{File: p.File, Reason: fmt.Sprintf("parse diff: %v", err)}
	}
	var files []*gitdiff.File
	for f := range ch {
		files = append(files, f)
	}
	if len(files) == 0 {
		return &ApplyFailure{File: p.File, Reason: "diff contains no file sections"}
	}

	path := filepath.Join(root, p.File)
	src, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return &ApplyFailure{File: p.File, Reason: fmt.Sprintf("read source: %v", err)}
		}
		src = nil
	}

	var out bytes.Buffer
	if err := gitdiff.Apply(&out, bytes.NewReader(src), files[0]); err != nil {
		return &ApplyFailure{File: p.File, Reason: fmt.Sprintf("apply hunks: %v", err)}
	}

	if err := writeAtomic(path, out.Bytes()); err != nil {
		return &ApplyFailure{File: p.File, Reason: fmt.Sprintf("write result: %v", err)}
	}
	return nil
}

// writeAtomic writes data to path via a temp file in the same directory
// followed by a rename, the same idiom used by the run-record store.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			os.Remove(tmpName)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpName, path, err)
	}
	tmpName = ""
	return nil
}
