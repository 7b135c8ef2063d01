// Package search is the codebase search external collaborator:
// pattern-based hit retrieval over a checkout. It shells out to grep the
// same way the repository's deterministic check runner shells out to
// check commands, rather than building a bespoke indexer.
package search

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/lucasnoah/forgebot/internal/workflow"
)

// Runner searches a checkout for each of a set of terms using grep.
type Runner struct {
	// MaxHitsPerTerm caps how many matches are kept per search term,
	// defaulting to 20 when zero.
	MaxHitsPerTerm int
}

// NewRunner returns a Runner with default limits.
func NewRunner() *Runner {
	return &Runner{MaxHitsPerTerm: 20}
}

// Search runs one case-insensitive, recursive grep per term under root and
// aggregates the hits, deduplicating identical (file, line) pairs across
// terms.
func (r *Runner) Search(ctx context.Context, root string, terms []string) ([]workflow.SearchHit, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("search: no query terms")
	}
	limit := r.MaxHitsPerTerm
	if limit <= 0 {
		limit = 20
	}

	seen := map[string]bool{}
	var hits []workflow.SearchHit
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		cmd := exec.CommandContext(ctx, "grep", "-rn", "-i", "--include=*.go", term, root)
		out, err := cmd.Output()
		if err != nil {
			if _, ok := err.(*exec.ExitError); ok {
				continue // no matches for this term, grep exits 1
			}
			return nil, fmt.Errorf("search %q: %w", term, err)
		}

		count := 0
		scanner := bufio.NewScanner(strings.NewReader(string(out)))
		for scanner.Scan() && count < limit {
			file, line, excerpt, ok := parseGrepLine(scanner.Text())
			if !ok {
				continue
			}
			key := file + ":" + strconv.Itoa(line)
			if seen[key] {
				continue
			}
			seen[key] = true
			hits = append(hits, workflow.SearchHit{File: file, Line: line, Excerpt: excerpt})
			count++
		}
	}
	return hits, nil
}

func parseGrepLine(line string) (file string, lineNo int, excerpt string, ok bool) {
	first := strings.IndexByte(line, ':')
	if first < 0 {
		return "", 0, "", false
	}
	second := strings.IndexByte(line[first+1:], ':')
	if second < 0 {
		return "", 0, "", false
	}
	second += first + 1

	n, err := strconv.Atoi(line[first+1 : second])
	if err != nil {
		return "", 0, "", false
	}
	return line[:first], n, strings.TrimSpace(line[second+1:]), true
}
