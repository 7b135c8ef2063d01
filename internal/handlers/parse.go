package handlers

import (
	"strconv"
	"strings"

	"github.com/lucasnoah/forgebot/internal/workflow"
)

// splitSummaryAndTerms parses the ANALYZING prompt's expected response
// shape: a summary line followed by "- term" lines.
func splitSummaryAndTerms(out string) (string, []string) {
	lines := splitLines(out)
	if len(lines) == 0 {
		return "", nil
	}
	var terms []string
	for _, l := range lines[1:] {
		l = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l), "-"))
		if l != "" {
			terms = append(terms, l)
		}
	}
	return strings.TrimSpace(lines[0]), terms
}

func splitLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func formatHits(hits []workflow.SearchHit) string {
	var b strings.Builder
	for _, h := range hits {
		b.WriteString(h.File)
		b.WriteString(":")
		b.WriteString(strconv.Itoa(h.Line))
		b.WriteString(" ")
		b.WriteString(h.Excerpt)
		b.WriteString("\n")
	}
	return b.String()
}

func formatSteps(steps []string) string {
	return strings.Join(steps, "\n")
}

// splitExplanationAndPatches parses the GENERATING prompt's expected
// response shape: a free-text explanation, then one or more sections each
// starting with "--- file: <path>" followed by the diff body.
func splitExplanationAndPatches(out string) (string, []workflow.Patch) {
	const marker = "--- file: "
	idx := strings.Index(out, marker)
	if idx < 0 {
		return strings.TrimSpace(out), nil
	}
	explanation := strings.TrimSpace(out[:idx])

	var patches []workflow.Patch
	rest := out[idx:]
	for len(rest) > 0 {
		rest = strings.TrimPrefix(rest, marker)
		nl := strings.IndexByte(rest, '\n')
		var file string
		if nl < 0 {
			file = strings.TrimSpace(rest)
			rest = ""
		} else {
			file = strings.TrimSpace(rest[:nl])
			rest = rest[nl+1:]
		}
		next := strings.Index(rest, marker)
		var diff string
		if next < 0 {
			diff = rest
			rest = ""
		} else {
			diff = rest[:next]
			rest = rest[next:]
		}
		patches = append(patches, workflow.Patch{File: file, Diff: strings.TrimSpace(diff)})
	}
	return explanation, patches
}

// parseReview parses the REVIEWING prompt's expected response shape.
func parseReview(out string) (bool, []string) {
	lines := splitLines(out)
	if len(lines) == 0 {
		return false, nil
	}
	first := strings.TrimSpace(lines[0])
	approved := strings.HasPrefix(strings.ToUpper(first), "APPROVE")
	var notes []string
	if !approved {
		notes = append(notes, first)
	}
	notes = append(notes, lines[1:]...)
	return approved, notes
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
