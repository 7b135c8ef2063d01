package prompt

// builtinTemplates maps template filename to content.
var builtinTemplates = map[string]string{
	"analyze.md":  analyzeTemplate,
	"plan.md":     planTemplate,
	"generate.md": generateTemplate,
	"review.md":   reviewTemplate,
}

const analyzeTemplate = `{{issue_title}}

{{issue_body}}
`

const planTemplate = `Analysis: {{analysis_summary}}

Candidate locations:
{{search_hits}}
`

const generateTemplate = `Plan:
{{plan_steps}}

{{#if prior_rejection}}
The previous attempt was rejected during review: {{prior_rejection}}
Take that into account.
{{/if}}
`

const reviewTemplate = `Explanation: {{explanation}}
Tests: {{test_summary}}

{{#if diff}}
Diff:
{{diff}}
{{/if}}
`

// RenderAnalyze renders the ANALYZING stage's user prompt from an issue title and body.
func RenderAnalyze(vars Vars) (string, error) { return Render(analyzeTemplate, vars) }

// RenderPlan renders the PLANNING stage's user prompt from an analysis summary and search hits.
func RenderPlan(vars Vars) (string, error) { return Render(planTemplate, vars) }

// RenderGenerate renders the GENERATING stage's user prompt from a fix plan
// and, on retry, the prior review rejection reason.
func RenderGenerate(vars Vars) (string, error) { return Render(generateTemplate, vars) }

// RenderReview renders the REVIEWING stage's user prompt from a fix explanation and test summary.
func RenderReview(vars Vars) (string, error) { return Render(reviewTemplate, vars) }
