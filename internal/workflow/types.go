// Package workflow implements the durable, resumable, retry-aware state
// machine at the core of the bug-fixing pipeline: state store, state
// machine, recovery manager, and coordinator. The top-level driver lives in
// internal/orchestrator.
package workflow

import "time"

// State is a discrete phase of a run.
type State string

const (
	StateIdle       State = "IDLE"
	StateAnalyzing  State = "ANALYZING"
	StateSearching  State = "SEARCHING"
	StatePlanning   State = "PLANNING"
	StateGenerating State = "GENERATING"
	StateApplying   State = "APPLYING"
	StateBuilding   State = "BUILDING"
	StateTesting    State = "TESTING"
	StateReviewing  State = "REVIEWING"
	StateSubmitting State = "SUBMITTING"
	StateDone       State = "DONE"

	StatePaused    State = "PAUSED"
	StateError     State = "ERROR"
	StateCancelled State = "CANCELLED"
)

// operationalStates is the set of states in which a handler runs or can run.
var operationalStates = map[State]bool{
	StateIdle:       true,
	StateAnalyzing:  true,
	StateSearching:  true,
	StatePlanning:   true,
	StateGenerating: true,
	StateApplying:   true,
	StateBuilding:   true,
	StateTesting:    true,
	StateReviewing:  true,
	StateSubmitting: true,
	StateDone:       true,
}

// IsOperational reports whether s is a state in which a handler runs.
func (s State) IsOperational() bool {
	return operationalStates[s]
}

// IsControl reports whether s is a suspend/terminate control state.
func (s State) IsControl() bool {
	switch s {
	case StatePaused, StateError, StateCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether a run in s will never advance again.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateCancelled
}

// Trigger is a symbolic event driving a transition.
type Trigger string

const (
	TriggerStart      Trigger = "START"
	TriggerAnalysisOK Trigger = "ANALYSIS_OK"
	TriggerSearchOK   Trigger = "SEARCH_OK"
	TriggerPlanOK     Trigger = "PLAN_OK"
	TriggerGenerateOK Trigger = "GENERATION_OK"
	TriggerApplyOK    Trigger = "APPLY_OK"
	TriggerBuildOK    Trigger = "BUILD_OK"
	TriggerTestOK     Trigger = "TEST_OK"
	TriggerReviewOK   Trigger = "REVIEW_OK"
	TriggerSubmitOK   Trigger = "SUBMIT_OK"

	TriggerPause  Trigger = "PAUSE"
	TriggerResume Trigger = "RESUME"
	TriggerCancel Trigger = "CANCEL"
	TriggerFail   Trigger = "FAIL"
	TriggerRetry  Trigger = "RETRY"
)

// successTrigger is the canonical success trigger fired when a handler for
// a given operational state completes without error.
var successTrigger = map[State]Trigger{
	StateIdle:       TriggerStart,
	StateAnalyzing:  TriggerAnalysisOK,
	StateSearching:  TriggerSearchOK,
	StatePlanning:   TriggerPlanOK,
	StateGenerating: TriggerGenerateOK,
	StateApplying:   TriggerApplyOK,
	StateBuilding:   TriggerBuildOK,
	StateTesting:    TriggerTestOK,
	StateReviewing:  TriggerReviewOK,
	StateSubmitting: TriggerSubmitOK,
}

// SuccessTrigger returns the canonical success trigger for s, and whether
// one is defined (it is not, for DONE and the control states).
func SuccessTrigger(s State) (Trigger, bool) {
	t, ok := successTrigger[s]
	return t, ok
}

// fixCycle is the set of states inside which a retryable failure rewinds to
// GENERATING rather than retrying the failing stage itself.
var fixCycle = map[State]bool{
	StateGenerating: true,
	StateApplying:   true,
	StateBuilding:   true,
	StateTesting:    true,
	StateReviewing:  true,
}

// InFixCycle reports whether s is one of the fix-cycle states.
func InFixCycle(s State) bool {
	return fixCycle[s]
}

// Input is the caller-supplied seed for a new run.
type Input struct {
	Owner       string
	Repo        string
	IssueNumber int
}

// Issue is the fetched issue record, populated by the code-host client
// before ANALYZING runs.
type Issue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	URL    string `json:"url"`
}

// Analysis is the structured output of the ANALYZING stage.
type Analysis struct {
	Summary     string   `json:"summary"`
	QueryTerms  []string `json:"queryTerms"`
	RootCauseAt string   `json:"rootCauseAt,omitempty"`
}

// SearchHit is one result returned by the codebase search collaborator.
type SearchHit struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Excerpt string `json:"excerpt"`
}

// Plan is the ordered fix plan produced by the PLANNING stage.
type Plan struct {
	Steps []string `json:"steps"`
}

// Patch is a single unified-diff hunk set against one file.
type Patch struct {
	File string `json:"file"`
	Diff string `json:"diff"`
}

// Proposal is the fix proposal produced by the GENERATING stage.
type Proposal struct {
	Explanation string  `json:"explanation"`
	Patches     []Patch `json:"patches"`
}

// ApplyResult is the outcome of the APPLYING stage.
type ApplyResult struct {
	FilesChanged []string `json:"filesChanged"`
}

// CheckResult is the outcome of a deterministic check run (BUILDING or
// TESTING).
type CheckResult struct {
	Passed  bool   `json:"passed"`
	Summary string `json:"summary"`
}

// ReviewResult is the outcome of the REVIEWING stage.
type ReviewResult struct {
	Approved bool     `json:"approved"`
	Notes    []string `json:"notes,omitempty"`
}

// Submission is the outcome of the SUBMITTING stage.
type Submission struct {
	PRNumber int    `json:"prNumber"`
	PRURL    string `json:"prUrl"`
}

// CostMetrics accumulates LLM usage across the run.
type CostMetrics struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Data is the typed, monotonically-growing bundle of values passed to and
// accumulated across handler invocations. Every field is optional until its
// producing stage has run; once set, a field is never cleared by a
// subsequent stage within the same forward pass.
type Data struct {
	Input Input

	Issue         *Issue
	Analysis      *Analysis
	SearchResults []SearchHit
	Plan          *Plan
	Proposal      *Proposal
	ApplyResult   *ApplyResult
	BuildResult   *CheckResult
	TestResult    *CheckResult
	Review        *ReviewResult
	Submission    *Submission
	Cost          *CostMetrics
}

// DataPatch is a partial update returned by a handler, merged into the live
// Data accumulator by the orchestrator. Only non-nil/non-empty fields are
// applied; the zero value changes nothing.
type DataPatch struct {
	Issue         *Issue
	Analysis      *Analysis
	SearchResults []SearchHit
	Plan          *Plan
	Proposal      *Proposal
	ApplyResult   *ApplyResult
	BuildResult   *CheckResult
	TestResult    *CheckResult
	Review        *ReviewResult
	Submission    *Submission
	Cost          *CostMetrics
}

// Apply merges p into d in place, overwriting only the fields p sets.
func (d *Data) Apply(p DataPatch) {
	if p.Issue != nil {
		d.Issue = p.Issue
	}
	if p.Analysis != nil {
		d.Analysis = p.Analysis
	}
	if len(p.SearchResults) > 0 {
		d.SearchResults = p.SearchResults
	}
	if p.Plan != nil {
		d.Plan = p.Plan
	}
	if p.Proposal != nil {
		d.Proposal = p.Proposal
	}
	if p.ApplyResult != nil {
		d.ApplyResult = p.ApplyResult
	}
	if p.BuildResult != nil {
		d.BuildResult = p.BuildResult
	}
	if p.TestResult != nil {
		d.TestResult = p.TestResult
	}
	if p.Review != nil {
		d.Review = p.Review
	}
	if p.Submission != nil {
		d.Submission = p.Submission
	}
	if p.Cost != nil {
		d.Cost = p.Cost
	}
}

// Clone returns a deep-enough copy of d safe to hand to a concurrent
// status reader; slices are copied, pointed-to structs are treated as
// immutable once set and shared.
func (d Data) Clone() Data {
	out := d
	if d.SearchResults != nil {
		out.SearchResults = append([]SearchHit(nil), d.SearchResults...)
	}
	return out
}

// ErrorPayload is the optional error recorded on a run record. Severity
// and RetryTarget mirror the corresponding Classification fields so a
// process resuming a persisted ERROR record can reconstruct the recovery
// manager's verdict without re-running Classify against a state it no
// longer has.
type ErrorPayload struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Details     string   `json:"details,omitempty"`
	Severity    Severity `json:"severity,omitempty"`
	RetryTarget State    `json:"retryTarget,omitempty"`
}

// Record is the persisted run record. Exactly one exists per runId.
type Record struct {
	RunID        string         `json:"runId"`
	CurrentState State          `json:"currentState"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	Attempt      int            `json:"attempt"`
	Context      map[string]any `json:"context"`
	History      []State        `json:"history"`
	Error        *ErrorPayload  `json:"error,omitempty"`

	// Extra preserves unknown fields across a load/save round-trip so
	// external tooling can stash metadata on the record.
	Extra map[string]any `json:"-"`
}

// Severity classifies how the recovery manager treats a handler error.
type Severity string

const (
	SeverityTransient Severity = "transient"
	SeverityRetryable Severity = "retryable"
	SeverityFatal     Severity = "fatal"
)

const (
	CodeTransient     = "TRANSIENT_ERROR"
	CodeRetryable     = "RETRYABLE_ERROR"
	CodeFatal         = "FATAL_ERROR"
	CodeUnrecoverable = "UNRECOVERABLE_ERROR"
)

// Classification is the Recovery Manager's verdict on a handler failure.
type Classification struct {
	Severity    Severity
	Code        string
	Message     string
	Details     string
	RetryTarget State // zero value means "no retry target"
}

// HasRetryTarget reports whether c names a state to retry into.
func (c Classification) HasRetryTarget() bool {
	return c.RetryTarget != ""
}

// StateChangeEvent is emitted synchronously after every committed
// transition.
type StateChangeEvent struct {
	From      State
	To        State
	Trigger   Trigger
	RunID     string
	Timestamp time.Time
}
