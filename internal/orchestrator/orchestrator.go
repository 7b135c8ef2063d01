// Package orchestrator is the top-level driver that composes the state
// store, state machine, recovery manager, and coordinator into a single
// run(), resume(), pause(), cancel() surface.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lucasnoah/forgebot/internal/workflow"
)

// Status is the coarse-grained outcome of a run, reported on Result and
// on a live Status() query.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusPaused    Status = "paused"
	StatusFailed    Status = "failed"
)

// Result summarizes the outcome of a Run or Resume call.
type Result struct {
	Status    Status
	FinalState workflow.State
	Attempt   int
	Duration  time.Duration
	Data      workflow.Data
	Error     *workflow.ErrorPayload
}

// StatusSnapshot is the synchronous, copy-safe answer to Status().
type StatusSnapshot struct {
	RunID string
	State workflow.State
	Data  workflow.Data
}

// Options configures an Orchestrator at construction time.
type Options struct {
	RunID       string
	StoreRoot   string // New uses "~/.forgebot/runs" when empty
	Machine     *workflow.Machine
	Logger      workflow.Logger
	MaxAttempts int
}

// Orchestrator is the execution loop described in the workflow
// orchestration engine's §4.5: it owns the live workflow-data accumulator,
// the pause/cancel request flags, the last-error memo, and the start
// timestamp, and composes the store, machine, recovery manager, and
// coordinator.
type Orchestrator struct {
	mu sync.Mutex

	runID       string
	coordinator *workflow.Coordinator
	machine     *workflow.Machine
	recovery    *workflow.Recovery
	logger      workflow.Logger
	maxAttempts int

	data          workflow.Data
	pauseRequested  bool
	cancelRequested bool
	lastErr         *classifiedError
	startedAt       time.Time
}

type classifiedError struct {
	state          workflow.State
	classification workflow.Classification
}

// New constructs an Orchestrator. If opts.RunID is empty a new UUID is
// generated. If opts.Machine is nil, one is built over a file store at
// "<opts.StoreRoot>/<runId>/state.json".
func New(coordinator *workflow.Coordinator, opts Options) *Orchestrator {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	machine := opts.Machine
	if machine == nil {
		root := opts.StoreRoot
		if root == "" {
			root = defaultStoreRoot()
		}
		store := workflow.NewStore(fmt.Sprintf("%s/%s", root, runID))
		if opts.Logger != nil {
			store.SetLogger(opts.Logger)
		}
		machine = workflow.NewMachine(store, runID, nil)
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &Orchestrator{
		runID:       runID,
		coordinator: coordinator,
		machine:     machine,
		recovery:    workflow.NewRecovery(maxAttempts),
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}

// RunID returns the run identifier this orchestrator drives.
func (o *Orchestrator) RunID() string { return o.runID }

// Machine exposes the underlying state machine, primarily so callers can
// Subscribe to stateChange events before calling Run or Resume.
func (o *Orchestrator) Machine() *workflow.Machine { return o.machine }

// Run resets pause/cancel/error flags, seeds workflow data from input,
// initializes the state machine (which may load a prior record for this
// run), issues START if currently IDLE, and enters the execution loop.
func (o *Orchestrator) Run(ctx context.Context, input workflow.Input) (Result, error) {
	o.mu.Lock()
	o.pauseRequested = false
	o.cancelRequested = false
	o.lastErr = nil
	o.startedAt = time.Now()
	o.data = workflow.Data{Input: input}
	o.mu.Unlock()

	if err := o.machine.Initialize(); err != nil {
		return Result{}, fmt.Errorf("initialize state machine: %w", err)
	}

	if o.machine.Current() == workflow.StateIdle {
		if _, err := o.machine.Fire(workflow.TriggerStart, contextFrom(o.data)); err != nil {
			return Result{}, fmt.Errorf("start run: %w", err)
		}
	}

	return o.loop(ctx)
}

// Resume re-loads persisted context into workflow data, initializes the
// machine, and either issues RESUME (if PAUSED) or attempts recovery (if
// ERROR) before re-entering the execution loop. For a PAUSED run, or any
// other resumable state, the last-error memo is cleared — it only has
// meaning paired with the ERROR state it was recorded in. For an ERROR
// run, the memo is reconstructed from the persisted error payload first,
// so a run resumed in a fresh process (no in-memory lastErr) can still
// retry a retryable failure instead of reporting it dead on arrival.
func (o *Orchestrator) Resume(ctx context.Context) (Result, error) {
	o.mu.Lock()
	o.pauseRequested = false
	o.cancelRequested = false
	o.startedAt = time.Now()
	o.mu.Unlock()

	if err := o.machine.Initialize(); err != nil {
		return Result{}, fmt.Errorf("initialize state machine: %w", err)
	}

	o.data = dataFromContext(o.machine.Context())

	switch o.machine.Current() {
	case workflow.StatePaused:
		o.mu.Lock()
		o.lastErr = nil
		o.mu.Unlock()
		if _, err := o.machine.Fire(workflow.TriggerResume, nil); err != nil {
			return Result{}, fmt.Errorf("resume run: %w", err)
		}
	case workflow.StateError:
		o.mu.Lock()
		o.lastErr = classifiedErrorFromPayload(o.machine.LastError())
		o.mu.Unlock()
		if ok := o.attemptRecovery(); !ok {
			return o.buildResult(), nil
		}
	default:
		o.mu.Lock()
		o.lastErr = nil
		o.mu.Unlock()
	}

	return o.loop(ctx)
}

// classifiedErrorFromPayload reconstructs the in-memory recovery memo
// from a persisted error payload. Returns nil if ep is nil, which leaves
// attemptRecovery to terminate the run in ERROR exactly as it would for
// an unclassifiable in-process failure.
func classifiedErrorFromPayload(ep *workflow.ErrorPayload) *classifiedError {
	if ep == nil {
		return nil
	}
	return &classifiedError{
		classification: workflow.Classification{
			Severity:    ep.Severity,
			Code:        ep.Code,
			Message:     ep.Message,
			Details:     ep.Details,
			RetryTarget: ep.RetryTarget,
		},
	}
}

// Pause sets the pause flag; the loop observes it at the next iteration
// boundary, never mid-handler.
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pauseRequested = true
}

// Cancel sets the cancel flag; a second call before the loop observes the
// first is indistinguishable from one.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelRequested = true
}

// Status is a synchronous, copy-safe snapshot of the run's current state.
func (o *Orchestrator) Status() StatusSnapshot {
	o.mu.Lock()
	data := o.data.Clone()
	o.mu.Unlock()
	return StatusSnapshot{
		RunID: o.runID,
		State: o.machine.Current(),
		Data:  data,
	}
}

// loop is the execution loop contract from the workflow orchestration
// engine's component design: while current state is non-terminal and not
// paused, either attempt recovery (ERROR), honor a pending pause/cancel,
// or execute the handler for the current state and advance.
func (o *Orchestrator) loop(ctx context.Context) (Result, error) {
	for {
		state := o.machine.Current()
		if state == workflow.StateDone || state == workflow.StateCancelled || state == workflow.StatePaused {
			return o.buildResult(), nil
		}

		if state == workflow.StateError {
			if ok := o.attemptRecovery(); !ok {
				return o.buildResult(), nil
			}
			continue
		}

		o.mu.Lock()
		pause, cancel := o.pauseRequested, o.cancelRequested
		o.mu.Unlock()

		if pause {
			if _, err := o.machine.Fire(workflow.TriggerPause, contextFrom(o.data)); err != nil {
				return Result{}, fmt.Errorf("pause transition: %w", err)
			}
			return o.buildResult(), nil
		}
		if cancel {
			if _, err := o.machine.Fire(workflow.TriggerCancel, contextFrom(o.data)); err != nil {
				return Result{}, fmt.Errorf("cancel transition: %w", err)
			}
			return o.buildResult(), nil
		}

		patch, err := o.coordinator.Execute(ctx, state, o.data)
		o.data.Apply(patch)
		if err != nil {
			o.logger.Warn("handler failed", "state", string(state), "err", err)
			classification := o.recovery.Classify(state, err)
			o.mu.Lock()
			o.lastErr = &classifiedError{state: state, classification: classification}
			o.mu.Unlock()

			payload := contextFrom(o.data)
			payload["error"] = &workflow.ErrorPayload{
				Code:        classification.Code,
				Message:     classification.Message,
				Details:     classification.Details,
				Severity:    classification.Severity,
				RetryTarget: classification.RetryTarget,
			}
			if _, err := o.machine.Fire(workflow.TriggerFail, payload); err != nil {
				return Result{}, fmt.Errorf("fail transition: %w", err)
			}
			continue
		}

		trigger, ok := workflow.SuccessTrigger(state)
		if !ok {
			return Result{}, fmt.Errorf("no success trigger for state %q", state)
		}
		if _, err := o.machine.Fire(trigger, contextFrom(o.data)); err != nil {
			return Result{}, fmt.Errorf("advance from %q: %w", state, err)
		}
	}
}

// attemptRecovery consults the recovery manager's retry decision for the
// memoized last error. If retry is permitted it issues RETRY and clears
// the memo, returning true. Otherwise it returns false so the loop
// terminates in ERROR.
func (o *Orchestrator) attemptRecovery() bool {
	o.mu.Lock()
	memo := o.lastErr
	o.mu.Unlock()

	if memo == nil {
		return false
	}

	if !o.recovery.ShouldRetry(o.machine.Attempt(), memo.classification, o.maxAttempts) {
		return false
	}

	if _, err := o.machine.Fire(workflow.TriggerRetry, nil); err != nil {
		o.logger.Error("retry transition failed", "err", err)
		return false
	}

	o.mu.Lock()
	o.lastErr = nil
	o.mu.Unlock()
	return true
}

func (o *Orchestrator) buildResult() Result {
	state := o.machine.Current()
	return Result{
		Status:     statusFor(state),
		FinalState: state,
		Attempt:    o.machine.Attempt(),
		Duration:   time.Since(o.startedAt),
		Data:       o.data.Clone(),
		Error:      o.machine.LastError(),
	}
}

func statusFor(state workflow.State) Status {
	switch state {
	case workflow.StateDone:
		return StatusCompleted
	case workflow.StateCancelled:
		return StatusCancelled
	case workflow.StatePaused:
		return StatusPaused
	case workflow.StateError:
		return StatusFailed
	default:
		return StatusRunning
	}
}

// contextFrom derives the opaque context bag the state machine persists
// from the live workflow data accumulator.
func contextFrom(d workflow.Data) map[string]any {
	ctx := map[string]any{}
	if d.Issue != nil {
		ctx["issue"] = d.Issue
	}
	if d.Analysis != nil {
		ctx["analysis"] = d.Analysis
	}
	if len(d.SearchResults) > 0 {
		ctx["searchResults"] = d.SearchResults
	}
	if d.Plan != nil {
		ctx["plan"] = d.Plan
	}
	if d.Proposal != nil {
		ctx["proposal"] = d.Proposal
	}
	if d.ApplyResult != nil {
		ctx["applyResult"] = d.ApplyResult
	}
	if d.BuildResult != nil {
		ctx["buildResult"] = d.BuildResult
	}
	if d.TestResult != nil {
		ctx["testResult"] = d.TestResult
	}
	if d.Review != nil {
		ctx["review"] = d.Review
	}
	if d.Submission != nil {
		ctx["submission"] = d.Submission
	}
	if d.Cost != nil {
		ctx["cost"] = d.Cost
	}
	ctx["input"] = d.Input
	return ctx
}

// dataFromContext rebuilds a workflow.Data from a persisted context bag,
// used by Resume. Values round-tripped through JSON arrive as
// map[string]any rather than typed structs, so each field is
// re-marshaled into its concrete type.
func dataFromContext(ctx map[string]any) workflow.Data {
	var d workflow.Data
	if v, ok := ctx["input"]; ok {
		decode(v, &d.Input)
	}
	if v, ok := ctx["issue"]; ok {
		d.Issue = new(workflow.Issue)
		decode(v, d.Issue)
	}
	if v, ok := ctx["analysis"]; ok {
		d.Analysis = new(workflow.Analysis)
		decode(v, d.Analysis)
	}
	if v, ok := ctx["searchResults"]; ok {
		decode(v, &d.SearchResults)
	}
	if v, ok := ctx["plan"]; ok {
		d.Plan = new(workflow.Plan)
		decode(v, d.Plan)
	}
	if v, ok := ctx["proposal"]; ok {
		d.Proposal = new(workflow.Proposal)
		decode(v, d.Proposal)
	}
	if v, ok := ctx["applyResult"]; ok {
		d.ApplyResult = new(workflow.ApplyResult)
		decode(v, d.ApplyResult)
	}
	if v, ok := ctx["buildResult"]; ok {
		d.BuildResult = new(workflow.CheckResult)
		decode(v, d.BuildResult)
	}
	if v, ok := ctx["testResult"]; ok {
		d.TestResult = new(workflow.CheckResult)
		decode(v, d.TestResult)
	}
	if v, ok := ctx["review"]; ok {
		d.Review = new(workflow.ReviewResult)
		decode(v, d.Review)
	}
	if v, ok := ctx["submission"]; ok {
		d.Submission = new(workflow.Submission)
		decode(v, d.Submission)
	}
	if v, ok := ctx["cost"]; ok {
		d.Cost = new(workflow.CostMetrics)
		decode(v, d.Cost)
	}
	return d
}

func decode(src any, dst any) {
	// If src is already the concrete type (fresh, in-process run rather
	// than one rehydrated from disk), a direct type assertion path via
	// JSON round-trip still works and keeps this a single code path.
	data, err := marshalAny(src)
	if err != nil {
		return
	}
	_ = unmarshalAny(data, dst)
}

func defaultStoreRoot() string {
	home, err := userHomeDir()
	if err != nil {
		return ".forgebot/runs"
	}
	return home + "/.forgebot/runs"
}
