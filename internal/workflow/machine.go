package workflow

import (
	"fmt"
	"sync"
	"time"
)

// Guard is a predicate on the merged context gating entry into a
// destination state.
type Guard func(context map[string]any) bool

// InvalidTransition is returned when a trigger has no mapping from the
// current state and is not a recognized global control.
type InvalidTransition struct {
	From    State
	Trigger Trigger
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition: no mapping for trigger %q from state %q", e.Trigger, e.From)
}

// GuardRejected is returned when a destination's guard predicate refuses
// entry.
type GuardRejected struct {
	To State
}

func (e *GuardRejected) Error() string {
	return fmt.Sprintf("guard rejected entry to %q", e.To)
}

// forward is the canonical forward-path transition table.
var forward = map[State]State{
	StateIdle:       StateAnalyzing,
	StateAnalyzing:  StateSearching,
	StateSearching:  StatePlanning,
	StatePlanning:   StateGenerating,
	StateGenerating: StateApplying,
	StateApplying:   StateBuilding,
	StateBuilding:   StateTesting,
	StateTesting:    StateReviewing,
	StateReviewing:  StateSubmitting,
	StateSubmitting: StateDone,
}

// forwardTrigger inverts successTrigger for lookup by (from, trigger).
var forwardTrigger = func() map[State]Trigger {
	m := map[State]Trigger{}
	for s, t := range successTrigger {
		m[s] = t
	}
	return m
}()

// Subscriber receives stateChange events synchronously, after commit. A
// panic inside a subscriber is recovered and does not affect machine
// state or other subscribers.
type Subscriber func(StateChangeEvent)

// Machine owns the authoritative current state of a single run, enforces
// legal transitions, maintains history, applies guards, and persists after
// every transition.
type Machine struct {
	mu sync.Mutex

	store   *Store
	runID   string
	guards  map[State]Guard
	subs    []Subscriber
	initted bool

	current State
	attempt int
	context map[string]any
	history []State
	lastErr *ErrorPayload
}

// NewMachine constructs a Machine over store for runID with the given
// guards. Guards not supplied default to the minimum guard set from the
// spec (analysis required to enter SEARCHING, non-empty search results
// required to enter PLANNING).
func NewMachine(store *Store, runID string, guards map[State]Guard) *Machine {
	m := &Machine{
		store:   store,
		runID:   runID,
		guards:  guards,
		current: StateIdle,
		attempt: 1,
		context: map[string]any{},
	}
	if m.guards == nil {
		m.guards = map[State]Guard{}
	}
	if _, ok := m.guards[StateSearching]; !ok {
		m.guards[StateSearching] = guardHasAnalysis
	}
	if _, ok := m.guards[StatePlanning]; !ok {
		m.guards[StatePlanning] = guardHasSearchResults
	}
	return m
}

// guardHasAnalysis is the canonical guard for entry to SEARCHING. An
// earlier revision of this guard checked for a raw "query" key instead;
// that check is dead and intentionally not reproduced here.
func guardHasAnalysis(ctx map[string]any) bool {
	v, ok := ctx["analysis"]
	return ok && v != nil
}

func guardHasSearchResults(ctx map[string]any) bool {
	v, ok := ctx["searchResults"]
	if !ok || v == nil {
		return false
	}
	switch hits := v.(type) {
	case []SearchHit:
		return len(hits) > 0
	case []any:
		return len(hits) > 0
	default:
		return true
	}
}

// Subscribe registers a subscriber invoked synchronously after every
// committed transition. Intended to be called at construction time.
func (m *Machine) Subscribe(sub Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, sub)
}

// Initialize loads any prior record for this run from the store. If none
// exists, the machine starts fresh at IDLE, attempt 1, empty history and
// context. Safe to call multiple times; each call reloads from the store.
func (m *Machine) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok, err := m.store.Load()
	if err != nil {
		return err
	}
	if !ok {
		m.current = StateIdle
		m.attempt = 1
		m.context = map[string]any{}
		m.history = nil
		m.lastErr = nil
		m.initted = true
		return nil
	}

	m.current = rec.CurrentState
	m.attempt = rec.Attempt
	if rec.Context != nil {
		m.context = rec.Context
	} else {
		m.context = map[string]any{}
	}
	m.history = append([]State(nil), rec.History...)
	m.lastErr = rec.Error
	m.initted = true
	return nil
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Attempt returns the current attempt count.
func (m *Machine) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// Context returns a shallow copy of the merged context.
func (m *Machine) Context() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any, len(m.context))
	for k, v := range m.context {
		out[k] = v
	}
	return out
}

// History returns a copy of the operational-state history.
func (m *Machine) History() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]State(nil), m.history...)
}

// LastError returns the error payload recorded by the last FAIL
// transition, if any.
func (m *Machine) LastError() *ErrorPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Fire attempts the transition for trigger from the current state, merging
// payload into the context on success. It returns the new state, or an
// error (*InvalidTransition, *GuardRejected, or *StorageError) if the
// transition is rejected. On any error the in-memory state is left
// unchanged.
func (m *Machine) Fire(trigger Trigger, payload map[string]any) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.current
	to, pushHistory, err := m.resolve(from, trigger)
	if err != nil {
		return from, err
	}

	if guard, ok := m.guards[to]; ok && guard != nil {
		merged := mergeContext(m.context, payload)
		if !guard(merged) {
			return from, &GuardRejected{To: to}
		}
	}

	newContext := mergeContext(m.context, payload)
	newAttempt := m.attempt
	if trigger == TriggerRetry {
		newAttempt++
	}
	newHistory := m.history
	switch {
	case pushHistory && from.IsOperational():
		newHistory = append(append([]State(nil), m.history...), from)
	case trigger == TriggerResume && len(m.history) > 0:
		newHistory = m.history[:len(m.history)-1]
	}

	var newErr *ErrorPayload
	if trigger == TriggerFail {
		newErr = errorFromPayload(payload)
	} else if to != StateError {
		newErr = nil
	} else {
		newErr = m.lastErr
	}

	now := time.Now().UTC()
	rec := &Record{
		RunID:        m.runID,
		CurrentState: to,
		UpdatedAt:    now,
		Attempt:      newAttempt,
		Context:      newContext,
		History:      newHistory,
		Error:        newErr,
	}
	if err := m.store.Save(rec); err != nil {
		return from, err
	}

	m.current = to
	m.attempt = newAttempt
	m.context = newContext
	m.history = newHistory
	m.lastErr = newErr

	event := StateChangeEvent{From: from, To: to, Trigger: trigger, RunID: m.runID, Timestamp: now}
	for _, sub := range m.subs {
		invokeSubscriber(sub, event)
	}

	return to, nil
}

func invokeSubscriber(sub Subscriber, event StateChangeEvent) {
	defer func() {
		_ = recover()
	}()
	sub(event)
}

func errorFromPayload(payload map[string]any) *ErrorPayload {
	if payload == nil {
		return nil
	}
	v, ok := payload["error"]
	if !ok {
		return nil
	}
	ep, ok := v.(*ErrorPayload)
	if !ok {
		return nil
	}
	return ep
}

func mergeContext(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if k == "error" {
			continue // error is tracked on the record, not the context
		}
		out[k] = v
	}
	return out
}

// resolve determines the destination state for (from, trigger), and
// whether history should be pushed for this transition (per the "not
// pushed when leaving a control state" rule).
func (m *Machine) resolve(from State, trigger Trigger) (to State, pushHistory bool, err error) {
	switch trigger {
	case TriggerPause:
		if from.IsTerminal() || from.IsControl() {
			return from, false, &InvalidTransition{From: from, Trigger: trigger}
		}
		return StatePaused, from.IsOperational(), nil
	case TriggerCancel:
		if from.IsTerminal() {
			return from, false, &InvalidTransition{From: from, Trigger: trigger}
		}
		return StateCancelled, false, nil
	case TriggerFail:
		if from.IsTerminal() {
			return from, false, &InvalidTransition{From: from, Trigger: trigger}
		}
		return StateError, false, nil
	case TriggerRetry:
		if from != StateError {
			return from, false, &InvalidTransition{From: from, Trigger: trigger}
		}
		return StateGenerating, false, nil
	case TriggerResume:
		if from != StatePaused {
			return from, false, &InvalidTransition{From: from, Trigger: trigger}
		}
		if len(m.history) == 0 {
			return StateIdle, false, nil
		}
		return m.history[len(m.history)-1], false, nil
	default:
		want, ok := forwardTrigger[from]
		if !ok || want != trigger {
			return from, false, &InvalidTransition{From: from, Trigger: trigger}
		}
		dest, ok := forward[from]
		if !ok {
			return from, false, &InvalidTransition{From: from, Trigger: trigger}
		}
		return dest, true, nil
	}
}
