package workflow

import (
	"context"
	"fmt"
	"sort"
)

// Handler is the boundary the orchestrator pins down: input is a read-only
// snapshot of the current workflow data, output is a partial update to
// merge. Handlers must be safe to re-execute after a retry from an earlier
// state — they are free to overwrite their own prior outputs.
type Handler func(ctx context.Context, data Data) (DataPatch, error)

// HandlerMissing is returned by Execute when no handler is registered for
// the requested state.
type HandlerMissing struct {
	State State
}

func (e *HandlerMissing) Error() string {
	return fmt.Sprintf("no handler registered for state %q", e.State)
}

// Coordinator holds a registry mapping each operational state to a
// handler and dispatches by state. It holds no mutable state beyond the
// registry and is safe to construct once and reuse across runs.
type Coordinator struct {
	handlers map[State]Handler
}

// NewCoordinator returns an empty Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{handlers: map[State]Handler{}}
}

// Register associates state with handler, overwriting any prior
// registration for the same state.
func (c *Coordinator) Register(state State, handler Handler) {
	c.handlers[state] = handler
}

// Has reports whether a handler is registered for state.
func (c *Coordinator) Has(state State) bool {
	_, ok := c.handlers[state]
	return ok
}

// Execute dispatches to the handler registered for state, or returns
// *HandlerMissing if none is registered.
func (c *Coordinator) Execute(ctx context.Context, state State, data Data) (DataPatch, error) {
	h, ok := c.handlers[state]
	if !ok {
		return DataPatch{}, &HandlerMissing{State: state}
	}
	return h(ctx, data)
}

// RegisteredStates returns the states with a registered handler, sorted
// for deterministic output.
func (c *Coordinator) RegisteredStates() []State {
	out := make([]State, 0, len(c.handlers))
	for s := range c.handlers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
