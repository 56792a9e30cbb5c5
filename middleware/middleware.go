package middleware

import (
	"context"
	"time"

	"github.com/provisio/provisio/id"
)

// StepInfo describes the step being executed. It is a flat snapshot passed
// to middleware so they can tag logs, spans, and metrics without importing
// the workflow package.
type StepInfo struct {
	// WorkflowID identifies the workflow instance the step belongs to.
	WorkflowID string

	// AttemptID uniquely identifies this run attempt of the workflow.
	AttemptID id.AttemptID

	// Name is the step's unique name within the workflow.
	Name string

	// Index is the step's zero-based position in the pipeline.
	Index int

	// Resumed reports whether this attempt was resumed from a checkpoint.
	Resumed bool

	// Timeout is the per-step execution deadline, zero for none.
	Timeout time.Duration
}

// Handler is the terminal function that executes step logic.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the step being executed, and the
// next handler to call. Middleware MUST call next to continue the chain
// (unless short-circuiting on error).
type Middleware func(ctx context.Context, s *StepInfo, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, s *StepInfo, next Handler) error {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, s, prev)
			}
		}
		return h(ctx)
	}
}
