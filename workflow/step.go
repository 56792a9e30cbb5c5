package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/provisio/provisio"
	"github.com/provisio/provisio/backoff"
	"github.com/provisio/provisio/checkpoint"
)

// ActionFunc is the business logic of a single step. It receives the
// accumulated workflow state and returns a partial state to merge into
// it. Actions may record resources with a resource.Tracker, acquire
// handles from a handle.Pool, and perform arbitrary external I/O; they
// are expected to apply their own timeouts to external calls (or rely
// on Step.Timeout).
type ActionFunc func(ctx context.Context, state checkpoint.State) (checkpoint.State, error)

// Step is one named unit of a workflow pipeline. The name is the identity
// used for checkpoint bookkeeping and must be stable across versions:
// renaming a step orphans any in-flight checkpoint that references it.
type Step struct {
	// Name uniquely identifies the step within the pipeline.
	Name string

	// Action executes the step.
	Action ActionFunc

	// Timeout bounds one execution attempt, zero for none. Enforced by
	// the middleware chain (middleware.Timeout).
	Timeout time.Duration

	// Retry re-runs the action on failure before the step is declared
	// failed. Nil means a single attempt.
	Retry *RetryPolicy
}

// RetryPolicy controls transient-failure retries for one step. Retries
// happen inside the step: the checkpoint is only written once the step
// finally succeeds, and rollback only triggers once it finally fails.
type RetryPolicy struct {
	// MaxRetries is the number of re-executions after the initial
	// attempt. Zero disables retries.
	MaxRetries int

	// Strategy computes the delay before each retry. Nil defaults to
	// backoff.DefaultStrategy.
	Strategy backoff.Strategy
}

func (p *RetryPolicy) delay(attempt int) time.Duration {
	s := p.Strategy
	if s == nil {
		s = backoff.DefaultStrategy()
	}
	return s.Delay(attempt)
}

// validateSteps rejects pipelines the checkpoint bookkeeping cannot
// represent: empty or duplicate names, nil actions.
func validateSteps(steps []Step) error {
	seen := make(map[string]struct{}, len(steps))
	for i, s := range steps {
		if s.Name == "" {
			return fmt.Errorf("step %d: %w", i, provisio.ErrEmptyStepName)
		}
		if s.Action == nil {
			return fmt.Errorf("step %q: %w", s.Name, provisio.ErrNilStepAction)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("step %q: %w", s.Name, provisio.ErrDuplicateStep)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}
