package workflow_test

import (
	"context"
	"io"
	"log/slog"

	"github.com/provisio/provisio/checkpoint"
	"github.com/provisio/provisio/resource"
	"github.com/provisio/provisio/store/memory"
	"github.com/provisio/provisio/workflow"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRunner creates a runner on a fresh memory store with a silent logger.
func newTestRunner(workflowID string, opts ...workflow.Option) (*workflow.Runner, *memory.Store, *resource.Tracker) {
	s := memory.New()
	tracker := resource.NewTracker(resource.WithLogger(testLogger()))
	opts = append([]workflow.Option{workflow.WithLogger(testLogger())}, opts...)
	return workflow.NewRunner(workflowID, s, tracker, nil, opts...), s, tracker
}

// noopStep returns a step whose action succeeds with no state output.
func noopStep(name string) workflow.Step {
	return workflow.Step{
		Name: name,
		Action: func(_ context.Context, _ checkpoint.State) (checkpoint.State, error) {
			return nil, nil
		},
	}
}

// faultStore wraps a memory store with injectable failures.
type faultStore struct {
	*memory.Store

	saveErr  error
	clearErr error
	loadErr  error
}

func (f *faultStore) Save(ctx context.Context, cp *checkpoint.Checkpoint) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.Save(ctx, cp)
}

func (f *faultStore) Clear(ctx context.Context, workflowID string) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	return f.Store.Clear(ctx, workflowID)
}

func (f *faultStore) Load(ctx context.Context, workflowID string) (*checkpoint.Checkpoint, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.Store.Load(ctx, workflowID)
}
