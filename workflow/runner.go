package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/provisio/provisio"
	"github.com/provisio/provisio/checkpoint"
	"github.com/provisio/provisio/handle"
	"github.com/provisio/provisio/id"
	"github.com/provisio/provisio/middleware"
	"github.com/provisio/provisio/resource"
)

// Runner drives one workflow identity through an ordered step pipeline,
// checkpointing progress after every successful step. A Runner is bound
// to a single workflow identity and is not safe for concurrent use;
// independent identities get independent Runners.
type Runner struct {
	workflowID string
	store      checkpoint.Store
	tracker    *resource.Tracker
	pool       *handle.Pool

	logger   *slog.Logger
	emitter  Emitter
	chain    middleware.Middleware
	resolver resource.Resolver
	now      func() time.Time

	// resume state adopted by TryResume
	resumed   bool
	completed []string
	state     checkpoint.State
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithEmitter sets the lifecycle event emitter. Defaults to NopEmitter.
func WithEmitter(e Emitter) Option {
	return func(r *Runner) { r.emitter = e }
}

// WithMiddleware wraps every step execution with the given middleware,
// outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(r *Runner) { r.chain = middleware.Chain(mws...) }
}

// WithResolver sets the resolver used to rebuild compensating actions
// for resources restored from a resumed checkpoint. Without one,
// restored resources roll back as failures (no compensator) so a
// partial rollback is never silently incomplete.
func WithResolver(res resource.Resolver) Option {
	return func(r *Runner) { r.resolver = res }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner bound to one workflow identity. The store
// persists checkpoints, the tracker ledgers externally-created resources
// for rollback, and the pool caches per-tenant connection handles for
// step actions to use.
func NewRunner(workflowID string, store checkpoint.Store, tracker *resource.Tracker, pool *handle.Pool, opts ...Option) *Runner {
	r := &Runner{
		workflowID: workflowID,
		store:      store,
		tracker:    tracker,
		pool:       pool,
		logger:     slog.Default(),
		emitter:    NopEmitter{},
		chain:      middleware.Chain(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WorkflowID returns the workflow identity the runner is bound to.
func (r *Runner) WorkflowID() string { return r.workflowID }

// Tracker returns the resource tracker, for step actions composed as
// closures over the runner.
func (r *Runner) Tracker() *resource.Tracker { return r.tracker }

// Pool returns the handle pool, or nil if none was supplied.
func (r *Runner) Pool() *handle.Pool { return r.pool }

// TryResume checks for a prior checkpoint for the bound workflow
// identity. If one exists, confirm decides whether to adopt it: the
// checkpoint is passed to confirm so the caller can inspect the
// completed steps and stored state (interactively or programmatically)
// before Run begins. A nil confirm accepts unconditionally.
//
// On adoption the runner restores the completed-step set, the
// accumulated state, and the durable resource ledger; restored
// resources get compensating actions from the configured resolver.
// If confirm declines, or no checkpoint exists, the runner starts
// fresh and TryResume returns false.
//
// A load failure is returned as a *CheckpointError; the caller may
// treat it as fatal or deliberately start fresh.
func (r *Runner) TryResume(ctx context.Context, confirm func(*checkpoint.Checkpoint) bool) (bool, error) {
	cp, err := r.store.Load(ctx, r.workflowID)
	if err != nil {
		if errors.Is(err, provisio.ErrCheckpointNotFound) {
			return false, nil
		}
		return false, &CheckpointError{Op: "load", WorkflowID: r.workflowID, Err: err}
	}

	if confirm != nil && !confirm(cp) {
		r.logger.Info("checkpoint declined, starting fresh",
			slog.String("workflow_id", r.workflowID),
			slog.String("last_step", cp.LastStep),
		)
		return false, nil
	}

	r.resumed = true
	r.completed = append([]string(nil), cp.Completed...)
	r.state = cp.State.Clone()
	r.tracker.Restore(cp.Resources, r.resolver)

	r.logger.Info("resuming from checkpoint",
		slog.String("workflow_id", r.workflowID),
		slog.String("last_step", cp.LastStep),
		slog.Int("completed_steps", len(cp.Completed)),
		slog.Int("restored_resources", len(cp.Resources)),
		slog.Time("saved_at", cp.SavedAt),
	)
	return true, nil
}

// Run executes the step pipeline. Steps whose names appear in a resumed
// checkpoint's completed set are skipped without invoking their action.
// After each successful step the merged state and grown completed set
// are persisted before the next step starts, so a crash never marks a
// step complete whose effects did not finish, and never loses a step
// whose checkpoint was written.
//
// On step failure the run halts, every ledgered resource is rolled back
// in reverse creation order (best effort), and the last checkpoint is
// retained so the same workflow identity can resume. On full success
// the ledger is discarded and the checkpoint deleted.
//
// The returned Result always describes the attempt, including on error.
func (r *Runner) Run(ctx context.Context, steps []Step, initial checkpoint.State) (*Result, error) {
	if err := validateSteps(steps); err != nil {
		return nil, err
	}

	res := &Result{
		WorkflowID: r.workflowID,
		AttemptID:  id.NewAttemptID(),
		Resumed:    r.resumed,
	}

	current := initial.Clone()
	if r.resumed {
		// Checkpointed state wins over the caller's initial values.
		current = current.Merge(r.state)
	}
	completed := append([]string(nil), r.completed...)
	isComplete := make(map[string]struct{}, len(completed))
	for _, name := range completed {
		isComplete[name] = struct{}{}
	}

	start := r.now()
	r.emitter.EmitRunStarted(ctx, r.workflowID, r.resumed)

	for i, step := range steps {
		if _, done := isComplete[step.Name]; done {
			r.logger.Debug("skipping completed step",
				slog.String("workflow_id", r.workflowID),
				slog.String("step", step.Name),
			)
			r.emitter.EmitStepSkipped(ctx, r.workflowID, step.Name)
			res.StepsSkipped = append(res.StepsSkipped, step.Name)
			continue
		}

		stepStart := r.now()
		partial, stepErr := r.executeStep(ctx, i, step, res.AttemptID, current)
		if stepErr != nil {
			err := &StepError{Step: step.Name, Err: stepErr}
			r.emitter.EmitStepFailed(ctx, r.workflowID, step.Name, stepErr)
			return r.fail(ctx, res, current, step.Name, err, start)
		}

		current = current.Merge(partial)
		completed = append(completed, step.Name)
		res.StepsRun = append(res.StepsRun, step.Name)

		cp := &checkpoint.Checkpoint{
			WorkflowID: r.workflowID,
			LastStep:   step.Name,
			Completed:  append([]string(nil), completed...),
			State:      current.Clone(),
			Resources:  r.tracker.Snapshot(),
			SavedAt:    r.now().UTC(),
		}
		if saveErr := r.store.Save(ctx, cp); saveErr != nil {
			// Proceeding past an unpersisted step would make a later
			// resume re-run it, so the run is over. The resources the
			// step created would be orphaned by a bare halt: roll back.
			err := &CheckpointError{Op: "save", WorkflowID: r.workflowID, Err: saveErr}
			r.emitter.EmitStepFailed(ctx, r.workflowID, step.Name, err)
			return r.fail(ctx, res, current, step.Name, err, start)
		}

		r.emitter.EmitStepCompleted(ctx, r.workflowID, step.Name, r.now().Sub(stepStart))
	}

	// All steps complete: the resources are permanent.
	r.tracker.Clear()
	res.Status = StatusSucceeded
	res.State = current
	res.Elapsed = r.now().Sub(start)

	if clearErr := r.store.Clear(ctx, r.workflowID); clearErr != nil {
		// The run itself succeeded; a stale checkpoint only means the
		// next attempt will offer a spurious resume.
		err := &CheckpointError{Op: "clear", WorkflowID: r.workflowID, Err: clearErr}
		r.logger.Warn("workflow succeeded but checkpoint removal failed",
			slog.String("workflow_id", r.workflowID),
			slog.String("error", clearErr.Error()),
		)
		res.Err = err
		r.emitter.EmitRunCompleted(ctx, r.workflowID, res.Elapsed)
		return res, err
	}

	r.emitter.EmitRunCompleted(ctx, r.workflowID, res.Elapsed)
	return res, nil
}

// executeStep runs one step through the middleware chain, honoring its
// retry policy. The returned state is the step's partial output.
func (r *Runner) executeStep(ctx context.Context, index int, step Step, attemptID id.AttemptID, current checkpoint.State) (checkpoint.State, error) {
	info := &middleware.StepInfo{
		WorkflowID: r.workflowID,
		AttemptID:  attemptID,
		Name:       step.Name,
		Index:      index,
		Resumed:    r.resumed,
		Timeout:    step.Timeout,
	}

	var out checkpoint.State
	handler := func(ctx context.Context) error {
		partial, err := step.Action(ctx, current)
		if err != nil {
			return err
		}
		out = partial
		return nil
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = r.chain(ctx, info, handler)
		if err == nil {
			return out, nil
		}
		if step.Retry == nil || attempt >= step.Retry.MaxRetries {
			return nil, err
		}

		delay := step.Retry.delay(attempt + 1)
		r.logger.Warn("step failed, retrying",
			slog.String("workflow_id", r.workflowID),
			slog.String("step", step.Name),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return nil, sleepErr
		}
	}
}

// fail finalizes a failed attempt: rolls back the ledger, classifies the
// outcome, and returns the Result alongside the terminating error. The
// checkpoint is deliberately left in place to enable resumption.
func (r *Runner) fail(ctx context.Context, res *Result, current checkpoint.State, failedStep string, err error, start time.Time) (*Result, error) {
	report := r.tracker.Rollback(ctx)

	res.FailedStep = failedStep
	res.State = current
	res.Rollback = report
	res.Err = err
	res.Elapsed = r.now().Sub(start)
	if report.Complete() {
		res.Status = StatusFailedRolledBack
	} else {
		res.Status = StatusFailedRollbackIncomplete
	}

	r.logger.Error("workflow failed, checkpoint retained for resume",
		slog.String("workflow_id", r.workflowID),
		slog.String("failed_step", failedStep),
		slog.String("status", string(res.Status)),
		slog.Int("rolled_back", len(report.Succeeded())),
		slog.Int("orphaned", len(report.Failed())),
	)
	r.emitter.EmitRunFailed(ctx, r.workflowID, err, report)
	return res, err
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
