package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/provisio/provisio/resource"
)

// StepEmitter receives step-level lifecycle notifications.
type StepEmitter interface {
	EmitStepSkipped(ctx context.Context, workflowID, step string)
	EmitStepCompleted(ctx context.Context, workflowID, step string, elapsed time.Duration)
	EmitStepFailed(ctx context.Context, workflowID, step string, err error)
}

// Emitter receives workflow lifecycle notifications. Implementations must
// be fast and must not block: the runner calls them synchronously between
// steps. Use it to feed dashboards, audit logs, or operator UIs.
type Emitter interface {
	StepEmitter
	EmitRunStarted(ctx context.Context, workflowID string, resumed bool)
	EmitRunCompleted(ctx context.Context, workflowID string, elapsed time.Duration)
	EmitRunFailed(ctx context.Context, workflowID string, err error, report *resource.Report)
}

// NopEmitter discards all events. It is the default.
type NopEmitter struct{}

func (NopEmitter) EmitStepSkipped(context.Context, string, string)                  {}
func (NopEmitter) EmitStepCompleted(context.Context, string, string, time.Duration) {}
func (NopEmitter) EmitStepFailed(context.Context, string, string, error)            {}
func (NopEmitter) EmitRunStarted(context.Context, string, bool)                     {}
func (NopEmitter) EmitRunCompleted(context.Context, string, time.Duration)          {}
func (NopEmitter) EmitRunFailed(context.Context, string, error, *resource.Report)   {}

// SlogEmitter logs every lifecycle event through a slog.Logger.
type SlogEmitter struct {
	Logger *slog.Logger
}

// NewSlogEmitter creates an emitter that logs events at info level
// (error level for failures).
func NewSlogEmitter(logger *slog.Logger) *SlogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogEmitter{Logger: logger}
}

func (e *SlogEmitter) EmitStepSkipped(_ context.Context, workflowID, step string) {
	e.Logger.Info("step skipped (already complete)",
		slog.String("workflow_id", workflowID),
		slog.String("step", step),
	)
}

func (e *SlogEmitter) EmitStepCompleted(_ context.Context, workflowID, step string, elapsed time.Duration) {
	e.Logger.Info("step completed",
		slog.String("workflow_id", workflowID),
		slog.String("step", step),
		slog.Duration("elapsed", elapsed),
	)
}

func (e *SlogEmitter) EmitStepFailed(_ context.Context, workflowID, step string, err error) {
	e.Logger.Error("step failed",
		slog.String("workflow_id", workflowID),
		slog.String("step", step),
		slog.String("error", err.Error()),
	)
}

func (e *SlogEmitter) EmitRunStarted(_ context.Context, workflowID string, resumed bool) {
	e.Logger.Info("workflow started",
		slog.String("workflow_id", workflowID),
		slog.Bool("resumed", resumed),
	)
}

func (e *SlogEmitter) EmitRunCompleted(_ context.Context, workflowID string, elapsed time.Duration) {
	e.Logger.Info("workflow completed",
		slog.String("workflow_id", workflowID),
		slog.Duration("elapsed", elapsed),
	)
}

func (e *SlogEmitter) EmitRunFailed(_ context.Context, workflowID string, err error, report *resource.Report) {
	attrs := []any{
		slog.String("workflow_id", workflowID),
		slog.String("error", err.Error()),
	}
	if report != nil {
		attrs = append(attrs,
			slog.Int("rolled_back", len(report.Succeeded())),
			slog.Int("orphaned", len(report.Failed())),
		)
	}
	e.Logger.Error("workflow failed", attrs...)
}
