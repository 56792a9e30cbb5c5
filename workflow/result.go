package workflow

import (
	"time"

	"github.com/provisio/provisio/checkpoint"
	"github.com/provisio/provisio/id"
	"github.com/provisio/provisio/resource"
)

// Status is the terminal state of one workflow attempt.
type Status string

const (
	// StatusSucceeded means every step completed, the resource ledger was
	// discarded, and the checkpoint was deleted.
	StatusSucceeded Status = "succeeded"

	// StatusFailedRolledBack means a step failed and every recorded
	// resource rolled back cleanly. The checkpoint is retained for resume.
	StatusFailedRolledBack Status = "failed-rolled-back"

	// StatusFailedRollbackIncomplete means a step failed and at least one
	// rollback action also failed, leaving orphaned external resources
	// that need manual cleanup (listed in Result.Rollback). The checkpoint
	// is retained for resume.
	StatusFailedRollbackIncomplete Status = "failed-rollback-incomplete"
)

// Result summarizes one workflow attempt.
type Result struct {
	// WorkflowID is the workflow identity the runner is bound to.
	WorkflowID string

	// AttemptID uniquely identifies this attempt.
	AttemptID id.AttemptID

	// Status is the terminal state of the attempt.
	Status Status

	// Resumed reports whether the attempt started from a prior checkpoint.
	Resumed bool

	// StepsRun lists the steps executed by this attempt, in order.
	StepsRun []string

	// StepsSkipped lists the steps skipped because a resumed checkpoint
	// already marked them complete, in order.
	StepsSkipped []string

	// FailedStep names the step that failed, empty on success.
	FailedStep string

	// State is the accumulated workflow state at the end of the attempt.
	State checkpoint.State

	// Rollback is the per-resource rollback outcome, nil on success.
	Rollback *resource.Report

	// Elapsed is the wall-clock duration of the attempt.
	Elapsed time.Duration

	// Err is the error that terminated the attempt: a *StepError, a
	// *CheckpointError, or nil on success.
	Err error
}
