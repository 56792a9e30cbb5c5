package workflow

import "fmt"

// StepError reports a step action that failed terminally (after any
// configured retries). It is distinct from CheckpointError: a StepError
// means the pipeline's business logic failed and the run can be resumed
// after manual intervention.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// CheckpointError reports a failure in the persistence layer itself.
// It is surfaced distinctly from StepError because it means the resume
// guarantee may be compromised: the runner must not proceed past a step
// whose checkpoint failed to persist.
type CheckpointError struct {
	Op         string // "save", "load" or "clear"
	WorkflowID string
	Err        error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s for workflow %q: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *CheckpointError) Unwrap() error { return e.Err }
