package provisio

import "errors"

var (
	// Checkpoint errors.
	ErrCheckpointNotFound = errors.New("provisio: checkpoint not found")
	ErrStoreClosed        = errors.New("provisio: store closed")

	// Step list errors.
	ErrDuplicateStep = errors.New("provisio: duplicate step name")
	ErrEmptyStepName = errors.New("provisio: empty step name")
	ErrNilStepAction = errors.New("provisio: nil step action")

	// Rollback errors.
	ErrNoCompensator = errors.New("provisio: no compensating action for restored resource")

	// Handle pool errors.
	ErrHandleNotFound = errors.New("provisio: handle not found")
	ErrPoolClosed     = errors.New("provisio: handle pool closed")
)
