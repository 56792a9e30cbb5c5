package checkpoint

import "context"

// Store defines the persistence contract for checkpoints. One record
// exists per workflow identity; Save replaces it atomically so a reader
// never observes a partially written checkpoint.
//
// Backends: store/file (durable, one file per workflow identity),
// store/memory (tests and development), store/redis, store/postgres,
// store/bun.
type Store interface {
	// Exists reports whether a checkpoint exists for the workflow identity.
	Exists(ctx context.Context, workflowID string) (bool, error)

	// Save atomically replaces the checkpoint for cp.WorkflowID.
	// A save failure is fatal to the running step: the runner must not
	// proceed past a step whose checkpoint failed to persist.
	Save(ctx context.Context, cp *Checkpoint) error

	// Load retrieves the checkpoint for the workflow identity.
	// Returns provisio.ErrCheckpointNotFound if none exists.
	Load(ctx context.Context, workflowID string) (*Checkpoint, error)

	// Clear removes the checkpoint for the workflow identity.
	// Clearing a non-existent checkpoint is not an error.
	Clear(ctx context.Context, workflowID string) error

	// List returns the workflow identities that currently have a
	// checkpoint, for operator tooling that surfaces resumable runs.
	List(ctx context.Context) ([]string, error)
}
