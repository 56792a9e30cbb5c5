// Package provisio is a resumable workflow engine for tenant provisioning
// pipelines: long sequences of expensive, non-idempotent operations against
// external platforms (cloud project creation, credential issuance, data
// seeding, configuration commits).
//
// Provisio is a library, not a service. It makes three guarantees:
//
//   - Durability of progress: a checkpoint is persisted after every
//     successful step, so an interrupted run resumes from the last
//     completed step instead of re-running finished work.
//   - Reversibility of effects: every externally created resource is
//     recorded with a compensating action, and a fatal failure triggers a
//     best-effort rollback in reverse creation order.
//   - Bounded connection reuse: per-tenant external connection handles are
//     cached in a fixed-capacity pool with LRU eviction and deduplicated
//     concurrent creation.
//
// The engine is agnostic to what a step does. Steps are caller-supplied
// functions; provisio only sequences them, persists their progress, and
// undoes their tracked side effects on failure.
//
// Subsystems:
//
//   - workflow:   the Runner — sequencing, resume, checkpoint-after-success
//   - checkpoint: the durable Checkpoint record and Store contract
//   - resource:   the Tracker — resource ledger and rollback
//   - handle:     the Pool — bounded per-tenant handle cache
//   - store/...:  checkpoint store backends (file, memory, redis, postgres, bun)
//   - backoff:    retry delay strategies for transient step failures
//   - middleware: composable step middleware (logging, recover, timeout, metrics)
//
// A minimal run:
//
//	store, _ := file.New("/var/lib/provisio")
//	tracker := resource.NewTracker()
//	pool := handle.NewPool(8)
//	runner := workflow.NewRunner("tenant-acme", store, tracker, pool)
//
//	resumed, _ := runner.TryResume(ctx, nil)
//	result, err := runner.Run(ctx, steps, checkpoint.State{"tenant": "acme"})
//
// See examples/provision-tenant for a complete pipeline.
package provisio
