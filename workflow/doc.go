// Package workflow orchestrates resumable, sequential step pipelines for
// tenant provisioning.
//
// A [Runner] is bound to one workflow identity and drives an ordered list
// of named [Step]s. After every successful step it persists a checkpoint
// (completed-step set, accumulated state, resource ledger snapshot) through
// a [checkpoint.Store], so an interrupted run can resume from the last
// completed step without re-executing finished work.
//
//	runner := workflow.NewRunner("tenant-acme", store, tracker, pool)
//	resumed, err := runner.TryResume(ctx, nil)
//	...
//	result, err := runner.Run(ctx, steps, initial)
//
// On step failure the runner halts, triggers a best-effort LIFO rollback of
// every resource recorded with the [resource.Tracker], and leaves the last
// checkpoint in place so the same workflow identity can be resumed later.
// On full success the resource ledger is discarded (the resources are now
// permanent) and the checkpoint is deleted.
//
// Steps execute strictly sequentially: step n+1 never starts before step
// n's checkpoint write completes. Cross-cutting behavior (logging, panic
// recovery, per-step timeouts, metrics, tracing) is attached with
// [WithMiddleware].
package workflow
