package resource

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/provisio/provisio"
	"github.com/provisio/provisio/id"
)

// Tracker is the in-process ledger of created resources for one
// provisioning run. It is safe for concurrent use, though steps within a
// run execute sequentially; the lock exists for rollback actions and
// snapshot reads racing step registration.
//
// The ledger is intentionally not durable on its own: the workflow runner
// persists Snapshot() inside every checkpoint, and Restore re-seeds a
// tracker on resume.
type Tracker struct {
	mu      sync.Mutex
	entries []Entry
	logger  *slog.Logger
	now     func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithLogger sets the structured logger for the tracker.
func WithLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = l }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates an empty resource tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends a resource to the ledger. Call it synchronously,
// immediately after the external resource is confirmed created — not
// before (a rollback would target a resource that never existed) and not
// long after (a crash in between would orphan it untracked).
func (t *Tracker) Record(kind Kind, identity string, rollback RollbackFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, Entry{
		ID:        id.NewResourceID(),
		Kind:      kind,
		Identity:  identity,
		CreatedAt: t.now().UTC(),
		rollback:  rollback,
	})

	t.logger.Debug("resource recorded",
		slog.String("kind", string(kind)),
		slog.String("identity", identity),
	)
}

// Count returns the number of entries currently in the ledger.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Clear discards all entries without invoking any rollback action.
// Called on overall success, when the resources become permanent.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}

// Snapshot returns serializable ledger records in creation order, for
// persistence alongside the checkpoint state snapshot.
func (t *Tracker) Snapshot() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) == 0 {
		return nil
	}
	records := make([]Record, len(t.entries))
	for i, e := range t.entries {
		records[i] = Record{Kind: e.Kind, Identity: e.Identity, CreatedAt: e.CreatedAt}
	}
	return records
}

// Restore re-seeds the ledger from durable records, in their original
// creation order. The resolver rebuilds compensating actions; if it is
// nil or returns nil for a record, the entry is restored without a
// compensator and a later rollback reports it as orphaned rather than
// silently dropping it.
func (t *Tracker) Restore(records []Record, resolver Resolver) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, rec := range records {
		var rb RollbackFunc
		if resolver != nil {
			rb = resolver(rec.Kind, rec.Identity)
		}
		t.entries = append(t.entries, Entry{
			ID:        id.NewResourceID(),
			Kind:      rec.Kind,
			Identity:  rec.Identity,
			CreatedAt: rec.CreatedAt,
			rollback:  rb,
		})
	}
}

// Rollback undoes every tracked resource in reverse creation order.
// Later resources typically depend on earlier ones (a record inside a
// created project), so they are undone first.
//
// Rollback is best-effort, never fail-fast: each action's failure is
// caught, logged, and collected into the report, and the remaining
// actions still run. Panicking actions are recovered and reported as
// failures. The ledger is emptied afterwards; orphaned resources live on
// only in the returned report for operator follow-up.
func (t *Tracker) Rollback(ctx context.Context) *Report {
	t.mu.Lock()
	entries := t.entries
	t.entries = nil
	t.mu.Unlock()

	report := &Report{}

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]

		err := t.runRollback(ctx, e)
		if err != nil {
			t.logger.Error("rollback action failed",
				slog.String("kind", string(e.Kind)),
				slog.String("identity", e.Identity),
				slog.String("error", err.Error()),
			)
		} else {
			t.logger.Info("resource rolled back",
				slog.String("kind", string(e.Kind)),
				slog.String("identity", e.Identity),
			)
		}

		report.Results = append(report.Results, Result{
			ID:       e.ID,
			Kind:     e.Kind,
			Identity: e.Identity,
			Err:      err,
		})
	}

	return report
}

// runRollback invokes a single compensating action, converting panics
// and a missing compensator into errors.
func (t *Tracker) runRollback(ctx context.Context, e Entry) (retErr error) {
	if e.rollback == nil {
		return fmt.Errorf("%w: %s %q", provisio.ErrNoCompensator, e.Kind, e.Identity)
	}

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("rollback action panicked",
				slog.String("kind", string(e.Kind)),
				slog.String("identity", e.Identity),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			retErr = fmt.Errorf("panic rolling back %s %q: %v", e.Kind, e.Identity, r)
		}
	}()

	return e.rollback(ctx)
}
