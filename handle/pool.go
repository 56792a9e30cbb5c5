// Package handle provides a bounded cache of reusable per-tenant
// external-connection handles with concurrency-safe lazy creation and
// least-recently-used eviction.
//
// Handles are expensive to create (they represent authenticated sessions
// against external platforms), so concurrent first-access races for the
// same tenant are collapsed onto a single in-flight creation, and the
// pool keeps at most a fixed number of handles alive across all tenants.
package handle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/provisio/provisio"
)

// Handle is an opaque, reusable connection to a per-tenant external
// backend. The pool owns resident handles exclusively and closes them on
// eviction, release, and shutdown.
type Handle interface {
	Close(ctx context.Context) error
}

// Factory creates a new handle for a tenant. It is supplied per Acquire
// call so the caller controls credentials and configuration; the pool
// guarantees it runs at most once per tenant per miss.
type Factory func(ctx context.Context) (Handle, error)

// entry is one resident handle. lastUsed drives LRU eviction; seq breaks
// ties between entries touched in the same clock tick (older insertion
// evicts first).
type entry struct {
	handle   Handle
	lastUsed time.Time
	seq      uint64
}

// Pool is a fixed-capacity, concurrency-safe handle cache keyed by
// tenant id. At most one entry exists per tenant.
type Pool struct {
	capacity int
	logger   *slog.Logger
	now      func() time.Time

	// creationLimit throttles factory invocations per tenant. Zero
	// disables throttling.
	creationLimit rate.Limit
	creationBurst int

	mu       sync.Mutex
	entries  map[string]*entry
	limiters map[string]*rate.Limiter
	seq      uint64
	closed   bool

	flight singleflight.Group
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the structured logger for the pool.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// WithCreationRate throttles handle creation per tenant to the given
// sustained rate and burst. Creations are calls against external
// platform APIs; throttling protects them from churn under eviction
// pressure.
func WithCreationRate(limit rate.Limit, burst int) Option {
	return func(p *Pool) {
		p.creationLimit = limit
		if burst <= 0 {
			burst = 1
		}
		p.creationBurst = burst
	}
}

// NewPool creates a pool holding at most capacity handles.
func NewPool(capacity int, opts ...Option) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	p := &Pool{
		capacity: capacity,
		logger:   slog.Default(),
		now:      time.Now,
		entries:  make(map[string]*entry),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Capacity returns the configured maximum number of resident handles.
func (p *Pool) Capacity() int { return p.capacity }

// Len returns the current number of resident handles.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Acquire returns the tenant's handle, creating it with factory on first
// access. Concurrent callers racing on the same untracked tenant join a
// single in-flight creation and receive the same handle. When the pool
// is at capacity, the least-recently-used entry is closed and evicted
// before the new handle is admitted.
//
// A factory failure leaves no entry behind and never blocks other
// tenants' acquisitions.
func (p *Pool) Acquire(ctx context.Context, tenantID string, factory Factory) (Handle, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, provisio.ErrPoolClosed
	}
	if e, ok := p.entries[tenantID]; ok {
		p.touchLocked(e)
		h := e.handle
		p.mu.Unlock()
		return h, nil
	}
	p.mu.Unlock()

	v, err, _ := p.flight.Do(tenantID, func() (any, error) {
		return p.create(ctx, tenantID, factory)
	})
	if err != nil {
		return nil, err
	}
	return v.(Handle), nil
}

// create runs inside the singleflight for one tenant. It re-checks
// residency (a previous flight may have just inserted), throttles, runs
// the factory, then admits the handle under the capacity bound.
func (p *Pool) create(ctx context.Context, tenantID string, factory Factory) (Handle, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, provisio.ErrPoolClosed
	}
	if e, ok := p.entries[tenantID]; ok {
		p.touchLocked(e)
		h := e.handle
		p.mu.Unlock()
		return h, nil
	}
	limiter := p.limiterLocked(tenantID)
	p.mu.Unlock()

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("handle: throttle creation for tenant %q: %w", tenantID, err)
		}
	}

	h, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("handle: create for tenant %q: %w", tenantID, err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.closeHandle(ctx, tenantID, h)
		return nil, provisio.ErrPoolClosed
	}
	victim := p.evictForAdmitLocked()
	p.seq++
	p.entries[tenantID] = &entry{handle: h, lastUsed: p.now().UTC(), seq: p.seq}
	p.mu.Unlock()

	if victim != nil {
		p.logger.Debug("evicted least-recently-used handle",
			slog.String("tenant_id", victim.tenantID),
		)
		p.closeHandle(ctx, victim.tenantID, victim.handle)
	}

	return h, nil
}

// touchLocked refreshes an entry's recency. Callers hold p.mu.
func (p *Pool) touchLocked(e *entry) {
	e.lastUsed = p.now().UTC()
}

// limiterLocked returns the tenant's creation limiter, making one
// lazily if throttling is configured. Callers hold p.mu.
func (p *Pool) limiterLocked(tenantID string) *rate.Limiter {
	if p.creationLimit <= 0 {
		return nil
	}
	l, ok := p.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(p.creationLimit, p.creationBurst)
		p.limiters[tenantID] = l
	}
	return l
}

type victim struct {
	tenantID string
	handle   Handle
}

// evictForAdmitLocked removes the strict-LRU entry if the pool is at
// capacity, returning it for the caller to close outside the lock.
// Ties on lastUsed break by insertion order (lower seq evicts first).
// Callers hold p.mu.
func (p *Pool) evictForAdmitLocked() *victim {
	if len(p.entries) < p.capacity {
		return nil
	}

	var lruID string
	var lru *entry
	for tenantID, e := range p.entries {
		if lru == nil ||
			e.lastUsed.Before(lru.lastUsed) ||
			(e.lastUsed.Equal(lru.lastUsed) && e.seq < lru.seq) {
			lruID = tenantID
			lru = e
		}
	}

	delete(p.entries, lruID)
	return &victim{tenantID: lruID, handle: lru.handle}
}

// Release closes and removes the tenant's handle regardless of recency.
// Returns provisio.ErrHandleNotFound if the tenant has no resident handle.
func (p *Pool) Release(ctx context.Context, tenantID string) error {
	p.mu.Lock()
	e, ok := p.entries[tenantID]
	if !ok {
		p.mu.Unlock()
		return provisio.ErrHandleNotFound
	}
	delete(p.entries, tenantID)
	p.mu.Unlock()

	if err := e.handle.Close(ctx); err != nil {
		return fmt.Errorf("handle: close for tenant %q: %w", tenantID, err)
	}
	return nil
}

// ReleaseAll closes and removes every resident handle and marks the pool
// closed. Used at process shutdown. Close errors are joined and
// returned; every handle is still removed.
func (p *Pool) ReleaseAll(ctx context.Context) error {
	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[string]*entry)
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for tenantID, e := range entries {
		if err := e.handle.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("handle: close for tenant %q: %w", tenantID, err))
		}
	}
	return errors.Join(errs...)
}

// closeHandle closes a handle outside the pool lock, logging failures.
func (p *Pool) closeHandle(ctx context.Context, tenantID string, h Handle) {
	if err := h.Close(ctx); err != nil {
		p.logger.Warn("handle close failed",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
	}
}
