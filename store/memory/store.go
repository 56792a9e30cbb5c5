// Package memory provides a fully in-memory checkpoint.Store.
// Safe for concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/provisio/provisio"
	"github.com/provisio/provisio/checkpoint"
)

var _ checkpoint.Store = (*Store)(nil)

// Store keeps checkpoints in a map keyed by workflow identity.
type Store struct {
	mu          sync.RWMutex
	checkpoints map[string]*checkpoint.Checkpoint
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		checkpoints: make(map[string]*checkpoint.Checkpoint),
	}
}

// Exists reports whether a checkpoint exists for the workflow identity.
func (m *Store) Exists(_ context.Context, workflowID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.checkpoints[workflowID]
	return ok, nil
}

// Save replaces the checkpoint for cp.WorkflowID. The checkpoint is
// cloned so later caller mutations don't leak into the store.
func (m *Store) Save(_ context.Context, cp *checkpoint.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoints[cp.WorkflowID] = cp.Clone()
	return nil
}

// Load retrieves the checkpoint for the workflow identity.
func (m *Store) Load(_ context.Context, workflowID string) (*checkpoint.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.checkpoints[workflowID]
	if !ok {
		return nil, provisio.ErrCheckpointNotFound
	}
	return cp.Clone(), nil
}

// Clear removes the checkpoint for the workflow identity, if any.
func (m *Store) Clear(_ context.Context, workflowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.checkpoints, workflowID)
	return nil
}

// List returns the workflow identities with a checkpoint, sorted.
func (m *Store) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.checkpoints))
	for id := range m.checkpoints {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
