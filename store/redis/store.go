// Package redis implements checkpoint.Store backed by Redis. Each
// checkpoint is a Redis Hash keyed by workflow identity; a Set indexes
// the identities for enumeration. Suitable when several operator hosts
// share the same provisioning state.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/provisio/provisio"
	"github.com/provisio/provisio/checkpoint"
	"github.com/provisio/provisio/resource"
)

var _ checkpoint.Store = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements checkpoint.Store backed by Redis.
type Store struct {
	client goredis.Cmdable
	logger *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.Cmdable { return s.client }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Exists reports whether a checkpoint exists for the workflow identity.
func (s *Store) Exists(ctx context.Context, workflowID string) (bool, error) {
	n, err := s.client.Exists(ctx, checkpointKey(workflowID)).Result()
	if err != nil {
		return false, fmt.Errorf("provisio/redis: exists: %w", err)
	}
	return n > 0, nil
}

// Save replaces the checkpoint hash for cp.WorkflowID. The Del and HSet
// run in one MULTI/EXEC transaction so a concurrent reader never sees a
// partially written checkpoint.
func (s *Store) Save(ctx context.Context, cp *checkpoint.Checkpoint) error {
	m, err := checkpointToMap(cp)
	if err != nil {
		return err
	}

	key := checkpointKey(cp.WorkflowID)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, m)
	pipe.SAdd(ctx, checkpointIDsKey, cp.WorkflowID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("provisio/redis: save checkpoint: %w", err)
	}
	return nil
}

// Load retrieves the checkpoint for the workflow identity.
func (s *Store) Load(ctx context.Context, workflowID string) (*checkpoint.Checkpoint, error) {
	vals, err := s.client.HGetAll(ctx, checkpointKey(workflowID)).Result()
	if err != nil {
		return nil, fmt.Errorf("provisio/redis: load checkpoint: %w", err)
	}
	if len(vals) == 0 {
		return nil, provisio.ErrCheckpointNotFound
	}
	return mapToCheckpoint(vals)
}

// Clear removes the checkpoint and its index entry, if present.
func (s *Store) Clear(ctx context.Context, workflowID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, checkpointKey(workflowID))
	pipe.SRem(ctx, checkpointIDsKey, workflowID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("provisio/redis: clear checkpoint: %w", err)
	}
	return nil
}

// List returns the workflow identities with a checkpoint, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, checkpointIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("provisio/redis: list checkpoints: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// checkpointToMap flattens a checkpoint into Redis hash fields. The
// structured fields travel as JSON.
func checkpointToMap(cp *checkpoint.Checkpoint) (map[string]any, error) {
	completed, err := json.Marshal(cp.Completed)
	if err != nil {
		return nil, fmt.Errorf("provisio/redis: encode completed: %w", err)
	}
	state, err := json.Marshal(cp.State)
	if err != nil {
		return nil, fmt.Errorf("provisio/redis: encode state: %w", err)
	}
	resources, err := json.Marshal(cp.Resources)
	if err != nil {
		return nil, fmt.Errorf("provisio/redis: encode resources: %w", err)
	}

	return map[string]any{
		"workflow_id": cp.WorkflowID,
		"last_step":   cp.LastStep,
		"completed":   string(completed),
		"state":       string(state),
		"resources":   string(resources),
		"saved_at":    cp.SavedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

// mapToCheckpoint reverses checkpointToMap.
func mapToCheckpoint(vals map[string]string) (*checkpoint.Checkpoint, error) {
	cp := &checkpoint.Checkpoint{
		WorkflowID: vals["workflow_id"],
		LastStep:   vals["last_step"],
	}

	if v := vals["completed"]; v != "" {
		if err := json.Unmarshal([]byte(v), &cp.Completed); err != nil {
			return nil, fmt.Errorf("provisio/redis: decode completed: %w", err)
		}
	}
	if v := vals["state"]; v != "" {
		if err := json.Unmarshal([]byte(v), &cp.State); err != nil {
			return nil, fmt.Errorf("provisio/redis: decode state: %w", err)
		}
	}
	if v := vals["resources"]; v != "" {
		var records []resource.Record
		if err := json.Unmarshal([]byte(v), &records); err != nil {
			return nil, fmt.Errorf("provisio/redis: decode resources: %w", err)
		}
		cp.Resources = records
	}
	if v := vals["saved_at"]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("provisio/redis: decode saved_at: %w", err)
		}
		cp.SavedAt = t
	}
	return cp, nil
}
