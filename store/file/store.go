// Package file provides a checkpoint.Store backed by one file per
// workflow identity in a caller-supplied directory. It is the default
// durable backend for single-operator use: checkpoints survive process
// restarts and can be inspected (JSON codec) or removed by hand.
//
// Saves are atomic: the checkpoint is written to a temp file in the same
// directory, fsynced, then renamed over the previous file, so a crashed
// write never leaves a partially written checkpoint visible.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/provisio/provisio"
	"github.com/provisio/provisio/checkpoint"
)

var _ checkpoint.Store = (*Store)(nil)

// Store persists checkpoints as files named deterministically from the
// workflow identity, so Exists/Load/Clear are idempotent lookups.
type Store struct {
	dir    string
	codec  Codec
	logger *slog.Logger

	// mu serializes writes within this process. Cross-process writers
	// are already safe through the rename, but interleaved temp files
	// for one identity would race on the final name.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithCodec sets the file encoding. Defaults to JSON.
func WithCodec(c Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithLogger sets the store's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a file store rooted at dir, creating the directory if
// needed.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:    dir,
		codec:  &JSONCodec{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir %s: %w", dir, err)
	}
	return s, nil
}

// Dir returns the directory checkpoints are stored in.
func (s *Store) Dir() string { return s.dir }

// Exists reports whether a checkpoint file exists for the workflow identity.
func (s *Store) Exists(_ context.Context, workflowID string) (bool, error) {
	_, err := os.Stat(s.path(workflowID))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat checkpoint for %q: %w", workflowID, err)
}

// Save atomically replaces the checkpoint file for cp.WorkflowID.
func (s *Store) Save(_ context.Context, cp *checkpoint.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.codec.Encode(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint for %q: %w", cp.WorkflowID, err)
	}

	final := s.path(cp.WorkflowID)
	tmp, err := os.CreateTemp(s.dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint for %q: %w", cp.WorkflowID, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint for %q: %w", cp.WorkflowID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync checkpoint for %q: %w", cp.WorkflowID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close checkpoint for %q: %w", cp.WorkflowID, err)
	}

	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace checkpoint for %q: %w", cp.WorkflowID, err)
	}

	s.logger.Debug("checkpoint saved",
		slog.String("workflow_id", cp.WorkflowID),
		slog.String("path", final),
	)
	return nil
}

// Load retrieves the checkpoint for the workflow identity.
func (s *Store) Load(_ context.Context, workflowID string) (*checkpoint.Checkpoint, error) {
	data, err := os.ReadFile(s.path(workflowID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, provisio.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("read checkpoint for %q: %w", workflowID, err)
	}

	cp, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode checkpoint for %q: %w", workflowID, err)
	}
	return cp, nil
}

// Clear removes the checkpoint file, if any.
func (s *Store) Clear(_ context.Context, workflowID string) error {
	err := os.Remove(s.path(workflowID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint for %q: %w", workflowID, err)
	}
	return nil
}

// List returns the workflow identities with a checkpoint file, sorted.
// Identities are read from the file contents, not the file names, since
// name sanitization is lossy.
func (s *Store) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint dir %s: %w", s.dir, err)
	}

	suffix := ".checkpoint." + s.codec.Name()
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		data, readErr := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if readErr != nil {
			return nil, fmt.Errorf("read checkpoint file %s: %w", entry.Name(), readErr)
		}
		cp, decErr := s.codec.Decode(data)
		if decErr != nil {
			s.logger.Warn("skipping undecodable checkpoint file",
				slog.String("path", entry.Name()),
				slog.String("error", decErr.Error()),
			)
			continue
		}
		ids = append(ids, cp.WorkflowID)
	}
	sort.Strings(ids)
	return ids, nil
}

// path maps a workflow identity to its deterministic file path.
func (s *Store) path(workflowID string) string {
	return filepath.Join(s.dir, sanitize(workflowID)+".checkpoint."+s.codec.Name())
}

// sanitize keeps file names portable: anything outside [a-zA-Z0-9._-]
// becomes '-'.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, id)
}
