// Package bunstore implements checkpoint.Store using the Bun ORM with
// PostgreSQL dialect. Suitable for teams already running their tenant
// metadata through Bun.
//
// The caller owns the *bun.DB lifecycle — bunstore never closes it. Pass
// the db handle through the constructor:
//
//	import (
//	    "github.com/uptrace/bun"
//	    "github.com/uptrace/bun/dialect/pgdialect"
//	    "github.com/uptrace/bun/driver/pgdriver"
//	    bunstore "github.com/provisio/provisio/store/bun"
//	)
//
//	sqldb := sql.OpenDB(pgdriver.NewConnector(...))
//	db := bun.NewDB(sqldb, pgdialect.New())
//	store := bunstore.New(db)
//	store.Migrate(ctx)
package bunstore

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/provisio/provisio"
	"github.com/provisio/provisio/checkpoint"
	"github.com/provisio/provisio/resource"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var _ checkpoint.Store = (*Store)(nil)

// checkpointModel maps a checkpoint onto the provisio_checkpoints table.
type checkpointModel struct {
	bun.BaseModel `bun:"table:provisio_checkpoints"`

	WorkflowID string    `bun:"workflow_id,pk"`
	LastStep   string    `bun:"last_step,notnull"`
	Completed  []byte    `bun:"completed,notnull,type:jsonb"`
	State      []byte    `bun:"state,notnull,type:jsonb"`
	Resources  []byte    `bun:"resources,notnull,type:jsonb"`
	SavedAt    time.Time `bun:"saved_at,notnull,default:current_timestamp"`
}

// Store is a Bun ORM implementation of checkpoint.Store.
type Store struct {
	db     *bun.DB
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new Bun store. The caller owns the db lifecycle.
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *bun.DB for advanced usage.
func (s *Store) DB() *bun.DB {
	return s.db
}

// Migrate runs all embedded SQL migration files in order.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS provisio_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("provisio/bun: create migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("provisio/bun: read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var applied bool
		err = s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM provisio_migrations WHERE filename = ?)`,
			entry.Name(),
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("provisio/bun: check migration %s: %w", entry.Name(), err)
		}
		if applied {
			continue
		}

		data, readErr := fs.ReadFile(migrationsFS, "migrations/"+entry.Name())
		if readErr != nil {
			return fmt.Errorf("provisio/bun: read migration %s: %w", entry.Name(), readErr)
		}
		if _, execErr := s.db.ExecContext(ctx, string(data)); execErr != nil {
			return fmt.Errorf("provisio/bun: execute migration %s: %w", entry.Name(), execErr)
		}
		if _, recErr := s.db.ExecContext(ctx,
			`INSERT INTO provisio_migrations (filename) VALUES (?)`,
			entry.Name(),
		); recErr != nil {
			return fmt.Errorf("provisio/bun: record migration %s: %w", entry.Name(), recErr)
		}

		s.logger.Info("applied migration", "file", entry.Name())
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Exists reports whether a checkpoint row exists for the workflow identity.
func (s *Store) Exists(ctx context.Context, workflowID string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*checkpointModel)(nil)).
		Where("workflow_id = ?", workflowID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("provisio/bun: exists: %w", err)
	}
	return exists, nil
}

// Save upserts the checkpoint row for cp.WorkflowID.
func (s *Store) Save(ctx context.Context, cp *checkpoint.Checkpoint) error {
	model, err := toModel(cp)
	if err != nil {
		return err
	}

	_, err = s.db.NewInsert().
		Model(model).
		On("CONFLICT (workflow_id) DO UPDATE").
		Set("last_step = EXCLUDED.last_step").
		Set("completed = EXCLUDED.completed").
		Set("state = EXCLUDED.state").
		Set("resources = EXCLUDED.resources").
		Set("saved_at = EXCLUDED.saved_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("provisio/bun: save checkpoint: %w", err)
	}
	return nil
}

// Load retrieves the checkpoint for the workflow identity.
func (s *Store) Load(ctx context.Context, workflowID string) (*checkpoint.Checkpoint, error) {
	model := new(checkpointModel)
	err := s.db.NewSelect().
		Model(model).
		Where("workflow_id = ?", workflowID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, provisio.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("provisio/bun: load checkpoint: %w", err)
	}
	return fromModel(model)
}

// Clear removes the checkpoint row, if any.
func (s *Store) Clear(ctx context.Context, workflowID string) error {
	_, err := s.db.NewDelete().
		Model((*checkpointModel)(nil)).
		Where("workflow_id = ?", workflowID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("provisio/bun: clear checkpoint: %w", err)
	}
	return nil
}

// List returns the workflow identities with a checkpoint, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().
		Model((*checkpointModel)(nil)).
		Column("workflow_id").
		Order("workflow_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("provisio/bun: list checkpoints: %w", err)
	}
	return ids, nil
}

func toModel(cp *checkpoint.Checkpoint) (*checkpointModel, error) {
	completed, err := json.Marshal(cp.Completed)
	if err != nil {
		return nil, fmt.Errorf("provisio/bun: encode completed: %w", err)
	}
	state, err := json.Marshal(cp.State)
	if err != nil {
		return nil, fmt.Errorf("provisio/bun: encode state: %w", err)
	}
	resources, err := json.Marshal(cp.Resources)
	if err != nil {
		return nil, fmt.Errorf("provisio/bun: encode resources: %w", err)
	}

	return &checkpointModel{
		WorkflowID: cp.WorkflowID,
		LastStep:   cp.LastStep,
		Completed:  completed,
		State:      state,
		Resources:  resources,
		SavedAt:    cp.SavedAt.UTC(),
	}, nil
}

func fromModel(m *checkpointModel) (*checkpoint.Checkpoint, error) {
	cp := &checkpoint.Checkpoint{
		WorkflowID: m.WorkflowID,
		LastStep:   m.LastStep,
		SavedAt:    m.SavedAt,
	}
	if err := json.Unmarshal(m.Completed, &cp.Completed); err != nil {
		return nil, fmt.Errorf("provisio/bun: decode completed: %w", err)
	}
	if err := json.Unmarshal(m.State, &cp.State); err != nil {
		return nil, fmt.Errorf("provisio/bun: decode state: %w", err)
	}
	var records []resource.Record
	if err := json.Unmarshal(m.Resources, &records); err != nil {
		return nil, fmt.Errorf("provisio/bun: decode resources: %w", err)
	}
	cp.Resources = records
	return cp, nil
}
