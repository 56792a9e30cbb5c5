//go:build integration

package bunstore_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/provisio/provisio"
	"github.com/provisio/provisio/checkpoint"
	"github.com/provisio/provisio/resource"
	bunstore "github.com/provisio/provisio/store/bun"
)

// setupTestStore creates a Postgres container and returns a migrated Bun Store.
func setupTestStore(t *testing.T) *bunstore.Store {
	t.Helper()

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("provisio_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	db := bun.NewDB(sqldb, pgdialect.New())

	t.Cleanup(func() {
		_ = db.Close()
	})

	store := bunstore.New(db, bunstore.WithLogger(slog.Default()))

	if migErr := store.Migrate(ctx); migErr != nil {
		t.Fatalf("migrate: %v", migErr)
	}

	return store
}

func sampleCheckpoint(workflowID string) *checkpoint.Checkpoint {
	return &checkpoint.Checkpoint{
		WorkflowID: workflowID,
		LastStep:   "issue-credentials",
		Completed:  []string{"create-project", "issue-credentials"},
		State: checkpoint.State{
			"project": "proj-42",
			"region":  "eu-west-1",
		},
		Resources: []resource.Record{
			{Kind: resource.KindCloudProject, Identity: "proj-42", CreatedAt: time.Now().UTC().Truncate(time.Second)},
		},
		SavedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestStore_Ping(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestStore_MigrateIdempotent(t *testing.T) {
	s := setupTestStore(t)
	// Second migrate should be a no-op.
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	cp := sampleCheckpoint("tenant-acme")
	if err := s.Save(ctx, cp); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load(ctx, "tenant-acme")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.LastStep != "issue-credentials" {
		t.Fatalf("expected last step issue-credentials, got %s", got.LastStep)
	}
	if len(got.Completed) != 2 || got.Completed[1] != "issue-credentials" {
		t.Fatalf("unexpected completed steps: %v", got.Completed)
	}
	if got.State["project"] != "proj-42" {
		t.Fatalf("expected project proj-42, got %v", got.State["project"])
	}
	if len(got.Resources) != 1 || got.Resources[0].Identity != "proj-42" {
		t.Fatalf("unexpected resources: %v", got.Resources)
	}
}

func TestStore_LoadNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Load(context.Background(), "tenant-ghost")
	if !errors.Is(err, provisio.ErrCheckpointNotFound) {
		t.Fatalf("expected ErrCheckpointNotFound, got: %v", err)
	}
}

func TestStore_SaveUpserts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	cp := sampleCheckpoint("tenant-acme")
	if err := s.Save(ctx, cp); err != nil {
		t.Fatalf("save: %v", err)
	}

	cp.LastStep = "seed-data"
	cp.Completed = append(cp.Completed, "seed-data")
	cp.Resources = nil
	if err := s.Save(ctx, cp); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := s.Load(ctx, "tenant-acme")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.LastStep != "seed-data" {
		t.Fatalf("expected last step seed-data, got %s", got.LastStep)
	}
	// Stale resources from the first save must not survive the upsert.
	if len(got.Resources) != 0 {
		t.Fatalf("expected no resources, got %v", got.Resources)
	}
}

func TestStore_ExistsAndClear(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	exists, err := s.Exists(ctx, "tenant-acme")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("expected no checkpoint yet")
	}

	if err = s.Save(ctx, sampleCheckpoint("tenant-acme")); err != nil {
		t.Fatalf("save: %v", err)
	}

	exists, err = s.Exists(ctx, "tenant-acme")
	if err != nil {
		t.Fatalf("exists after save: %v", err)
	}
	if !exists {
		t.Fatal("expected checkpoint to exist")
	}

	if err = s.Clear(ctx, "tenant-acme"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	// Clearing an absent checkpoint is not an error.
	if err = s.Clear(ctx, "tenant-acme"); err != nil {
		t.Fatalf("second clear: %v", err)
	}

	if _, err = s.Load(ctx, "tenant-acme"); !errors.Is(err, provisio.ErrCheckpointNotFound) {
		t.Fatalf("expected ErrCheckpointNotFound after clear, got: %v", err)
	}
}

func TestStore_ListSorted(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"tenant-zeta", "tenant-acme", "tenant-mid"} {
		if err := s.Save(ctx, sampleCheckpoint(id)); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"tenant-acme", "tenant-mid", "tenant-zeta"}
	if len(ids) != len(want) {
		t.Fatalf("expected %d ids, got %d", len(want), len(ids))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}
