package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/provisio/provisio"
	"github.com/provisio/provisio/checkpoint"
	"github.com/provisio/provisio/resource"
	"github.com/provisio/provisio/store/memory"
)

func newCheckpoint(workflowID string) *checkpoint.Checkpoint {
	return &checkpoint.Checkpoint{
		WorkflowID: workflowID,
		LastStep:   "write-record",
		Completed:  []string{"create-account", "write-record"},
		State:      checkpoint.State{"project": "proj-1"},
		Resources: []resource.Record{
			{Kind: resource.KindCloudProject, Identity: "proj-1", CreatedAt: time.Now().UTC()},
		},
		SavedAt: time.Now().UTC(),
	}
}

func TestStore_SaveLoad(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if err := s.Save(ctx, newCheckpoint("tenant-a")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.LastStep != "write-record" {
		t.Errorf("LastStep = %q, want %q", got.LastStep, "write-record")
	}
	if len(got.Completed) != 2 {
		t.Errorf("Completed = %v, want 2 entries", got.Completed)
	}
	if got.State.String("project") != "proj-1" {
		t.Errorf("State[project] = %q, want %q", got.State.String("project"), "proj-1")
	}
	if len(got.Resources) != 1 {
		t.Errorf("Resources = %v, want 1 entry", got.Resources)
	}
}

func TestStore_LoadNotFound(t *testing.T) {
	s := memory.New()

	_, err := s.Load(context.Background(), "missing")
	if !errors.Is(err, provisio.ErrCheckpointNotFound) {
		t.Fatalf("err = %v, want ErrCheckpointNotFound", err)
	}
}

func TestStore_SaveReplaces(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	first := newCheckpoint("tenant-a")
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := newCheckpoint("tenant-a")
	second.LastStep = "commit"
	second.Completed = append(second.Completed, "commit")
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.LastStep != "commit" {
		t.Errorf("LastStep = %q, want %q", got.LastStep, "commit")
	}
	if len(got.Completed) != 3 {
		t.Errorf("Completed = %v, want 3 entries", got.Completed)
	}
}

func TestStore_SaveClonesInput(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	cp := newCheckpoint("tenant-a")
	if err := s.Save(ctx, cp); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Mutating the caller's copy must not affect the stored one.
	cp.Completed[0] = "mutated"
	cp.State["project"] = "mutated"

	got, err := s.Load(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Completed[0] != "create-account" {
		t.Errorf("Completed[0] = %q, want %q", got.Completed[0], "create-account")
	}
	if got.State.String("project") != "proj-1" {
		t.Errorf("State[project] = %q, want %q", got.State.String("project"), "proj-1")
	}
}

func TestStore_ExistsAndClear(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	ok, err := s.Exists(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Fatal("Exists = true before save")
	}

	if err := s.Save(ctx, newCheckpoint("tenant-a")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	ok, _ = s.Exists(ctx, "tenant-a")
	if !ok {
		t.Fatal("Exists = false after save")
	}

	if err := s.Clear(ctx, "tenant-a"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	ok, _ = s.Exists(ctx, "tenant-a")
	if ok {
		t.Fatal("Exists = true after clear")
	}

	// Clearing again is not an error.
	if err := s.Clear(ctx, "tenant-a"); err != nil {
		t.Fatalf("Clear twice: %v", err)
	}
}

func TestStore_List(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	for _, id := range []string{"tenant-c", "tenant-a", "tenant-b"} {
		if err := s.Save(ctx, newCheckpoint(id)); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"tenant-a", "tenant-b", "tenant-c"}
	if len(ids) != len(want) {
		t.Fatalf("List = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}
