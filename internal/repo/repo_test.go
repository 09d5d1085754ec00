package repo_test

import (
	"context"
	"errors"
	"testing"

	"momentum/internal/db"
	"momentum/internal/domain"
	"momentum/internal/migrate"
	"momentum/internal/repo"
)

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	dir := t.TempDir()
	if _, err := db.EnsureWorkspace(dir); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}
}

func seedTask(t *testing.T, r repo.Repo, owner, id string) domain.Task {
	t.Helper()
	task := domain.Task{
		ID:        id,
		OwnerID:   owner,
		Title:     "Seed",
		Category:  "work",
		Priority:  "medium",
		Status:    "todo",
		Version:   1,
		CreatedAt: "2024-05-01T10:00:00Z",
		UpdatedAt: "2024-05-01T10:00:00Z",
	}
	tx, err := r.DB.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	if err := r.InsertTask(context.Background(), tx, task); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return task
}

func TestUpdateTaskVersionGuard(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	task := seedTask(t, r, "owner-1", "t-1")

	// first update wins and bumps the version
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	task.Title = "Renamed"
	if err := r.UpdateTask(ctx, tx, task); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	fresh, err := r.GetTask(ctx, "owner-1", "t-1")
	if err != nil || fresh.Version != 2 {
		t.Fatalf("fresh = %+v (%v)", fresh, err)
	}

	// a writer holding the old version must get a conflict, not a lost update
	tx, err = r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	stale := task // still version 1
	stale.Title = "Stale write"
	err = r.UpdateTask(ctx, tx, stale)
	if !errors.Is(err, repo.ErrVersionConflict) {
		t.Fatalf("err = %v, want version conflict", err)
	}
}

func TestUpdateMissingTaskIsNotFound(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	err = r.UpdateTask(ctx, tx, domain.Task{ID: "ghost", OwnerID: "owner-1", Version: 1})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestDeleteTaskVersionGuard(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	seedTask(t, r, "owner-1", "t-1")

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	err = r.DeleteTask(ctx, tx, "owner-1", "t-1", 99)
	if !errors.Is(err, repo.ErrVersionConflict) {
		t.Fatalf("stale delete err = %v", err)
	}
	if err := r.DeleteTask(ctx, tx, "owner-1", "t-1", 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := r.GetTask(ctx, "owner-1", "t-1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("task survived delete: %v", err)
	}
}
