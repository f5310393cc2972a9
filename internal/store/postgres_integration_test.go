package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := strings.TrimSpace(os.Getenv("CANVAS_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("CANVAS_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn, PoolConfig{})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	// second pass must be a no-op
	if err := ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("reapply migrations: %v", err)
	}
	return db
}

func TestPostgresStoreUpsertMergesDocument(t *testing.T) {
	db := openTestDB(t)
	s := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	p := project.New("p1", "Plan", "alice", now)
	p.TextContent = "<p>first</p>"
	if err := s.Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	p.Name = "Plan v2"
	p.UpdatedAt = now.Add(time.Minute)
	if err := s.Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert() second error = %v", err)
	}

	got, err := s.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Plan v2" || got.OwnerID != "alice" {
		t.Fatalf("unexpected project %+v", got)
	}
	if got.TextContent != "<p>first</p>" {
		t.Fatalf("expected text content to persist, got %q", got.TextContent)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("createdAt changed: %v", got.CreatedAt)
	}
	if !got.UpdatedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("updatedAt = %v", got.UpdatedAt)
	}
}

func TestPostgresStoreListingAndDelete(t *testing.T) {
	db := openTestDB(t)
	s := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, owner := range []string{"alice", "bob", "alice"} {
		p := project.New([]string{"a", "b", "c"}[i], "P", owner, now.Add(time.Duration(i)*time.Minute))
		if err := s.Upsert(ctx, p); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	owned, err := s.ForOwner("alice").GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(owned) != 2 || owned[0].ID != "c" || owned[1].ID != "a" {
		t.Fatalf("unexpected owned listing %+v", owned)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
