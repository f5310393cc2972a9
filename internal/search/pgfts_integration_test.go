package search

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
	"github.com/alokdon2/CollabCanvas-sub000/internal/store"
)

func openSearchDB(t *testing.T) *sql.DB {
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

	db, err := store.Open(ctx, dsn, store.PoolConfig{})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := store.ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func TestPgFTSSearchesOwnedProjects(t *testing.T) {
	db := openSearchDB(t)
	ctx := context.Background()
	projects := store.NewPostgresStore(db)
	for _, p := range sampleProjects() {
		if err := projects.Upsert(ctx, p); err != nil {
			t.Fatalf("Upsert(%s) error = %v", p.ID, err)
		}
	}

	fts := NewPgFTS(db)
	results, total, err := fts.Search(Query{Text: "launch", OwnerID: "alice"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 2 || len(results) != 2 {
		t.Fatalf("Search() = %+v total = %d, want alpha and beta", results, total)
	}
	for _, r := range results {
		if r.ProjectID == "gamma" {
			t.Fatalf("Search() leaked another owner's project: %+v", results)
		}
		if strings.ContainsAny(r.Snippet, "<>") {
			t.Fatalf("snippet kept markup: %q", r.Snippet)
		}
	}

	page, total, err := fts.Search(Query{Text: "launch", OwnerID: "alice", Limit: 1, Offset: 1})
	if err != nil || total != 2 || len(page) != 1 {
		t.Fatalf("Search(page 2) = %+v, %d, %v", page, total, err)
	}

	none, _, err := fts.Search(Query{Text: "secrets", OwnerID: "alice"})
	if err != nil || len(none) != 0 {
		t.Fatalf("Search(secrets) = %+v, %v", none, err)
	}
}

func TestPgFTSMatchesNestedNodeText(t *testing.T) {
	db := openSearchDB(t)
	ctx := context.Background()

	p := project.New("deep", "Deep", "alice", t0)
	leaf := project.NewNode("leaf", "leaf.md", project.NodeFile)
	leaf.TextContent = "<p>Compost <em>rotation</em> schedule</p>"
	p.FileSystemRoots = []project.FileSystemNode{leaf}
	if err := store.NewPostgresStore(db).Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	results, total, err := NewPgFTS(db).Search(Query{Text: "rotation", OwnerID: "alice"})
	if err != nil || total != 1 || results[0].ProjectID != "deep" {
		t.Fatalf("Search() = %+v, %d, %v", results, total, err)
	}
}
