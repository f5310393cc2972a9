package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
)

var t0 = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func TestRecordLogAndAt(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	p := project.New("proj-1", "Demo", "alice", t0)
	first, err := svc.Record(p, "Alice Smith")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if first.Hash == "" || first.Author != "Alice Smith" {
		t.Fatalf("Record() commit = %+v", first)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "proj-1", ".git")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	p.TextContent = "<p>second</p>"
	p.UpdatedAt = t0.Add(time.Minute)
	second, err := svc.Record(p, "Alice Smith")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if second.Hash == first.Hash {
		t.Fatal("expected a new commit for changed content")
	}

	log, err := svc.Log("proj-1", 10)
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if len(log) != 2 || log[0].Hash != second.Hash || log[1].Hash != first.Hash {
		t.Fatalf("Log() = %+v", log)
	}
	if strings.TrimSpace(log[0].Message) != "Save Demo" {
		t.Fatalf("Log()[0].Message = %q", log[0].Message)
	}

	limited, err := svc.Log("proj-1", 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("Log(limit 1) = %+v, %v", limited, err)
	}

	old, err := svc.At("proj-1", first.Hash[:7])
	if err != nil {
		t.Fatalf("At() error = %v", err)
	}
	if old.TextContent != project.DefaultTextContent || old.Name != "Demo" {
		t.Fatalf("At() = %+v", old)
	}
	latest, err := svc.At("proj-1", second.Hash)
	if err != nil {
		t.Fatalf("At() error = %v", err)
	}
	if latest.TextContent != "<p>second</p>" {
		t.Fatalf("At() text = %q", latest.TextContent)
	}
}

func TestRecordSkipsIdenticalDocument(t *testing.T) {
	svc := New(t.TempDir())
	p := project.New("same", "Same", "alice", t0)

	first, err := svc.Record(p, "alice")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	again, err := svc.Record(p, "alice")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if again.Hash != first.Hash {
		t.Fatalf("identical record created commit %s", again.Hash)
	}
	log, _ := svc.Log("same", 0)
	if len(log) != 1 {
		t.Fatalf("Log() len = %d, want 1", len(log))
	}
}

func TestLogWithoutRepo(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.Log("missing", 10); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("Log() error = %v, want ErrNoHistory", err)
	}
	if _, err := svc.At("missing", "abc1234"); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("At() error = %v, want ErrNoHistory", err)
	}
}

func TestAtUnknownHash(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.Record(project.New("p", "P", "", t0), ""); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if _, err := svc.At("p", "deadbee"); err == nil {
		t.Fatal("At() with unknown hash should fail")
	}
}

func TestHooksRecordUpserts(t *testing.T) {
	svc := New(t.TempDir())
	hooks := svc.Hooks()
	if len(hooks.AfterUpsert) != 1 {
		t.Fatalf("Hooks() = %+v", hooks)
	}
	p := project.New("hooked", "Hooked", "bob", t0)
	hooks.AfterUpsert[0](context.Background(), p)

	log, err := svc.Log("hooked", 0)
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if len(log) != 1 || log[0].Author != "bob" {
		t.Fatalf("Log() = %+v", log)
	}
}

func TestConcurrentRecordsAreSerialized(t *testing.T) {
	svc := New(t.TempDir())
	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := project.New("busy", "Busy", "alice", t0.Add(time.Duration(i)*time.Second))
			if _, err := svc.Record(p, "alice"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Record() error = %v", err)
	}
	log, err := svc.Log("busy", 0)
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if len(log) != 5 {
		t.Fatalf("Log() len = %d, want 5", len(log))
	}
}

func TestSanitizeEmail(t *testing.T) {
	if got := sanitizeEmail("Ada Lovelace"); got != "Ada.Lovelace" {
		t.Fatalf("sanitizeEmail() = %q", got)
	}
	if got := sanitizeEmail("!!"); got != "user" {
		t.Fatalf("sanitizeEmail() = %q", got)
	}
}
