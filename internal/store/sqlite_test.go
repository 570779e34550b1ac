package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rcliao/convo-memory/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"), nil)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath, nil)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}

func TestSQLiteReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s1, err := NewSQLiteStore(dbPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, _ := s1.Upsert(ctx, "u1", []model.Candidate{{Content: "persisted", Type: model.TypeFact, Tags: []string{"a", "b"}}})
	s1.Close()

	s2, err := NewSQLiteStore(dbPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, err := s2.Read(ctx, "u1", res.CreatedIDs[0])
	if err != nil {
		t.Fatalf("read after reopen: %v", err)
	}
	if len(got.Tags) != 2 || got.Tags[1] != "b" {
		t.Errorf("tags not persisted: %v", got.Tags)
	}

	again, _ := s2.Upsert(ctx, "u1", []model.Candidate{{Content: "Persisted", Type: model.TypeFact}})
	if again.Deduped != 1 {
		t.Errorf("expected dedup across reopen, got %+v", again)
	}
}

func TestSQLiteEmptyScopeKeysCollide(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Upsert(ctx, "u1", []model.Candidate{{Content: "no scope", Type: model.TypeFact}})
	res, err := s.Upsert(ctx, "u1", []model.Candidate{{Content: "no scope", Type: model.TypeFact}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Deduped != 1 {
		t.Errorf("records without owner/cat must dedup, got %+v", res)
	}
}
