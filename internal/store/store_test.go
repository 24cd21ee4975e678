package store

import (
	"database/sql"
	"os"
	"testing"
)

func tempDB(t *testing.T, pattern string) string {
	t.Helper()
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	path := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(path) })
	return path
}

// exerciseStore runs the behaviour shared by every Store implementation.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	// Test Put and Get
	err := s.Put(Definition{Name: "square", Kind: KindDef, Source: "def square(x) (x * x)", Seq: 2})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(Definition{Name: "sin", Kind: KindExtern, Source: "extern sin(x)", Seq: 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get("square")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || got.Source != "def square(x) (x * x)" || got.Kind != KindDef || got.Seq != 2 {
		t.Errorf("unexpected definition %+v", got)
	}

	// List is ordered by Seq
	defs, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(defs) != 2 || defs[0].Name != "sin" || defs[1].Name != "square" {
		t.Errorf("unexpected list order: %+v", defs)
	}

	// Test Delete
	if err := s.Delete("square"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, err = s.Get("square")
	if err != nil {
		t.Fatalf("Get after delete failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}

	// Missing names are not errors
	if got, err := s.Get("nope"); err != nil || got != nil {
		t.Errorf("Get(nope) = %+v, %v", got, err)
	}
}

// exerciseHistory checks version bookkeeping.
func exerciseHistory(t *testing.T, s interface {
	Store
	HistoryStore
}) {
	t.Helper()

	// Put creates version 1
	s.Put(Definition{Name: "f", Kind: KindDef, Source: "def f(x) x", Seq: 1})

	// Put again with different source creates version 2
	s.Put(Definition{Name: "f", Kind: KindDef, Source: "def f(x) (x + 1)", Seq: 1})

	// Put with same source is a no-op (dedup)
	s.Put(Definition{Name: "f", Kind: KindDef, Source: "def f(x) (x + 1)", Seq: 1})

	// GetHistory returns newest-first
	entries, err := s.GetHistory("f", 0)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Version != 2 || entries[0].Source != "def f(x) (x + 1)" {
		t.Errorf("entry[0]: expected v2, got v%d '%s'", entries[0].Version, entries[0].Source)
	}
	if entries[1].Version != 1 || entries[1].Source != "def f(x) x" {
		t.Errorf("entry[1]: expected v1, got v%d '%s'", entries[1].Version, entries[1].Source)
	}
	if entries[0].Ts == "" {
		t.Error("expected non-empty timestamp")
	}

	// GetHistory with limit
	entries, err = s.GetHistory("f", 1)
	if err != nil {
		t.Fatalf("GetHistory with limit failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Version != 2 {
		t.Fatalf("expected only v2 with limit, got %+v", entries)
	}

	// GetHistory on nonexistent returns nothing
	entries, err = s.GetHistory("nope", 0)
	if err != nil {
		t.Fatalf("GetHistory nonexistent failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries for nonexistent, got %v", entries)
	}

	// Delete removes all versions
	s.Delete("f")
	entries, _ = s.GetHistory("f", 0)
	if len(entries) != 0 {
		t.Errorf("expected 0 after delete, got %d", len(entries))
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	exerciseStore(t, s)
}

func TestMemoryVersioning(t *testing.T) {
	exerciseHistory(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	path := tempDB(t, "kaleido-test-*.db")

	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	exerciseStore(t, s)
	s.Close()

	// Reopen and check persistence
	s, err = NewSQLite(path)
	if err != nil {
		t.Fatalf("Failed to reopen SQLite store: %v", err)
	}
	defer s.Close()
	got, err := s.Get("sin")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if got == nil || got.Source != "extern sin(x)" {
		t.Errorf("expected extern sin after reopen, got %+v", got)
	}
}

func TestSQLiteVersioning(t *testing.T) {
	s, err := NewSQLite(tempDB(t, "kaleido-ver-test-*.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer s.Close()
	exerciseHistory(t, s)
}

func TestSQLiteRejectsUnknownSchema(t *testing.T) {
	path := tempDB(t, "kaleido-schema-test-*.db")

	db, err := sql.Open(driverName, path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL);
		INSERT INTO metadata (key, value) VALUES ('schema_version', '99');
	`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	db.Close()

	if s, err := NewSQLite(path); err == nil {
		s.Close()
		t.Fatal("expected error for unsupported schema version")
	}
}
