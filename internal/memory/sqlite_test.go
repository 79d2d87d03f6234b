package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shannon-ai/shannon/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := OpenSQLite(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSetGet(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	if err := st.Set(ctx, model.MemoryEntry{Key: "timezone", Value: "UTC+2", Category: "preferences", Source: "discord:alice"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	entry, ok, err := st.Get(ctx, "timezone")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected entry to exist")
	}
	if entry.Value != "UTC+2" || entry.Category != "preferences" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestSetOverwrites(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	st.Set(ctx, model.MemoryEntry{Key: "k", Value: "v1"})
	st.Set(ctx, model.MemoryEntry{Key: "k", Value: "v2"})

	entry, ok, err := st.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get: %v %v", err, ok)
	}
	if entry.Value != "v2" {
		t.Fatalf("expected overwrite, got %q", entry.Value)
	}
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	_, ok, err := st.Get(ctx, "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected missing key to report ok=false")
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	st.Set(ctx, model.MemoryEntry{Key: "k", Value: "v"})
	if err := st.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, ok, _ := st.Get(ctx, "k")
	if ok {
		t.Fatalf("expected key gone after delete")
	}
	if err := st.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete of absent key should not error: %v", err)
	}
}

func TestListByCategory(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	st.Set(ctx, model.MemoryEntry{Key: "a", Value: "1", Category: "fact"})
	st.Set(ctx, model.MemoryEntry{Key: "b", Value: "2", Category: "preference"})
	st.Set(ctx, model.MemoryEntry{Key: "c", Value: "3", Category: "fact"})

	facts, err := st.List(ctx, "fact")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(facts) != 2 || facts[0].Key != "a" || facts[1].Key != "c" {
		t.Fatalf("unexpected facts: %+v", facts)
	}

	all, err := st.List(ctx, "")
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries total, got %d", len(all))
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	st.Set(ctx, model.MemoryEntry{Key: "favorite_color", Value: "blue"})
	st.Set(ctx, model.MemoryEntry{Key: "favorite_food", Value: "pizza"})
	st.Set(ctx, model.MemoryEntry{Key: "birthday", Value: "March"})

	results, err := st.Search(ctx, "favorite")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}

	results, err = st.Search(ctx, "BLUE")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Key != "favorite_color" {
		t.Fatalf("expected case-insensitive value match, got %+v", results)
	}
}

func TestSearchOrdersByUpdatedAtDesc(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	st.Set(ctx, model.MemoryEntry{Key: "favorite_color", Value: "blue"})
	st.Set(ctx, model.MemoryEntry{Key: "favorite_food", Value: "pizza"})

	// Force deterministic updated_at ordering rather than relying on
	// real-clock timing between the two Set calls above.
	if _, err := st.db.ExecContext(ctx, `UPDATE memory_entries SET updated_at = 100 WHERE key = 'favorite_color'`); err != nil {
		t.Fatalf("seed updated_at: %v", err)
	}
	if _, err := st.db.ExecContext(ctx, `UPDATE memory_entries SET updated_at = 200 WHERE key = 'favorite_food'`); err != nil {
		t.Fatalf("seed updated_at: %v", err)
	}

	results, err := st.Search(ctx, "favorite")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].Key != "favorite_food" || results[1].Key != "favorite_color" {
		t.Fatalf("expected most-recently-updated entry first, got %+v", results)
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	st.Set(ctx, model.MemoryEntry{Key: "a", Value: "1"})
	st.Set(ctx, model.MemoryEntry{Key: "b", Value: "2"})

	entries, err := st.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}
