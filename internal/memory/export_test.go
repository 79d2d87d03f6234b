package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/shannon-ai/shannon/internal/model"
)

func TestExportContextOrdersByRecency(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	st.Set(ctx, model.MemoryEntry{Key: "old", Value: "first", Category: "fact"})
	st.Set(ctx, model.MemoryEntry{Key: "new", Value: "second", Category: "fact"})

	out, err := ExportContext(ctx, st, 1000)
	if err != nil {
		t.Fatalf("ExportContext: %v", err)
	}
	newIdx := strings.Index(out, "new")
	oldIdx := strings.Index(out, "old")
	if newIdx == -1 || oldIdx == -1 || newIdx > oldIdx {
		t.Fatalf("expected most-recently-updated entry first, got %q", out)
	}
	if !strings.Contains(out, "[fact] new: second") {
		t.Fatalf("unexpected line format: %q", out)
	}
}

func TestExportContextTruncates(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	for i := 0; i < 20; i++ {
		st.Set(ctx, model.MemoryEntry{Key: strings.Repeat("k", 5) + string(rune('a'+i)), Value: strings.Repeat("v", 50)})
	}
	out, err := ExportContext(ctx, st, 10) // budget ~40 chars
	if err != nil {
		t.Fatalf("ExportContext: %v", err)
	}
	if !strings.Contains(out, "more memories truncated") {
		t.Fatalf("expected truncation sentinel, got %q", out)
	}
}

func TestExportContextEmpty(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	out, err := ExportContext(ctx, st, 1000)
	if err != nil {
		t.Fatalf("ExportContext: %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty export, got %q", out)
	}
}
