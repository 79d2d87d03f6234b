package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ExportContext serializes the most-recently-updated entries as
// "[category] key: value" lines, stopping once the rendered text would
// exceed maxTokens*4 characters, and appending a truncation sentinel if
// not every entry fit. The result is injected into the system prompt
// verbatim (spec §4.4).
func ExportContext(ctx context.Context, store Store, maxTokens int) (string, error) {
	entries, err := store.Export(ctx)
	if err != nil {
		return "", fmt.Errorf("memory: export context: %w", err)
	}
	if len(entries) == 0 {
		return "", nil
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].UpdatedAt.After(entries[j].UpdatedAt) })

	budget := maxTokens * 4
	if budget <= 0 {
		budget = 2000
	}

	var b strings.Builder
	fitted := 0
	for _, e := range entries {
		category := e.Category
		if category == "" {
			category = "general"
		}
		line := fmt.Sprintf("[%s] %s: %s\n", category, e.Key, e.Value)
		if b.Len()+len(line) > budget && fitted > 0 {
			break
		}
		b.WriteString(line)
		fitted++
	}
	if fitted < len(entries) {
		fmt.Fprintf(&b, "... (%d more memories truncated)\n", len(entries)-fitted)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
