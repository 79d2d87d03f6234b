// Package memory implements the cross-session key/value memory store:
// facts the agent is told to remember that outlive any single
// conversation and are not tied to a (platform, channel) pair the way
// contextstore rows are.
package memory

import (
	"context"

	"github.com/shannon-ai/shannon/internal/model"
)

// Store persists memory entries addressed by key. Keys are global, not
// scoped to a platform or channel — "remember my timezone is UTC+2" is
// true everywhere the agent talks to that user.
type Store interface {
	// Set creates or overwrites the entry at key.
	Set(ctx context.Context, entry model.MemoryEntry) error

	// Get returns the entry at key, or ok=false if absent.
	Get(ctx context.Context, key string) (model.MemoryEntry, bool, error)

	// Delete removes the entry at key. It is not an error if key is
	// absent.
	Delete(ctx context.Context, key string) error

	// List returns entries in category, or every entry if category is
	// empty, ordered by key.
	List(ctx context.Context, category string) ([]model.MemoryEntry, error)

	// Search returns entries whose key or value contains query
	// (case-insensitive substring match), ordered by updated_at desc.
	Search(ctx context.Context, query string) ([]model.MemoryEntry, error)

	// Export returns every stored entry, for backup or migration.
	Export(ctx context.Context) ([]model.MemoryEntry, error)

	Close() error
}
