// Package modulecache backs Context's compile cache (spec.md §4.1, §6, §9):
// a content-hash-keyed record of previously compiled modules. Within one
// Context's lifetime, an unchanged module never needs to be lowered to
// backend IR twice — that guarantee is served by Context's in-process
// compile memo, which hands back the identical *backend.Module. A Cache
// configured here is the weaker, cross-process half: it lets a later
// process (or a diagnostic tool) ask "was fullName at this content hash
// compiled successfully before", without reconstructing a live
// *backend.Module from the stored Entry.IR — there is no backend IR
// parser, so a persisted hit is a provenance record, not a recompilation
// shortcut. It is adapted from the teacher's checkpoint-store abstraction
// (store/checkpoint.go) generalized from "save/load a graph-execution
// checkpoint" to "save/load a compiled module's provenance, keyed by
// (full name, content hash)".
package modulecache

import (
	"context"
	"sync"
	"time"
)

// Entry is one cached compiled module.
type Entry struct {
	FullName    string
	ContentHash string
	IR          []byte
	CompiledAt  time.Time
}

// Cache is the storage contract every backend (Memory, SQLite, Redis,
// Postgres) implements.
type Cache interface {
	// Get returns the cached entry for fullName if its content hash
	// matches contentHash, or ok=false if absent or stale.
	Get(ctx context.Context, fullName, contentHash string) (*Entry, bool, error)
	// Put stores or replaces the cached entry for entry.FullName.
	Put(ctx context.Context, entry *Entry) error
	// Invalidate removes any cached entry for fullName, regardless of hash.
	Invalidate(ctx context.Context, fullName string) error
}

// Memory is a process-local, goroutine-safe Cache. It is the default
// Context installs when no external cache is configured.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*Entry)}
}

func (m *Memory) Get(_ context.Context, fullName, contentHash string) (*Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[fullName]
	if !ok || e.ContentHash != contentHash {
		return nil, false, nil
	}
	cp := *e
	return &cp, true, nil
}

func (m *Memory) Put(_ context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.entries[entry.FullName] = &cp
	return nil
}

func (m *Memory) Invalidate(_ context.Context, fullName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, fullName)
	return nil
}
