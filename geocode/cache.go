// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mgraber/vereinsmatrix/spatial"
)

// SnapshotVersion is the current snapshot wire format version.
const SnapshotVersion = 1

// Entry is one cached resolution. Point is nil when the key is known but was
// never successfully resolved (imported from a snapshot that recorded the
// failure).
type Entry struct {
	Key        string         `json:"key"`
	Point      *spatial.Point `json:"point,omitempty"`
	ResolvedAt time.Time      `json:"resolved_at"`
}

// Cache maps normalized address keys to coordinates. All methods are safe for
// concurrent use; the cache is the only state shared between resolver
// workers.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Entry)}
}

// Lookup returns the cached coordinate for key. It never touches the network
// and has no side effects. ok is false both for unknown keys and for entries
// without a coordinate.
func (c *Cache) Lookup(key string) (*spatial.Point, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, found := c.entries[key]
	if !found || entry.Point == nil {
		return nil, false
	}

	p := *entry.Point

	return &p, true
}

// Store inserts or overwrites the entry for key. Idempotent: storing the same
// coordinate twice leaves the cache observationally unchanged.
func (c *Cache) Store(key string, point *spatial.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var p *spatial.Point
	if point != nil {
		cp := *point
		p = &cp
	}

	c.entries[key] = &Entry{
		Key:        key,
		Point:      p,
		ResolvedAt: time.Now().UTC(),
	}
}

// restore installs an entry as-is, keeping its original timestamp. Used when
// rehydrating the cache from the repository.
func (c *Cache) restore(e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[e.Key] = e
}

// Len returns the number of entries, resolved or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Resolved returns the number of entries holding a coordinate.
func (c *Cache) Resolved() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0

	for _, e := range c.entries {
		if e.Point != nil {
			n++
		}
	}

	return n
}

// Snapshot is the versioned, language-neutral serialization of a cache.
type Snapshot struct {
	Version int      `json:"version"`
	Entries []*Entry `json:"entries"`
}

// Export copies every entry into a snapshot. Entries are sorted by key so a
// snapshot checked into version control produces minimal diffs.
func (c *Cache) Export() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := &Snapshot{
		Version: SnapshotVersion,
		Entries: make([]*Entry, 0, len(c.entries)),
	}

	for _, e := range c.entries {
		entry := *e

		if e.Point != nil {
			p := *e.Point
			entry.Point = &p
		}

		snapshot.Entries = append(snapshot.Entries, &entry)
	}

	sort.Slice(snapshot.Entries, func(i, j int) bool {
		return snapshot.Entries[i].Key < snapshot.Entries[j].Key
	})

	return snapshot
}

// Merge imports a snapshot. An imported entry replaces an existing one only
// when the existing entry has no coordinate, unless overwrite is set: a
// resolved address is never silently lost to a less complete import. Returns
// the number of entries taken over.
func (c *Cache) Merge(s *Snapshot, overwrite bool) (int, error) {
	if s == nil {
		return 0, nil
	}

	if s.Version != SnapshotVersion {
		return 0, fmt.Errorf("unsupported cache snapshot version %d (expected %d)", s.Version, SnapshotVersion)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	taken := 0

	for _, imported := range s.Entries {
		if imported.Key == "" {
			continue
		}

		existing, found := c.entries[imported.Key]
		if found && existing.Point != nil && !overwrite {
			continue
		}

		entry := *imported

		if imported.Point != nil {
			p := *imported.Point
			entry.Point = &p
		}

		c.entries[imported.Key] = &entry
		taken++
	}

	return taken, nil
}

// MarshalSnapshot serializes a snapshot to indented JSON.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling cache snapshot: %w", err)
	}

	return data, nil
}

// ParseSnapshot deserializes a snapshot blob. A parse failure means cache
// corruption; callers are expected to warn and continue with an empty cache
// rather than abort the run.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing cache snapshot: %w", err)
	}

	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported cache snapshot version %d (expected %d)", s.Version, SnapshotVersion)
	}

	return &s, nil
}
