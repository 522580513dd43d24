package core

import (
	"errors"
	"strings"
)

// ErrEmptyKey is returned when a row is grouped under a blank key.
var ErrEmptyKey = errors.New("entity key must not be empty")

// GroupEntry is one projected row waiting to be written.
type GroupEntry struct {
	Index  RowIndex
	Values Row

	// KeyPresent is false when the raw row carried no sku column at all.
	KeyPresent bool
}

// EntityGroup buckets rows by entity key for one write pass.
// Keys keep first-insertion order and entries keep append order within a key.
type EntityGroup struct {
	keys    []string
	entries map[string][]GroupEntry
	size    int
}

// NewEntityGroup returns an empty group.
func NewEntityGroup() *EntityGroup {
	return &EntityGroup{entries: make(map[string][]GroupEntry)}
}

// Add appends entry under key.
func (g *EntityGroup) Add(key string, entry GroupEntry) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	if _, ok := g.entries[key]; !ok {
		g.keys = append(g.keys, key)
	}
	g.entries[key] = append(g.entries[key], entry)
	g.size++
	return nil
}

// Keys returns the keys in first-insertion order.
func (g *EntityGroup) Keys() []string {
	out := make([]string, len(g.keys))
	copy(out, g.keys)
	return out
}

// Entries returns the entries stored under key.
func (g *EntityGroup) Entries(key string) []GroupEntry {
	return g.entries[key]
}

// Len returns the total number of entries.
func (g *EntityGroup) Len() int { return g.size }

// Empty reports whether the group holds no entry.
func (g *EntityGroup) Empty() bool { return g.size == 0 }

// Each visits entries in key order, then append order. Returning false stops the walk.
func (g *EntityGroup) Each(fn func(key string, entry GroupEntry) bool) {
	for _, key := range g.keys {
		for _, e := range g.entries[key] {
			if !fn(key, e) {
				return
			}
		}
	}
}
