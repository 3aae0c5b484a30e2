// Package history keeps the most recently viewed entities.
package history

import (
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/Joseda-hg/lazytracker/internal/model"
)

// DefaultLimit is the number of entries kept when no limit is configured.
const DefaultLimit = 10

// Tracker is a bounded, id-deduplicated view log. Viewing an id again moves
// it to the tail; exceeding the limit evicts the oldest entry.
// A Tracker is not safe for concurrent use.
type Tracker struct {
	entries *simplelru.LRU[int64, model.Entity]
	limit   int
}

func New(limit int) *Tracker {
	if limit <= 0 {
		limit = DefaultLimit
	}
	entries, err := simplelru.NewLRU[int64, model.Entity](limit, nil)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &Tracker{entries: entries, limit: limit}
}

func (t *Tracker) Limit() int {
	return t.limit
}

// Add records a view of entity.
func (t *Tracker) Add(entity model.Entity) {
	id := entity.EntityID()
	// Remove first so a re-view lands at the tail with the new value.
	t.entries.Remove(id)
	t.entries.Add(id, entity)
}

// Replace swaps the stored value for entity's id without changing its
// position. It reports false when the id is not in the history.
func (t *Tracker) Replace(entity model.Entity) bool {
	id := entity.EntityID()
	if !t.entries.Contains(id) {
		return false
	}
	current := t.List()
	t.entries.Purge()
	for _, existing := range current {
		if existing.EntityID() == id {
			existing = entity
		}
		t.entries.Add(existing.EntityID(), existing)
	}
	return true
}

func (t *Tracker) Remove(id int64) bool {
	return t.entries.Remove(id)
}

func (t *Tracker) Clear() {
	t.entries.Purge()
}

func (t *Tracker) Len() int {
	return t.entries.Len()
}

// List returns the entries oldest first.
func (t *Tracker) List() []model.Entity {
	keys := t.entries.Keys()
	result := make([]model.Entity, 0, len(keys))
	for _, id := range keys {
		if entity, ok := t.entries.Peek(id); ok {
			result = append(result, entity)
		}
	}
	return result
}

// IDs returns the entry ids oldest first.
func (t *Tracker) IDs() []int64 {
	return t.entries.Keys()
}
