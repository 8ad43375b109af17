// Package client implements the board-facing client core: an in-memory cache
// of board aggregates, local optimistic projections of task mutations, and a
// coordinator that reconciles those projections against the backend.
package client

import "taskboard/domain"

// Cache holds board aggregates keyed by board id and tracks which one is
// current. It is a projection of server state, not a store of record: the
// server stays the source of truth and entries are replaced wholesale when
// canonical state arrives.
//
// The cache is meant to be confined to a single event loop and does no
// locking of its own; the Coordinator serializes the mutations it issues.
type Cache struct {
	boards    map[string]*domain.Board
	currentID string
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{boards: make(map[string]*domain.Board)}
}

// SetBoard replaces (or inserts) the cached aggregate for the board's id and
// marks it current. The board is trusted as-is; no validation is applied.
func (c *Cache) SetBoard(b *domain.Board) {
	if b == nil {
		return
	}
	c.boards[b.ID] = b
	c.currentID = b.ID
}

// Board returns the cached aggregate for the id, or nil when absent.
func (c *Cache) Board(id string) *domain.Board {
	return c.boards[id]
}

// Current returns the board most recently set, or nil when unset.
func (c *Cache) Current() *domain.Board {
	if c.currentID == "" {
		return nil
	}
	return c.boards[c.currentID]
}

// UpdateBoard shallow-merges the non-nil fields into an existing cached
// board. A board that is not cached is a silent no-op.
func (c *Cache) UpdateBoard(id string, up domain.BoardUpdate) {
	b, ok := c.boards[id]
	if !ok {
		return
	}
	up.Apply(b)
}

// ClearBoard evicts one board. If it was current, current becomes unset.
func (c *Cache) ClearBoard(id string) {
	delete(c.boards, id)
	if c.currentID == id {
		c.currentID = ""
	}
}

// ClearAll evicts every board and unsets current.
func (c *Cache) ClearAll() {
	c.boards = make(map[string]*domain.Board)
	c.currentID = ""
}
