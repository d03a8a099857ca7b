package catalog

import (
	"cmp"
	"errors"
	"slices"
)

// ErrRingEmpty is returned when the catalog has no items to walk.
var ErrRingEmpty = errors.New("catalog contains no items")

// Ring is the catalog in canonical order (ascending id), walked round-robin.
type Ring struct {
	items []Item
}

// NewRing builds a ring from items. The input slice is not modified.
func NewRing(items []Item) *Ring {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b Item) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return &Ring{items: sorted}
}

// Len returns the number of items in the ring.
func (r *Ring) Len() int {
	return len(r.items)
}

// First returns the item with the lowest id.
func (r *Ring) First() (Item, error) {
	if len(r.items) == 0 {
		return Item{}, ErrRingEmpty
	}
	return r.items[0], nil
}

// Find looks up an item by id.
func (r *Ring) Find(id int64) (Item, bool) {
	idx, found := r.search(id)
	if !found {
		return Item{}, false
	}
	return r.items[idx], true
}

// NextAfter returns the successor of id in canonical order, wrapping from the
// last item to the first. id does not need to be present in the ring: the
// first item with a greater id is returned.
func (r *Ring) NextAfter(id int64) (Item, error) {
	if len(r.items) == 0 {
		return Item{}, ErrRingEmpty
	}
	idx, found := r.search(id)
	if found {
		idx++
	}
	if idx >= len(r.items) {
		idx = 0
	}
	return r.items[idx], nil
}

func (r *Ring) search(id int64) (int, bool) {
	return slices.BinarySearchFunc(r.items, id, func(it Item, target int64) int {
		return cmp.Compare(it.ID, target)
	})
}
