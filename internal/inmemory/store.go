// Package inmemory provides a mutex guarded, process local implementation of
// the catalog, supplier record and change log stores.
package inmemory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/stacklok/supplier-sync/internal/catalog"
	"github.com/stacklok/supplier-sync/internal/changelog"
	"github.com/stacklok/supplier-sync/internal/supplier"
)

// Store keeps every entity in maps keyed by id. Returned values are copies.
type Store struct {
	mu sync.RWMutex

	categories map[int64]catalog.Category
	items      map[int64]storedItem
	records    map[int64]supplier.Record
	entries    map[int64]changelog.Entry

	nextRecordID int64
	nextEntryID  int64

	now func() time.Time
}

type storedItem struct {
	item       catalog.Item
	categoryID int64
}

var (
	_ catalog.Store        = (*Store)(nil)
	_ supplier.RecordStore = (*Store)(nil)
	_ changelog.Store      = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		categories: map[int64]catalog.Category{},
		items:      map[int64]storedItem{},
		records:    map[int64]supplier.Record{},
		entries:    map[int64]changelog.Entry{},
		now:        time.Now,
	}
}

// PutCategory inserts or replaces a category.
func (s *Store) PutCategory(c catalog.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Metadata = cloneMetadata(c.Metadata)
	s.categories[c.ID] = c
}

// PutItem inserts or replaces an item. The item's category, if any, is
// stored by reference to its id and must be put separately.
func (s *Store) PutItem(item catalog.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := storedItem{item: item}
	if item.Category != nil {
		stored.categoryID = item.Category.ID
		if _, ok := s.categories[item.Category.ID]; !ok {
			cat := *item.Category
			cat.Metadata = cloneMetadata(cat.Metadata)
			s.categories[cat.ID] = cat
		}
	}
	stored.item.Category = nil
	stored.item.Metadata = cloneMetadata(item.Metadata)
	s.items[item.ID] = stored
}

// DeleteItem removes an item together with its records. Change log entries
// keep the row but lose the item reference.
func (s *Store) DeleteItem(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	for rid, rec := range s.records {
		if rec.ItemID == id {
			delete(s.records, rid)
		}
	}
	for eid, e := range s.entries {
		if e.ItemID == id {
			e.ItemID = 0
			s.entries[eid] = e
		}
	}
}

// ListItems implements catalog.Store.
func (s *Store) ListItems(_ context.Context) ([]catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Item, 0, len(s.items))
	for _, id := range slices.Sorted(maps.Keys(s.items)) {
		out = append(out, s.itemLocked(id))
	}
	return out, nil
}

// GetItem implements catalog.Store.
func (s *Store) GetItem(_ context.Context, id int64) (*catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.items[id]; !ok {
		return nil, fmt.Errorf("item %d: %w", id, catalog.ErrItemNotFound)
	}
	item := s.itemLocked(id)
	return &item, nil
}

// SetItemFlag implements catalog.Store.
func (s *Store) SetItemFlag(_ context.Context, id int64, key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %d: %w", id, catalog.ErrItemNotFound)
	}
	stored.item.Metadata = stored.item.Metadata.WithFlag(catalog.MetadataNamespace, key, value)
	s.items[id] = stored
	return nil
}

// SetCategoryFlag implements catalog.Store.
func (s *Store) SetCategoryFlag(_ context.Context, id int64, key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cat, ok := s.categories[id]
	if !ok {
		return fmt.Errorf("category %d: %w", id, catalog.ErrCategoryNotFound)
	}
	cat.Metadata = cat.Metadata.WithFlag(catalog.MetadataNamespace, key, value)
	s.categories[id] = cat
	return nil
}

func (s *Store) itemLocked(id int64) catalog.Item {
	stored := s.items[id]
	item := stored.item
	item.Metadata = cloneMetadata(item.Metadata)
	if cat, ok := s.categories[stored.categoryID]; ok && stored.categoryID != 0 {
		cat.Metadata = cloneMetadata(cat.Metadata)
		item.Category = &cat
	}
	return item
}

// ListRecords implements supplier.RecordStore.
func (s *Store) ListRecords(_ context.Context, supplierName string, itemID int64) ([]supplier.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []supplier.Record
	for _, id := range slices.Sorted(maps.Keys(s.records)) {
		rec := s.records[id]
		if rec.ItemID == itemID && rec.Supplier == supplierName {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

// FindBySKU implements supplier.RecordStore.
func (s *Store) FindBySKU(_ context.Context, supplierName, sku string) (*supplier.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range slices.Sorted(maps.Keys(s.records)) {
		rec := s.records[id]
		if rec.Supplier == supplierName && rec.SKU == sku {
			out := cloneRecord(rec)
			return &out, nil
		}
	}
	return nil, nil
}

// CreateRecord implements supplier.RecordStore.
func (s *Store) CreateRecord(_ context.Context, rec *supplier.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[rec.ItemID]; !ok {
		return 0, fmt.Errorf("item %d: %w", rec.ItemID, catalog.ErrItemNotFound)
	}
	s.nextRecordID++
	stored := cloneRecord(*rec)
	stored.ID = s.nextRecordID
	s.records[stored.ID] = stored
	return stored.ID, nil
}

// UpdateNote implements supplier.RecordStore.
func (s *Store) UpdateNote(_ context.Context, recordID int64, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok {
		return fmt.Errorf("record %d: %w", recordID, supplier.ErrRecordNotFound)
	}
	rec.Note = note
	s.records[recordID] = rec
	return nil
}

// ReplacePriceBreaks implements supplier.RecordStore.
func (s *Store) ReplacePriceBreaks(_ context.Context, recordID int64, breaks []supplier.PriceBreak) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok {
		return fmt.Errorf("record %d: %w", recordID, supplier.ErrRecordNotFound)
	}
	rec.PriceBreaks = slices.Clone(breaks)
	s.records[recordID] = rec
	return nil
}

// AppendEntry implements changelog.Store.
func (s *Store) AppendEntry(_ context.Context, e *changelog.Entry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEntryID++
	stored := *e
	stored.ID = s.nextEntryID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now().UTC()
	}
	s.entries[stored.ID] = stored
	return stored.ID, nil
}

// ListEntries implements changelog.Store.
func (s *Store) ListEntries(_ context.Context) ([]changelog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]changelog.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b changelog.Entry) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// GetEntry implements changelog.Store.
func (s *Store) GetEntry(_ context.Context, id int64) (*changelog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("entry %d: %w", id, changelog.ErrEntryNotFound)
	}
	return &e, nil
}

// DeleteEntry implements changelog.Store.
func (s *Store) DeleteEntry(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("entry %d: %w", id, changelog.ErrEntryNotFound)
	}
	delete(s.entries, id)
	return nil
}

func cloneRecord(rec supplier.Record) supplier.Record {
	rec.PriceBreaks = slices.Clone(rec.PriceBreaks)
	return rec
}

// cloneMetadata copies the top level and any nested namespace objects.
func cloneMetadata(m catalog.Metadata) catalog.Metadata {
	if m == nil {
		return nil
	}
	out := make(catalog.Metadata, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = maps.Clone(nested)
		}
		out[k] = v
	}
	return out
}
