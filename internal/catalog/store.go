package catalog

import (
	"context"
	"errors"
)

var (
	// ErrItemNotFound is returned when an item id is unknown.
	ErrItemNotFound = errors.New("catalog item not found")
	// ErrCategoryNotFound is returned when a category id is unknown.
	ErrCategoryNotFound = errors.New("catalog category not found")
)

// Store is the catalog port used by the engine and the review workflow.
type Store interface {
	// ListItems returns every catalog item with its category, ordered by id.
	ListItems(ctx context.Context) ([]Item, error)
	// GetItem returns a single item with its category.
	GetItem(ctx context.Context, id int64) (*Item, error)
	// SetItemFlag sets metadata[supplier_sync][key] on an item.
	SetItemFlag(ctx context.Context, id int64, key string, value bool) error
	// SetCategoryFlag sets metadata[supplier_sync][key] on a category.
	SetCategoryFlag(ctx context.Context, id int64, key string, value bool) error
}
