package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/supplier-sync/internal/catalog"
	"github.com/stacklok/supplier-sync/internal/otel"
)

const (
	selectItemsSQL = `
SELECT p.id, p.name, p.ipn, p.purchasable, p.active, p.metadata,
       c.id, coalesce(c.name, ''), coalesce(c.metadata, '{}'::jsonb)
FROM part p
LEFT JOIN part_category c ON c.id = p.category_id`

	// setFlagExpr merges {key: value} into metadata->'supplier_sync',
	// replacing the namespace when it is not an object.
	setFlagExpr = `jsonb_set(
    metadata,
    ARRAY[$2::text],
    CASE WHEN jsonb_typeof(metadata->$2::text) = 'object'
         THEN metadata->$2::text ELSE '{}'::jsonb END
    || jsonb_build_object($3::text, $4::boolean))`

	setItemFlagSQL     = `UPDATE part SET metadata = ` + setFlagExpr + ` WHERE id = $1`
	setCategoryFlagSQL = `UPDATE part_category SET metadata = ` + setFlagExpr + ` WHERE id = $1`
)

// ListItems implements catalog.Store.
func (s *Store) ListItems(ctx context.Context) ([]catalog.Item, error) {
	ctx, span := s.startSpan(ctx, "db.ListItems")
	defer span.End()

	rows, err := s.pool.Query(ctx, selectItemsSQL+" ORDER BY p.id")
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to scan items: %w", err)
	}
	span.SetAttributes(attrResultCount.Int(len(items)))
	return items, nil
}

// GetItem implements catalog.Store.
func (s *Store) GetItem(ctx context.Context, id int64) (*catalog.Item, error) {
	ctx, span := s.startSpan(ctx, "db.GetItem", trace.WithAttributes(otel.AttrItemID.Int64(id)))
	defer span.End()

	rows, err := s.pool.Query(ctx, selectItemsSQL+" WHERE p.id = $1", id)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, catalog.ErrItemNotFound)
	}
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return &item, nil
}

// SetItemFlag implements catalog.Store.
func (s *Store) SetItemFlag(ctx context.Context, id int64, key string, value bool) error {
	ctx, span := s.startSpan(ctx, "db.SetItemFlag", trace.WithAttributes(otel.AttrItemID.Int64(id)))
	defer span.End()

	tag, err := s.pool.Exec(ctx, setItemFlagSQL, id, catalog.MetadataNamespace, key, value)
	if err != nil {
		recordError(span, err)
		return fmt.Errorf("failed to set flag on item %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %d: %w", id, catalog.ErrItemNotFound)
	}
	return nil
}

// SetCategoryFlag implements catalog.Store.
func (s *Store) SetCategoryFlag(ctx context.Context, id int64, key string, value bool) error {
	ctx, span := s.startSpan(ctx, "db.SetCategoryFlag")
	defer span.End()

	tag, err := s.pool.Exec(ctx, setCategoryFlagSQL, id, catalog.MetadataNamespace, key, value)
	if err != nil {
		recordError(span, err)
		return fmt.Errorf("failed to set flag on category %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("category %d: %w", id, catalog.ErrCategoryNotFound)
	}
	return nil
}

func scanItem(row pgx.CollectableRow) (catalog.Item, error) {
	var (
		item         catalog.Item
		categoryID   *int64
		categoryName string
		categoryMeta catalog.Metadata
	)
	err := row.Scan(
		&item.ID, &item.Name, &item.IPN, &item.Purchasable, &item.Active, &item.Metadata,
		&categoryID, &categoryName, &categoryMeta,
	)
	if err != nil {
		return catalog.Item{}, err
	}
	if categoryID != nil {
		item.Category = &catalog.Category{ID: *categoryID, Name: categoryName, Metadata: categoryMeta}
	}
	return item, nil
}
