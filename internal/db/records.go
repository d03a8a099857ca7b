package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/supplier-sync/internal/catalog"
	"github.com/stacklok/supplier-sync/internal/otel"
	"github.com/stacklok/supplier-sync/internal/supplier"
)

const (
	selectRecordsSQL = `
SELECT id, part_id, supplier, sku, mpn, link, note, description, pack_quantity, packaging
FROM supplier_part`

	selectPriceBreaksSQL = `
SELECT supplier_part_id, quantity, price::text, currency
FROM supplier_price_break
WHERE supplier_part_id = ANY($1)
ORDER BY supplier_part_id, quantity, id`

	insertRecordSQL = `
INSERT INTO supplier_part (part_id, supplier, sku, mpn, link, note, description, pack_quantity, packaging)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`

	insertPriceBreakSQL = `
INSERT INTO supplier_price_break (supplier_part_id, quantity, price, currency)
VALUES ($1, $2, $3::numeric, $4)`

	deletePriceBreaksSQL = `DELETE FROM supplier_price_break WHERE supplier_part_id = $1`
	updateNoteSQL        = `UPDATE supplier_part SET note = $2 WHERE id = $1`
	lockRecordSQL        = `SELECT id FROM supplier_part WHERE id = $1 FOR UPDATE`
	itemExistsSQL        = `SELECT EXISTS (SELECT 1 FROM part WHERE id = $1)`
)

// ListRecords implements supplier.RecordStore.
func (s *Store) ListRecords(ctx context.Context, supplierName string, itemID int64) ([]supplier.Record, error) {
	ctx, span := s.startSpan(ctx, "db.ListRecords", trace.WithAttributes(
		otel.AttrSupplierName.String(supplierName),
		otel.AttrItemID.Int64(itemID),
	))
	defer span.End()

	records, err := s.queryRecords(ctx, selectRecordsSQL+" WHERE supplier = $1 AND part_id = $2 ORDER BY id",
		supplierName, itemID)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to list records of item %d: %w", itemID, err)
	}
	span.SetAttributes(attrResultCount.Int(len(records)))
	return records, nil
}

// FindBySKU implements supplier.RecordStore.
func (s *Store) FindBySKU(ctx context.Context, supplierName, sku string) (*supplier.Record, error) {
	ctx, span := s.startSpan(ctx, "db.FindBySKU", trace.WithAttributes(otel.AttrSupplierName.String(supplierName)))
	defer span.End()

	records, err := s.queryRecords(ctx, selectRecordsSQL+" WHERE supplier = $1 AND sku = $2 ORDER BY id LIMIT 1",
		supplierName, sku)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to find record by SKU: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// CreateRecord implements supplier.RecordStore.
func (s *Store) CreateRecord(ctx context.Context, rec *supplier.Record) (int64, error) {
	ctx, span := s.startSpan(ctx, "db.CreateRecord", trace.WithAttributes(otel.AttrItemID.Int64(rec.ItemID)))
	defer span.End()

	var id int64
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, itemExistsSQL, rec.ItemID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("item %d: %w", rec.ItemID, catalog.ErrItemNotFound)
		}
		err := tx.QueryRow(ctx, insertRecordSQL,
			rec.ItemID, rec.Supplier, rec.SKU, rec.MPN, rec.Link, rec.Note,
			rec.Description, rec.PackQuantity, rec.Packaging,
		).Scan(&id)
		if err != nil {
			return err
		}
		return insertPriceBreaks(ctx, tx, id, rec.PriceBreaks)
	})
	if err != nil {
		if !errors.Is(err, catalog.ErrItemNotFound) {
			recordError(span, err)
		}
		return 0, fmt.Errorf("failed to create supplier record: %w", err)
	}
	span.SetAttributes(attrRecordID.Int64(id))
	return id, nil
}

// UpdateNote implements supplier.RecordStore.
func (s *Store) UpdateNote(ctx context.Context, recordID int64, note string) error {
	ctx, span := s.startSpan(ctx, "db.UpdateNote", trace.WithAttributes(attrRecordID.Int64(recordID)))
	defer span.End()

	tag, err := s.pool.Exec(ctx, updateNoteSQL, recordID, note)
	if err != nil {
		recordError(span, err)
		return fmt.Errorf("failed to update note of record %d: %w", recordID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record %d: %w", recordID, supplier.ErrRecordNotFound)
	}
	return nil
}

// ReplacePriceBreaks implements supplier.RecordStore.
func (s *Store) ReplacePriceBreaks(ctx context.Context, recordID int64, breaks []supplier.PriceBreak) error {
	ctx, span := s.startSpan(ctx, "db.ReplacePriceBreaks", trace.WithAttributes(attrRecordID.Int64(recordID)))
	defer span.End()

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var id int64
		if err := tx.QueryRow(ctx, lockRecordSQL, recordID).Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("record %d: %w", recordID, supplier.ErrRecordNotFound)
			}
			return err
		}
		if _, err := tx.Exec(ctx, deletePriceBreaksSQL, recordID); err != nil {
			return err
		}
		return insertPriceBreaks(ctx, tx, recordID, breaks)
	})
	if err != nil {
		if !errors.Is(err, supplier.ErrRecordNotFound) {
			recordError(span, err)
		}
		return fmt.Errorf("failed to replace price breaks of record %d: %w", recordID, err)
	}
	return nil
}

func (s *Store) queryRecords(ctx context.Context, sql string, args ...any) ([]supplier.Record, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (supplier.Record, error) {
		var r supplier.Record
		err := row.Scan(&r.ID, &r.ItemID, &r.Supplier, &r.SKU, &r.MPN, &r.Link, &r.Note,
			&r.Description, &r.PackQuantity, &r.Packaging)
		return r, err
	})
	if err != nil || len(records) == 0 {
		return records, err
	}

	ids := make([]int64, len(records))
	index := make(map[int64]int, len(records))
	for i, r := range records {
		ids[i] = r.ID
		index[r.ID] = i
	}

	rows, err = s.pool.Query(ctx, selectPriceBreaksSQL, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			recordID int64
			price    string
			pb       supplier.PriceBreak
		)
		if err := rows.Scan(&recordID, &pb.Quantity, &price, &pb.Currency); err != nil {
			return nil, err
		}
		if pb.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("invalid stored price %q: %w", price, err)
		}
		i := index[recordID]
		records[i].PriceBreaks = append(records[i].PriceBreaks, pb)
	}
	return records, rows.Err()
}

// insertPriceBreaks queues one insert per break and sends them as a batch.
func insertPriceBreaks(ctx context.Context, tx pgx.Tx, recordID int64, breaks []supplier.PriceBreak) error {
	if len(breaks) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pb := range breaks {
		batch.Queue(insertPriceBreakSQL, recordID, pb.Quantity, pb.Price.String(), pb.Currency)
	}
	return tx.SendBatch(ctx, batch).Close()
}
