package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/supplier-sync/internal/changelog"
	"github.com/stacklok/supplier-sync/internal/otel"
)

const (
	selectEntriesSQL = `
SELECT id, coalesce(part_id, 0), change_type, old_value, new_value, comment, link, created_at
FROM supplier_part_change`

	insertEntrySQL = `
INSERT INTO supplier_part_change (part_id, change_type, old_value, new_value, comment, link, created_at)
VALUES (nullif($1::bigint, 0), $2, $3, $4, $5, $6, coalesce($7, now()))
RETURNING id`

	deleteEntrySQL = `DELETE FROM supplier_part_change WHERE id = $1`
)

// AppendEntry implements changelog.Store.
func (s *Store) AppendEntry(ctx context.Context, e *changelog.Entry) (int64, error) {
	ctx, span := s.startSpan(ctx, "db.AppendEntry", trace.WithAttributes(
		otel.AttrItemID.Int64(e.ItemID),
		otel.AttrChangeKind.String(string(e.Kind)),
	))
	defer span.End()

	var createdAt *time.Time
	if !e.CreatedAt.IsZero() {
		createdAt = &e.CreatedAt
	}

	var id int64
	err := s.pool.QueryRow(ctx, insertEntrySQL,
		e.ItemID, string(e.Kind), e.OldValue, e.NewValue, e.Comment, e.Link, createdAt,
	).Scan(&id)
	if err != nil {
		recordError(span, err)
		return 0, fmt.Errorf("failed to append change log entry: %w", err)
	}
	span.SetAttributes(otel.AttrChangeID.Int64(id))
	return id, nil
}

// ListEntries implements changelog.Store.
func (s *Store) ListEntries(ctx context.Context) ([]changelog.Entry, error) {
	ctx, span := s.startSpan(ctx, "db.ListEntries")
	defer span.End()

	rows, err := s.pool.Query(ctx, selectEntriesSQL+" ORDER BY id")
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to list change log entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to scan change log entries: %w", err)
	}
	span.SetAttributes(attrResultCount.Int(len(entries)))
	return entries, nil
}

// GetEntry implements changelog.Store.
func (s *Store) GetEntry(ctx context.Context, id int64) (*changelog.Entry, error) {
	ctx, span := s.startSpan(ctx, "db.GetEntry", trace.WithAttributes(otel.AttrChangeID.Int64(id)))
	defer span.End()

	rows, err := s.pool.Query(ctx, selectEntriesSQL+" WHERE id = $1", id)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to get change log entry %d: %w", id, err)
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanEntry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("entry %d: %w", id, changelog.ErrEntryNotFound)
	}
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to get change log entry %d: %w", id, err)
	}
	return &e, nil
}

// DeleteEntry implements changelog.Store.
func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	ctx, span := s.startSpan(ctx, "db.DeleteEntry", trace.WithAttributes(otel.AttrChangeID.Int64(id)))
	defer span.End()

	tag, err := s.pool.Exec(ctx, deleteEntrySQL, id)
	if err != nil {
		recordError(span, err)
		return fmt.Errorf("failed to delete change log entry %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %d: %w", id, changelog.ErrEntryNotFound)
	}
	return nil
}

func scanEntry(row pgx.CollectableRow) (changelog.Entry, error) {
	var (
		e    changelog.Entry
		kind string
	)
	if err := row.Scan(&e.ID, &e.ItemID, &kind, &e.OldValue, &e.NewValue, &e.Comment, &e.Link, &e.CreatedAt); err != nil {
		return changelog.Entry{}, err
	}
	k, err := changelog.ParseKind(kind)
	if err != nil {
		return changelog.Entry{}, err
	}
	e.Kind = k
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}
