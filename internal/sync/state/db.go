package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	selectStateSQL = `
SELECT coalesce(cursor_item_id, 0), consecutive_failures, enabled, last_tick_at, last_outcome
FROM sync_state WHERE id = 1`

	upsertStateSQL = `
INSERT INTO sync_state (id, cursor_item_id, consecutive_failures, enabled, last_tick_at, last_outcome, updated_at)
VALUES (1, nullif($1::bigint, 0), $2, $3, $4, $5, now())
ON CONFLICT (id) DO UPDATE SET
    cursor_item_id       = EXCLUDED.cursor_item_id,
    consecutive_failures = EXCLUDED.consecutive_failures,
    enabled              = EXCLUDED.enabled,
    last_tick_at         = EXCLUDED.last_tick_at,
    last_outcome         = EXCLUDED.last_outcome,
    updated_at           = EXCLUDED.updated_at`

	ensureStateSQL = `INSERT INTO sync_state (id) VALUES (1) ON CONFLICT (id) DO NOTHING`
)

type dbStateService struct {
	pool *pgxpool.Pool
}

// NewDBStateService creates a Service storing the state in the single-row
// sync_state table. Every write is one UPSERT statement.
func NewDBStateService(pool *pgxpool.Pool) Service {
	return &dbStateService{pool: pool}
}

func (d *dbStateService) Load(ctx context.Context) (*SyncState, error) {
	s, err := scanState(d.pool.QueryRow(ctx, selectStateSQL))
	if errors.Is(err, pgx.ErrNoRows) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}
	return s, nil
}

func (d *dbStateService) Save(ctx context.Context, s *SyncState) error {
	if _, err := d.pool.Exec(ctx, upsertStateSQL, upsertArgs(s)...); err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	return nil
}

func (d *dbStateService) Update(ctx context.Context, fn func(s *SyncState) bool) (bool, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The row must exist for FOR UPDATE to serialize concurrent updaters
	if _, err := tx.Exec(ctx, ensureStateSQL); err != nil {
		return false, fmt.Errorf("failed to initialize sync state: %w", err)
	}

	s, err := scanState(tx.QueryRow(ctx, selectStateSQL+" FOR UPDATE"))
	if err != nil {
		return false, fmt.Errorf("failed to load sync state: %w", err)
	}

	if !fn(s) {
		return false, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, upsertStateSQL, upsertArgs(s)...); err != nil {
		return false, fmt.Errorf("failed to save sync state: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func scanState(row pgx.Row) (*SyncState, error) {
	var s SyncState
	if err := row.Scan(&s.CursorItemID, &s.ConsecutiveFailures, &s.Enabled, &s.LastTickAt, &s.LastOutcome); err != nil {
		return nil, err
	}
	return &s, nil
}

func upsertArgs(s *SyncState) []any {
	return []any{s.CursorItemID, s.ConsecutiveFailures, s.Enabled, s.LastTickAt, s.LastOutcome}
}
