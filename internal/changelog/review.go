package changelog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stacklok/supplier-sync/internal/catalog"
	"github.com/stacklok/supplier-sync/internal/supplier"
)

var (
	// ErrNotPromotable is returned when an entry cannot become a supplier record.
	ErrNotPromotable = errors.New("change log entry cannot be promoted")
	// ErrDuplicateSKU is returned when a record with the SKU already exists.
	ErrDuplicateSKU = errors.New("supplier record with this SKU already exists")
	// ErrSupplierUnavailable is returned when the supplier could not confirm the SKU.
	ErrSupplierUnavailable = errors.New("supplier query failed")
)

// ReviewService implements the operator review workflow over the change log.
type ReviewService interface {
	// List returns every pending entry.
	List(ctx context.Context) ([]Entry, error)
	// Get returns one entry.
	Get(ctx context.Context, id int64) (*Entry, error)
	// Acknowledge discards an entry.
	Acknowledge(ctx context.Context, id int64) error
	// Promote turns an Added entry into a supplier record and removes the entry.
	Promote(ctx context.Context, id int64) (*supplier.Record, error)
	// Ignore flags the entry's item as ignored and removes the entry.
	Ignore(ctx context.Context, id int64) error
}

type reviewService struct {
	changes ChangeStore
	records supplier.RecordStore
	items   catalog.Store
	client  supplier.Client
}

// ChangeStore is the subset of Store the review workflow needs.
type ChangeStore interface {
	ListEntries(ctx context.Context) ([]Entry, error)
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	DeleteEntry(ctx context.Context, id int64) error
}

// NewReviewService creates a review service.
func NewReviewService(
	changes ChangeStore,
	records supplier.RecordStore,
	items catalog.Store,
	client supplier.Client,
) ReviewService {
	return &reviewService{
		changes: changes,
		records: records,
		items:   items,
		client:  client,
	}
}

func (s *reviewService) List(ctx context.Context) ([]Entry, error) {
	return s.changes.ListEntries(ctx)
}

func (s *reviewService) Get(ctx context.Context, id int64) (*Entry, error) {
	return s.changes.GetEntry(ctx, id)
}

func (s *reviewService) Acknowledge(ctx context.Context, id int64) error {
	if err := s.changes.DeleteEntry(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Change log entry acknowledged", "entry_id", id)
	return nil
}

func (s *reviewService) Promote(ctx context.Context, id int64) (*supplier.Record, error) {
	entry, err := s.changes.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.Kind != KindAdded || entry.Ambiguous() || entry.NewValue == "" || entry.NewValue == supplier.NoSKU {
		return nil, fmt.Errorf("%w: entry %d is %s %q", ErrNotPromotable, id, entry.Kind, entry.NewValue)
	}
	if entry.ItemID == 0 {
		return nil, fmt.Errorf("%w: entry %d no longer refers to an item", ErrNotPromotable, id)
	}

	sku := entry.NewValue
	existing, err := s.records.FindBySKU(ctx, s.client.Name(), sku)
	if err != nil {
		return nil, fmt.Errorf("failed to look up SKU %s: %w", sku, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s (record %d)", ErrDuplicateSKU, sku, existing.ID)
	}

	res := s.client.Query(ctx, sku, supplier.Exact)
	if !res.OK() {
		return nil, fmt.Errorf("%w: %s", ErrSupplierUnavailable, res.Status)
	}
	if res.MatchCount != 1 || res.Record == nil {
		return nil, fmt.Errorf("%w: supplier reports %d parts for %s", ErrNotPromotable, res.MatchCount, sku)
	}

	record := supplier.RecordFromRemote(s.client.Name(), entry.ItemID, res.Record)
	recordID, err := s.records.CreateRecord(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to create supplier record: %w", err)
	}
	record.ID = recordID

	if err := s.changes.DeleteEntry(ctx, id); err != nil {
		return record, fmt.Errorf("record %d created but entry %d could not be removed: %w", recordID, id, err)
	}

	slog.InfoContext(ctx, "Change log entry promoted",
		"entry_id", id,
		"item_id", entry.ItemID,
		"record_id", recordID,
		"sku", sku)
	return record, nil
}

func (s *reviewService) Ignore(ctx context.Context, id int64) error {
	entry, err := s.changes.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if entry.ItemID == 0 {
		return fmt.Errorf("entry %d: %w", id, catalog.ErrItemNotFound)
	}
	if err := s.items.SetItemFlag(ctx, entry.ItemID, catalog.FlagIgnore, true); err != nil {
		return fmt.Errorf("failed to flag item %d as ignored: %w", entry.ItemID, err)
	}
	if err := s.changes.DeleteEntry(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Item ignored from change log entry", "entry_id", id, "item_id", entry.ItemID)
	return nil
}
