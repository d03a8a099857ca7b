package changelog_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/supplier-sync/internal/catalog"
	"github.com/stacklok/supplier-sync/internal/changelog"
	"github.com/stacklok/supplier-sync/internal/inmemory"
	"github.com/stacklok/supplier-sync/internal/supplier"
	"github.com/stacklok/supplier-sync/internal/supplier/mocks"
)

const testSupplier = "Mouser"

func newFixture(t *testing.T) (*inmemory.Store, *mocks.MockClient, changelog.ReviewService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Name().Return(testSupplier).AnyTimes()

	store := inmemory.New()
	store.PutItem(catalog.Item{ID: 1, Name: "SN74LS00N", Purchasable: true, Active: true})
	return store, client, changelog.NewReviewService(store, store, store, client)
}

func appendEntry(t *testing.T, store *inmemory.Store, e changelog.Entry) int64 {
	t.Helper()
	id, err := store.AppendEntry(context.Background(), &e)
	require.NoError(t, err)
	return id
}

func TestReviewService_ListGetAcknowledge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _, svc := newFixture(t)

	id := appendEntry(t, store, changelog.Entry{ItemID: 1, Kind: changelog.KindDeleted, OldValue: "595-A"})

	entries, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, changelog.KindDeleted, entry.Kind)

	require.NoError(t, svc.Acknowledge(ctx, id))
	_, err = svc.Get(ctx, id)
	require.ErrorIs(t, err, changelog.ErrEntryNotFound)
	require.ErrorIs(t, svc.Acknowledge(ctx, id), changelog.ErrEntryNotFound)
}

func TestReviewService_Promote(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, client, svc := newFixture(t)

	id := appendEntry(t, store, changelog.Entry{
		ItemID:   1,
		Kind:     changelog.KindAdded,
		NewValue: "595-SN74LS00N",
		Comment:  "1 supplier part available",
	})

	client.EXPECT().Query(gomock.Any(), "595-SN74LS00N", supplier.Exact).Return(supplier.Result{
		Status:     supplier.StatusOK{},
		MatchCount: 1,
		Record: &supplier.RemoteRecord{
			SKU:             "595-SN74LS00N",
			MPN:             "SN74LS00N",
			URL:             "https://example.invalid/595-SN74LS00N",
			LifecycleStatus: "New Product",
			PriceBreaks: []supplier.PriceBreak{
				{Quantity: 1, Price: decimal.RequireFromString("0.89"), Currency: "EUR"},
			},
		},
	})

	record, err := svc.Promote(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.NotZero(t, record.ID)

	records, err := store.ListRecords(ctx, testSupplier, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "595-SN74LS00N", records[0].SKU)
	assert.Equal(t, "New Product", records[0].Note)
	assert.Len(t, records[0].PriceBreaks, 1)

	_, err = store.GetEntry(ctx, id)
	require.ErrorIs(t, err, changelog.ErrEntryNotFound, "promoted entry is removed")
}

func TestReviewService_PromoteRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entry   changelog.Entry
		setup   func(*inmemory.Store, *mocks.MockClient)
		wantErr error
	}{
		{
			name:    "deleted entry",
			entry:   changelog.Entry{ItemID: 1, Kind: changelog.KindDeleted, OldValue: "595-A"},
			wantErr: changelog.ErrNotPromotable,
		},
		{
			name:    "ambiguous entry",
			entry:   changelog.Entry{ItemID: 1, Kind: changelog.KindAdded, NewValue: "595-A..."},
			wantErr: changelog.ErrNotPromotable,
		},
		{
			name:    "entry without item",
			entry:   changelog.Entry{Kind: changelog.KindAdded, NewValue: "595-A"},
			wantErr: changelog.ErrNotPromotable,
		},
		{
			name:  "duplicate SKU",
			entry: changelog.Entry{ItemID: 1, Kind: changelog.KindAdded, NewValue: "595-A"},
			setup: func(s *inmemory.Store, _ *mocks.MockClient) {
				_, err := s.CreateRecord(context.Background(), &supplier.Record{ItemID: 1, Supplier: testSupplier, SKU: "595-A"})
				if err != nil {
					panic(err)
				}
			},
			wantErr: changelog.ErrDuplicateSKU,
		},
		{
			name:  "supplier unavailable",
			entry: changelog.Entry{ItemID: 1, Kind: changelog.KindAdded, NewValue: "595-A"},
			setup: func(_ *inmemory.Store, c *mocks.MockClient) {
				c.EXPECT().Query(gomock.Any(), "595-A", supplier.Exact).Return(supplier.Result{Status: supplier.StatusTooManyRequests{}})
			},
			wantErr: changelog.ErrSupplierUnavailable,
		},
		{
			name:  "supplier no longer reports exactly one part",
			entry: changelog.Entry{ItemID: 1, Kind: changelog.KindAdded, NewValue: "595-A"},
			setup: func(_ *inmemory.Store, c *mocks.MockClient) {
				c.EXPECT().Query(gomock.Any(), "595-A", supplier.Exact).Return(supplier.Result{Status: supplier.StatusOK{}})
			},
			wantErr: changelog.ErrNotPromotable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store, client, svc := newFixture(t)
			if tt.setup != nil {
				tt.setup(store, client)
			}
			id := appendEntry(t, store, tt.entry)

			_, err := svc.Promote(ctx, id)
			require.ErrorIs(t, err, tt.wantErr)

			_, err = store.GetEntry(ctx, id)
			require.NoError(t, err, "rejected entry stays in the log")
		})
	}
}

func TestReviewService_PromoteUnknownEntry(t *testing.T) {
	t.Parallel()
	_, _, svc := newFixture(t)

	_, err := svc.Promote(context.Background(), 42)
	require.ErrorIs(t, err, changelog.ErrEntryNotFound)
}

func TestReviewService_Ignore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _, svc := newFixture(t)

	id := appendEntry(t, store, changelog.Entry{ItemID: 1, Kind: changelog.KindError, Comment: "Illegal character in part name"})

	require.NoError(t, svc.Ignore(ctx, id))

	item, err := store.GetItem(ctx, 1)
	require.NoError(t, err)
	assert.True(t, item.Metadata.Ignored())
	assert.False(t, catalog.IsEligible(item))

	_, err = store.GetEntry(ctx, id)
	require.ErrorIs(t, err, changelog.ErrEntryNotFound)
}

func TestReviewService_IgnoreOrphanedEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _, svc := newFixture(t)

	id := appendEntry(t, store, changelog.Entry{ItemID: 1, Kind: changelog.KindDeleted})
	store.DeleteItem(1)

	require.ErrorIs(t, svc.Ignore(ctx, id), catalog.ErrItemNotFound)
}
