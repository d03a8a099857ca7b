package reconcile

import (
	"context"
	"errors"
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

var testItem = catalog.Item{ID: 7, Name: "LM317 TO-220", IPN: "PWR-0007", Purchasable: true, Active: true}

func newFixture(t *testing.T) (*inmemory.Store, *mocks.MockClient) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Name().Return(testSupplier).AnyTimes()

	store := inmemory.New()
	store.PutItem(testItem)
	return store, client
}

func addRecord(t *testing.T, store *inmemory.Store, rec supplier.Record) int64 {
	t.Helper()
	rec.ItemID = testItem.ID
	rec.Supplier = testSupplier
	id, err := store.CreateRecord(context.Background(), &rec)
	require.NoError(t, err)
	return id
}

func listEntries(t *testing.T, store *inmemory.Store) []changelog.Entry {
	t.Helper()
	entries, err := store.ListEntries(context.Background())
	require.NoError(t, err)
	return entries
}

func okResult(count int, rec *supplier.RemoteRecord) supplier.Result {
	return supplier.Result{Status: supplier.StatusOK{}, MatchCount: count, Record: rec}
}

func priceBreaks(pairs ...string) []supplier.PriceBreak {
	var out []supplier.PriceBreak
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, supplier.PriceBreak{
			Quantity: int(decimal.RequireFromString(pairs[i]).IntPart()),
			Price:    decimal.RequireFromString(pairs[i+1]),
			Currency: "EUR",
		})
	}
	return out
}

func TestReconcile_NewItem(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		result      supplier.Result
		wantOK      bool
		wantEntries []changelog.Entry
	}{
		{
			name:   "no match",
			result: okResult(0, nil),
			wantOK: true,
		},
		{
			name:   "single match",
			result: okResult(1, &supplier.RemoteRecord{SKU: "595-LM317T", URL: "https://mouser.example/595-LM317T"}),
			wantOK: true,
			wantEntries: []changelog.Entry{{
				ItemID:   testItem.ID,
				Kind:     changelog.KindAdded,
				NewValue: "595-LM317T",
				Comment:  "1 supplier part available",
				Link:     "https://mouser.example/595-LM317T",
			}},
		},
		{
			name:   "single match without SKU",
			result: okResult(1, &supplier.RemoteRecord{SKU: supplier.NoSKU}),
			wantOK: true,
		},
		{
			name:   "ambiguous match",
			result: okResult(2, &supplier.RemoteRecord{SKU: "595-LM317T"}),
			wantOK: true,
			wantEntries: []changelog.Entry{{
				ItemID:   testItem.ID,
				Kind:     changelog.KindAdded,
				NewValue: "595-LM317T...",
				Comment:  "2 supplier parts reported",
				Link:     "https://search.example/?q=LM317+TO-220",
			}},
		},
		{
			name:   "invalid characters",
			result: supplier.Result{Status: supplier.StatusInvalidCharacters{}},
			wantOK: true,
			wantEntries: []changelog.Entry{{
				ItemID:  testItem.ID,
				Kind:    changelog.KindError,
				Comment: CommentIllegalName,
			}},
		},
		{
			name:   "matches reported without details",
			result: okResult(3, nil),
			wantOK: false,
		},
		{
			name:   "rate limited",
			result: supplier.Result{Status: supplier.StatusTooManyRequests{}},
			wantOK: false,
		},
		{
			name:   "transport failure",
			result: supplier.Result{Status: supplier.StatusTransport{Err: errors.New("timeout")}},
			wantOK: false,
		},
		{
			name:   "invalid authorization",
			result: supplier.Result{Status: supplier.StatusInvalidAuthorization{}},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store, client := newFixture(t)
			client.EXPECT().Query(gomock.Any(), testItem.Name, supplier.Fuzzy).Return(tt.result)

			r := New(client, store, store, WithSearchURL("https://search.example/?q="))
			item := testItem
			ok, err := r.Reconcile(ctx, &item)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)

			entries := listEntries(t, store)
			require.Len(t, entries, len(tt.wantEntries))
			for i, want := range tt.wantEntries {
				got := entries[i]
				assert.Equal(t, want.ItemID, got.ItemID)
				assert.Equal(t, want.Kind, got.Kind)
				assert.Equal(t, want.NewValue, got.NewValue)
				assert.Equal(t, want.Comment, got.Comment)
				assert.Equal(t, want.Link, got.Link)
			}

			records, err := store.ListRecords(ctx, testSupplier, testItem.ID)
			require.NoError(t, err)
			assert.Empty(t, records, "records are only created by review")
		})
	}
}

func TestReconcile_PlaceholderRecordsFallBackToFuzzy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, client := newFixture(t)
	addRecord(t, store, supplier.Record{SKU: supplier.NoSKU})

	client.EXPECT().Query(gomock.Any(), testItem.Name, supplier.Fuzzy).Return(okResult(0, nil))

	item := testItem
	ok, err := New(client, store, store).Reconcile(ctx, &item)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReconcile_ExistingRecord(t *testing.T) {
	t.Parallel()

	const sku = "595-LM317T"

	tests := []struct {
		name       string
		policy     MultiMatchPolicy
		result     supplier.Result
		wantOK     bool
		wantKinds  []changelog.Kind
		wantNote   string
		wantBreaks []supplier.PriceBreak
	}{
		{
			name:       "unchanged lifecycle replaces price breaks",
			result:     okResult(1, &supplier.RemoteRecord{SKU: sku, LifecycleStatus: "", PriceBreaks: priceBreaks("1", "1.20", "100", "0.80")}),
			wantOK:     true,
			wantBreaks: priceBreaks("1", "1.20", "100", "0.80"),
		},
		{
			name:       "lifecycle change",
			result:     okResult(1, &supplier.RemoteRecord{SKU: sku, LifecycleStatus: "End of Life", PriceBreaks: priceBreaks("1", "1.50")}),
			wantOK:     true,
			wantKinds:  []changelog.Kind{changelog.KindLifecycleChanged},
			wantNote:   "End of Life",
			wantBreaks: priceBreaks("1", "1.50"),
		},
		{
			name:       "remote removed all tiers",
			result:     okResult(1, &supplier.RemoteRecord{SKU: sku}),
			wantOK:     true,
			wantBreaks: nil,
		},
		{
			name:       "deleted from catalog",
			result:     okResult(0, nil),
			wantOK:     true,
			wantKinds:  []changelog.Kind{changelog.KindDeleted},
			wantBreaks: priceBreaks("1", "9.99", "10", "8.00", "1000", "5.00"),
		},
		{
			name:       "ambiguous exact match logged only",
			result:     okResult(3, &supplier.RemoteRecord{SKU: sku}),
			wantOK:     true,
			wantBreaks: priceBreaks("1", "9.99", "10", "8.00", "1000", "5.00"),
		},
		{
			name:       "ambiguous exact match recorded",
			policy:     MultiMatchChangelog,
			result:     okResult(3, &supplier.RemoteRecord{SKU: sku}),
			wantOK:     true,
			wantKinds:  []changelog.Kind{changelog.KindError},
			wantBreaks: priceBreaks("1", "9.99", "10", "8.00", "1000", "5.00"),
		},
		{
			name:       "invalid characters",
			result:     supplier.Result{Status: supplier.StatusInvalidCharacters{}},
			wantOK:     true,
			wantKinds:  []changelog.Kind{changelog.KindError},
			wantBreaks: priceBreaks("1", "9.99", "10", "8.00", "1000", "5.00"),
		},
		{
			name:       "matches reported without details",
			result:     okResult(3, nil),
			wantOK:     false,
			wantBreaks: priceBreaks("1", "9.99", "10", "8.00", "1000", "5.00"),
		},
		{
			name:       "unknown error",
			result:     supplier.Result{Status: supplier.StatusUnknown{Code: "ServiceUnavailable"}},
			wantOK:     false,
			wantBreaks: priceBreaks("1", "9.99", "10", "8.00", "1000", "5.00"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store, client := newFixture(t)
			recID := addRecord(t, store, supplier.Record{
				SKU:         sku,
				Link:        "https://mouser.example/" + sku,
				PriceBreaks: priceBreaks("1", "9.99", "10", "8.00", "1000", "5.00"),
			})
			client.EXPECT().Query(gomock.Any(), sku, supplier.Exact).Return(tt.result)

			var opts []Option
			if tt.policy != "" {
				opts = append(opts, WithMultiMatchPolicy(tt.policy))
			}
			item := testItem
			ok, err := New(client, store, store, opts...).Reconcile(ctx, &item)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)

			entries := listEntries(t, store)
			var kinds []changelog.Kind
			for _, e := range entries {
				kinds = append(kinds, e.Kind)
			}
			assert.Equal(t, tt.wantKinds, kinds)

			records, err := store.ListRecords(ctx, testSupplier, testItem.ID)
			require.NoError(t, err)
			require.Len(t, records, 1, "records are never deleted by reconciliation")
			assert.Equal(t, recID, records[0].ID)
			assert.Equal(t, tt.wantNote, records[0].Note)
			require.Len(t, records[0].PriceBreaks, len(tt.wantBreaks))
			for i, want := range tt.wantBreaks {
				assert.Equal(t, want.Quantity, records[0].PriceBreaks[i].Quantity)
				assert.True(t, want.Price.Equal(records[0].PriceBreaks[i].Price))
			}
		})
	}
}

func TestReconcile_DeletedEntryContent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, client := newFixture(t)
	addRecord(t, store, supplier.Record{SKU: "595-GONE", Link: "https://mouser.example/595-GONE"})
	client.EXPECT().Query(gomock.Any(), "595-GONE", supplier.Exact).Return(okResult(0, nil))

	item := testItem
	ok, err := New(client, store, store).Reconcile(ctx, &item)
	require.NoError(t, err)
	assert.True(t, ok)

	entries := listEntries(t, store)
	require.Len(t, entries, 1)
	assert.Equal(t, changelog.KindDeleted, entries[0].Kind)
	assert.Equal(t, "595-GONE", entries[0].OldValue)
	assert.Equal(t, CommentDeleted, entries[0].Comment)
}

func TestReconcile_LifecycleEntryContent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, client := newFixture(t)
	addRecord(t, store, supplier.Record{SKU: "595-A", Note: "New Product"})
	client.EXPECT().Query(gomock.Any(), "595-A", supplier.Exact).
		Return(okResult(1, &supplier.RemoteRecord{SKU: "595-A", LifecycleStatus: "Obsolete"}))

	item := testItem
	_, err := New(client, store, store).Reconcile(ctx, &item)
	require.NoError(t, err)

	entries := listEntries(t, store)
	require.Len(t, entries, 1)
	assert.Equal(t, "New Product", entries[0].OldValue)
	assert.Equal(t, "Obsolete", entries[0].NewValue)
}

func TestReconcile_StopsAtFirstFailedRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, client := newFixture(t)
	addRecord(t, store, supplier.Record{SKU: "595-A"})
	addRecord(t, store, supplier.Record{SKU: supplier.NoSKU})
	addRecord(t, store, supplier.Record{SKU: "595-B"})

	client.EXPECT().Query(gomock.Any(), "595-A", supplier.Exact).
		Return(supplier.Result{Status: supplier.StatusTooManyRequests{}})

	item := testItem
	ok, err := New(client, store, store).Reconcile(ctx, &item)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, listEntries(t, store))
}

func TestReconcile_QueriesEveryConfirmedRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, client := newFixture(t)
	addRecord(t, store, supplier.Record{SKU: "595-A"})
	addRecord(t, store, supplier.Record{SKU: supplier.NoSKU})
	addRecord(t, store, supplier.Record{SKU: "595-B"})

	client.EXPECT().Query(gomock.Any(), "595-A", supplier.Exact).Return(okResult(0, nil))
	client.EXPECT().Query(gomock.Any(), "595-B", supplier.Exact).Return(okResult(0, nil))

	item := testItem
	ok, err := New(client, store, store).Reconcile(ctx, &item)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, listEntries(t, store), 2)
}

type failingRecords struct {
	*inmemory.Store
	err error
}

func (f failingRecords) ReplacePriceBreaks(context.Context, int64, []supplier.PriceBreak) error {
	return f.err
}

type failingNotes struct {
	*inmemory.Store
	err error
}

func (f failingNotes) UpdateNote(context.Context, int64, string) error {
	return f.err
}

type failingAppender struct{ err error }

func (f failingAppender) AppendEntry(context.Context, *changelog.Entry) (int64, error) {
	return 0, f.err
}

func TestReconcile_LocalStoreErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	errDisk := errors.New("disk full")

	t.Run("price break replace", func(t *testing.T) {
		t.Parallel()
		store, client := newFixture(t)
		addRecord(t, store, supplier.Record{SKU: "595-A"})
		client.EXPECT().Query(gomock.Any(), "595-A", supplier.Exact).
			Return(okResult(1, &supplier.RemoteRecord{SKU: "595-A"}))

		item := testItem
		ok, err := New(client, failingRecords{Store: store, err: errDisk}, store).Reconcile(ctx, &item)
		assert.False(t, ok)
		require.ErrorIs(t, err, errDisk)
	})

	t.Run("note update leaves no lifecycle entry", func(t *testing.T) {
		t.Parallel()
		store, client := newFixture(t)
		addRecord(t, store, supplier.Record{SKU: "595-A", Note: "Active"})
		client.EXPECT().Query(gomock.Any(), "595-A", supplier.Exact).
			Return(okResult(1, &supplier.RemoteRecord{SKU: "595-A", LifecycleStatus: "Obsolete"})).
			Times(2)

		item := testItem
		r := New(client, failingNotes{Store: store, err: errDisk}, store)
		for range 2 {
			ok, err := r.Reconcile(ctx, &item)
			assert.False(t, ok)
			require.ErrorIs(t, err, errDisk)
		}
		assert.Empty(t, listEntries(t, store), "retries must not duplicate entries")
	})

	t.Run("change log append", func(t *testing.T) {
		t.Parallel()
		store, client := newFixture(t)
		client.EXPECT().Query(gomock.Any(), testItem.Name, supplier.Fuzzy).
			Return(okResult(1, &supplier.RemoteRecord{SKU: "595-A"}))

		item := testItem
		ok, err := New(client, store, failingAppender{err: errDisk}).Reconcile(ctx, &item)
		assert.False(t, ok)
		require.ErrorIs(t, err, errDisk)
	})
}

func TestParseMultiMatchPolicy(t *testing.T) {
	t.Parallel()

	p, err := ParseMultiMatchPolicy("")
	require.NoError(t, err)
	assert.Equal(t, MultiMatchLog, p)

	p, err = ParseMultiMatchPolicy("changelog")
	require.NoError(t, err)
	assert.Equal(t, MultiMatchChangelog, p)

	_, err = ParseMultiMatchPolicy("ignore")
	require.Error(t, err)
}
