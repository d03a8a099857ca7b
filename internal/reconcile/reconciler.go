// Package reconcile maps supplier catalog query results onto local supplier
// records and change log entries, one catalog item at a time.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/supplier-sync/internal/catalog"
	"github.com/stacklok/supplier-sync/internal/changelog"
	"github.com/stacklok/supplier-sync/internal/otel"
	"github.com/stacklok/supplier-sync/internal/supplier"
	"github.com/stacklok/supplier-sync/internal/telemetry"
)

// DefaultSearchURL prefixes the URL-escaped item name in the link of an
// ambiguous Added entry.
const DefaultSearchURL = "https://www.mouser.de/c/?q="

// Change log comments
const (
	CommentDeleted          = "Part has been deleted from suppliers catalog"
	CommentIllegalName      = "Illegal character in part name"
	CommentIllegalSKU       = "Illegal character in SKU"
	commentSingleMatch      = "1 supplier part available"
	commentMultipleMatches  = "%d supplier parts reported"
	commentAmbiguousExactly = "%d supplier parts reported for exact SKU"
)

// MultiMatchPolicy selects what happens when an exact SKU query reports
// more than one part.
type MultiMatchPolicy string

const (
	// MultiMatchLog logs a warning only
	MultiMatchLog MultiMatchPolicy = "log"
	// MultiMatchChangelog also appends an Error entry
	MultiMatchChangelog MultiMatchPolicy = "changelog"
)

// ParseMultiMatchPolicy validates a configured policy. Empty means log.
func ParseMultiMatchPolicy(s string) (MultiMatchPolicy, error) {
	switch p := MultiMatchPolicy(s); p {
	case "":
		return MultiMatchLog, nil
	case MultiMatchLog, MultiMatchChangelog:
		return p, nil
	default:
		return "", fmt.Errorf("invalid multi-match policy %q: must be %q or %q", s, MultiMatchLog, MultiMatchChangelog)
	}
}

// EntryAppender is the part of the change log store the reconciler writes to
type EntryAppender interface {
	AppendEntry(ctx context.Context, e *changelog.Entry) (int64, error)
}

// Reconciler reconciles one item per call against a supplier.
type Reconciler struct {
	client     supplier.Client
	records    supplier.RecordStore
	changes    EntryAppender
	searchURL  string
	multiMatch MultiMatchPolicy
	metrics    *telemetry.SyncMetrics
	tracer     trace.Tracer
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithSearchURL sets the generic catalog search link prefix
func WithSearchURL(searchURL string) Option {
	return func(r *Reconciler) {
		r.searchURL = searchURL
	}
}

// WithMultiMatchPolicy sets the policy for ambiguous exact matches
func WithMultiMatchPolicy(p MultiMatchPolicy) Option {
	return func(r *Reconciler) {
		r.multiMatch = p
	}
}

// WithMetrics records remote queries and change entries
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// WithTracer starts a span per remote query
func WithTracer(t trace.Tracer) Option {
	return func(r *Reconciler) {
		r.tracer = t
	}
}

// New creates a Reconciler
func New(client supplier.Client, records supplier.RecordStore, changes EntryAppender, opts ...Option) *Reconciler {
	r := &Reconciler{
		client:     client,
		records:    records,
		changes:    changes,
		searchURL:  DefaultSearchURL,
		multiMatch: MultiMatchLog,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile processes item and reports whether the sync cursor may move past
// it. Remote failures that may heal on retry yield (false, nil); local store
// failures yield (false, err). Both count as a failed tick.
func (r *Reconciler) Reconcile(ctx context.Context, item *catalog.Item) (bool, error) {
	records, err := r.records.ListRecords(ctx, r.client.Name(), item.ID)
	if err != nil {
		return false, fmt.Errorf("failed to list supplier records for item %d: %w", item.ID, err)
	}

	var confirmed []supplier.Record
	for _, rec := range records {
		if rec.HasSKU() {
			confirmed = append(confirmed, rec)
		}
	}

	if len(confirmed) == 0 {
		return r.searchNew(ctx, item)
	}

	for i := range confirmed {
		ok, err := r.refresh(ctx, item, &confirmed[i])
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// searchNew runs a fuzzy name query for an item without a confirmed record
// and reports candidates as Added entries.
func (r *Reconciler) searchNew(ctx context.Context, item *catalog.Item) (bool, error) {
	slog.InfoContext(ctx, "Searching supplier for item", "item_id", item.ID, "ipn", item.IPN, "supplier", r.client.Name())

	res := r.query(ctx, item.ID, item.Name, supplier.Fuzzy)
	switch res.Status.(type) {
	case supplier.StatusOK:
	case supplier.StatusInvalidCharacters:
		slog.InfoContext(ctx, "Item name rejected by supplier", "item_id", item.ID, "name", item.Name)
		return r.appendEntry(ctx, &changelog.Entry{
			ItemID:  item.ID,
			Kind:    changelog.KindError,
			Comment: CommentIllegalName,
		})
	default:
		slog.WarnContext(ctx, "Supplier search failed", "item_id", item.ID, "status", res.Status.String())
		return false, nil
	}

	switch {
	case res.MatchCount == 0:
		slog.InfoContext(ctx, "Supplier reported no parts", "item_id", item.ID)
		return true, nil
	case res.Record == nil:
		slog.WarnContext(ctx, "Supplier reported parts without details",
			"item_id", item.ID, "match_count", res.MatchCount)
		return false, nil
	case res.MatchCount == 1:
		if res.Record.SKU == supplier.NoSKU || res.Record.SKU == "" {
			slog.InfoContext(ctx, "Single supplier match carries no SKU", "item_id", item.ID)
			return true, nil
		}
		return r.appendEntry(ctx, &changelog.Entry{
			ItemID:   item.ID,
			Kind:     changelog.KindAdded,
			NewValue: res.Record.SKU,
			Comment:  commentSingleMatch,
			Link:     res.Record.URL,
		})
	default:
		slog.InfoContext(ctx, "Supplier reported several parts", "item_id", item.ID, "match_count", res.MatchCount)
		return r.appendEntry(ctx, &changelog.Entry{
			ItemID:   item.ID,
			Kind:     changelog.KindAdded,
			NewValue: res.Record.SKU + changelog.AmbiguousMarker,
			Comment:  fmt.Sprintf(commentMultipleMatches, res.MatchCount),
			Link:     r.searchURL + url.QueryEscape(item.Name),
		})
	}
}

// refresh runs an exact SKU query for one confirmed record.
func (r *Reconciler) refresh(ctx context.Context, item *catalog.Item, rec *supplier.Record) (bool, error) {
	slog.InfoContext(ctx, "Updating supplier record", "item_id", item.ID, "record_id", rec.ID, "sku", rec.SKU)

	res := r.query(ctx, item.ID, rec.SKU, supplier.Exact)
	switch res.Status.(type) {
	case supplier.StatusOK:
	case supplier.StatusInvalidCharacters:
		slog.InfoContext(ctx, "SKU rejected by supplier", "item_id", item.ID, "sku", rec.SKU)
		return r.appendEntry(ctx, &changelog.Entry{
			ItemID:   item.ID,
			Kind:     changelog.KindError,
			OldValue: rec.SKU,
			Comment:  CommentIllegalSKU,
		})
	default:
		slog.WarnContext(ctx, "SKU search failed", "item_id", item.ID, "sku", rec.SKU, "status", res.Status.String())
		return false, nil
	}

	switch {
	case res.Record == nil && res.MatchCount > 0:
		slog.WarnContext(ctx, "Supplier reported parts without details",
			"item_id", item.ID, "sku", rec.SKU, "match_count", res.MatchCount)
		return false, nil
	case res.MatchCount == 0:
		slog.InfoContext(ctx, "SKU no longer listed by supplier", "item_id", item.ID, "sku", rec.SKU)
		return r.appendEntry(ctx, &changelog.Entry{
			ItemID:   item.ID,
			Kind:     changelog.KindDeleted,
			OldValue: rec.SKU,
			Comment:  CommentDeleted,
			Link:     rec.Link,
		})
	case res.MatchCount == 1:
		return r.applyUpdate(ctx, item, rec, res.Record)
	default:
		slog.WarnContext(ctx, "Exact SKU search reported several parts, record not updated",
			"item_id", item.ID, "sku", rec.SKU, "match_count", res.MatchCount)
		if r.multiMatch != MultiMatchChangelog {
			return true, nil
		}
		return r.appendEntry(ctx, &changelog.Entry{
			ItemID:   item.ID,
			Kind:     changelog.KindError,
			OldValue: rec.SKU,
			NewValue: res.Record.SKU,
			Comment:  fmt.Sprintf(commentAmbiguousExactly, res.MatchCount),
		})
	}
}

// applyUpdate records a lifecycle transition and replaces all price breaks.
func (r *Reconciler) applyUpdate(
	ctx context.Context, item *catalog.Item, rec *supplier.Record, remote *supplier.RemoteRecord,
) (bool, error) {
	if remote.LifecycleStatus != rec.Note {
		slog.InfoContext(ctx, "Lifecycle status changed",
			"item_id", item.ID, "sku", rec.SKU, "old", rec.Note, "new", remote.LifecycleStatus)
		// The note is written first so that a failed write cannot leave an
		// entry behind that the retry would append again
		if err := r.records.UpdateNote(ctx, rec.ID, remote.LifecycleStatus); err != nil {
			return false, fmt.Errorf("failed to update note of record %d: %w", rec.ID, err)
		}
		if ok, err := r.appendEntry(ctx, &changelog.Entry{
			ItemID:   item.ID,
			Kind:     changelog.KindLifecycleChanged,
			OldValue: rec.Note,
			NewValue: remote.LifecycleStatus,
			Link:     rec.Link,
		}); !ok {
			return false, err
		}
	}

	if err := r.records.ReplacePriceBreaks(ctx, rec.ID, remote.PriceBreaks); err != nil {
		return false, fmt.Errorf("failed to replace price breaks of record %d: %w", rec.ID, err)
	}
	slog.DebugContext(ctx, "Price breaks replaced", "record_id", rec.ID, "count", len(remote.PriceBreaks))
	return true, nil
}

func (r *Reconciler) appendEntry(ctx context.Context, e *changelog.Entry) (bool, error) {
	if _, err := r.changes.AppendEntry(ctx, e); err != nil {
		return false, fmt.Errorf("failed to append %s entry for item %d: %w", e.Kind, e.ItemID, err)
	}
	r.metrics.RecordChangeEntry(ctx, string(e.Kind))
	return true, nil
}

func (r *Reconciler) query(ctx context.Context, itemID int64, keyword string, mode supplier.QueryMode) supplier.Result {
	ctx, span := otel.StartSpan(ctx, r.tracer, "supplier.query",
		trace.WithAttributes(
			otel.AttrItemID.Int64(itemID),
			otel.AttrSupplierName.String(r.client.Name()),
			otel.AttrQueryMode.String(mode.String()),
		),
	)
	defer span.End()

	res := r.client.Query(ctx, keyword, mode)
	if res.Status == nil {
		res.Status = supplier.StatusUnknown{Code: "missing status"}
	}

	label := supplier.Label(res.Status)
	span.SetAttributes(otel.AttrQueryStatus.String(label), otel.AttrMatchCount.Int(res.MatchCount))
	if t, ok := res.Status.(supplier.StatusTransport); ok {
		otel.RecordError(span, t.Err)
	}
	r.metrics.RecordRemoteQuery(ctx, mode.String(), label)
	return res
}
