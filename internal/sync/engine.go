package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/supplier-sync/internal/catalog"
	"github.com/stacklok/supplier-sync/internal/otel"
	"github.com/stacklok/supplier-sync/internal/sync/state"
	"github.com/stacklok/supplier-sync/internal/telemetry"
)

const (
	// DefaultFailureThreshold is the number of consecutive failed ticks that
	// opens the circuit.
	DefaultFailureThreshold = 10

	// TracerName is the name of the tracer for tick and reconcile spans.
	TracerName = "github.com/stacklok/supplier-sync/sync"
)

// ErrRingEmpty is returned by Tick when the catalog has no items.
var ErrRingEmpty = catalog.ErrRingEmpty

// Outcome is the result of one tick.
type Outcome string

// Tick outcomes
const (
	OutcomeDisabled        Outcome = "disabled"
	OutcomeNothingEligible Outcome = "nothing_eligible"
	OutcomeSynced          Outcome = "synced"
	OutcomeFailed          Outcome = "failed"
	OutcomeCircuitOpen     Outcome = "circuit_open"
	OutcomeBusy            Outcome = "busy"
)

// ItemLister provides the catalog items the ring is built from
type ItemLister interface {
	ListItems(ctx context.Context) ([]catalog.Item, error)
}

// ItemReconciler reconciles one item. The boolean reports whether the cursor
// may advance; an error is treated like false and logged.
type ItemReconciler interface {
	Reconcile(ctx context.Context, item *catalog.Item) (bool, error)
}

// TickResult describes a finished tick
type TickResult struct {
	TickID              uuid.UUID `json:"tickId"`
	Outcome             Outcome   `json:"outcome"`
	ItemID              int64     `json:"itemId,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
}

// Engine runs ticks. It is safe for concurrent use; concurrent ticks in one
// process are rejected with OutcomeBusy.
type Engine struct {
	items      ItemLister
	reconciler ItemReconciler
	state      state.Service

	threshold int
	metrics   *telemetry.SyncMetrics
	tracer    trace.Tracer
	now       func() time.Time

	running gosync.Mutex
}

// Option configures an Engine
type Option func(*Engine)

// WithFailureThreshold sets how many consecutive failures disable syncing.
// Values below one are ignored.
func WithFailureThreshold(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.threshold = n
		}
	}
}

// WithMetrics sets the sync metrics
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracer sets the tracer for tick spans
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an Engine
func NewEngine(items ItemLister, reconciler ItemReconciler, stateSvc state.Service, opts ...Option) *Engine {
	e := &Engine{
		items:      items,
		reconciler: reconciler,
		state:      stateSvc,
		threshold:  DefaultFailureThreshold,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tick processes at most one eligible item. The returned error is non-nil
// only when the tick could not run at all (state or catalog unreadable,
// empty ring, state not saved); no state is changed in that case.
func (e *Engine) Tick(ctx context.Context) (*TickResult, error) {
	tickID := uuid.New()
	if !e.running.TryLock() {
		slog.InfoContext(ctx, "Tick skipped, another tick is running", "tick_id", tickID)
		return &TickResult{TickID: tickID, Outcome: OutcomeBusy}, nil
	}
	defer e.running.Unlock()

	ctx, span := otel.StartSpan(ctx, e.tracer, "sync.tick",
		trace.WithAttributes(otel.AttrTickID.String(tickID.String())))
	defer span.End()

	start := e.now()
	result, err := e.tick(ctx, tickID)
	if err != nil {
		otel.RecordError(span, err)
		slog.ErrorContext(ctx, "Tick aborted", "tick_id", tickID, "error", err)
		return nil, err
	}

	span.SetAttributes(
		otel.AttrTickOutcome.String(string(result.Outcome)),
		otel.AttrItemID.Int64(result.ItemID),
		otel.AttrFailureStreak.Int(result.ConsecutiveFailures),
	)
	e.metrics.RecordTick(ctx, string(result.Outcome), e.now().Sub(start))
	e.metrics.RecordConsecutiveFailures(ctx, result.ConsecutiveFailures)
	return result, nil
}

func (e *Engine) tick(ctx context.Context, tickID uuid.UUID) (*TickResult, error) {
	current, err := e.state.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}

	result := &TickResult{TickID: tickID, ConsecutiveFailures: current.ConsecutiveFailures}
	if !current.Enabled {
		slog.InfoContext(ctx, "Supplier sync is disabled", "tick_id", tickID)
		result.Outcome = OutcomeDisabled
		return result, nil
	}

	items, err := e.items.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog items: %w", err)
	}
	ring := catalog.NewRing(items)

	item, found, err := selectItem(ring, current.CursorItemID)
	if err != nil {
		return nil, err
	}
	if !found {
		slog.InfoContext(ctx, "No eligible item in catalog", "tick_id", tickID, "items", ring.Len())
		result.Outcome = OutcomeNothingEligible
		return result, nil
	}
	result.ItemID = item.ID

	slog.InfoContext(ctx, "Reconciling item", "tick_id", tickID, "item_id", item.ID, "ipn", item.IPN)
	ok, reconcileErr := e.reconciler.Reconcile(ctx, &item)
	if reconcileErr != nil {
		slog.ErrorContext(ctx, "Reconciliation failed", "tick_id", tickID, "item_id", item.ID, "error", reconcileErr)
		ok = false
	}

	next, err := ring.NextAfter(item.ID)
	if err != nil {
		return nil, err
	}

	tickAt := e.now().UTC()
	_, err = e.state.Update(ctx, func(s *state.SyncState) bool {
		if ok {
			s.CursorItemID = next.ID
			s.ConsecutiveFailures = 0
			result.Outcome = OutcomeSynced
		} else {
			s.CursorItemID = item.ID
			s.ConsecutiveFailures++
			result.Outcome = OutcomeFailed
			if s.ConsecutiveFailures >= e.threshold && s.Enabled {
				s.Enabled = false
				result.Outcome = OutcomeCircuitOpen
			}
		}
		s.LastTickAt = &tickAt
		s.LastOutcome = string(result.Outcome)
		result.ConsecutiveFailures = s.ConsecutiveFailures
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save sync state: %w", err)
	}

	switch result.Outcome {
	case OutcomeCircuitOpen:
		slog.ErrorContext(ctx, "Too many consecutive failures, supplier sync disabled",
			"tick_id", tickID, "item_id", item.ID, "consecutive_failures", result.ConsecutiveFailures)
	case OutcomeFailed:
		slog.WarnContext(ctx, "Item will be retried next tick",
			"tick_id", tickID, "item_id", item.ID, "consecutive_failures", result.ConsecutiveFailures)
	default:
		slog.InfoContext(ctx, "Item synced", "tick_id", tickID, "item_id", item.ID, "next_item_id", next.ID)
	}
	return result, nil
}

// selectItem resolves the cursor and walks the ring to the first eligible
// item. found is false after a full traversal without one.
func selectItem(ring *catalog.Ring, cursor int64) (catalog.Item, bool, error) {
	start, ok := ring.Find(cursor)
	if !ok {
		first, err := ring.First()
		if err != nil {
			return catalog.Item{}, false, err
		}
		start = first
	}

	item := start
	for range ring.Len() {
		if catalog.IsEligible(&item) {
			return item, true, nil
		}
		next, err := ring.NextAfter(item.ID)
		if err != nil {
			return catalog.Item{}, false, err
		}
		item = next
	}
	return catalog.Item{}, false, nil
}

// GetState returns the persisted sync state
func (e *Engine) GetState(ctx context.Context) (*state.SyncState, error) {
	return e.state.Load(ctx)
}

// SetEnabled enables or disables syncing. Enabling clears the failure count,
// which is how an operator closes an open circuit.
func (e *Engine) SetEnabled(ctx context.Context, enabled bool) (*state.SyncState, error) {
	var updated state.SyncState
	_, err := e.state.Update(ctx, func(s *state.SyncState) bool {
		s.Enabled = enabled
		if enabled {
			s.ConsecutiveFailures = 0
		}
		updated = *s
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update sync state: %w", err)
	}
	slog.InfoContext(ctx, "Supplier sync toggled", "enabled", enabled)
	return &updated, nil
}
