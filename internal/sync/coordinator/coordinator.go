package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	pkgsync "github.com/stacklok/supplier-sync/internal/sync"
)

// Ticker runs one sync tick
type Ticker interface {
	Tick(ctx context.Context) (*pkgsync.TickResult, error)
}

// Coordinator schedules sync ticks in the background
type Coordinator interface {
	// Start runs ticks until ctx is cancelled or Stop is called. It blocks.
	Start(ctx context.Context) error

	// Stop cancels the loop and waits for the running tick to finish
	Stop() error
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	ticker   Ticker
	interval time.Duration

	mu         sync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// New creates a coordinator ticking engine every interval
func New(engine Ticker, interval time.Duration) Coordinator {
	return &defaultCoordinator{
		ticker:   engine,
		interval: getSyncInterval(interval),
		done:     make(chan struct{}),
	}
}

// Start begins the tick loop
func (c *defaultCoordinator) Start(ctx context.Context) error {
	coordCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		close(c.done)
		slog.Info("Background sync coordinator shutting down")
	}()

	next := withJitter(c.interval)
	slog.Info("Starting background sync coordinator",
		"base_interval", c.interval,
		"actual_interval", next)

	timer := time.NewTicker(next)
	defer timer.Stop()

	c.runTick(coordCtx)

	for {
		select {
		case <-timer.C:
			c.runTick(coordCtx)

			// New jitter for the next interval
			timer.Reset(withJitter(c.interval))
		case <-coordCtx.Done():
			slog.Info("Sync coordinator stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping sync coordinator")
		cancel()
		<-c.done
	}
	return nil
}

func (c *defaultCoordinator) runTick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	result, err := c.ticker.Tick(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Sync tick failed", "error", err)
		return
	}

	slog.DebugContext(ctx, "Sync tick finished",
		"tick_id", result.TickID,
		"outcome", result.Outcome,
		"item_id", result.ItemID,
		"consecutive_failures", result.ConsecutiveFailures)
}
