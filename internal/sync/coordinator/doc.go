// Package coordinator drives the tick engine periodically.
//
// The coordinator runs one tick immediately on Start and then one per sync
// interval, with ±10% jitter so several instances sharing a database do not
// tick in lockstep. A tick is never started while the previous one is
// running because the loop runs ticks synchronously.
//
// Usage:
//
//	engine := sync.NewEngine(items, reconciler, stateSvc)
//	c := coordinator.New(engine, cfg.Sync.GetInterval())
//	go func() { _ = c.Start(ctx) }()
//	...
//	_ = c.Stop()
//
// Tick errors and non-synced outcomes are logged; the loop keeps running
// until its context is cancelled or Stop is called.
package coordinator
