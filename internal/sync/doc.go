// Package sync implements the tick engine of supplier synchronization.
//
// Each call to Engine.Tick processes at most one catalog item:
//
//   - the persisted cursor is resolved against the ring of catalog items in
//     id order, snapping to the first item when the cursor item is gone
//   - ineligible items are skipped; a full traversal without an eligible
//     item ends the tick as NothingEligible
//   - the chosen item is handed to an ItemReconciler
//   - success advances the cursor and clears the failure count; failure
//     keeps the cursor and increments the count, and reaching the failure
//     threshold disables syncing until an operator re-enables it
//
// Cursor, failure count and enabled flag are written in a single
// state.Service update at the end of the tick.
//
// The periodic trigger lives in the sync/coordinator subpackage.
package sync
