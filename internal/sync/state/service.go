// Package state persists the sync engine's cursor, consecutive failure count
// and enabled flag. All three are always read and written together.
package state

import (
	"context"
	"errors"
	"time"
)

// ErrStateLocked is returned when another process holds the state lock.
var ErrStateLocked = errors.New("sync state is locked by another process")

// SyncState is the persisted state of the tick engine.
type SyncState struct {
	// CursorItemID is the next item to process. Zero means unset, which
	// snaps to the first item of the ring.
	CursorItemID        int64      `json:"cursorItemId"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	Enabled             bool       `json:"enabled"`
	LastTickAt          *time.Time `json:"lastTickAt,omitempty"`
	LastOutcome         string     `json:"lastOutcome,omitempty"`
}

// Default returns the state of a fresh installation: enabled, no cursor.
func Default() *SyncState {
	return &SyncState{Enabled: true}
}

// Service loads and stores the SyncState.
//
//go:generate mockgen -destination=mocks/mock_service.go -package=mocks github.com/stacklok/supplier-sync/internal/sync/state Service
type Service interface {
	// Load returns the stored state, or Default when nothing was stored yet.
	Load(ctx context.Context) (*SyncState, error)
	// Save overwrites the stored state in one atomic write.
	Save(ctx context.Context, s *SyncState) error
	// Update loads the state, applies fn and saves the result if fn reports
	// a change, as one atomic action. It returns what fn returned.
	Update(ctx context.Context, fn func(s *SyncState) bool) (bool, error)
}
