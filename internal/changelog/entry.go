// Package changelog records reconciliation findings for human review and
// implements the review workflow (acknowledge, promote, ignore).
package changelog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a change log entry.
type Kind string

const (
	// KindAdded reports supplier parts found for an item without records.
	KindAdded Kind = "added"
	// KindDeleted reports a record whose SKU vanished from the supplier.
	KindDeleted Kind = "deleted"
	// KindLifecycleChanged reports a lifecycle status transition.
	KindLifecycleChanged Kind = "lifecycle"
	// KindError reports a per-item problem such as an unsearchable name.
	KindError Kind = "error"
)

// AmbiguousMarker is appended to NewValue when a search reported several
// supplier parts and only the first one is shown.
const AmbiguousMarker = "..."

var (
	// ErrEntryNotFound is returned when an entry id is unknown.
	ErrEntryNotFound = errors.New("change log entry not found")
	// ErrInvalidKind is returned when parsing an unknown kind.
	ErrInvalidKind = errors.New("invalid change log kind")
)

// ParseKind converts a stored kind back into a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindAdded, KindDeleted, KindLifecycleChanged, KindError:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Entry is one append-only finding.
type Entry struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"itemId"`
	Kind      Kind      `json:"kind"`
	OldValue  string    `json:"oldValue"`
	NewValue  string    `json:"newValue"`
	Comment   string    `json:"comment"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ambiguous reports whether the entry stands for several supplier parts.
func (e *Entry) Ambiguous() bool {
	return strings.HasSuffix(e.NewValue, AmbiguousMarker)
}

// Store persists change log entries.
type Store interface {
	// AppendEntry stores e, assigning its id and creation time when unset.
	AppendEntry(ctx context.Context, e *Entry) (int64, error)
	// ListEntries returns all entries ordered by id.
	ListEntries(ctx context.Context) ([]Entry, error)
	// GetEntry returns the entry with the given id.
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	// DeleteEntry removes an entry.
	DeleteEntry(ctx context.Context, id int64) error
}
