// Package supplier defines the remote supplier catalog contract (queries,
// statuses and result records) together with the local supplier record port.
package supplier

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// QueryMode selects how the remote catalog matches a keyword.
type QueryMode int

const (
	// Exact matches the keyword against supplier SKUs.
	Exact QueryMode = iota
	// Fuzzy performs a free text search by keyword.
	Fuzzy
)

// String returns the label used in logs and metrics.
func (m QueryMode) String() string {
	switch m {
	case Exact:
		return "exact"
	case Fuzzy:
		return "fuzzy"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// PriceBreak is a quantity tier with its unit price.
type PriceBreak struct {
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
}

// RemoteRecord is the first hit of a remote query.
type RemoteRecord struct {
	SKU             string       `json:"sku"`
	MPN             string       `json:"mpn"`
	URL             string       `json:"url"`
	LifecycleStatus string       `json:"lifecycleStatus"`
	PackQuantity    string       `json:"packQuantity,omitempty"`
	Description     string       `json:"description,omitempty"`
	Packaging       string       `json:"packaging,omitempty"`
	PriceBreaks     []PriceBreak `json:"priceBreaks,omitempty"`
}

// Result is the outcome of one remote query. MatchCount and Record are only
// meaningful when Status is StatusOK; Record is set whenever MatchCount > 0.
type Result struct {
	Status     Status
	MatchCount int
	Record     *RemoteRecord
}

// OK reports whether the query succeeded.
func (r *Result) OK() bool {
	_, ok := r.Status.(StatusOK)
	return ok
}

// Client queries a remote supplier catalog. Implementations never return Go
// errors: every failure is reported through Result.Status.
//
//go:generate mockgen -destination=mocks/mock_client.go -package=mocks github.com/stacklok/supplier-sync/internal/supplier Client
type Client interface {
	// Name returns the supplier name used to scope local records.
	Name() string
	// Query searches the remote catalog for keyword.
	Query(ctx context.Context, keyword string, mode QueryMode) Result
}
