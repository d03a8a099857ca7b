package supplier

import (
	"context"
	"errors"
)

// NoSKU is the placeholder SKU of a record that is not sold by the supplier.
const NoSKU = "N/A"

// ErrRecordNotFound is returned when a supplier record id is unknown.
var ErrRecordNotFound = errors.New("supplier record not found")

// Record is a local supplier part linked to a catalog item.
type Record struct {
	ID           int64        `json:"id"`
	ItemID       int64        `json:"itemId"`
	Supplier     string       `json:"supplier"`
	SKU          string       `json:"sku"`
	MPN          string       `json:"mpn,omitempty"`
	Link         string       `json:"link,omitempty"`
	Note         string       `json:"note,omitempty"`
	Description  string       `json:"description,omitempty"`
	PackQuantity string       `json:"packQuantity,omitempty"`
	Packaging    string       `json:"packaging,omitempty"`
	PriceBreaks  []PriceBreak `json:"priceBreaks,omitempty"`
}

// HasSKU reports whether the record refers to a real supplier SKU.
func (r *Record) HasSKU() bool {
	return r.SKU != "" && r.SKU != NoSKU
}

// RecordStore persists supplier records and their price breaks.
type RecordStore interface {
	// ListRecords returns the records of one supplier for an item, ordered by id.
	ListRecords(ctx context.Context, supplierName string, itemID int64) ([]Record, error)
	// FindBySKU returns the record of a supplier with the given SKU, or nil.
	FindBySKU(ctx context.Context, supplierName, sku string) (*Record, error)
	// CreateRecord inserts a record together with its price breaks in a
	// single transaction and returns the new id.
	CreateRecord(ctx context.Context, rec *Record) (int64, error)
	// UpdateNote overwrites the record note.
	UpdateNote(ctx context.Context, recordID int64, note string) error
	// ReplacePriceBreaks atomically deletes every price break of the record
	// and inserts breaks in their place.
	ReplacePriceBreaks(ctx context.Context, recordID int64, breaks []PriceBreak) error
}

// RecordFromRemote builds a local record for itemID from a remote hit.
func RecordFromRemote(supplierName string, itemID int64, remote *RemoteRecord) *Record {
	return &Record{
		ItemID:       itemID,
		Supplier:     supplierName,
		SKU:          remote.SKU,
		MPN:          remote.MPN,
		Link:         remote.URL,
		Note:         remote.LifecycleStatus,
		Description:  remote.Description,
		PackQuantity: remote.PackQuantity,
		Packaging:    remote.Packaging,
		PriceBreaks:  remote.PriceBreaks,
	}
}
