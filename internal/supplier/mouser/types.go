package mouser

import (
	"bytes"
	"encoding/json"
)

// searchRequest is the body of a search/partnumber call.
type searchRequest struct {
	SearchByPartRequest partRequest `json:"SearchByPartRequest"`
}

type partRequest struct {
	MouserPartNumber  string `json:"mouserPartNumber"`
	PartSearchOptions string `json:"partSearchOptions"`
}

// searchResponse is the subset of the search/partnumber response we read.
type searchResponse struct {
	Errors        []apiError     `json:"Errors"`
	SearchResults *searchResults `json:"SearchResults"`
}

type apiError struct {
	Code    string  `json:"Code"`
	Message *string `json:"Message"`
}

type searchResults struct {
	NumberOfResult int    `json:"NumberOfResult"`
	Parts          []part `json:"Parts"`
}

type part struct {
	MouserPartNumber       string             `json:"MouserPartNumber"`
	ManufacturerPartNumber string             `json:"ManufacturerPartNumber"`
	ProductDetailURL       string             `json:"ProductDetailUrl"`
	LifecycleStatus        *string            `json:"LifecycleStatus"`
	Mult                   packQuantity       `json:"Mult"`
	Description            string             `json:"Description"`
	PriceBreaks            []priceBreak       `json:"PriceBreaks"`
	ProductAttributes      []productAttribute `json:"ProductAttributes"`
}

type priceBreak struct {
	Quantity int    `json:"Quantity"`
	Price    string `json:"Price"`
	Currency string `json:"Currency"`
}

type productAttribute struct {
	AttributeName  string `json:"AttributeName"`
	AttributeValue string `json:"AttributeValue"`
}

// packQuantity is the order multiple. The API sends it as a string, older
// responses as a number; any other shape decodes to "".
type packQuantity string

func (q *packQuantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var s string
	switch {
	case json.Unmarshal(data, &s) == nil:
		*q = packQuantity(s)
	case len(data) > 0 && (data[0] == '-' || (data[0] >= '0' && data[0] <= '9')):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			*q = ""
			return nil
		}
		*q = packQuantity(n.String())
	default:
		*q = ""
	}
	return nil
}
