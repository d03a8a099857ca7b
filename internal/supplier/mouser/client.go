// Package mouser implements the supplier catalog client against the Mouser
// search API.
package mouser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stacklok/supplier-sync/internal/httpclient"
	"github.com/stacklok/supplier-sync/internal/supplier"
)

const (
	// DefaultName is the supplier name local records are scoped by
	DefaultName = "Mouser"

	// DefaultEndpoint is the part number search endpoint
	DefaultEndpoint = "https://api.mouser.com/api/v1.0/search/partnumber"

	// packagingAttribute is the product attribute holding the packaging
	packagingAttribute = "Verpackung"

	searchOptionExact = "exact"
	searchOptionNone  = "none"
)

// Option configures the Mouser client
type Option func(*Client)

// WithEndpoint overrides the search endpoint
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithName overrides the supplier name
func WithName(name string) Option {
	return func(c *Client) {
		c.name = name
	}
}

// WithHTTPClient sets the HTTP client used for requests
func WithHTTPClient(client httpclient.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

// Client queries the Mouser catalog
type Client struct {
	name     string
	endpoint string
	apiKey   string
	http     httpclient.Client
}

var _ supplier.Client = (*Client)(nil)

// New creates a Mouser client authenticated with apiKey
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		name:     DefaultName,
		endpoint: DefaultEndpoint,
		apiKey:   apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.NewDefaultClient(httpclient.DefaultTimeout)
	}
	return c
}

// NewFromSettings creates a client from timeout and proxy settings. opts are
// applied last.
func NewFromSettings(apiKey, endpoint, proxyURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	var httpOpts []httpclient.Option
	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		httpOpts = append(httpOpts, httpclient.WithProxy(proxy))
	}
	base := []Option{
		WithEndpoint(endpoint),
		WithHTTPClient(httpclient.NewDefaultClient(timeout, httpOpts...)),
	}
	return New(apiKey, append(base, opts...)...), nil
}

// Name returns the supplier name
func (c *Client) Name() string {
	return c.name
}

// Query runs a part number search. Exact mode matches SKUs, fuzzy mode
// searches by keyword.
func (c *Client) Query(ctx context.Context, keyword string, mode supplier.QueryMode) supplier.Result {
	options := searchOptionNone
	if mode == supplier.Exact {
		options = searchOptionExact
	}

	body, err := json.Marshal(searchRequest{
		SearchByPartRequest: partRequest{
			MouserPartNumber:  keyword,
			PartSearchOptions: options,
		},
	})
	if err != nil {
		return supplier.Result{Status: supplier.StatusTransport{Err: err}}
	}

	data, err := c.http.PostJSON(ctx, c.searchURL(), body)
	if err != nil {
		return resultFromHTTPError(err)
	}

	var resp searchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return supplier.Result{Status: supplier.StatusTransport{Err: fmt.Errorf("failed to decode response: %w", err)}}
	}

	return resultFromResponse(&resp)
}

func (c *Client) searchURL() string {
	return c.endpoint + "?apiKey=" + url.QueryEscape(c.apiKey)
}

// resultFromHTTPError maps non-2xx responses. A body carrying API errors
// takes precedence over the HTTP status.
func resultFromHTTPError(err error) supplier.Result {
	var httpErr *httpclient.HTTPError
	if !errors.As(err, &httpErr) {
		return supplier.Result{Status: supplier.StatusTransport{Err: err}}
	}

	var resp searchResponse
	if jsonErr := json.Unmarshal(httpErr.Body, &resp); jsonErr == nil && len(resp.Errors) > 0 {
		return supplier.Result{Status: statusFromCode(resp.Errors[0].Code)}
	}
	if httpErr.StatusCode == http.StatusTooManyRequests {
		return supplier.Result{Status: supplier.StatusTooManyRequests{}}
	}
	return supplier.Result{Status: supplier.StatusTransport{Err: err}}
}

func resultFromResponse(resp *searchResponse) supplier.Result {
	if len(resp.Errors) > 0 {
		return supplier.Result{Status: statusFromCode(resp.Errors[0].Code)}
	}
	if resp.SearchResults == nil {
		return supplier.Result{Status: supplier.StatusTransport{Err: errors.New("response has neither errors nor search results")}}
	}

	count := resp.SearchResults.NumberOfResult
	if count == 0 {
		return supplier.Result{Status: supplier.StatusOK{}}
	}
	if len(resp.SearchResults.Parts) == 0 {
		return supplier.Result{Status: supplier.StatusTransport{
			Err: fmt.Errorf("response reports %d results but lists no parts", count),
		}}
	}

	first := resp.SearchResults.Parts[0]
	record := &supplier.RemoteRecord{
		SKU:          first.MouserPartNumber,
		MPN:          first.ManufacturerPartNumber,
		URL:          first.ProductDetailURL,
		PackQuantity: string(first.Mult),
		Description:  first.Description,
		Packaging:    packaging(first.ProductAttributes),
	}
	if first.LifecycleStatus != nil {
		record.LifecycleStatus = *first.LifecycleStatus
	}

	// Price breaks of an ambiguous hit would be attributed to the wrong part.
	if count == 1 {
		for _, pb := range first.PriceBreaks {
			record.PriceBreaks = append(record.PriceBreaks, supplier.PriceBreak{
				Quantity: pb.Quantity,
				Price:    supplier.ReformatPrice(pb.Price),
				Currency: pb.Currency,
			})
		}
	}

	return supplier.Result{Status: supplier.StatusOK{}, MatchCount: count, Record: record}
}

func statusFromCode(code string) supplier.Status {
	switch code {
	case "InvalidCharacters":
		return supplier.StatusInvalidCharacters{}
	case "Invalid", "Required":
		return supplier.StatusInvalidAuthorization{}
	case "TooManyRequests":
		return supplier.StatusTooManyRequests{}
	default:
		slog.Debug("Unmapped supplier error code", "code", code)
		return supplier.StatusUnknown{Code: code}
	}
}

func packaging(attrs []productAttribute) string {
	var values []string
	for _, att := range attrs {
		if att.AttributeName == packagingAttribute {
			values = append(values, att.AttributeValue)
		}
	}
	return strings.Join(values, ", ")
}
