package mouser

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/supplier-sync/internal/supplier"
)

// newTestServer creates a new test server with keep-alives disabled.
func newTestServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	return server
}

const singleHit = `{
  "Errors": [],
  "SearchResults": {
    "NumberOfResult": 1,
    "Parts": [{
      "MouserPartNumber": "595-SN74LS00N",
      "ManufacturerPartNumber": "SN74LS00N",
      "ProductDetailUrl": "https://www.mouser.de/ProductDetail/595-SN74LS00N",
      "LifecycleStatus": "Obsolete",
      "Mult": "1",
      "Description": "Logic Gates Quad 2-Input",
      "PriceBreaks": [
        {"Quantity": 1, "Price": "0,89 €", "Currency": "EUR"},
        {"Quantity": 1000, "Price": "1.456,34 €", "Currency": "EUR"}
      ],
      "ProductAttributes": [
        {"AttributeName": "Verpackung", "AttributeValue": "Tube"},
        {"AttributeName": "Verpackung", "AttributeValue": "Reel"},
        {"AttributeName": "Other", "AttributeValue": "x"}
      ]
    }]
  }
}`

const multiHit = `{
  "Errors": null,
  "SearchResults": {
    "NumberOfResult": 3,
    "Parts": [{
      "MouserPartNumber": "595-SN74LS00N",
      "ManufacturerPartNumber": "SN74LS00N",
      "ProductDetailUrl": "https://www.mouser.de/ProductDetail/595-SN74LS00N",
      "LifecycleStatus": null,
      "Mult": 10,
      "PriceBreaks": [{"Quantity": 1, "Price": "0,89 €", "Currency": "EUR"}]
    }]
  }
}`

func errorBody(code string) string {
	return `{"Errors":[{"Id":0,"Code":"` + code + `","Message":null}],"SearchResults":null}`
}

func TestClient_Query_RequestShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mode        supplier.QueryMode
		wantOptions string
	}{
		{name: "exact", mode: supplier.Exact, wantOptions: "exact"},
		{name: "fuzzy", mode: supplier.Fuzzy, wantOptions: "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var (
				gotKey  string
				gotBody searchRequest
			)
			server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotKey = r.URL.Query().Get("apiKey")
				data, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(data, &gotBody)
				_, _ = w.Write([]byte(`{"Errors":[],"SearchResults":{"NumberOfResult":0,"Parts":[]}}`))
			}))
			defer server.Close()

			c := New("key with space", WithEndpoint(server.URL))
			res := c.Query(context.Background(), "SN74LS00N", tt.mode)

			assert.True(t, res.OK())
			assert.Equal(t, 0, res.MatchCount)
			assert.Nil(t, res.Record)
			assert.Equal(t, "key with space", gotKey)
			assert.Equal(t, "SN74LS00N", gotBody.SearchByPartRequest.MouserPartNumber)
			assert.Equal(t, tt.wantOptions, gotBody.SearchByPartRequest.PartSearchOptions)
		})
	}
}

func TestClient_Query_SingleHit(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(singleHit))
	}))
	defer server.Close()

	c := New("key", WithEndpoint(server.URL))
	res := c.Query(context.Background(), "595-SN74LS00N", supplier.Exact)

	require.True(t, res.OK())
	assert.Equal(t, 1, res.MatchCount)
	require.NotNil(t, res.Record)
	assert.Equal(t, "595-SN74LS00N", res.Record.SKU)
	assert.Equal(t, "SN74LS00N", res.Record.MPN)
	assert.Equal(t, "https://www.mouser.de/ProductDetail/595-SN74LS00N", res.Record.URL)
	assert.Equal(t, "Obsolete", res.Record.LifecycleStatus)
	assert.Equal(t, "1", res.Record.PackQuantity)
	assert.Equal(t, "Tube, Reel", res.Record.Packaging)
	require.Len(t, res.Record.PriceBreaks, 2)
	assert.Equal(t, 1000, res.Record.PriceBreaks[1].Quantity)
	assert.True(t, decimal.RequireFromString("1456.34").Equal(res.Record.PriceBreaks[1].Price))
	assert.Equal(t, "EUR", res.Record.PriceBreaks[1].Currency)
}

func TestClient_Query_MultipleHitsSkipPriceBreaks(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(multiHit))
	}))
	defer server.Close()

	c := New("key", WithEndpoint(server.URL))
	res := c.Query(context.Background(), "SN74", supplier.Fuzzy)

	require.True(t, res.OK())
	assert.Equal(t, 3, res.MatchCount)
	require.NotNil(t, res.Record)
	assert.Equal(t, "595-SN74LS00N", res.Record.SKU)
	assert.Empty(t, res.Record.LifecycleStatus, "null lifecycle maps to empty string")
	assert.Equal(t, "10", res.Record.PackQuantity)
	assert.Empty(t, res.Record.PriceBreaks)
}

func TestClient_Query_NoResults(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Errors":[],"SearchResults":{"NumberOfResult":0,"Parts":[]}}`))
	}))
	defer server.Close()

	res := New("key", WithEndpoint(server.URL)).Query(context.Background(), "595-GONE", supplier.Exact)
	require.True(t, res.OK())
	assert.Zero(t, res.MatchCount)
	assert.Nil(t, res.Record)
}

func TestClient_Query_PackQuantityShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mult string
		want string
	}{
		{name: "string", mult: `"250"`, want: "250"},
		{name: "number", mult: `5`, want: "5"},
		{name: "empty string", mult: `""`, want: ""},
		{name: "non numeric string", mult: `"n/a"`, want: "n/a"},
		{name: "null", mult: `null`, want: ""},
		{name: "object", mult: `{}`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			body := strings.Replace(singleHit, `"Mult": "1"`, `"Mult": `+tt.mult, 1)
			server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			res := New("key", WithEndpoint(server.URL)).Query(context.Background(), "595-SN74LS00N", supplier.Exact)
			require.True(t, res.OK(), "status: %s", res.Status)
			require.NotNil(t, res.Record)
			assert.Equal(t, tt.want, res.Record.PackQuantity)
			assert.Len(t, res.Record.PriceBreaks, 2)
		})
	}
}

func TestClient_Query_StatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		body       string
		want       supplier.Status
	}{
		{name: "invalid characters", statusCode: http.StatusOK, body: errorBody("InvalidCharacters"), want: supplier.StatusInvalidCharacters{}},
		{name: "invalid key", statusCode: http.StatusOK, body: errorBody("Invalid"), want: supplier.StatusInvalidAuthorization{}},
		{name: "missing key", statusCode: http.StatusOK, body: errorBody("Required"), want: supplier.StatusInvalidAuthorization{}},
		{name: "rate limited by body", statusCode: http.StatusOK, body: errorBody("TooManyRequests"), want: supplier.StatusTooManyRequests{}},
		{name: "unknown code", statusCode: http.StatusOK, body: errorBody("Weird"), want: supplier.StatusUnknown{Code: "Weird"}},
		{name: "error body on 400", statusCode: http.StatusBadRequest, body: errorBody("Invalid"), want: supplier.StatusInvalidAuthorization{}},
		{name: "plain 429", statusCode: http.StatusTooManyRequests, body: "slow down", want: supplier.StatusTooManyRequests{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			res := New("key", WithEndpoint(server.URL)).Query(context.Background(), "x", supplier.Exact)
			assert.Equal(t, tt.want, res.Status)
			assert.Equal(t, 0, res.MatchCount)
		})
	}
}

func TestClient_Query_TransportFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"Errors":`))
			},
		},
		{
			name: "no errors and no results",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"Errors":[],"SearchResults":null}`))
			},
		},
		{
			name: "results without parts",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"Errors":[],"SearchResults":{"NumberOfResult":3,"Parts":[]}}`))
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				time.Sleep(time.Second)
				_, _ = w.Write([]byte(singleHit))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(tt.handler)
			defer server.Close()

			c, err := NewFromSettings("key", server.URL, "", 200*time.Millisecond)
			require.NoError(t, err)

			res := c.Query(context.Background(), "x", supplier.Exact)
			assert.IsType(t, supplier.StatusTransport{}, res.Status)
			assert.False(t, res.OK())
		})
	}
}

func TestNewFromSettings(t *testing.T) {
	t.Parallel()

	c, err := NewFromSettings("key", DefaultEndpoint, "http://proxy.local:3128", time.Second)
	require.NoError(t, err)
	assert.Equal(t, DefaultName, c.Name())

	_, err = NewFromSettings("key", DefaultEndpoint, "://bad", time.Second)
	require.Error(t, err)
}
