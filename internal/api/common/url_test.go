package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		want    int64
		wantErr string
	}{
		{name: "valid id", path: "/changes/42", want: 42},
		{name: "zero", path: "/changes/0", wantErr: "must be a positive integer"},
		{name: "negative", path: "/changes/-3", wantErr: "must be a positive integer"},
		{name: "not a number", path: "/changes/abc", wantErr: "must be a positive integer"},
		{name: "overflow", path: "/changes/99999999999999999999", wantErr: "must be a positive integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var (
				got int64
				err error
			)
			r := chi.NewRouter()
			r.Get("/changes/{id}", func(_ http.ResponseWriter, req *http.Request) {
				got, err = ParseIDParam(req, "id")
			})
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseIDParam_Missing(t *testing.T) {
	t.Parallel()

	_, err := ParseIDParam(httptest.NewRequest(http.MethodGet, "/", nil), "id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty")
}

func TestWriteErrorResponse(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	WriteErrorResponse(rr, "boom", http.StatusBadGateway)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"boom"}`, rr.Body.String())
}
