// Package v1 provides the operator and review REST handlers.
package v1

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/supplier-sync/internal/api/common"
	"github.com/stacklok/supplier-sync/internal/catalog"
	"github.com/stacklok/supplier-sync/internal/changelog"
	pkgsync "github.com/stacklok/supplier-sync/internal/sync"
	"github.com/stacklok/supplier-sync/internal/sync/state"
)

// SyncService is the operator surface of the tick engine.
type SyncService interface {
	Tick(ctx context.Context) (*pkgsync.TickResult, error)
	GetState(ctx context.Context) (*state.SyncState, error)
	SetEnabled(ctx context.Context, enabled bool) (*state.SyncState, error)
}

// CatalogStore is the part of the catalog operators inspect and flag.
type CatalogStore interface {
	GetItem(ctx context.Context, id int64) (*catalog.Item, error)
	SetCategoryFlag(ctx context.Context, id int64, key string, value bool) error
}

// Routes holds the services behind the v1 handlers.
type Routes struct {
	sync    SyncService
	review  changelog.ReviewService
	catalog CatalogStore
}

// Router creates the /v1 router.
func Router(syncSvc SyncService, review changelog.ReviewService, items CatalogStore) http.Handler {
	routes := &Routes{sync: syncSvc, review: review, catalog: items}

	r := chi.NewRouter()

	r.Route("/sync", func(r chi.Router) {
		r.Get("/state", routes.getState)
		r.Post("/enable", routes.setEnabled(true))
		r.Post("/disable", routes.setEnabled(false))
		r.Post("/tick", routes.tick)
	})

	r.Route("/changes", func(r chi.Router) {
		r.Get("/", routes.listChanges)
		r.Get("/{id}", routes.getChange)
		r.Delete("/{id}", routes.acknowledgeChange)
		r.Post("/{id}/promote", routes.promoteChange)
		r.Post("/{id}/ignore", routes.ignoreChange)
	})

	r.Get("/items/{id}", routes.getItem)
	r.Post("/categories/{id}/exclude", routes.setCategoryExcluded(true))
	r.Post("/categories/{id}/include", routes.setCategoryExcluded(false))

	return r
}

// ItemResponse is a catalog item with its sync eligibility.
type ItemResponse struct {
	Item     *catalog.Item `json:"item"`
	Eligible bool          `json:"eligible"`
	Reason   string        `json:"reason,omitempty"`
}

// ListChangesResponse wraps the pending change log entries.
type ListChangesResponse struct {
	Changes []changelog.Entry `json:"changes"`
	Count   int               `json:"count"`
}

func (rr *Routes) getState(w http.ResponseWriter, r *http.Request) {
	s, err := rr.sync.GetState(r.Context())
	if err != nil {
		writeServiceError(w, r, "Failed to load sync state", err)
		return
	}
	common.WriteJSONResponse(w, s, http.StatusOK)
}

func (rr *Routes) setEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := rr.sync.SetEnabled(r.Context(), enabled)
		if err != nil {
			writeServiceError(w, r, "Failed to update sync state", err)
			return
		}
		common.WriteJSONResponse(w, s, http.StatusOK)
	}
}

func (rr *Routes) tick(w http.ResponseWriter, r *http.Request) {
	res, err := rr.sync.Tick(r.Context())
	if err != nil {
		writeServiceError(w, r, "Tick failed", err)
		return
	}
	status := http.StatusOK
	if res.Outcome == pkgsync.OutcomeBusy {
		status = http.StatusConflict
	}
	common.WriteJSONResponse(w, res, status)
}

func (rr *Routes) listChanges(w http.ResponseWriter, r *http.Request) {
	entries, err := rr.review.List(r.Context())
	if err != nil {
		writeServiceError(w, r, "Failed to list changes", err)
		return
	}
	if entries == nil {
		entries = []changelog.Entry{}
	}
	common.WriteJSONResponse(w, ListChangesResponse{Changes: entries, Count: len(entries)}, http.StatusOK)
}

func (rr *Routes) getChange(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := rr.review.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "Failed to get change", err)
		return
	}
	common.WriteJSONResponse(w, e, http.StatusOK)
}

func (rr *Routes) acknowledgeChange(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := rr.review.Acknowledge(r.Context(), id); err != nil {
		writeServiceError(w, r, "Failed to acknowledge change", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rr *Routes) promoteChange(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := rr.review.Promote(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "Failed to promote change", err)
		return
	}
	common.WriteJSONResponse(w, rec, http.StatusCreated)
}

func (rr *Routes) ignoreChange(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := rr.review.Ignore(r.Context(), id); err != nil {
		writeServiceError(w, r, "Failed to ignore change", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rr *Routes) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	item, err := rr.catalog.GetItem(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "Failed to get item", err)
		return
	}
	reason := catalog.Check(item)
	common.WriteJSONResponse(w, ItemResponse{
		Item:     item,
		Eligible: reason == catalog.ReasonEligible,
		Reason:   string(reason),
	}, http.StatusOK)
}

// setCategoryExcluded toggles the exclude flag that removes every item of a
// category from sync.
func (rr *Routes) setCategoryExcluded(excluded bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := rr.catalog.SetCategoryFlag(r.Context(), id, catalog.FlagExclude, excluded); err != nil {
			writeServiceError(w, r, "Failed to update category", err)
			return
		}
		slog.InfoContext(r.Context(), "Category sync flag updated", "category_id", id, "excluded", excluded)
		w.WriteHeader(http.StatusNoContent)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := common.ParseIDParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeServiceError maps sentinel errors to status codes. Unknown errors are
// logged and reported with a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), msg, "error", err, "path", r.URL.Path)
		common.WriteErrorResponse(w, msg, status)
		return
	}
	common.WriteErrorResponse(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, changelog.ErrEntryNotFound),
		errors.Is(err, catalog.ErrItemNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, changelog.ErrDuplicateSKU),
		errors.Is(err, pkgsync.ErrRingEmpty),
		errors.Is(err, state.ErrStateLocked):
		return http.StatusConflict
	case errors.Is(err, changelog.ErrNotPromotable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, changelog.ErrSupplierUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
