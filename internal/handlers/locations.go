package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldmark/fieldmark/internal/code"
	fmerr "github.com/fieldmark/fieldmark/internal/errors"
	"github.com/fieldmark/fieldmark/internal/labels"
	"github.com/fieldmark/fieldmark/internal/registry"
)

// LocationsHandler serves location record CRUD and code regeneration.
type LocationsHandler struct {
	store         registry.Store
	minter        *code.Minter
	labels        labels.Store
	defaultPrefix string
	labelSize     int
}

// NewLocationsHandler creates a LocationsHandler with injected dependencies.
func NewLocationsHandler(store registry.Store, minter *code.Minter, labelStore labels.Store, defaultPrefix string, labelSize int) *LocationsHandler {
	return &LocationsHandler{
		store:         store,
		minter:        minter,
		labels:        labelStore,
		defaultPrefix: defaultPrefix,
		labelSize:     labelSize,
	}
}

// archiveLabel renders and stores the label for a code. Label archiving is
// best effort; the label endpoint re-renders on demand.
func (h *LocationsHandler) archiveLabel(r *http.Request, c string) {
	png, err := labels.Render(c, h.labelSize)
	if err != nil {
		slog.Warn("rendering label", "code", c, "error", err)
		return
	}
	if err := h.labels.Put(r.Context(), c, png); err != nil {
		slog.Warn("archiving label", "code", c, "error", err)
	}
}

type createLocationRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Site   string `json:"site,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

// Create handles POST /v1/locations. A fresh code is minted for the record;
// callers never pick codes themselves.
func (h *LocationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLocationRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ID == "" {
		writeError(w, fmerr.ErrMalformedRequest.WithMessage("location id is required"))
		return
	}
	prefix := req.Prefix
	if prefix == "" {
		prefix = h.defaultPrefix
	}

	minted, err := h.minter.Mint(r.Context(), prefix)
	if err != nil {
		writeError(w, err)
		return
	}

	loc := &registry.LocationRecord{
		ID:   req.ID,
		Code: minted,
		Name: req.Name,
		Site: req.Site,
	}
	if err := h.store.CreateLocation(r.Context(), loc); err != nil {
		writeError(w, err)
		return
	}
	h.archiveLabel(r, minted)

	created, err := h.store.GetLocation(r.Context(), req.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("location created", "location", req.ID, "code", minted)
	writeJSON(w, http.StatusCreated, created)
}

// Get handles GET /v1/locations/{id}.
func (h *LocationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	loc, err := h.store.GetLocation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

type listLocationsResponse struct {
	Locations []registry.LocationRecord `json:"locations"`
}

// List handles GET /v1/locations.
func (h *LocationsHandler) List(w http.ResponseWriter, r *http.Request) {
	locs, err := h.store.ListLocations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if locs == nil {
		locs = []registry.LocationRecord{}
	}
	writeJSON(w, http.StatusOK, &listLocationsResponse{Locations: locs})
}

// Delete handles DELETE /v1/locations/{id}. The record is deactivated, not
// removed, so its code stays burned.
func (h *LocationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteLocation(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type regenerateRequest struct {
	Prefix string `json:"prefix,omitempty"`
}

// RegenerateCode handles POST /v1/locations/{id}/code: mints a replacement
// code, retires the old one, and archives a fresh label.
func (h *LocationsHandler) RegenerateCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req := regenerateRequest{}
	if r.ContentLength > 0 {
		if err := readJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	prefix := req.Prefix
	if prefix == "" {
		prefix = h.defaultPrefix
	}

	minted, err := h.minter.Regenerate(r.Context(), h.store, id, prefix)
	if err != nil {
		writeError(w, err)
		return
	}
	h.archiveLabel(r, minted)

	loc, err := h.store.GetLocation(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}
