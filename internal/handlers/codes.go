package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldmark/fieldmark/internal/code"
	fmerr "github.com/fieldmark/fieldmark/internal/errors"
	"github.com/fieldmark/fieldmark/internal/labels"
	"github.com/fieldmark/fieldmark/internal/registry"
)

// CodesHandler serves code minting, lookup, payload resolution, and label
// retrieval.
type CodesHandler struct {
	minter        *code.Minter
	resolver      *code.Resolver
	store         registry.Store
	labels        labels.Store
	defaultPrefix string
	labelSize     int
}

// NewCodesHandler creates a CodesHandler with injected dependencies.
func NewCodesHandler(minter *code.Minter, resolver *code.Resolver, store registry.Store, labelStore labels.Store, defaultPrefix string, labelSize int) *CodesHandler {
	return &CodesHandler{
		minter:        minter,
		resolver:      resolver,
		store:         store,
		labels:        labelStore,
		defaultPrefix: defaultPrefix,
		labelSize:     labelSize,
	}
}

type mintRequest struct {
	Prefix string `json:"prefix,omitempty"`
}

type mintResponse struct {
	Code string `json:"code"`
}

// Mint handles POST /v1/codes. The minted code is reserved against
// everything the registry has ever seen but not yet bound to a location.
func (h *CodesHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
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
	writeJSON(w, http.StatusCreated, &mintResponse{Code: minted})
}

type mintBatchRequest struct {
	Prefix string `json:"prefix,omitempty"`
	Count  int    `json:"count"`
}

type mintBatchResponse struct {
	Codes []string `json:"codes"`
}

// MintBatch handles POST /v1/codes/batch. The batch is all-or-nothing: on
// exhaustion no codes are returned.
func (h *CodesHandler) MintBatch(w http.ResponseWriter, r *http.Request) {
	var req mintBatchRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	prefix := req.Prefix
	if prefix == "" {
		prefix = h.defaultPrefix
	}

	codes, err := h.minter.MintBatch(r.Context(), prefix, req.Count)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &mintBatchResponse{Codes: codes})
}

type codeResponse struct {
	Code     string                   `json:"code"`
	Location *registry.LocationRecord `json:"location"`
}

// GetCode handles GET /v1/codes/{code}: validates the code shape and looks
// up the active location bound to it.
func (h *CodesHandler) GetCode(w http.ResponseWriter, r *http.Request) {
	c := chi.URLParam(r, "code")
	if !code.Valid(c) {
		writeError(w, fmerr.ErrInvalidCode.WithMessage("%q is not a valid location code", c))
		return
	}
	loc, err := h.store.FindByCode(r.Context(), c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &codeResponse{Code: c, Location: loc})
}

type resolveRequest struct {
	Payload string `json:"payload"`
}

type resolveResponse struct {
	Kind     string                   `json:"kind"`
	Code     string                   `json:"code,omitempty"`
	Location *registry.LocationRecord `json:"location,omitempty"`
}

// Resolve handles POST /v1/resolve: classifies an arbitrary scanned payload
// and, when a code was extracted, looks up its location. An unrecognized
// payload is a successful classification, not an error.
func (h *CodesHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res := h.resolver.Resolve(req.Payload)
	resp := &resolveResponse{Kind: res.Kind.String(), Code: res.Code}
	if res.Kind != code.KindUnrecognized {
		loc, err := h.store.FindByCode(r.Context(), res.Code)
		if err == nil {
			resp.Location = loc
		} else if !errors.Is(err, fmerr.ErrCodeNotFound) {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetLabel handles GET /v1/codes/{code}/label, returning the archived label
// PNG. A label for a bound code that was never archived is rendered on
// demand and archived for next time.
func (h *CodesHandler) GetLabel(w http.ResponseWriter, r *http.Request) {
	c := chi.URLParam(r, "code")
	if !code.Valid(c) {
		writeError(w, fmerr.ErrInvalidCode.WithMessage("%q is not a valid location code", c))
		return
	}

	png, err := h.labels.Get(r.Context(), c)
	if errors.Is(err, fmerr.ErrLabelNotFound) {
		if _, err := h.store.FindByCode(r.Context(), c); err != nil {
			writeError(w, err)
			return
		}
		png, err = labels.Render(c, h.labelSize)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := h.labels.Put(r.Context(), c, png); err != nil {
			slog.Warn("archiving rendered label", "code", c, "error", err)
		}
	} else if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
