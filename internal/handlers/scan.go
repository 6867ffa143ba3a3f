package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldmark/fieldmark/internal/capture"
	"github.com/fieldmark/fieldmark/internal/decode"
	fmerr "github.com/fieldmark/fieldmark/internal/errors"
	"github.com/fieldmark/fieldmark/internal/scan"
)

// ScanHandler serves scan session lifecycle operations, frame ingestion for
// the push device, and the session event stream.
type ScanHandler struct {
	sessions *scan.Manager
	push     *capture.PushDevice // nil unless the push device is configured
}

// NewScanHandler creates a ScanHandler. push may be nil when frames come
// from a server-side device.
func NewScanHandler(sessions *scan.Manager, push *capture.PushDevice) *ScanHandler {
	return &ScanHandler{sessions: sessions, push: push}
}

// Start handles POST /v1/scan/sessions. The decode loop runs in the
// background; clients poll the session or follow the event stream.
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Start(r.Context())
	writeJSON(w, http.StatusCreated, s.Snapshot())
}

// Get handles GET /v1/scan/sessions/{id}.
func (h *ScanHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// Cancel handles DELETE /v1/scan/sessions/{id}: cooperative cancellation,
// observed by the loop at its next tick.
func (h *ScanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Cancel(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "canceling"})
}

// PushFrame handles POST /v1/scan/sessions/{id}/frames: accepts a PNG or
// JPEG frame body for the push capture device.
func (h *ScanHandler) PushFrame(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if s.Snapshot().State.Terminal() {
		writeError(w, fmerr.ErrSessionClosed.WithMessage("scan session %q already terminated", s.ID))
		return
	}
	if h.push == nil {
		writeError(w, fmerr.ErrCaptureNotFound.WithMessage("frame push requires the push capture device"))
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeError(w, fmerr.ErrMalformedRequest.WithMessage("reading frame body: %v", err))
		return
	}
	img, err := decode.ParseFrame(body)
	if err != nil {
		writeError(w, fmerr.ErrMalformedRequest.WithMessage("frame is not a PNG or JPEG image"))
		return
	}
	if err := h.push.Offer(img); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// Events handles GET /v1/scan/events: a server-sent event stream of all
// session signals. The stream ends when the client disconnects.
func (h *ScanHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmerr.ErrInternalError.WithMessage("streaming unsupported"))
		return
	}

	events, stop := h.sessions.Subscribe()
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
			flusher.Flush()
		}
	}
}
