// Package handlers implements the FieldMark HTTP API operations.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

// maxBodySize caps request bodies. Frame uploads are the largest legitimate
// payload; 8 MiB covers a full-resolution PNG frame.
const maxBodySize = 8 << 20

// errorBody is the JSON error envelope returned by every failed request.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// writeError maps an error to the JSON error envelope. Typed APIErrors keep
// their code and status; anything else is an opaque internal error.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *fmerr.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("internal error", "error", err)
		apiErr = fmerr.ErrInternalError
	}

	var body errorBody
	body.Error.Code = apiErr.Code
	body.Error.Message = apiErr.Message
	writeJSON(w, apiErr.HTTPStatus, &body)
}

// readJSON decodes the request body into v, rejecting unknown fields.
func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmerr.ErrMalformedRequest.WithMessage("malformed request body: %v", err)
	}
	return nil
}

// readBody reads the raw request body up to the size cap.
func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodySize))
}
