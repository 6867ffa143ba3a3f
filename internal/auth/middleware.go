// Package auth implements the API-token perimeter check for the FieldMark
// HTTP API.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

// exemptPaths are served without a token: liveness probes, metrics
// scrapers, and the API docs.
var exemptPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
	"/docs":    true,
	"/openapi": true,
}

// Middleware returns an HTTP middleware enforcing a static bearer token on
// API requests. An empty token disables the gate for development setups.
func Middleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeDenied(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeDenied(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(fmerr.ErrAccessDenied.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {
			"code":    fmerr.ErrAccessDenied.Code,
			"message": fmerr.ErrAccessDenied.Message,
		},
	})
}
