package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func gatedHandler(token string) http.Handler {
	return Middleware(token)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestMiddleware(t *testing.T) {
	h := gatedHandler("sekrit")

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"valid token", "/v1/locations", "Bearer sekrit", http.StatusOK},
		{"missing token", "/v1/locations", "", http.StatusForbidden},
		{"wrong token", "/v1/locations", "Bearer nope", http.StatusForbidden},
		{"health exempt", "/health", "", http.StatusOK},
		{"metrics exempt", "/metrics", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	h := gatedHandler("")
	req := httptest.NewRequest(http.MethodGet, "/v1/locations", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status with empty token = %d, want 200", rec.Code)
	}
}
