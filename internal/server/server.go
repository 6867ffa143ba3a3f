// Package server implements the FieldMark HTTP server and API routes.
package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldmark/fieldmark/internal/auth"
	"github.com/fieldmark/fieldmark/internal/capture"
	"github.com/fieldmark/fieldmark/internal/code"
	"github.com/fieldmark/fieldmark/internal/config"
	"github.com/fieldmark/fieldmark/internal/handlers"
	"github.com/fieldmark/fieldmark/internal/labels"
	"github.com/fieldmark/fieldmark/internal/registry"
	"github.com/fieldmark/fieldmark/internal/scan"
)

// Server is the FieldMark HTTP server. It wires the registry, label
// archive, and scan session manager into the API routes.
type Server struct {
	cfg        *config.Config
	router     chi.Router
	api        huma.API
	store      registry.Store
	labels     labels.Store
	sessions   *scan.Manager
	codes      *handlers.CodesHandler
	locations  *handlers.LocationsHandler
	scans      *handlers.ScanHandler
	httpServer *http.Server
}

// HealthBody is the JSON body returned by the health check endpoint.
type HealthBody struct {
	Status   string `json:"status" example:"ok" doc:"Health status"`
	Registry string `json:"registry" example:"ok" doc:"Registry connectivity"`
}

// HealthOutput is the Huma output struct for the health check endpoint.
type HealthOutput struct {
	Body HealthBody
}

// Options bundles the collaborators the server needs.
type Options struct {
	Store    registry.Store
	Labels   labels.Store
	Sessions *scan.Manager
	// Push is non-nil when the push capture device is configured; the
	// frame-ingest endpoint feeds it.
	Push *capture.PushDevice
}

// New creates a Server with the given configuration and collaborators and
// registers all API routes.
func New(cfg *config.Config, opts Options) *Server {
	router := chi.NewMux()

	humaConfig := huma.DefaultConfig("FieldMark API", "1.0.0")
	humaConfig.DocsPath = "/docs"
	humaConfig.OpenAPIPath = "/openapi"
	api := humachi.New(router, humaConfig)

	minter := code.NewMinter(opts.Store, cfg.Codes.MaxAttempts, cfg.Codes.MaxBatch)
	resolver := code.NewResolver(cfg.Codes.Categories)

	s := &Server{
		cfg:      cfg,
		router:   router,
		api:      api,
		store:    opts.Store,
		labels:   opts.Labels,
		sessions: opts.Sessions,
	}
	s.codes = handlers.NewCodesHandler(minter, resolver, opts.Store, opts.Labels, cfg.Codes.DefaultPrefix, cfg.Labels.Size)
	s.locations = handlers.NewLocationsHandler(opts.Store, minter, opts.Labels, cfg.Codes.DefaultPrefix, cfg.Labels.Size)
	s.scans = handlers.NewScanHandler(opts.Sessions, opts.Push)

	s.registerRoutes()
	return s
}

// Router exposes the route tree, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// registerRoutes configures all routes on the Chi router. Huma serves
// /health, /docs, and /openapi; everything else is plain chi.
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health of the FieldMark server and its registry.",
		Tags:        []string{"System"},
	}, func(ctx context.Context, input *struct{}) (*HealthOutput, error) {
		out := &HealthOutput{Body: HealthBody{Status: "ok", Registry: "ok"}}
		if err := s.store.Ping(ctx); err != nil {
			out.Body.Registry = "unavailable"
		}
		return out, nil
	})

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/codes", s.codes.Mint)
		r.Post("/codes/batch", s.codes.MintBatch)
		r.Get("/codes/{code}", s.codes.GetCode)
		r.Get("/codes/{code}/label", s.codes.GetLabel)
		r.Post("/resolve", s.codes.Resolve)

		r.Post("/locations", s.locations.Create)
		r.Get("/locations", s.locations.List)
		r.Get("/locations/{id}", s.locations.Get)
		r.Delete("/locations/{id}", s.locations.Delete)
		r.Post("/locations/{id}/code", s.locations.RegenerateCode)

		r.Post("/scan/sessions", s.scans.Start)
		r.Get("/scan/sessions/{id}", s.scans.Get)
		r.Delete("/scan/sessions/{id}", s.scans.Cancel)
		r.Post("/scan/sessions/{id}/frames", s.scans.PushFrame)
		r.Get("/scan/events", s.scans.Events)
	})
}

// ListenAndServe starts the HTTP server on the given address.
// Middleware chain: metricsMiddleware -> commonHeaders -> auth -> router.
func (s *Server) ListenAndServe(addr string) error {
	var handler http.Handler = s.router
	handler = auth.Middleware(s.cfg.Auth.Token)(handler)
	handler = commonHeaders(handler)
	handler = metricsMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: handler,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server, waiting for in-flight
// requests to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
