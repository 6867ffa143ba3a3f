// Package metrics defines custom Prometheus metrics for FieldMark.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

// HTTP metrics (RED: Rate, Errors, Duration).
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldmark_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency in seconds by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldmark_http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Minting metrics.
var (
	// MintAttemptsTotal counts candidate generations by outcome
	// ("free", "collision").
	MintAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldmark_mint_attempts_total",
			Help: "Mint candidate generations by outcome",
		},
		[]string{"outcome"},
	)

	// MintExhaustedTotal counts mint calls that exhausted the retry budget.
	MintExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fieldmark_mint_exhausted_total",
			Help: "Mint calls that exhausted the attempt budget",
		},
	)
)

// Scan session metrics.
var (
	// ScanSessionsTotal counts scan sessions by terminal outcome
	// ("success", "fatal", "canceled").
	ScanSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldmark_scan_sessions_total",
			Help: "Scan sessions by terminal outcome",
		},
		[]string{"outcome"},
	)

	// ScanSessionsActive is a gauge tracking currently open scan sessions.
	ScanSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fieldmark_scan_sessions_active",
			Help: "Currently open scan sessions",
		},
	)

	// FramesProcessedTotal counts decode attempts by result
	// ("empty", "invalid", "resolved").
	FramesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldmark_frames_processed_total",
			Help: "Decoded frames by result",
		},
		[]string{"result"},
	)

	// ScanDuration observes the lifetime of completed scan sessions.
	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fieldmark_scan_duration_seconds",
			Help:    "Scan session lifetime in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)
)

// Register registers all Prometheus collectors with the default registry.
// This must be called explicitly (typically from main) so that metrics
// registration can be made conditional on configuration. It is safe to call
// multiple times; subsequent calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			MintAttemptsTotal,
			MintExhaustedTotal,
			ScanSessionsTotal,
			ScanSessionsActive,
			FramesProcessedTotal,
			ScanDuration,
		)
		// Initialize common label combinations so the series appear in
		// /metrics output before the first event.
		MintAttemptsTotal.WithLabelValues("free")
		ScanSessionsTotal.WithLabelValues("success")
	})
}

// NormalizePath maps actual request paths to normalized path templates
// suitable for use as Prometheus metric labels. This avoids high-cardinality
// labels from individual codes, locations, and session IDs.
func NormalizePath(path string) string {
	switch path {
	case "/health", "/metrics", "/openapi.json", "/", "":
		if path == "" {
			return "/"
		}
		return path
	}
	if strings.HasPrefix(path, "/docs") {
		return "/docs"
	}

	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(segs) == 0 || segs[0] != "v1" {
		return "/other"
	}
	if len(segs) < 2 {
		return "/v1"
	}

	switch segs[1] {
	case "codes":
		switch {
		case len(segs) == 2:
			return "/v1/codes"
		case len(segs) == 3 && segs[2] == "batch":
			return "/v1/codes/batch"
		case len(segs) == 4 && segs[3] == "label":
			return "/v1/codes/{code}/label"
		default:
			return "/v1/codes/{code}"
		}
	case "locations":
		switch {
		case len(segs) == 2:
			return "/v1/locations"
		case len(segs) == 4 && segs[3] == "code":
			return "/v1/locations/{id}/code"
		default:
			return "/v1/locations/{id}"
		}
	case "resolve":
		return "/v1/resolve"
	case "scan":
		switch {
		case len(segs) == 3 && segs[2] == "events":
			return "/v1/scan/events"
		case len(segs) == 3:
			return "/v1/scan/sessions"
		case len(segs) == 5 && segs[4] == "frames":
			return "/v1/scan/sessions/{id}/frames"
		case len(segs) == 5 && segs[4] == "events":
			return "/v1/scan/sessions/{id}/events"
		default:
			return "/v1/scan/sessions/{id}"
		}
	}
	return "/other"
}
