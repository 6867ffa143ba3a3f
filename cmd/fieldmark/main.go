// Package main is the entry point for the FieldMark identifier and scan
// service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fieldmark/fieldmark/internal/capture"
	"github.com/fieldmark/fieldmark/internal/code"
	"github.com/fieldmark/fieldmark/internal/config"
	"github.com/fieldmark/fieldmark/internal/decode"
	"github.com/fieldmark/fieldmark/internal/labels"
	"github.com/fieldmark/fieldmark/internal/logging"
	"github.com/fieldmark/fieldmark/internal/metrics"
	"github.com/fieldmark/fieldmark/internal/registry"
	"github.com/fieldmark/fieldmark/internal/scan"
	"github.com/fieldmark/fieldmark/internal/server"
)

func main() {
	configPath := flag.String("config", "fieldmark.yaml", "path to configuration file")
	port := flag.Int("port", 0, "override listening port (default: from config or 8420)")
	host := flag.String("host", "", "override listening host (default: from config or 0.0.0.0)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (default: from config or info)")
	logFormat := flag.String("log-format", "", "log format: text, json (default: from config or text)")
	shutdownTimeout := flag.Int("shutdown-timeout", 0, "graceful shutdown timeout in seconds (default: from config or 30)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Command-line flags override config file values.
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	if *shutdownTimeout != 0 {
		cfg.Server.ShutdownTimeout = *shutdownTimeout
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	metrics.Register()

	ctx := context.Background()

	// Registry backend. The SQLite default needs its parent directory.
	if cfg.Registry.Engine == "" || cfg.Registry.Engine == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Registry.SQLite.Path), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create registry directory: %v\n", err)
			os.Exit(1)
		}
	}
	store, err := registry.NewStore(ctx, &cfg.Registry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize registry: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("registry initialized", "engine", cfg.Registry.Engine)

	labelStore, err := labels.NewStore(ctx, &cfg.Labels)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize label archive: %v\n", err)
		os.Exit(1)
	}
	defer labelStore.Close()
	slog.Info("label archive initialized", "backend", cfg.Labels.Backend)

	device, err := capture.NewDevice(&cfg.Scan)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize capture device: %v\n", err)
		os.Exit(1)
	}
	push, _ := device.(*capture.PushDevice)

	sessions := scan.NewManager(
		capture.NewManager(device),
		decode.NewQRDecoder(),
		code.NewResolver(cfg.Codes.Categories),
		store,
		&cfg.Scan,
	)
	defer sessions.Close()
	slog.Info("scan sessions ready", "device", device.Name(), "frame_rate", cfg.Scan.FrameRate)

	srv := server.New(cfg, server.Options{
		Store:    store,
		Labels:   labelStore,
		Sessions: sessions,
		Push:     push,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("FieldMark listening", "addr", addr)
		if err := srv.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		slog.Info("server stopped")

	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}
}
