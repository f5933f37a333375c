// Command kgsearchd is the main entry point for the kgsearchd search server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/terraphim/kgsearchd/internal/config"
	"github.com/terraphim/kgsearchd/internal/health"
	"github.com/terraphim/kgsearchd/internal/httpapi"
	"github.com/terraphim/kgsearchd/internal/middleware"
	"github.com/terraphim/kgsearchd/internal/observe"
	"github.com/terraphim/kgsearchd/internal/persistence"
	"github.com/terraphim/kgsearchd/internal/search"
	"github.com/terraphim/kgsearchd/pkg/llmhook"
)

// Exit codes per spec.md §6.
const (
	exitSuccess      = 0
	exitUsage        = 2
	exitIndexMissing = 3
	exitNetwork      = 6
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	verbose := flag.Bool("verbose", false, "enable debug-level logging regardless of server.log_level")
	flag.Parse()

	// ── Config state (hot-reloaded) ──────────────────────────────────────
	reg := config.NewRegistry()
	reg.RegisterSummarizer("openai", llmhook.NewFactory())

	state, err := config.NewState(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "kgsearchd: config file %q not found\n", *configPath)
			return exitIndexMissing
		}
		fmt.Fprintf(os.Stderr, "kgsearchd: %v\n", err)
		return exitUsage
	}
	defer state.Stop()

	cfg := state.Current()

	// ── Logger ─────────────────────────────────────────────────────────────
	logLevel := cfg.Server.LogLevel
	if *verbose {
		logLevel = config.LogDebug
	}
	logger := newLogger(logLevel)
	slog.SetDefault(logger)

	slog.Info("kgsearchd starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", logLevel,
		"roles", len(cfg.Roles),
	)

	// ── Observability ────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "kgsearchd"})
	if err != nil {
		slog.Error("failed to initialise tracing", "err", err)
		return exitNetwork
	}
	defer shutdownTracing(context.Background())

	metrics, err := observe.NewMetrics()
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return exitNetwork
	}

	// ── Summarizer (optional) ────────────────────────────────────────────
	summarizer, err := reg.CreateSummarizer(cfg.Summarizer)
	if err != nil && !errors.Is(err, config.ErrProviderNotRegistered) {
		slog.Error("failed to create summarizer", "err", err)
		return exitUsage
	}
	if summarizer != nil {
		slog.Info("summarizer hook enabled", "provider", cfg.Summarizer.Provider, "model", cfg.Summarizer.Model)
	}

	// ── Persistence ───────────────────────────────────────────────────────
	store, err := newStore(ctx, cfg.Persistence)
	if err != nil {
		slog.Error("failed to initialise persistence", "err", err)
		return exitNetwork
	}
	defer store.Close()
	state.SetStore(store)

	// ── Search pipeline ───────────────────────────────────────────────────
	dispatcher := middleware.NewDispatcher()
	pipeline := search.New(state, dispatcher, summarizer, metrics)

	// ── HTTP server ───────────────────────────────────────────────────────
	mux := http.NewServeMux()
	httpapi.New(pipeline, state).Register(mux)
	health.New().Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8000"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: observe.Middleware(metrics)(mux),
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	slog.Info("server ready — press Ctrl+C to shut down")

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping…")
	case err := <-serverErr:
		slog.Error("server error", "err", err)
		return exitNetwork
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return exitNetwork
	}
	slog.Info("goodbye")
	return exitSuccess
}

// newStore builds the tiered persistence store from cfg: an in-memory
// profile is always present, with filesystem, bbolt, and S3 profiles added
// when their settings are non-empty.
func newStore(ctx context.Context, cfg config.PersistenceConfig) (*persistence.Store, error) {
	store := persistence.NewStore()
	store.AddProfile("memory", persistence.NewMemoryBackend())

	if cfg.FSDir != "" {
		backend, err := persistence.NewFSBackend(cfg.FSDir)
		if err != nil {
			return nil, fmt.Errorf("fs backend: %w", err)
		}
		store.AddProfile("fs", backend)
	}

	if cfg.BoltPath != "" {
		backend, err := persistence.NewBoltBackend(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("bolt backend: %w", err)
		}
		store.AddProfile("bolt", backend)
	}

	if cfg.S3.Bucket != "" {
		backend, err := persistence.NewS3Backend(ctx, persistence.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKey,
			SecretAccessKey: cfg.S3.SecretKey,
			Bucket:          cfg.S3.Bucket,
			UseSSL:          cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 backend: %w", err)
		}
		store.AddProfile("s3", backend)
	}

	store.RefreshRanking(ctx, 2*time.Second)
	return store, nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
