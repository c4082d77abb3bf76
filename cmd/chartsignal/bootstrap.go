package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"chartsignal/internal/api"
	"chartsignal/internal/interfaces"
	"chartsignal/internal/logger"
	"chartsignal/internal/metrics"
	"chartsignal/internal/predictor/predictorobs"
	"chartsignal/internal/predictor/remote"
	"chartsignal/internal/session"
	"chartsignal/internal/store"

	"github.com/joho/godotenv"
)

// initializeSystem loads .env and initializes the logger
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig loads the config file, falling back to defaults when it does not exist
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info(ctx, "Config file not found, using defaults", "path", path)
		cfg = store.Default()
	case err != nil:
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// initializePredictor builds the remote predictor with observability
func initializePredictor(ctx context.Context, cfg *store.Config) interfaces.Predictor {
	client := api.NewClient(
		api.WithBaseURL(cfg.BaseURL),
		api.WithHeader("Accept", "application/json"),
		api.WithTimeout(cfg.RequestTimeout()),
		api.WithRateLimit(cfg.RequestsPerSecond, 1),
		api.WithLogging(cfg.LogRequests),
	)

	logger.Info(ctx, "Using prediction service", "base_url", cfg.BaseURL, "timeout", cfg.RequestTimeout())

	// Wrap with observability middleware
	return predictorobs.Wrap(remote.New(client))
}

// startMetricsServer exposes /metrics when metrics_addr is configured.
// The returned function shuts the listener down.
func startMetricsServer(ctx context.Context, addr string, m *metrics.Metrics) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info(ctx, "Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "Metrics server stopped", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

// initializeSession wires the predictor, metrics and a state-change logger into a session
func initializeSession(ctx context.Context, cfg *store.Config, predictor interfaces.Predictor, m *metrics.Metrics) *session.Session {
	return session.New(predictor,
		session.WithMetrics(m),
		session.WithTimestampLayout(cfg.TimestampLayout),
		session.WithObserver(func(snap session.Snapshot) {
			name := ""
			if snap.Selection != nil {
				name = snap.Selection.Name
			}
			logger.Debug(ctx, "Session updated",
				"filename", name,
				"status", snap.State.Status.String(),
				"history", len(snap.History),
			)
		}),
	)
}
