// Package server exposes the bot's operational HTTP surface: liveness,
// readiness, a small JSON status document and Prometheus metrics. Requests
// carry a correlation id into their context for consistent logging.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store is the slice of the database gateway the endpoints read.
type Store interface {
	Ping(ctx context.Context) error
	CountGuilds(ctx context.Context) (int, error)
}

// Deps wires the handlers. Only Store is required.
type Deps struct {
	Store Store
	// MigrationVersion reports the schema version; a dirty schema fails
	// readiness.
	MigrationVersion func(ctx context.Context) (version uint, dirty bool, err error)
	// Connected reports whether the chat gateway session is up.
	Connected func() bool
	// ActiveWidgets counts running clock widgets.
	ActiveWidgets func() int
	Version       string
	Started       time.Time
}

// NewRouter returns the HTTP handler with all routes.
func NewRouter(d Deps) http.Handler {
	h := &handlers{deps: d, now: time.Now}
	if h.deps.Started.IsZero() {
		h.deps.Started = h.now()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(correlate)

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Get("/status", h.status)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err), slog.String("component", "http"))
		}
	}()

	slog.Info("http server listening", slog.String("addr", addr), slog.String("component", "http"))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
