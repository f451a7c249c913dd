package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tmhi/discord-bot/telemetry"
)

type handlers struct {
	deps Deps
	now  func() time.Time
}

// StatusResponse is the /status document.
type StatusResponse struct {
	Version       string `json:"version"`
	Guilds        int    `json:"guilds"`
	ActiveWidgets int    `json:"active_widgets"`
	Connected     bool   `json:"connected"`
	Uptime        string `json:"uptime"`
}

// healthz is the liveness probe: the database answers a ping.
func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Store.Ping(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readyz runs each readiness check in order and reports the first failure.
func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"database", h.deps.Store.Ping},
		{"migrations", func(ctx context.Context) error {
			if h.deps.MigrationVersion == nil {
				return nil
			}
			version, dirty, err := h.deps.MigrationVersion(ctx)
			if err != nil {
				return err
			}
			if dirty {
				return fmt.Errorf("schema version %d is dirty", version)
			}
			return nil
		}},
		{"discord", func(context.Context) error {
			if h.deps.Connected != nil && !h.deps.Connected() {
				return errors.New("gateway not connected")
			}
			return nil
		}},
	}

	for _, check := range checks {
		if err := check.fn(ctx); err != nil {
			telemetry.LoggerWithCorr(ctx).Warn("readiness check failed",
				slog.String("check", check.name), slog.Any("err", err), slog.String("component", "http"))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	guilds, err := h.deps.Store.CountGuilds(r.Context())
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("status: count guilds", slog.Any("err", err), slog.String("component", "http"))
		http.Error(w, "status unavailable", http.StatusInternalServerError)
		return
	}
	resp := StatusResponse{
		Version: h.deps.Version,
		Guilds:  guilds,
		Uptime:  h.now().Sub(h.deps.Started).Round(time.Second).String(),
	}
	if h.deps.ActiveWidgets != nil {
		resp.ActiveWidgets = h.deps.ActiveWidgets()
	}
	if h.deps.Connected != nil {
		resp.Connected = h.deps.Connected()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
