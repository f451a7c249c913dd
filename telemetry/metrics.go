// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	CommandsTotal  *prometheus.CounterVec // labels: command, outcome
	EventsTotal    *prometheus.CounterVec // labels: event
	GatewayErrors  *prometheus.CounterVec // labels: op
	WidgetFailures prometheus.Counter

	// Histograms (seconds)
	CommandDuration *prometheus.HistogramVec // labels: command
	SyncDuration    prometheus.Observer

	// Gauges
	ActiveWidgets prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "tmhi_commands_total", Help: "Commands dispatched by outcome"}, []string{"command", "outcome"})
		EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "tmhi_platform_events_total", Help: "Platform events handled by type"}, []string{"event"})
		GatewayErrors = promauto.NewCounterVec(prometheus.CounterOpts{Name: "tmhi_gateway_errors_total", Help: "Database gateway failures by operation"}, []string{"op"})
		WidgetFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "tmhi_widget_update_failures_total", Help: "Clock/timer/stopwatch render pushes that failed"})
		CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "tmhi_command_duration_seconds", Help: "Command handler duration seconds", Buckets: prometheus.DefBuckets}, []string{"command"})
		SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "tmhi_guild_sync_duration_seconds", Help: "Full guild sync duration seconds", Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}})
		ActiveWidgets = promauto.NewGauge(prometheus.GaugeOpts{Name: "tmhi_active_widgets", Help: "Running clocks, timers and stopwatches"})
	})
}

// ObserveCommand counts one dispatched command and records its latency.
func ObserveCommand(command, outcome string, d time.Duration) {
	if CommandsTotal != nil {
		CommandsTotal.WithLabelValues(command, outcome).Inc()
	}
	if CommandDuration != nil {
		CommandDuration.WithLabelValues(command).Observe(d.Seconds())
	}
}

// CountEvent counts one platform event.
func CountEvent(event string) {
	if EventsTotal != nil {
		EventsTotal.WithLabelValues(event).Inc()
	}
}

// CountGatewayError counts a failed gateway operation.
func CountGatewayError(op string) {
	if GatewayErrors != nil {
		GatewayErrors.WithLabelValues(op).Inc()
	}
}

// CountWidgetFailure counts a failed widget update.
func CountWidgetFailure() {
	if WidgetFailures != nil {
		WidgetFailures.Inc()
	}
}

// SetActiveWidgets records the number of running widgets.
func SetActiveWidgets(n int) {
	if ActiveWidgets != nil {
		ActiveWidgets.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context carrying the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
