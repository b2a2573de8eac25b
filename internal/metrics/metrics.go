// Package metrics exposes Prometheus instrumentation and the
// operational HTTP endpoint serving /metrics and /healthz.
package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// HTTPRequestsTotal counts API requests by route, method and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aksjeradar_http_requests_total",
		Help: "Total HTTP requests processed, by route, method and status code.",
	}, []string{"route", "method", "status"})

	// HTTPRequestDuration observes request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aksjeradar_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// PollCyclesTotal counts quote poller cycles by outcome.
	PollCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aksjeradar_poll_cycles_total",
		Help: "Quote poller cycles, by outcome (live, synthetic, error).",
	}, []string{"outcome"})

	// ProviderFailuresTotal counts failed provider fetch cycles, after
	// retries and the circuit breaker have given up.
	ProviderFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aksjeradar_provider_failures_total",
		Help: "Quote provider fetch cycles that failed.",
	})

	// FallbackActivationsTotal counts poll cycles served from synthetic
	// quotes because the provider was unavailable.
	FallbackActivationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aksjeradar_fallback_activations_total",
		Help: "Poll cycles that fell back to synthetic quotes.",
	})

	// QuotesServedTotal counts quotes served to clients by source.
	QuotesServedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aksjeradar_quotes_served_total",
		Help: "Quotes served, by source label.",
	}, []string{"source"})

	// RateLimitRejectionsTotal counts requests rejected by rate limiting.
	RateLimitRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aksjeradar_rate_limit_rejections_total",
		Help: "Requests rejected by rate limiting, by reason (rps, quota).",
	}, []string{"reason"})

	// WSClientsConnected gauges currently connected realtime clients.
	WSClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aksjeradar_ws_clients_connected",
		Help: "Currently connected WebSocket clients.",
	})

	// AlertsTriggeredTotal counts triggered price alerts.
	AlertsTriggeredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aksjeradar_alerts_triggered_total",
		Help: "Price alerts that have fired.",
	})

	// WebhookEventsTotal counts billing webhook events by kind and result.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aksjeradar_webhook_events_total",
		Help: "Billing webhook events, by kind and result (processed, duplicate, rejected).",
	}, []string{"kind", "result"})
)

// HealthChecker reports whether a backend dependency is reachable.
type HealthChecker func(ctx context.Context) error

// Server serves /metrics and /healthz on a dedicated port, separate
// from the API listener.
type Server struct {
	srv      *http.Server
	logger   *zap.Logger
	checkers map[string]HealthChecker
}

// NewServer creates the metrics server. Checkers are probed by
// /healthz; a failing checker turns the response into 503.
func NewServer(port string, logger *zap.Logger, checkers map[string]HealthChecker) *Server {
	s := &Server{
		logger:   logger,
		checkers: checkers,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealth)

	s.srv = &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checkers))
	for name, check := range s.checkers {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			results[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"status": http.StatusText(status),
		"checks": results,
	})
}

// Start runs the listener until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("metrics server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
