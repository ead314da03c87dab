package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rosteraccess_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rosteraccess_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	activeGrantsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rosteraccess_active_grants_total",
		Help: "Number of unrevoked access grants.",
	})

	clockEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rosteraccess_clock_events_total",
		Help: "Total accepted clock events by kind.",
	}, []string{"kind"})

	auditDeadletterSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rosteraccess_audit_deadletter_size",
		Help: "Audit entries awaiting reconciliation after failed appends.",
	})
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, activeGrantsTotal,
		clockEventsTotal, auditDeadletterSize)
}

// refreshGrantGauge re-reads the active grant count after a mutation.
func (s *Server) refreshGrantGauge(r *http.Request) {
	if n, err := s.store.CountActiveGrants(r.Context()); err == nil {
		activeGrantsTotal.Set(float64(n))
	}
}

// MetricsHandler returns the Prometheus metrics HTTP handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// metricsMiddleware records request metrics.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rr := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rr, r)

		dur := time.Since(start).Seconds()
		status := strconv.Itoa(rr.statusCode)
		requestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		requestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(dur)

		if rr.statusCode >= 500 {
			log.Error().
				Str("request_id", requestIDFromCtx(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rr.statusCode).
				Msg("request failed")
		}
	})
}
