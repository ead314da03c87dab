package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rosteraccess_evaluations_total",
		Help: "Total number of access evaluations by trigger.",
	}, []string{"trigger"})

	grantsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rosteraccess_grants_created_total",
		Help: "Total number of access grants created.",
	})

	grantsRevokedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rosteraccess_grants_revoked_total",
		Help: "Total number of access grants revoked.",
	})

	sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rosteraccess_sweep_duration_seconds",
		Help:    "Duration of periodic boundary sweeps.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(evaluationsTotal, grantsCreatedTotal, grantsRevokedTotal, sweepDuration)
}
