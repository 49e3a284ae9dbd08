package authz

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	decisions *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	loads     prometheus.Counter
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authz",
			Name:      "decisions_total",
			Help:      "Total number of authorization decisions by mode and result.",
		}, []string{"mode", "result"}),
		latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "authz",
			Name:      "latency_seconds",
			Help:      "Latency distribution for authorization decisions.",
			Buckets: []float64{
				0.0005, 0.001, 0.002, 0.005,
				0.01, 0.02, 0.05, 0.1,
				0.2, 0.5, 1, 2,
			},
		}, []string{"mode", "result"}),
		loads: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "authz",
			Name:      "tenant_policy_loads_total",
			Help:      "Number of tenant policy loads into the enforcer.",
		}),
	}
})

func recordDecision(mode Mode, allowed bool, latency time.Duration) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m := metricsSingleton()
	m.decisions.WithLabelValues(string(mode), result).Inc()
	m.latency.WithLabelValues(string(mode), result).Observe(latency.Seconds())
}
