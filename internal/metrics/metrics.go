// Package metrics exposes Prometheus instruments for tip validation and reveal gating.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tipgate",
		Name:      "validations_total",
		Help:      "Tip validations by terminal status",
	}, []string{"status"})

	validationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tipgate",
		Name:      "validation_duration_seconds",
		Help:      "Wall time of a full tip validation run",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
	})

	revealDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tipgate",
		Name:      "reveal_decisions_total",
		Help:      "Reveal requests by outcome",
	}, []string{"outcome"})

	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tipgate",
		Name:      "upstream_requests_total",
		Help:      "Outbound hub and ledger requests by service and HTTP status code",
	}, []string{"service", "code"})
)

// ObserveValidation records a finished validation run
func ObserveValidation(status string, seconds float64) {
	validationsTotal.WithLabelValues(status).Inc()
	validationDuration.Observe(seconds)
}

// ObserveRevealDecision records the outcome of a reveal request
func ObserveRevealDecision(outcome string) {
	revealDecisionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records an outbound request. code 0 means a transport failure.
func ObserveUpstream(service string, code int) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	upstreamRequestsTotal.WithLabelValues(service, label).Inc()
}

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}
