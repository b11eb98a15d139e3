// Package metrics exposes Prometheus collectors for the bot pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts handled handle lookups by outcome
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "namebot_requests_total",
		Help: "Total handle lookups by outcome",
	}, []string{"outcome"})

	// admissionTotal counts admission decisions by backend and result
	admissionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "namebot_admission_total",
		Help: "Admission control decisions by backend and result",
	}, []string{"backend", "result"})

	// scannerFailures counts absorbed scanner failures
	scannerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "namebot_scanner_failures_total",
		Help: "Scanner lookups that failed and degraded to empty evidence",
	}, []string{"scanner", "kind"})

	// upstreamDuration tracks X API call latency
	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "namebot_upstream_request_duration_seconds",
		Help:    "X API request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	}, []string{"operation", "result"})

	// evidenceHandles tracks the number of distinct previous handles per estimate
	evidenceHandles = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "namebot_evidence_handles",
		Help:    "Distinct previous handles found per estimate",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})
)

// ObserveRequest records the outcome of one handle lookup.
func ObserveRequest(outcome string) {
	requestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAdmission records one admission decision.
func ObserveAdmission(backend string, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	admissionTotal.WithLabelValues(backend, result).Inc()
}

// ObserveScannerFailure records a scanner failure absorbed into empty evidence.
func ObserveScannerFailure(scanner, kind string) {
	scannerFailures.WithLabelValues(scanner, kind).Inc()
}

// ObserveUpstream records the latency of one X API call.
func ObserveUpstream(operation, result string, elapsed time.Duration) {
	upstreamDuration.WithLabelValues(operation, result).Observe(elapsed.Seconds())
}

// ObserveEvidence records the number of distinct previous handles in an estimate.
func ObserveEvidence(handles int) {
	evidenceHandles.Observe(float64(handles))
}
