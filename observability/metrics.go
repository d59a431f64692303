// Package observability bundles the Prometheus collectors shared by the
// vault sync daemon.
package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultdMetrics wraps collectors tracking ledger sync health.
type VaultdMetrics struct {
	fetches      *prometheus.CounterVec
	submissions  *prometheus.CounterVec
	confirmation *prometheus.HistogramVec
	refreshGen   prometheus.Gauge
	pending      prometheus.Gauge
}

var (
	vaultdOnce     sync.Once
	vaultdRegistry *VaultdMetrics
)

// Vaultd returns the lazily-initialised metrics registry for vaultd.
func Vaultd() *VaultdMetrics {
	vaultdOnce.Do(func() {
		vaultdRegistry = &VaultdMetrics{
			fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sonicrush",
				Subsystem: "vaultd",
				Name:      "fetches_total",
				Help:      "Count of ledger reads segmented by query and outcome.",
			}, []string{"query", "outcome"}),
			submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sonicrush",
				Subsystem: "vaultd",
				Name:      "submissions_total",
				Help:      "Count of submitted requests segmented by kind and outcome.",
			}, []string{"kind", "outcome"}),
			confirmation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "sonicrush",
				Subsystem: "vaultd",
				Name:      "confirmation_latency_seconds",
				Help:      "Time between submission and terminal confirmation outcome.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"kind"}),
			refreshGen: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "sonicrush",
				Subsystem: "vaultd",
				Name:      "refresh_generation",
				Help:      "Current value of the coordinated refresh generation counter.",
			}),
			pending: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "sonicrush",
				Subsystem: "vaultd",
				Name:      "pending_requests",
				Help:      "Number of requests awaiting a terminal confirmation outcome.",
			}),
		}
		prometheus.MustRegister(
			vaultdRegistry.fetches,
			vaultdRegistry.submissions,
			vaultdRegistry.confirmation,
			vaultdRegistry.refreshGen,
			vaultdRegistry.pending,
		)
	})
	return vaultdRegistry
}

// RecordFetch counts a ledger read for the given query name.
func (m *VaultdMetrics) RecordFetch(query string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.fetches.WithLabelValues(labelName(query), outcome).Inc()
}

// RecordSubmission counts a submitted request. Outcome should be one of
// "dispatched", "rejected", "confirmed", or "failed".
func (m *VaultdMetrics) RecordSubmission(kind, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(labelName(kind), labelName(outcome)).Inc()
}

// ObserveConfirmation records the submission-to-finality latency for a kind.
func (m *VaultdMetrics) ObserveConfirmation(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.confirmation.WithLabelValues(labelName(kind)).Observe(d.Seconds())
}

// SetRefreshGeneration mirrors the refresh coordinator's counter.
func (m *VaultdMetrics) SetRefreshGeneration(gen uint64) {
	if m == nil {
		return
	}
	m.refreshGen.Set(float64(gen))
}

// SetPending mirrors the number of in-flight requests.
func (m *VaultdMetrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

func labelName(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return strings.ToLower(trimmed)
}
