// Package metrics exposes Prometheus counters for rotation activity,
// served by the daemon's /metrics endpoint.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rotationTotal     *prometheus.CounterVec
	rollbackTotal     *prometheus.CounterVec
	signalTotal       *prometheus.CounterVec
	rotationDuration  *prometheus.HistogramVec
	poolKeysAvailable *prometheus.GaugeVec

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered bool
)

// Init registers all Prometheus metrics. Safe to call more than once.
func Init() {
	metricsOnce.Do(func() {
		rotationTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keystone_rotation_total",
				Help: "Total number of rotation operations",
			},
			[]string{"env", "status"},
		)

		rollbackTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keystone_rollback_total",
				Help: "Total number of rollback operations",
			},
			[]string{"env", "status"},
		)

		signalTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keystone_signal_total",
				Help: "Total number of rotation signals received",
			},
			[]string{"env", "accepted"},
		)

		rotationDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "keystone_rotation_duration_seconds",
				Help:    "Duration of rotation operations in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"env"},
		)

		poolKeysAvailable = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "keystone_pool_keys_available",
				Help: "Number of available keys remaining in a pool",
			},
			[]string{"secret"},
		)

		metricsRegistered = true
	})
}

// RecordRotation records a completed rotation attempt.
func RecordRotation(env string, success bool, durationSeconds float64) {
	if !metricsRegistered {
		return
	}
	rotationTotal.WithLabelValues(env, statusLabel(success)).Inc()
	rotationDuration.WithLabelValues(env).Observe(durationSeconds)
}

// RecordRollback records a completed rollback attempt.
func RecordRollback(env string, success bool) {
	if !metricsRegistered {
		return
	}
	rollbackTotal.WithLabelValues(env, statusLabel(success)).Inc()
}

// RecordSignal records a rotation signal and whether it was accepted
// or rejected by the debounce check.
func RecordSignal(env string, accepted bool) {
	if !metricsRegistered {
		return
	}
	label := "false"
	if accepted {
		label = "true"
	}
	signalTotal.WithLabelValues(env, label).Inc()
}

// SetPoolAvailable records how many keys remain available in a pool.
func SetPoolAvailable(secret string, count int) {
	if !metricsRegistered {
		return
	}
	poolKeysAvailable.WithLabelValues(secret).Set(float64(count))
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Registered reports whether metrics have been initialized.
func Registered() bool {
	return metricsRegistered
}
