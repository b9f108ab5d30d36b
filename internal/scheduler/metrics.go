package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the rollup scheduler.
type Metrics struct {
	RollupsSucceeded prometheus.Counter
	RollupsFailed    prometheus.Counter
	PassDuration     prometheus.Histogram
	LastPassUsers    prometheus.Gauge
}

// NewMetrics creates and registers scheduler metrics.
// Returns nil if reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		RollupsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "karmika",
			Subsystem: "scheduler",
			Name:      "rollups_succeeded_total",
			Help:      "Total per-user period rollups that succeeded.",
		}),
		RollupsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "karmika",
			Subsystem: "scheduler",
			Name:      "rollups_failed_total",
			Help:      "Total per-user period rollups that failed.",
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "karmika",
			Subsystem: "scheduler",
			Name:      "pass_duration_seconds",
			Help:      "Duration of each full rollup pass.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
		LastPassUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "karmika",
			Subsystem: "scheduler",
			Name:      "last_pass_users",
			Help:      "Users processed by the most recent rollup pass.",
		}),
	}

	reg.MustRegister(
		m.RollupsSucceeded,
		m.RollupsFailed,
		m.PassDuration,
		m.LastPassUsers,
	)

	return m
}
