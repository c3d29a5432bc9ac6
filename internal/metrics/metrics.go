// Package metrics exports counters about optimizer decisions to Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "parfor"
	subsystem = "optimizer"
)

// Metrics are the counters maintained by the optimizer. A nil *Metrics discards every update.
type Metrics struct {
	Rewrites   *prometheus.CounterVec
	Placements *prometheus.CounterVec
	Downgrades *prometheus.CounterVec
}

// New creates a set of unregistered optimizer counters
func New() *Metrics {
	return &Metrics{
		Rewrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rewrites_total",
			Help:      "Number of rewrites evaluated, by rewrite.",
		}, []string{"rewrite"}),
		Placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "placements_total",
			Help:      "Number of parfor loops placed, by placement.",
		}, []string{"placement"}),
		Downgrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "downgrades_total",
			Help:      "Number of parfor loops rewritten to sequential loops, by reason.",
		}, []string{"reason"}),
	}
}

// Register registers all counters with reg
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Rewrites, m.Placements, m.Downgrades} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RewriteEvaluated counts one evaluation of the named rewrite
func (m *Metrics) RewriteEvaluated(rewrite string) {
	if m == nil {
		return
	}
	m.Rewrites.WithLabelValues(rewrite).Inc()
}

// LoopPlaced counts one parfor loop placed at placement
func (m *Metrics) LoopPlaced(placement string) {
	if m == nil {
		return
	}
	m.Placements.WithLabelValues(placement).Inc()
}

// LoopsDowngraded counts n parfor loops rewritten to sequential loops for reason
func (m *Metrics) LoopsDowngraded(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Downgrades.WithLabelValues(reason).Add(float64(n))
}
