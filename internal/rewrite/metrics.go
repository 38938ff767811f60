package rewrite

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the driver's Prometheus collectors.
type Metrics struct {
	Passes  prometheus.Counter
	Firings *prometheus.CounterVec
	Runs    *prometheus.CounterVec
}

// NewMetrics creates the driver collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xqopt",
			Subsystem: "rewrite",
			Name:      "passes_total",
			Help:      "Total number of rewrite passes run.",
		}),
		Firings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xqopt",
			Subsystem: "rewrite",
			Name:      "rule_firings_total",
			Help:      "Total number of rule hooks that changed a plan.",
		}, []string{"rule"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xqopt",
			Subsystem: "rewrite",
			Name:      "runs_total",
			Help:      "Total number of driver runs by outcome.",
		}, []string{"outcome"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Passes, m.Firings, m.Runs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) pass() {
	if m != nil {
		m.Passes.Inc()
	}
}

func (m *Metrics) firing(rule string) {
	if m != nil {
		m.Firings.WithLabelValues(rule).Inc()
	}
}

func (m *Metrics) run(state State) {
	if m != nil {
		m.Runs.WithLabelValues(string(state)).Inc()
	}
}
