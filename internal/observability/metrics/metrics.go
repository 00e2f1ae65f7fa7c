package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/histograms for the turn pipeline.
type EngineMetrics struct {
	eventsTotal   *prometheus.CounterVec
	rupturesTotal prometheus.Counter
	repairsTotal  prometheus.Counter
	loopsTotal    *prometheus.CounterVec
	gateDecisions *prometheus.CounterVec
	turnLatency   *prometheus.HistogramVec
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rapport",
			Subsystem: "engine",
			Name:      "events_applied_total",
			Help:      "Relationship events applied, by sentiment and fallback source",
		}, []string{"sentiment", "fallback"}),
		rupturesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rapport",
			Subsystem: "engine",
			Name:      "ruptures_total",
			Help:      "Relationship ruptures detected",
		}),
		repairsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rapport",
			Subsystem: "engine",
			Name:      "repairs_total",
			Help:      "Relationship repairs applied",
		}),
		loopsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rapport",
			Subsystem: "loops",
			Name:      "transitions_total",
			Help:      "Open-loop activity, by loop type and action (created, merged, surfaced, resolved, dismissed, expired)",
		}, []string{"loop_type", "action"}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rapport",
			Subsystem: "intimacy",
			Name:      "gate_decisions_total",
			Help:      "Intimacy gate outcomes, by bid type and decision",
		}, []string{"bid_type", "decision"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rapport",
			Subsystem: "engine",
			Name:      "turn_latency_seconds",
			Help:      "Latency of full turn processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.rupturesTotal, m.repairsTotal, m.loopsTotal, m.gateDecisions, m.turnLatency)
	return m
}

func (m *EngineMetrics) ObserveEvent(sentiment string, fallback bool) {
	if m == nil {
		return
	}
	label := "false"
	if fallback {
		label = "true"
	}
	m.eventsTotal.WithLabelValues(sentiment, label).Inc()
}

func (m *EngineMetrics) ObserveRupture() {
	if m == nil {
		return
	}
	m.rupturesTotal.Inc()
}

func (m *EngineMetrics) ObserveRepair() {
	if m == nil {
		return
	}
	m.repairsTotal.Inc()
}

func (m *EngineMetrics) ObserveLoop(loopType, action string) {
	if m == nil {
		return
	}
	m.loopsTotal.WithLabelValues(loopType, action).Inc()
}

func (m *EngineMetrics) ObserveGate(bidType string, triggered bool) {
	if m == nil {
		return
	}
	decision := "withheld"
	if triggered {
		decision = "triggered"
	}
	m.gateDecisions.WithLabelValues(bidType, decision).Inc()
}

func (m *EngineMetrics) ObserveTurnLatency(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(outcome).Observe(seconds)
}
