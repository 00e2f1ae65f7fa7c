package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestEngineMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEngineMetrics(reg)

	m.ObserveEvent("positive", false)
	m.ObserveEvent("positive", false)
	m.ObserveEvent("negative", true)
	m.ObserveRupture()
	m.ObserveRepair()
	m.ObserveLoop("pending_event", "created")
	m.ObserveLoop("pending_event", "surfaced")
	m.ObserveGate("play", true)
	m.ObserveGate("comfort", false)
	m.ObserveTurnLatency("ok", 0.12)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	byName := map[string]*dto.MetricFamily{}
	for _, fam := range families {
		byName[fam.GetName()] = fam
	}

	events := byName["rapport_engine_events_applied_total"]
	if events == nil {
		t.Fatal("events counter not registered")
	}
	var positives float64
	for _, metric := range events.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "sentiment" && label.GetValue() == "positive" {
				positives = metric.GetCounter().GetValue()
			}
		}
	}
	if positives != 2 {
		t.Errorf("positive events = %v, want 2", positives)
	}

	ruptures := byName["rapport_engine_ruptures_total"]
	if ruptures == nil || ruptures.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Error("expected exactly one rupture recorded")
	}

	if byName["rapport_intimacy_gate_decisions_total"] == nil {
		t.Error("gate decisions counter not registered")
	}
	if byName["rapport_engine_turn_latency_seconds"] == nil {
		t.Error("turn latency histogram not registered")
	}
}

func TestEngineMetricsNilSafe(t *testing.T) {
	var m *EngineMetrics
	m.ObserveEvent("positive", false)
	m.ObserveRupture()
	m.ObserveRepair()
	m.ObserveLoop("curiosity_thread", "merged")
	m.ObserveGate("neutral", false)
	m.ObserveTurnLatency("error", 0.5)
}
