package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestGuardrailMetricsPartitionsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGuardrailMetrics(reg)
	m.ObserveAccepted("transactions.create", 4)
	m.ObserveRejected("transactions.create", "GL_NOT_BALANCED", 2)
	m.ObserveRejected("transactions.create", "GL_NOT_BALANCED", 2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "hera_guardrail_checks_total", "outcome", OutcomeAccepted); err != nil {
		t.Fatalf("fetch accepted: %v", err)
	} else if got != 1 {
		t.Fatalf("expected accepted=1, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "hera_guardrail_checks_total", "reason", "GL_NOT_BALANCED"); err != nil {
		t.Fatalf("fetch rejected: %v", err)
	} else if got != 2 {
		t.Fatalf("expected rejected=2, got %f", got)
	}
	if got, err := fetchHistogramSum(mfs, "hera_guardrail_payload_lines", "operation", "transactions.create"); err != nil {
		t.Fatalf("fetch lines: %v", err)
	} else if got != 8 {
		t.Fatalf("expected line sum 8, got %f", got)
	}
}

func TestOutboxMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	event := "transaction_posted"
	m.ObserveDuration(event, 250*time.Millisecond)
	m.IncPublished(event)
	m.IncFailed(event)
	m.IncDeadLettered(event, "max_attempts")
	m.ObserveBatch(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	for _, name := range []string{"hera_outbox_published_total", "hera_outbox_failed_total", "hera_outbox_dead_lettered_total"} {
		if got, err := fetchCounterValue(mfs, name, "event_type", event); err != nil {
			t.Fatalf("fetch %s: %v", name, err)
		} else if got != 1 {
			t.Fatalf("expected %s=1, got %f", name, got)
		}
	}

	if got, err := fetchHistogramSum(mfs, "hera_outbox_publish_duration_seconds", "event_type", event); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var g *GuardrailMetrics
	g.ObserveAccepted("op", 1)
	g.ObserveRejected("op", "reason", 1)

	o := NewOutboxMetrics(nil)
	o.IncPublished("x")
	o.ObserveBatch(1)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
