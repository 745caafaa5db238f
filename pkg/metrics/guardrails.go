package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// GuardrailMetrics counts guardrail evaluations by operation and outcome.
type GuardrailMetrics struct {
	checks *prometheus.CounterVec
	lines  *prometheus.HistogramVec
}

// NewGuardrailMetrics registers the guardrail metrics on the provided registerer.
func NewGuardrailMetrics(reg prometheus.Registerer) *GuardrailMetrics {
	if reg == nil {
		return &GuardrailMetrics{}
	}
	checks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hera_guardrail_checks_total",
		Help: "Guardrail evaluations partitioned by operation, outcome and reason.",
	}, []string{"operation", "outcome", "reason"})
	lines := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hera_guardrail_payload_lines",
		Help:    "Number of lines in payloads submitted to the guardrails.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
	}, []string{"operation"})
	reg.MustRegister(checks, lines)
	return &GuardrailMetrics{checks: checks, lines: lines}
}

// ObserveAccepted records a payload that passed every guardrail.
func (g *GuardrailMetrics) ObserveAccepted(operation string, lineCount int) {
	if g == nil || g.checks == nil {
		return
	}
	op := normalizeLabel(operation)
	g.checks.WithLabelValues(op, OutcomeAccepted, "").Inc()
	g.lines.WithLabelValues(op).Observe(float64(lineCount))
}

// ObserveRejected records a rejection with its reason code.
func (g *GuardrailMetrics) ObserveRejected(operation, reason string, lineCount int) {
	if g == nil || g.checks == nil {
		return
	}
	op := normalizeLabel(operation)
	g.checks.WithLabelValues(op, OutcomeRejected, normalizeLabel(reason)).Inc()
	g.lines.WithLabelValues(op).Observe(float64(lineCount))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
