package metrics

import "github.com/prometheus/client_golang/prometheus"

// Turn outcomes recorded by ObserveTurn.
const (
	OutcomeAnswered         = "answered"
	OutcomeEmergency        = "emergency"
	OutcomePHIBlocked       = "phi_blocked"
	OutcomeInvalid          = "invalid"
	OutcomeGenerationFailed = "generation_failed"
)

// ChatMetrics exposes counters/histograms for the chat pipeline.
type ChatMetrics struct {
	turnsTotal        *prometheus.CounterVec
	phiFindingsTotal  *prometheus.CounterVec
	degradationsTotal *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "baymax",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Chat turns by terminal outcome",
		}, []string{"outcome", "classification"}),
		phiFindingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "baymax",
			Subsystem: "chat",
			Name:      "phi_findings_total",
			Help:      "Redaction tokens emitted per PHI category",
		}, []string{"category"}),
		degradationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "baymax",
			Subsystem: "chat",
			Name:      "degradations_total",
			Help:      "Collaborator failures recovered without surfacing to the user",
		}, []string{"source"}),
		generationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "baymax",
			Subsystem: "chat",
			Name:      "generation_seconds",
			Help:      "Latency of text generation calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"provider", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.phiFindingsTotal, m.degradationsTotal, m.generationLatency)
	return m
}

func (m *ChatMetrics) ObserveTurn(outcome, classification string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome, classification).Inc()
}

func (m *ChatMetrics) ObservePHIFinding(category string) {
	if m == nil {
		return
	}
	m.phiFindingsTotal.WithLabelValues(category).Inc()
}

// ObserveDegradation counts a recovered failure; source is history,
// prescription, audit, compliance or archive.
func (m *ChatMetrics) ObserveDegradation(source string) {
	if m == nil {
		return
	}
	m.degradationsTotal.WithLabelValues(source).Inc()
}

func (m *ChatMetrics) ObserveGeneration(provider string, err error, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.generationLatency.WithLabelValues(provider, status).Observe(seconds)
}
