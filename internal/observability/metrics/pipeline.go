package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics covers the judging funnel: per-stage verdicts, latency,
// token usage, run outcomes, and trace persistence health. All methods are
// nil-safe so wiring metrics stays optional in tests.
type PipelineMetrics struct {
	registry *prometheus.Registry

	stageVerdicts      *prometheus.CounterVec
	stageErrors        *prometheus.CounterVec
	stageLatency       *prometheus.HistogramVec
	stageTokens        *prometheus.CounterVec
	runsTotal          *prometheus.CounterVec
	articlesInFlight   prometheus.Gauge
	traceWriteFailures prometheus.Counter
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	stageVerdicts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "curator",
			Subsystem: "pipeline",
			Name:      "stage_verdicts_total",
			Help:      "Total stage verdicts by stage and decision.",
		},
		[]string{"service", "stage", "decision"},
	)
	stageErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "curator",
			Subsystem: "pipeline",
			Name:      "stage_errors_total",
			Help:      "Total stage evaluations that failed after retries.",
		},
		[]string{"service", "stage"},
	)
	stageLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "curator",
			Subsystem: "pipeline",
			Name:      "stage_latency_seconds",
			Help:      "Judge stage evaluation latency in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"service", "stage"},
	)
	stageTokens := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "curator",
			Subsystem: "pipeline",
			Name:      "stage_tokens_total",
			Help:      "Token usage of judge stages by direction.",
		},
		[]string{"service", "stage", "direction"},
	)
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "curator",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total finalized pipeline runs by status.",
		},
		[]string{"service", "status"},
	)
	articlesInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "curator",
			Subsystem: "pipeline",
			Name:      "articles_in_flight",
			Help:      "Number of articles currently being judged.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	traceWriteFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "curator",
			Subsystem: "pipeline",
			Name:      "trace_write_failures_total",
			Help:      "Total trace inserts dropped after retry.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		stageVerdicts,
		stageErrors,
		stageLatency,
		stageTokens,
		runsTotal,
		articlesInFlight,
		traceWriteFailures,
	)

	return &PipelineMetrics{
		registry:           registry,
		stageVerdicts:      stageVerdicts,
		stageErrors:        stageErrors,
		stageLatency:       stageLatency,
		stageTokens:        stageTokens,
		runsTotal:          runsTotal,
		articlesInFlight:   articlesInFlight,
		traceWriteFailures: traceWriteFailures,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) ObserveVerdict(service, stage, decision string, latencyMS int64, tokensIn, tokensOut int) {
	if m == nil {
		return
	}
	m.stageVerdicts.WithLabelValues(service, stage, decision).Inc()
	m.stageLatency.WithLabelValues(service, stage).Observe(float64(latencyMS) / 1000)
	if tokensIn > 0 {
		m.stageTokens.WithLabelValues(service, stage, "in").Add(float64(tokensIn))
	}
	if tokensOut > 0 {
		m.stageTokens.WithLabelValues(service, stage, "out").Add(float64(tokensOut))
	}
}

func (m *PipelineMetrics) ObserveStageError(service, stage string) {
	if m == nil {
		return
	}
	m.stageErrors.WithLabelValues(service, stage).Inc()
}

func (m *PipelineMetrics) ObserveRun(service, status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(service, status).Inc()
}

func (m *PipelineMetrics) ArticleStarted() {
	if m == nil {
		return
	}
	m.articlesInFlight.Inc()
}

func (m *PipelineMetrics) ArticleFinished() {
	if m == nil {
		return
	}
	m.articlesInFlight.Dec()
}

func (m *PipelineMetrics) TraceWriteFailed() {
	if m == nil {
		return
	}
	m.traceWriteFailures.Inc()
}
