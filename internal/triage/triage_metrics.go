package triage

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for triage runs.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	LastRun       prometheus.Gauge
	ItemsTotal    *prometheus.CounterVec
	RunTokensIn   prometheus.Histogram
	RunTokensOut  prometheus.Histogram
	LLMCallsTotal *prometheus.CounterVec
	LLMTokensIn   *prometheus.CounterVec
	LLMTokensOut  *prometheus.CounterVec
	LLMDuration   *prometheus.HistogramVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghtriage_runs_total",
			Help: "Total triage runs by final status.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ghtriage_run_duration_seconds",
			Help:    "Duration of triage runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s .. ~34m
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ghtriage_last_run_timestamp_seconds",
			Help: "Unix time the last triage run finished.",
		}),
		ItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghtriage_items_total",
			Help: "Notification threads processed by decided action and outcome.",
		}, []string{"action", "outcome"}),
		RunTokensIn: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ghtriage_run_tokens_input",
			Help:    "Evaluator input tokens consumed per run.",
			Buckets: prometheus.ExponentialBuckets(100, 2, 14), // 100 .. ~819200
		}),
		RunTokensOut: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ghtriage_run_tokens_output",
			Help:    "Evaluator output tokens consumed per run.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 14),
		}),
		LLMCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghtriage_llm_calls_total",
			Help: "Total LLM provider calls by purpose.",
		}, []string{"purpose"}),
		LLMTokensIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghtriage_llm_tokens_input_total",
			Help: "Total LLM input tokens consumed by purpose.",
		}, []string{"purpose"}),
		LLMTokensOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghtriage_llm_tokens_output_total",
			Help: "Total LLM output tokens consumed by purpose.",
		}, []string{"purpose"}),
		LLMDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ghtriage_llm_call_duration_seconds",
			Help:    "Duration of individual LLM calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s .. ~32s
		}, []string{"purpose"}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.LastRun,
		m.ItemsTotal,
		m.RunTokensIn,
		m.RunTokensOut,
		m.LLMCallsTotal,
		m.LLMTokensIn,
		m.LLMTokensOut,
		m.LLMDuration,
	)

	return m
}

// Hooks returns Hooks that update the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnLLMCall: func(purpose string, inputTokens, outputTokens int, duration float64) {
			m.LLMCallsTotal.WithLabelValues(purpose).Inc()
			m.LLMTokensIn.WithLabelValues(purpose).Add(float64(inputTokens))
			m.LLMTokensOut.WithLabelValues(purpose).Add(float64(outputTokens))
			m.LLMDuration.WithLabelValues(purpose).Observe(duration)
		},
		OnItem: func(action Action, outcome Outcome) {
			m.ItemsTotal.WithLabelValues(action.String(), string(outcome)).Inc()
		},
		OnComplete: func(r *Report, status string) {
			m.RunsTotal.WithLabelValues(status).Inc()
			m.RunDuration.Observe(r.Duration.Seconds())
			m.RunTokensIn.Observe(float64(r.Usage.InputTokens))
			m.RunTokensOut.Observe(float64(r.Usage.OutputTokens))
			m.LastRun.SetToCurrentTime()
		},
	}
}
