// Package metrics exposes prometheus collectors for the chatbot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics groups the service's collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg      *prometheus.Registry
	queries  *prometheus.CounterVec
	matches  prometheus.Histogram
	turns    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	practice *prometheus.CounterVec
	evicted  *prometheus.CounterVec
}

// New registers all collectors. sessions and questions report live gauges.
func New(sessions, questions func() int) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "questionbot",
			Name:      "queries_total",
			Help:      "Retrieval queries by detected intent and outcome.",
		}, []string{"intent", "outcome"}),
		matches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "questionbot",
			Name:      "query_matches",
			Help:      "Records returned per retrieval query.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "questionbot",
			Name:      "interactive_turns_total",
			Help:      "Interactive chat turns by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "questionbot",
			Name:      "upstream_seconds",
			Help:      "Latency of classifier and generator calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"upstream"}),
		practice: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "questionbot",
			Name:      "practice_requests_total",
			Help:      "Practice question generation requests by outcome.",
		}, []string{"outcome"}),
		evicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "questionbot",
			Name:      "sessions_removed_total",
			Help:      "Sessions removed by reason.",
		}, []string{"reason"}),
		reg: reg,
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.queries, m.matches, m.turns, m.latency, m.practice, m.evicted,
	)
	if sessions != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "questionbot",
			Name:      "sessions",
			Help:      "Live interactive sessions.",
		}, func() float64 { return float64(sessions()) }))
	}
	if questions != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "questionbot",
			Name:      "bank_questions",
			Help:      "Records loaded in the question bank.",
		}, func() float64 { return float64(questions()) }))
	}
	return m
}

// RecordQuery counts a retrieval query and the number of records it returned.
func (m *Metrics) RecordQuery(intent, outcome string, matches int) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(intent, outcome).Inc()
	if outcome == OutcomeOK {
		m.matches.Observe(float64(matches))
	}
}

// RecordTurn counts an interactive turn.
func (m *Metrics) RecordTurn(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

// RecordPractice counts a practice generation request.
func (m *Metrics) RecordPractice(outcome string) {
	if m == nil {
		return
	}
	m.practice.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records the latency of a classifier or generator call.
func (m *Metrics) ObserveUpstream(upstream string, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(upstream).Observe(d.Seconds())
}

// RecordEviction counts a removed session. It matches session.Config.OnEvict.
func (m *Metrics) RecordEviction(reason string) {
	if m == nil {
		return
	}
	m.evicted.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
