// Package metrics exposes Prometheus instrumentation for the compliance
// engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics holds the engine's collectors.
type Metrics struct {
	DocumentsAnalyzed   *prometheus.CounterVec
	AnalyzeDuration     prometheus.Histogram
	RecordsValidated    prometheus.Counter
	IssuesFound         *prometheus.CounterVec
	DocumentsCorrected  *prometheus.CounterVec
	FixSessions         *prometheus.CounterVec
	FixAttempts         prometheus.Histogram
	CollabFallbacks     *prometheus.CounterVec
	LimiterRejections   prometheus.Counter
	DocumentsInProgress prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DocumentsAnalyzed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "manifestcheck_documents_analyzed_total",
			Help: "Documents analyzed, by structural kind and outcome",
		}, []string{"kind", "outcome"}),
		AnalyzeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "manifestcheck_analyze_duration_seconds",
			Help:    "Duration of document analysis from parse to report",
			Buckets: durationBuckets,
		}),
		RecordsValidated: f.NewCounter(prometheus.CounterOpts{
			Name: "manifestcheck_records_validated_total",
			Help: "Records run through the rule engine",
		}),
		IssuesFound: f.NewCounterVec(prometheus.CounterOpts{
			Name: "manifestcheck_issues_found_total",
			Help: "Compliance issues reported, by severity",
		}, []string{"severity"}),
		DocumentsCorrected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "manifestcheck_documents_corrected_total",
			Help: "Corrected documents generated, by output format",
		}, []string{"format"}),
		FixSessions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "manifestcheck_fix_sessions_total",
			Help: "Fix loop sessions, by terminal state",
		}, []string{"state"}),
		FixAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "manifestcheck_fix_attempts",
			Help:    "Attempts used per fix loop session",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		}),
		CollabFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "manifestcheck_collaborator_fallbacks_total",
			Help: "Times rule-derived output was kept because the collaborator failed",
		}, []string{"operation"}),
		LimiterRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "manifestcheck_limiter_rejections_total",
			Help: "Requests rejected because no processing slot freed up in time",
		}),
		DocumentsInProgress: f.NewGauge(prometheus.GaugeOpts{
			Name: "manifestcheck_documents_in_progress",
			Help: "Documents currently being processed",
		}),
	}
}

// ObserveAnalyze records one analysis. Call with time.Now() at the start.
func (m *Metrics) ObserveAnalyze(start time.Time, kind, outcome string, records int, issues map[string]int) {
	if m == nil {
		return
	}
	m.AnalyzeDuration.Observe(time.Since(start).Seconds())
	m.DocumentsAnalyzed.WithLabelValues(kind, outcome).Inc()
	m.RecordsValidated.Add(float64(records))
	for severity, n := range issues {
		m.IssuesFound.WithLabelValues(severity).Add(float64(n))
	}
}

// ObserveCorrect records a regenerated document.
func (m *Metrics) ObserveCorrect(format string) {
	if m == nil {
		return
	}
	m.DocumentsCorrected.WithLabelValues(format).Inc()
}

// ObserveFix records a finished fix session.
func (m *Metrics) ObserveFix(state string, attempts int, fallback bool) {
	if m == nil {
		return
	}
	m.FixSessions.WithLabelValues(state).Inc()
	m.FixAttempts.Observe(float64(attempts))
	if fallback {
		m.CollabFallbacks.WithLabelValues("fix").Inc()
	}
}

// ObserveNarrativeFallback records a report that kept its rule-derived text.
func (m *Metrics) ObserveNarrativeFallback() {
	if m == nil {
		return
	}
	m.CollabFallbacks.WithLabelValues("narrative").Inc()
}

// IncrementLimiterRejection records a request turned away by the limiter.
func (m *Metrics) IncrementLimiterRejection() {
	if m == nil {
		return
	}
	m.LimiterRejections.Inc()
}

// TrackInProgress increments the in-progress gauge and returns its undo.
func (m *Metrics) TrackInProgress() func() {
	if m == nil {
		return func() {}
	}
	m.DocumentsInProgress.Inc()
	return m.DocumentsInProgress.Dec
}
