// Package metrics exposes the service's Prometheus collectors and the
// HTTP instrumentation middleware.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Analysis Prometheus metrics.
var (
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgsentinel",
			Name:      "analyses_total",
			Help:      "Total number of completed image analyses",
		},
		[]string{"verdict"},
	)

	AnalysisFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgsentinel",
			Name:      "analysis_failures_total",
			Help:      "Total number of failed image analyses",
		},
		[]string{"stage"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imgsentinel",
			Name:      "stage_duration_seconds",
			Help:      "Per-stage analysis duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"},
	)

	BatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "imgsentinel",
			Name:      "batch_size",
			Help:      "Number of processed items per batch request",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 40, 50},
		},
	)

	CorpusEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "imgsentinel",
			Name:      "corpus_entries",
			Help:      "Number of reference embeddings loaded in the corpus",
		},
	)
)

func init() {
	prometheus.MustRegister(AnalysesTotal)
	prometheus.MustRegister(AnalysisFailuresTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(BatchSize)
	prometheus.MustRegister(CorpusEntries)
}

// RecordAnalysis counts one completed analysis by verdict.
func RecordAnalysis(verdict string) {
	AnalysesTotal.WithLabelValues(verdict).Inc()
}

// RecordFailure counts one failed analysis by stage.
func RecordFailure(stage string) {
	AnalysisFailuresTotal.WithLabelValues(stage).Inc()
}

// RecordStage observes one stage duration in milliseconds.
func RecordStage(stage string, ms float64) {
	StageDuration.WithLabelValues(stage).Observe(ms / 1000)
}
