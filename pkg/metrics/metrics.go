// Package metrics defines the Prometheus metric collectors used by the
// knowledge engine and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	SearchesTotal       *prometheus.CounterVec
	SearchLatency       *prometheus.HistogramVec
	SearchResultsCount  prometheus.Histogram
	QuestionsTotal      *prometheus.CounterVec
	EntriesIndexedTotal prometheus.Counter
	EntriesRemovedTotal prometheus.Counter
	IndexTerms          prometheus.Gauge
	IndexEntries        prometheus.Gauge
	IndexRebuildsTotal  *prometheus.CounterVec
	MergesTotal         *prometheus.CounterVec
	MergeEntriesDropped prometheus.Counter
	MergeDuration       prometheus.Histogram
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searches_total",
				Help: "Total search requests by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search request latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"kind"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		QuestionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "questions_total",
				Help: "Total natural-language questions by question type.",
			},
			[]string{"question_type"},
		),
		EntriesIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "entries_indexed_total",
				Help: "Total entries added to the inverted index.",
			},
		),
		EntriesRemovedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "entries_removed_total",
				Help: "Total entries removed from the inverted index.",
			},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Number of distinct terms currently indexed.",
			},
		),
		IndexEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_entries",
				Help: "Number of entries currently indexed.",
			},
		),
		IndexRebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_rebuilds_total",
				Help: "Total index rebuilds by trigger (startup, consistency, manual).",
			},
			[]string{"trigger"},
		),
		MergesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "merges_total",
				Help: "Total merge operations by mode and status.",
			},
			[]string{"mode", "status"},
		),
		MergeEntriesDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "merge_entries_dropped_total",
				Help: "Total entries dropped as duplicates during merges.",
			},
		),
		MergeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "merge_duration_seconds",
				Help:    "Merge execution duration in seconds.",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total search-cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total search-cache misses.",
			},
		),
	}

	prometheus.MustRegister(
		m.SearchesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.QuestionsTotal,
		m.EntriesIndexedTotal,
		m.EntriesRemovedTotal,
		m.IndexTerms,
		m.IndexEntries,
		m.IndexRebuildsTotal,
		m.MergesTotal,
		m.MergeEntriesDropped,
		m.MergeDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
