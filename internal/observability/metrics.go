// Package observability provides the Prometheus metrics collectors for the
// search pipeline and the concept store.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Search   *SearchMetrics
	Ontology *OntologyMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	searchMetrics, err := NewSearchMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create search metrics: %w", err)
	}

	ontologyMetrics, err := NewOntologyMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create ontology metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Search:   searchMetrics,
		Ontology: ontologyMetrics,
	}, nil
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SearchMetrics contains Prometheus metrics for the search pipeline.
type SearchMetrics struct {
	searchesTotal    *prometheus.CounterVec
	searchDuration   prometheus.Histogram
	expansionSize    prometheus.Histogram
	termSearchErrors prometheus.Counter
	boostedHits      prometheus.Counter
}

// NewSearchMetrics creates search pipeline metrics registered on registry.
func NewSearchMetrics(registry *prometheus.Registry) (*SearchMetrics, error) {
	m := &SearchMetrics{
		searchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "semquery_searches_total",
			Help: "Total number of search requests by status",
		}, []string{"status"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "semquery_search_duration_seconds",
			Help:    "End-to-end search request duration",
			Buckets: prometheus.DefBuckets,
		}),
		expansionSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "semquery_expansion_set_size",
			Help:    "Number of terms in the query expansion set",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}),
		termSearchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "semquery_term_search_errors_total",
			Help: "Total number of failed expansion-term searches",
		}),
		boostedHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "semquery_boosted_hits_total",
			Help: "Total number of fused hits that received the expansion boost",
		}),
	}

	collectors := []prometheus.Collector{
		m.searchesTotal, m.searchDuration, m.expansionSize, m.termSearchErrors, m.boostedHits,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordSearch counts one completed search request with its outcome.
func (m *SearchMetrics) RecordSearch(status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.searchesTotal.WithLabelValues(status).Inc()
	m.searchDuration.Observe(durationSeconds)
}

// RecordExpansion observes the expansion-set size of one request.
func (m *SearchMetrics) RecordExpansion(terms int) {
	if m == nil {
		return
	}
	m.expansionSize.Observe(float64(terms))
}

// RecordTermError counts one failed expansion-term search.
func (m *SearchMetrics) RecordTermError() {
	if m == nil {
		return
	}
	m.termSearchErrors.Inc()
}

// RecordBoostedHits counts hits that received the expansion boost.
func (m *SearchMetrics) RecordBoostedHits(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.boostedHits.Add(float64(count))
}

// OntologyMetrics contains Prometheus metrics for concept store operations.
type OntologyMetrics struct {
	storeOperations    *prometheus.CounterVec
	auditWriteFailures prometheus.Counter
	conceptCount       prometheus.Gauge
}

// NewOntologyMetrics creates concept store metrics registered on registry.
func NewOntologyMetrics(registry *prometheus.Registry) (*OntologyMetrics, error) {
	m := &OntologyMetrics{
		storeOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "semquery_store_operations_total",
			Help: "Total number of concept store operations by operation and status",
		}, []string{"operation", "status"}),
		auditWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "semquery_audit_write_failures_total",
			Help: "Total number of swallowed audit write failures",
		}),
		conceptCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "semquery_concepts",
			Help: "Number of concepts in the working copy",
		}),
	}

	collectors := []prometheus.Collector{
		m.storeOperations, m.auditWriteFailures, m.conceptCount,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordOperation counts one store operation with its outcome.
func (m *OntologyMetrics) RecordOperation(operation, status string) {
	if m == nil {
		return
	}
	m.storeOperations.WithLabelValues(operation, status).Inc()
}

// RecordAuditFailure counts one swallowed audit write failure.
func (m *OntologyMetrics) RecordAuditFailure() {
	if m == nil {
		return
	}
	m.auditWriteFailures.Inc()
}

// SetConceptCount updates the concept count gauge.
func (m *OntologyMetrics) SetConceptCount(count int) {
	if m == nil {
		return
	}
	m.conceptCount.Set(float64(count))
}
