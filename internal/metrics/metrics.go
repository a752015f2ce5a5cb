// Package metrics defines the Prometheus instruments for the indexing and
// search subsystems. Instruments hang off an explicit registry so each
// Runtime (and each test) gets an isolated set.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every instrument the core increments. All counters are safe
// for concurrent use.
type Metrics struct {
	Registry *prometheus.Registry

	EventsProcessed  prometheus.Counter
	EventsFailed     prometheus.Counter
	IndexingFailures prometheus.Counter
	CacheHits        prometheus.Counter

	ServiceFailures *prometheus.CounterVec

	SearchQueries      prometheus.Counter
	SearchSourceFailed *prometheus.CounterVec

	EmbeddingRetries     prometheus.Counter
	FingerprintDegraded  prometheus.Counter
	PlaceholderNodes     prometheus.Counter
	DroppedRelationships prometheus.Counter

	StampDuration   prometheus.Histogram
	ExtractDuration prometheus.Histogram
	VectorDuration  prometheus.Histogram
	GraphDuration   prometheus.Histogram
	TotalDuration   prometheus.Histogram
	SearchDuration  prometheus.Histogram
}

// New creates a Metrics set registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

	m := &Metrics{
		Registry: reg,
		EventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chishiki_events_processed_total", Help: "Indexing request events processed"}),
		EventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chishiki_events_failed_total", Help: "Indexing request events that produced a failed response"}),
		IndexingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chishiki_indexing_failures_total", Help: "Documents whose indexing aborted at a critical stage"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chishiki_cache_hits_total", Help: "Duplicate documents short-circuited by the fingerprint verdict"}),
		ServiceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chishiki_service_failures_total", Help: "Non-critical per-service failures"}, []string{"service"}),
		SearchQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chishiki_search_queries_total", Help: "Search requests served"}),
		SearchSourceFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chishiki_search_source_failed_total", Help: "Per-source search failures"}, []string{"source"}),
		EmbeddingRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chishiki_embedding_retries_total", Help: "Embedding calls retried after a transient failure"}),
		FingerprintDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chishiki_fingerprint_degraded_total", Help: "Stamp verdicts defaulted to new because the seen index was unreachable"}),
		PlaceholderNodes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chishiki_graph_placeholder_nodes_total", Help: "Placeholder endpoint nodes created by relationship upserts"}),
		DroppedRelationships: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chishiki_graph_dropped_relationships_total", Help: "Relationships dropped because an endpoint ID was empty"}),
		StampDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "chishiki_stamp_seconds", Help: "Metadata stamping duration", Buckets: buckets}),
		ExtractDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "chishiki_extract_seconds", Help: "Entity extraction duration", Buckets: buckets}),
		VectorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "chishiki_vector_seconds", Help: "Vector indexing duration", Buckets: buckets}),
		GraphDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "chishiki_graph_seconds", Help: "Knowledge graph indexing duration", Buckets: buckets}),
		TotalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "chishiki_indexing_seconds", Help: "End-to-end document indexing duration", Buckets: buckets}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "chishiki_search_seconds", Help: "Search aggregation duration", Buckets: buckets}),
	}

	reg.MustRegister(
		m.EventsProcessed, m.EventsFailed, m.IndexingFailures, m.CacheHits,
		m.ServiceFailures, m.SearchQueries, m.SearchSourceFailed,
		m.EmbeddingRetries, m.FingerprintDegraded, m.PlaceholderNodes,
		m.DroppedRelationships,
		m.StampDuration, m.ExtractDuration, m.VectorDuration,
		m.GraphDuration, m.TotalDuration, m.SearchDuration,
	)
	return m
}
