// Package runtime constructs the process-wide component graph from
// configuration and threads it through the services. There are no package
// singletons: tests build an isolated Runtime per test.
package runtime

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/chishiki/internal/config"
	"github.com/hyperjump/chishiki/internal/embedding"
	"github.com/hyperjump/chishiki/internal/extractor"
	"github.com/hyperjump/chishiki/internal/fingerprint"
	"github.com/hyperjump/chishiki/internal/graphstore"
	"github.com/hyperjump/chishiki/internal/graphwriter"
	"github.com/hyperjump/chishiki/internal/lexical"
	"github.com/hyperjump/chishiki/internal/metastore"
	"github.com/hyperjump/chishiki/internal/metrics"
	"github.com/hyperjump/chishiki/internal/orchestrator"
	"github.com/hyperjump/chishiki/internal/quality"
	"github.com/hyperjump/chishiki/internal/search"
	"github.com/hyperjump/chishiki/internal/transport"
	"github.com/hyperjump/chishiki/internal/vectorstore"
	"github.com/hyperjump/chishiki/internal/vectorwriter"
)

// Runtime owns every long-lived component.
type Runtime struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	Bus          transport.Transport
	Embedder     embedding.Embedder
	Stamper      *fingerprint.Stamper
	VectorStore  vectorstore.Store
	GraphStore   graphstore.Store
	Lexical      lexical.Source
	MetaStore    metastore.Store
	Orchestrator *orchestrator.Orchestrator
	Search       *search.Aggregator
	SearchSvc    *search.Service

	closers []func() error
}

// Option overrides a Runtime component before wiring (tests, embedded runs).
type Option func(*Runtime)

// WithTransport substitutes the event transport.
func WithTransport(t transport.Transport) Option {
	return func(r *Runtime) { r.Bus = t }
}

// WithEmbedder substitutes the embedding client.
func WithEmbedder(e embedding.Embedder) Option {
	return func(r *Runtime) { r.Embedder = e }
}

// New builds a Runtime from cfg. Options may substitute the transport and
// the embedder; every other component is built from the configured backends.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runtime{Config: cfg, Logger: logger, Metrics: metrics.New()}
	for _, opt := range opts {
		opt(r)
	}

	if r.Bus == nil {
		bus, err := transport.NewNATSTransport(cfg.Transport.URL, cfg.Transport.MaxRedeliver,
			transport.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("transport: %w", err)
		}
		r.Bus = bus
	}
	r.closers = append(r.closers, r.Bus.Close)

	if r.Embedder == nil {
		client := embedding.NewClient(
			cfg.Embedding.URL,
			cfg.Embedding.Dimension,
			cfg.Embedding.MaxConcurrent,
			time.Duration(cfg.Embedding.TimeoutS)*time.Second,
			embedding.WithRetryHook(r.Metrics.EmbeddingRetries.Inc),
		)
		r.Embedder = embedding.NewCache(client, cfg.Embedding.CacheSize)
	}
	r.closers = append(r.closers, r.Embedder.Close)

	seen, err := fingerprint.NewSeenIndex(cfg.Fingerprint.RedisURL,
		time.Duration(cfg.Fingerprint.TTLHours)*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("fingerprint index: %w", err)
	}
	r.closers = append(r.closers, seen.Close)
	r.Stamper, err = fingerprint.NewStamper(cfg.Fingerprint.Algorithm, seen,
		fingerprint.WithLogger(logger),
		fingerprint.WithDegradeHook(r.Metrics.FingerprintDegraded.Inc))
	if err != nil {
		return nil, fmt.Errorf("stamper: %w", err)
	}

	r.VectorStore, err = vectorstore.New(cfg.VectorStore.Type, cfg.VectorStore.URL,
		cfg.Embedding.Dimension, time.Duration(cfg.VectorStore.TimeoutS)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	r.closers = append(r.closers, r.VectorStore.Close)

	r.GraphStore, err = graphstore.New(cfg.GraphStore.Type, cfg.GraphStore.URL,
		time.Duration(cfg.GraphStore.TimeoutS)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("graph store: %w", err)
	}
	r.closers = append(r.closers, r.GraphStore.Close)

	r.MetaStore, err = metastore.NewSQLiteStore(cfg.MetaStore.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("meta store: %w", err)
	}
	r.closers = append(r.closers, r.MetaStore.Close)

	// Lexical source: remote RAG service when configured, embedded bleve
	// otherwise.
	var lexIndexer lexical.Indexer
	if cfg.Services.RAGSearchURL != "" {
		r.Lexical = lexical.NewHTTPSource(cfg.Services.RAGSearchURL,
			time.Duration(cfg.Search.PerSourceTimeoutS)*time.Second)
	} else {
		bleveSrc, err := lexical.NewBleveSource(cfg.Lexical.Path)
		if err != nil {
			return nil, fmt.Errorf("lexical index: %w", err)
		}
		r.Lexical = bleveSrc
		lexIndexer = bleveSrc
	}
	r.closers = append(r.closers, r.Lexical.Close)

	extractClient := extractor.NewClient(cfg.Services.ExtractorURL,
		time.Duration(cfg.Services.ExtractorTimeoutS)*time.Second,
		extractor.WithLogger(logger))
	qualityClient := quality.NewClient(cfg.Services.QualityURL,
		time.Duration(cfg.Services.QualityTimeoutS)*time.Second)

	vectorWriter := vectorwriter.NewWriter(r.Embedder, r.VectorStore, cfg.VectorStore.Collection,
		vectorwriter.WithLogger(logger))
	graphWriter := graphwriter.NewWriter(r.GraphStore,
		graphwriter.WithLogger(logger),
		graphwriter.WithDropHook(r.Metrics.DroppedRelationships.Inc),
		graphwriter.WithPlaceholderHook(r.Metrics.PlaceholderNodes.Inc))

	r.Orchestrator = orchestrator.New(
		r.Stamper, extractClient, qualityClient, vectorWriter, graphWriter,
		lexIndexer, r.MetaStore, r.Bus, r.Metrics,
		orchestrator.Config{
			ChunkSize:             cfg.Indexing.ChunkSize,
			ChunkOverlap:          cfg.Indexing.ChunkOverlap,
			MaxConcurrentRequests: cfg.Indexing.MaxConcurrentRequests,
			StampingTimeout:       time.Duration(cfg.Indexing.StampingTimeoutS) * time.Second,
			SoftBudget:            time.Duration(cfg.Indexing.SoftBudgetS) * time.Second,
			HardBudget:            time.Duration(cfg.Indexing.HardBudgetS) * time.Second,
			SkipEnrichment:        cfg.Indexing.SkipIntelligenceEnrichment,
			AsyncEnrichment:       cfg.Indexing.EnableAsyncEnrichment,
			VectorPartialFail:     cfg.Indexing.VectorPartialFailure == "fail",
			QueueGroup:            cfg.Transport.QueueGroup,
		},
		logger,
	)

	r.Search = search.NewAggregator(
		r.Lexical, r.Embedder, r.VectorStore, r.GraphStore, r.MetaStore,
		search.Config{
			Collection:       cfg.VectorStore.Collection,
			DefaultMax:       cfg.Search.DefaultMaxResults,
			MaxMax:           cfg.Search.MaxMaxResults,
			PerSourceTimeout: time.Duration(cfg.Search.PerSourceTimeoutS) * time.Second,
			QualityWeight:    cfg.Search.QualityWeight,
		},
		search.WithLogger(logger),
		search.WithSourceFailureHook(func(src string) {
			r.Metrics.SearchSourceFailed.WithLabelValues(src).Inc()
		}),
	)
	r.SearchSvc = search.NewService(r.Search, r.Bus, cfg.Transport.QueueGroup, logger)

	return r, nil
}

// Start subscribes the orchestrator and search service to their topics.
func (r *Runtime) Start() error {
	if _, err := r.Orchestrator.Start(); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}
	if _, err := r.SearchSvc.Start(); err != nil {
		return fmt.Errorf("start search service: %w", err)
	}
	return nil
}

// Close shuts every component down in reverse construction order.
func (r *Runtime) Close() {
	r.Orchestrator.Close()
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.Logger.Warn("close component", zap.Error(err))
		}
	}
}
