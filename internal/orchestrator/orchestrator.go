// Package orchestrator drives the per-document indexing pipeline: stamping,
// extraction and quality assessment, vector and graph writes, and response
// event emission — with bounded parallelism and graceful degradation.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/hyperjump/chishiki/internal/errkind"
	"github.com/hyperjump/chishiki/internal/extractor"
	"github.com/hyperjump/chishiki/internal/fingerprint"
	"github.com/hyperjump/chishiki/internal/graphwriter"
	"github.com/hyperjump/chishiki/internal/lexical"
	"github.com/hyperjump/chishiki/internal/metastore"
	"github.com/hyperjump/chishiki/internal/metrics"
	"github.com/hyperjump/chishiki/internal/models"
	"github.com/hyperjump/chishiki/internal/quality"
	"github.com/hyperjump/chishiki/internal/transport"
	"github.com/hyperjump/chishiki/internal/vectorwriter"
)

// Service names as they appear in service_timings and service_failures.
const (
	svcStamping   = "metadata_stamping"
	svcExtraction = "entity_extraction"
	svcQuality    = "quality_assessment"
	svcVector     = "vector_indexing"
	svcGraph      = "knowledge_graph"
	svcLexical    = "lexical_indexing"
)

// EntityExtractor is the extraction dependency (C3).
type EntityExtractor interface {
	Extract(ctx context.Context, projectName, sourcePath, content string, opts extractor.Options) (*extractor.Result, error)
}

// QualityAssessor is the quality dependency (C4).
type QualityAssessor interface {
	Assess(ctx context.Context, content, sourcePath, language string) (*quality.Result, error)
}

// Config tunes the orchestrator. Zero values are filled from the documented
// defaults by the caller (config package).
type Config struct {
	ChunkSize             int
	ChunkOverlap          int
	MaxConcurrentRequests int
	StampingTimeout       time.Duration
	ExtractionTimeout     time.Duration
	QualityTimeout        time.Duration
	SoftBudget            time.Duration
	HardBudget            time.Duration
	SkipEnrichment        bool
	AsyncEnrichment       bool
	VectorPartialFail     bool // true: partial chunk success counts as failure
	QueueGroup            string
}

// Orchestrator consumes indexing requests and emits exactly one completed
// or failed response per request, with the request's correlation ID.
type Orchestrator struct {
	stamper   *fingerprint.Stamper
	extract   EntityExtractor
	assess    QualityAssessor
	vectors   *vectorwriter.Writer
	graph     *graphwriter.Writer
	lexical   lexical.Indexer // optional embedded RAG feed
	meta      metastore.Store
	bus       transport.Transport
	metrics   *metrics.Metrics
	cfg       Config
	logger    *zap.Logger
	admission *semaphore.Weighted

	// background tracks async-enrichment tasks so Close can drain them.
	background sync.WaitGroup
}

// New creates an orchestrator. lexicalIndexer and meta may be nil.
func New(
	stamper *fingerprint.Stamper,
	extract EntityExtractor,
	assess QualityAssessor,
	vectors *vectorwriter.Writer,
	graph *graphwriter.Writer,
	lexicalIndexer lexical.Indexer,
	meta metastore.Store,
	bus transport.Transport,
	m *metrics.Metrics,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.MaxConcurrentRequests <= 0 {
		cfg.MaxConcurrentRequests = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		stamper: stamper, extract: extract, assess: assess,
		vectors: vectors, graph: graph, lexical: lexicalIndexer,
		meta: meta, bus: bus, metrics: m, cfg: cfg, logger: logger,
		admission: semaphore.NewWeighted(int64(cfg.MaxConcurrentRequests)),
	}
}

// Start subscribes to the request topics. Handler goroutines block on the
// admission semaphore above the concurrency ceiling, which stalls transport
// consumption — backpressure lives at the queue, not in memory.
func (o *Orchestrator) Start() ([]transport.Subscription, error) {
	docSub, err := o.bus.Subscribe(transport.TopicDocumentIndexRequested, o.cfg.QueueGroup, o.handleDocumentEnvelope)
	if err != nil {
		return nil, err
	}
	treeSub, err := o.bus.Subscribe(transport.TopicTreeIndex, o.cfg.QueueGroup, o.handleTreeEnvelope)
	if err != nil {
		_ = docSub.Unsubscribe()
		return nil, err
	}
	return []transport.Subscription{docSub, treeSub}, nil
}

// Close drains background enrichment tasks.
func (o *Orchestrator) Close() {
	o.background.Wait()
}

func (o *Orchestrator) handleDocumentEnvelope(ctx context.Context, env transport.Envelope) error {
	req, err := models.ParseIndexRequest(env.Payload)
	if err != nil {
		// Undecodable payloads cannot carry a correlation ID reliably;
		// respond with what the envelope has.
		o.publishFailed(ctx, env.CorrelationID, errkind.Wrap(errkind.KindInvalidInput, "malformed payload", err), nil)
		return nil
	}
	if req.CorrelationID == "" {
		req.CorrelationID = env.CorrelationID
	}
	o.HandleRequest(ctx, req)
	return nil
}

func (o *Orchestrator) handleTreeEnvelope(ctx context.Context, env transport.Envelope) error {
	batch, err := models.ParseTreeIndexRequest(env.Payload)
	if err != nil {
		o.publishFailed(ctx, env.CorrelationID, errkind.Wrap(errkind.KindInvalidInput, "malformed tree-index payload", err), nil)
		return nil
	}
	if batch.CorrelationID == "" {
		batch.CorrelationID = env.CorrelationID
	}
	o.HandleTreeIndex(ctx, batch)
	return nil
}

// HandleTreeIndex establishes the containment tree for the batch, then
// expands each file record into an individual document-index task. File
// paths are relativized against the batch's project root exactly once,
// here, so the batch containment write and each document's own graph write
// key the same file node.
func (o *Orchestrator) HandleTreeIndex(ctx context.Context, batch *models.TreeIndexRequest) {
	paths := make([]string, 0, len(batch.Files))
	for _, f := range batch.Files {
		paths = append(paths, graphwriter.RelativePath(batch.ProjectRoot, f.Path))
	}
	if err := o.graph.Tree().IngestTree(ctx, batch.ProjectName, "", paths); err != nil {
		o.publishFailed(ctx, batch.CorrelationID, err, nil)
		return
	}
	for i, f := range batch.Files {
		req := &models.IndexRequest{
			SourcePath:    paths[i],
			Content:       f.Content,
			Language:      f.Language,
			ProjectName:   batch.ProjectName,
			Options:       batch.Options,
			CorrelationID: batch.CorrelationID,
		}
		o.HandleRequest(ctx, req)
	}
}

// HandleRequest runs one document through the pipeline and publishes
// exactly one response event.
func (o *Orchestrator) HandleRequest(ctx context.Context, req *models.IndexRequest) {
	if err := o.admission.Acquire(ctx, 1); err != nil {
		o.publishFailed(ctx, req.CorrelationID, err, nil)
		return
	}
	defer o.admission.Release(1)

	start := time.Now()
	o.metrics.EventsProcessed.Inc()

	// Validation gate: no side effects before this passes.
	if strings.TrimSpace(req.SourcePath) == "" {
		o.publishFailed(ctx, req.CorrelationID, errkind.New(errkind.KindInvalidInput, "missing source_path"), nil)
		return
	}
	if req.Content == "" {
		o.publishFailed(ctx, req.CorrelationID, errkind.New(errkind.KindInvalidInput, "missing content"), nil)
		return
	}

	// The hard budget cancels in-flight work; the soft budget is only
	// recorded, because partial results are worth keeping.
	runCtx, cancel := context.WithTimeout(ctx, o.cfg.HardBudget)
	defer cancel()

	completed, err := o.process(runCtx, req)
	if err != nil {
		o.metrics.IndexingFailures.Inc()
		o.publishFailed(ctx, req.CorrelationID, err, completed)
		return
	}
	completed.ProcessingTimeMS = float64(time.Since(start).Microseconds()) / 1000.0
	o.metrics.TotalDuration.Observe(time.Since(start).Seconds())
	if elapsed := time.Since(start); elapsed > o.cfg.SoftBudget {
		o.logger.Warn("request exceeded soft budget",
			zap.String("source_path", req.SourcePath),
			zap.Duration("elapsed", elapsed))
	}
	o.publishCompleted(ctx, completed)
}
