package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/chishiki/internal/errkind"
	"github.com/hyperjump/chishiki/internal/extractor"
	"github.com/hyperjump/chishiki/internal/lexical"
	"github.com/hyperjump/chishiki/internal/metastore"
	"github.com/hyperjump/chishiki/internal/models"
	"github.com/hyperjump/chishiki/internal/quality"
	"github.com/hyperjump/chishiki/internal/vectorwriter"
)

// process runs the staged pipeline. Only stage 1 (stamping) is critical:
// its error aborts the request. Stage 2 and 3 failures are recorded per
// service and the request still completes.
func (o *Orchestrator) process(ctx context.Context, req *models.IndexRequest) (*models.IndexCompleted, error) {
	completed := &models.IndexCompleted{
		CorrelationID:   req.CorrelationID,
		EntityIDs:       []string{},
		VectorIDs:       []string{},
		ServiceTimings:  models.ServiceTimings{},
		ServiceFailures: models.ServiceFailures{},
	}

	// Stage 1: stamping.
	stampCtx, cancel := context.WithTimeout(ctx, o.cfg.StampingTimeout)
	t0 := time.Now()
	fp, err := o.stamper.Stamp(stampCtx, req.Content, req.SourcePath)
	cancel()
	completed.ServiceTimings[svcStamping+"_ms"] = millisSince(t0)
	o.metrics.StampDuration.Observe(time.Since(t0).Seconds())
	if err != nil {
		return completed, errkind.Wrap(errkind.KindStampingUnavailable, "metadata stamping failed", err).
			WithComponent(svcStamping)
	}
	completed.DocumentHash = fp.Hash

	if fp.Verdict == models.VerdictDuplicate && !req.Options.ForceReindex {
		completed.CacheHit = true
		o.metrics.CacheHits.Inc()
		return completed, nil
	}

	if o.cfg.SkipEnrichment {
		return completed, nil
	}

	if o.cfg.AsyncEnrichment {
		// Policy: one completed event only, emitted now with empty lists;
		// enrichment results land in the stores without a second event.
		completed.EnrichmentPending = true
		// Deep-copy the mutable maps: the background task keeps writing
		// while the foreground response is being marshalled.
		enriched := *completed
		enriched.ServiceTimings = models.ServiceTimings{}
		enriched.ServiceFailures = models.ServiceFailures{}
		o.background.Add(1)
		go func() {
			defer o.background.Done()
			bgCtx, bgCancel := context.WithTimeout(context.Background(), o.cfg.HardBudget)
			defer bgCancel()
			o.enrich(bgCtx, req, fp, &enriched)
		}()
		return completed, nil
	}

	o.enrich(ctx, req, fp, completed)
	return completed, nil
}

// enrich runs stages 2 and 3 and fills the response in place.
func (o *Orchestrator) enrich(ctx context.Context, req *models.IndexRequest, fp models.Fingerprint, completed *models.IndexCompleted) {
	// Stage 2: extraction and quality in parallel. The timeout applies per
	// call, not to the stage.
	var (
		wg            sync.WaitGroup
		mu            sync.Mutex
		extractResult *extractor.Result
		qualityResult *quality.Result
	)

	if !req.Options.SkipEntityExtraction {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t0 := time.Now()
			res, err := o.extract.Extract(ctx, req.ProjectName, req.SourcePath, req.Content, extractor.DefaultOptions())
			o.metrics.ExtractDuration.Observe(time.Since(t0).Seconds())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.recordFailure(completed, svcExtraction, req.SourcePath, err)
				return
			}
			extractResult = res
			completed.ServiceTimings[svcExtraction+"_ms"] = res.TimingMS
		}()
	}
	if !req.Options.SkipQualityAssessment {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.assess.Assess(ctx, req.Content, req.SourcePath, req.Language)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.recordFailure(completed, svcQuality, req.SourcePath, err)
				return
			}
			qualityResult = res
			completed.ServiceTimings[svcQuality+"_ms"] = res.TimingMS
		}()
	}
	wg.Wait()

	if qualityResult != nil {
		score := qualityResult.Report.Score
		completed.QualityScore = &score
		completed.Compliance = qualityResult.Report.Compliance
	}

	// Stage 3: vector and graph writes, conditional on extraction success.
	if extractResult != nil {
		completed.EntitiesExtracted = len(extractResult.Entities)
		var stage3 sync.WaitGroup

		if !req.Options.SkipVectorIndexing {
			stage3.Add(1)
			go func() {
				defer stage3.Done()
				t0 := time.Now()
				res := o.vectors.IndexVectors(ctx, vectorwriter.Request{
					Content:      req.Content,
					ContentHash:  fp.Hash,
					SourcePath:   req.SourcePath,
					ProjectID:    req.ProjectID,
					ProjectName:  req.ProjectName,
					Language:     req.Language,
					QualityScore: completed.QualityScore,
					ChunkSize:    chunkSize(req.Options, o.cfg),
					ChunkOverlap: chunkOverlap(req.Options, o.cfg),
				})
				o.metrics.VectorDuration.Observe(time.Since(t0).Seconds())
				mu.Lock()
				defer mu.Unlock()
				completed.ServiceTimings[svcVector+"_ms"] = millisSince(t0)
				if res.Err != nil {
					o.recordFailure(completed, svcVector, req.SourcePath, res.Err)
					if o.cfg.VectorPartialFail {
						return
					}
				}
				completed.VectorIDs = res.VectorIDs
				completed.ChunksIndexed = len(res.VectorIDs)
			}()
		}

		if !req.Options.SkipKnowledgeGraph {
			stage3.Add(1)
			go func() {
				defer stage3.Done()
				t0 := time.Now()
				res, err := o.graph.IndexGraph(ctx, extractResult.Entities, extractResult.Relationships, req.SourcePath, req.ProjectName)
				o.metrics.GraphDuration.Observe(time.Since(t0).Seconds())
				mu.Lock()
				defer mu.Unlock()
				completed.ServiceTimings[svcGraph+"_ms"] = millisSince(t0)
				if err != nil {
					o.recordFailure(completed, svcGraph, req.SourcePath, err)
					return
				}
				completed.EntityIDs = res.EntityIDs
				completed.RelationshipsCreated = res.RelationshipsCreated
			}()
		}
		stage3.Wait()
	}

	// Feed the embedded lexical index when configured. Non-critical, like
	// the other enrichment writes.
	if o.lexical != nil {
		if err := o.lexical.Index(ctx, lexical.Document{
			SourcePath:  req.SourcePath,
			ProjectName: req.ProjectName,
			Language:    req.Language,
			Content:     req.Content,
		}); err != nil {
			o.recordFailure(completed, svcLexical, req.SourcePath, err)
		}
	}

	// Persist the metadata row. Non-critical.
	if o.meta != nil {
		rec := &metastore.DocumentRecord{
			SourcePath:    req.SourcePath,
			ProjectName:   req.ProjectName,
			Language:      req.Language,
			ContentHash:   fp.Hash,
			HashAlgorithm: fp.Algorithm,
			QualityScore:  completed.QualityScore,
			EntityCount:   completed.EntitiesExtracted,
			ChunkCount:    completed.ChunksIndexed,
		}
		if err := o.meta.Upsert(ctx, rec); err != nil {
			o.logger.Warn("metadata store upsert failed",
				zap.String("source_path", req.SourcePath), zap.Error(err))
		}
	}
}

func (o *Orchestrator) recordFailure(completed *models.IndexCompleted, service, sourcePath string, err error) {
	completed.ServiceFailures[service]++
	o.metrics.ServiceFailures.WithLabelValues(service).Inc()
	o.logger.Warn("service failed, continuing degraded",
		zap.String("service", service),
		zap.String("source_path", sourcePath),
		zap.Error(err))
}

func chunkSize(opts models.IndexingOptions, cfg Config) int {
	if opts.ChunkSize > 0 {
		return opts.ChunkSize
	}
	return cfg.ChunkSize
}

func chunkOverlap(opts models.IndexingOptions, cfg Config) int {
	if opts.ChunkOverlap > 0 {
		return opts.ChunkOverlap
	}
	return cfg.ChunkOverlap
}

func millisSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
