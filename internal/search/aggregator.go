// Package search fans a query out across the lexical, vector, and
// knowledge-graph sources in parallel, tolerates any subset failing, and
// produces one ranked, deduplicated result list.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/chishiki/internal/embedding"
	"github.com/hyperjump/chishiki/internal/errkind"
	"github.com/hyperjump/chishiki/internal/graphstore"
	"github.com/hyperjump/chishiki/internal/lexical"
	"github.com/hyperjump/chishiki/internal/metastore"
	"github.com/hyperjump/chishiki/internal/models"
	"github.com/hyperjump/chishiki/internal/vectorstore"
)

// source is one queryable backend.
type source interface {
	name() string
	search(ctx context.Context, req *models.SearchRequest, limit int) ([]models.SearchResultItem, error)
}

// Config tunes the aggregator. QualityWeight is the default weight applied
// when a request does not set one; zero keeps ranking purely score-based.
type Config struct {
	Collection       string
	DefaultMax       int
	MaxMax           int
	PerSourceTimeout time.Duration
	QualityWeight    float64
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithLogger sets a logger for per-source failures.
func WithLogger(l *zap.Logger) AggregatorOption {
	return func(a *Aggregator) { a.logger = l }
}

// WithSourceFailureHook installs a callback invoked with the name of each
// failed source (metrics).
func WithSourceFailureHook(fn func(source string)) AggregatorOption {
	return func(a *Aggregator) { a.onSourceFailure = fn }
}

// Aggregator is the multi-source search aggregator.
type Aggregator struct {
	rag    source
	vector source
	graph  source
	meta   metastore.Store
	cfg    Config

	logger          *zap.Logger
	onSourceFailure func(string)
}

// NewAggregator wires the three sources. meta may be nil; it is only used
// to backfill quality scores for quality-weighted ranking.
func NewAggregator(
	lex lexical.Source,
	embedder embedding.Embedder,
	vectors vectorstore.Store,
	graph graphstore.Store,
	meta metastore.Store,
	cfg Config,
	opts ...AggregatorOption,
) *Aggregator {
	a := &Aggregator{
		rag:    &ragSource{lexical: lex},
		vector: &vectorSource{embedder: embedder, store: vectors, collection: cfg.Collection},
		graph:  &graphSource{store: graph},
		meta:   meta,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Search runs the request and returns the ranked response. It fails with
// InvalidInput for an empty query and AllSourcesFailed when every selected
// source errored; any other combination is a degraded success with
// failed_sources populated.
func (a *Aggregator) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()
	if strings.TrimSpace(req.Query) == "" {
		return nil, errkind.New(errkind.KindInvalidInput, "query is empty")
	}
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = a.cfg.DefaultMax
	}
	if a.cfg.MaxMax > 0 && maxResults > a.cfg.MaxMax {
		maxResults = a.cfg.MaxMax
	}

	sources := a.selectSources(req.Kind)
	if len(sources) == 0 {
		return nil, errkind.New(errkind.KindInvalidInput,
			fmt.Sprintf("unknown search type %q", req.Kind))
	}

	// Over-fetch per source: dedup and path filtering shrink the pool.
	perSourceLimit := maxResults * 3
	if perSourceLimit < 30 {
		perSourceLimit = 30
	}

	type outcome struct {
		name     string
		items    []models.SearchResultItem
		err      error
		timingMS float64
	}
	results := make([]outcome, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src source) {
			defer wg.Done()
			srcCtx, cancel := context.WithTimeout(ctx, a.cfg.PerSourceTimeout)
			defer cancel()
			t0 := time.Now()
			items, err := src.search(srcCtx, req, perSourceLimit)
			results[i] = outcome{
				name:     src.name(),
				items:    items,
				err:      err,
				timingMS: float64(time.Since(t0).Microseconds()) / 1000.0,
			}
		}(i, src)
	}
	wg.Wait()

	resp := &models.SearchResponse{
		CorrelationID:  req.CorrelationID,
		ServiceTimings: models.ServiceTimings{},
		RankingMode:    "score_based",
	}
	var all []models.SearchResultItem
	for _, out := range results {
		if out.err != nil {
			resp.FailedSources = append(resp.FailedSources, out.name)
			if a.onSourceFailure != nil {
				a.onSourceFailure(out.name)
			}
			if a.logger != nil {
				a.logger.Warn("search source failed",
					zap.String("source", out.name), zap.Error(out.err))
			}
			continue
		}
		resp.SourcesQueried = append(resp.SourcesQueried, out.name)
		resp.ServiceTimings[out.name+"_search_ms"] = out.timingMS
		all = append(all, out.items...)
	}
	if len(resp.SourcesQueried) == 0 {
		return nil, errkind.New(errkind.KindAllSourcesFailed,
			fmt.Sprintf("all search sources failed: %s", strings.Join(resp.FailedSources, ", "))).
			WithComponent("search")
	}

	// Path-pattern filter: client-side, after retrieval, before dedup.
	if req.Filters.PathPattern != "" {
		re, err := CompilePathPattern(req.Filters.PathPattern)
		if err != nil {
			return nil, errkind.Wrap(errkind.KindInvalidInput, "invalid path pattern", err)
		}
		filtered := all[:0]
		for _, item := range all {
			if re.MatchString(item.SourcePath) {
				filtered = append(filtered, item)
			}
		}
		all = filtered
	}

	deduped := dedupeByPath(all)

	qualityWeight := a.resolveQualityWeight(req)
	if qualityWeight != nil {
		a.backfillQuality(ctx, req.Filters.ProjectName, deduped)
		resp.RankingMode = "weighted_score"
	}
	resp.Results = rank(deduped, qualityWeight, maxResults)
	resp.TotalResults = len(resp.Results)
	resp.SearchTimeMS = float64(time.Since(start).Microseconds()) / 1000.0
	return resp, nil
}

// resolveQualityWeight returns the effective quality weight: the request's
// if set, else the configured default, else nil (pure score ranking).
func (a *Aggregator) resolveQualityWeight(req *models.SearchRequest) *float64 {
	if req.QualityWeight != nil {
		return req.QualityWeight
	}
	if a.cfg.QualityWeight > 0 {
		w := a.cfg.QualityWeight
		return &w
	}
	return nil
}

func (a *Aggregator) selectSources(kind models.SearchKind) []source {
	switch kind {
	case models.SearchSemantic:
		return []source{a.rag}
	case models.SearchVector:
		return []source{a.vector}
	case models.SearchKnowledgeGraph:
		return []source{a.graph}
	case models.SearchHybrid, "":
		return []source{a.rag, a.vector, a.graph}
	default:
		return nil
	}
}

// backfillQuality fills missing quality_score metadata from the metadata
// store so the weighted ranking has something to weigh. Failures here only
// degrade ranking, never the response.
func (a *Aggregator) backfillQuality(ctx context.Context, projectName string, items []models.SearchResultItem) {
	if a.meta == nil {
		return
	}
	var missing []string
	for _, item := range items {
		if _, ok := item.Metadata["quality_score"]; !ok {
			missing = append(missing, item.SourcePath)
		}
	}
	if len(missing) == 0 {
		return
	}
	scores, err := a.meta.QualityScores(ctx, projectName, missing)
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("quality backfill failed", zap.Error(err))
		}
		return
	}
	for i := range items {
		if _, ok := items[i].Metadata["quality_score"]; ok {
			continue
		}
		if score, ok := scores[items[i].SourcePath]; ok {
			if items[i].Metadata == nil {
				items[i].Metadata = map[string]any{}
			}
			items[i].Metadata["quality_score"] = score
		}
	}
}
