package search

import (
	"context"
	"testing"
	"time"

	"github.com/hyperjump/chishiki/internal/embedding"
	"github.com/hyperjump/chishiki/internal/errkind"
	"github.com/hyperjump/chishiki/internal/graphstore"
	"github.com/hyperjump/chishiki/internal/graphwriter"
	"github.com/hyperjump/chishiki/internal/lexical"
	"github.com/hyperjump/chishiki/internal/metastore"
	"github.com/hyperjump/chishiki/internal/models"
	"github.com/hyperjump/chishiki/internal/vectorstore"
)

func testConfig() Config {
	return Config{Collection: "docs", DefaultMax: 10, MaxMax: 100, PerSourceTimeout: 2 * time.Second}
}

// fixture wires an aggregator over in-memory backends with a few documents.
type fixture struct {
	agg      *Aggregator
	lex      *lexical.BleveSource
	vectors  *vectorstore.MemoryStore
	graph    *graphstore.MemoryStore
	meta     *metastore.SQLiteStore
	embedder embedding.Embedder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	lex, err := lexical.NewBleveSource("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = lex.Close() })
	vectors, _ := vectorstore.NewMemoryStore(16)
	graph := graphstore.NewMemoryStore()
	meta, err := metastore.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = meta.Close() })
	embedder := embedding.NewMockEmbedder(16)

	f := &fixture{
		lex: lex, vectors: vectors, graph: graph, meta: meta, embedder: embedder,
		agg: NewAggregator(lex, embedder, vectors, graph, meta, testConfig()),
	}
	f.seed(t)
	return f
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	// Lexical documents.
	docs := []lexical.Document{
		{SourcePath: "svc/cache.py", ProjectName: "svc", Language: "python", Content: "cache eviction policy"},
		{SourcePath: "svc/api/handlers.py", ProjectName: "svc", Language: "python", Content: "handler for cache endpoints"},
	}
	for _, d := range docs {
		if err := f.lex.Index(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	// Vector points.
	for i, path := range []string{"svc/cache.py", "svc/vector_only.py"} {
		vec, _ := f.embedder.Embed(ctx, "cache eviction")
		_ = f.vectors.Upsert(ctx, "docs", []vectorstore.Point{{
			ID:     models.ChunkPointID("hash", i),
			Vector: vec,
			Payload: map[string]any{
				"source_path":  path,
				"project_name": "svc",
				"language":     "python",
				"content_hash": "hash",
				"chunk_index":  0,
			},
		}})
	}

	// Graph entities.
	_ = f.graph.UpsertNode(ctx,
		graphwriter.EntityRef("svc", "ent_cache"),
		map[string]any{
			"name": "CacheEvictor", "entity_type": "class",
			"description": "implements cache eviction",
			"source_path": "svc/cache.py", "confidence_score": 0.9,
		})

	// Quality scores in the metadata store.
	q := 0.5
	_ = f.meta.Upsert(ctx, &metastore.DocumentRecord{
		ProjectName: "svc", SourcePath: "svc/cache.py",
		ContentHash: "hash", HashAlgorithm: "blake3", QualityScore: &q,
	})
}

func TestSearchEmptyQuery(t *testing.T) {
	f := newFixture(t)
	_, err := f.agg.Search(context.Background(), &models.SearchRequest{Query: "  "})
	if errkind.KindOf(err) != errkind.KindInvalidInput {
		t.Errorf("kind = %v, want InvalidInput", errkind.KindOf(err))
	}
}

func TestSearchHybridDedupes(t *testing.T) {
	f := newFixture(t)
	resp, err := f.agg.Search(context.Background(), &models.SearchRequest{
		Query: "cache eviction", Kind: models.SearchHybrid,
		Filters: models.SearchFilters{ProjectName: "svc"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.SourcesQueried) != 3 {
		t.Errorf("sources_queried = %v, want all three", resp.SourcesQueried)
	}
	seen := make(map[string]bool)
	for _, r := range resp.Results {
		if seen[r.SourcePath] {
			t.Errorf("duplicate source_path %s", r.SourcePath)
		}
		seen[r.SourcePath] = true
	}
	// svc/cache.py appears in all three sources but only once in results.
	if !seen["svc/cache.py"] {
		t.Error("expected svc/cache.py in results")
	}
	// Sorted descending.
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].Score > resp.Results[i-1].Score {
			t.Errorf("results not sorted at %d", i)
		}
	}
}

func TestSearchMaxResults(t *testing.T) {
	f := newFixture(t)
	resp, err := f.agg.Search(context.Background(), &models.SearchRequest{
		Query: "cache", Kind: models.SearchHybrid, MaxResults: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) > 1 {
		t.Errorf("results = %d, want <= 1", len(resp.Results))
	}
}

func TestSearchPathPatternFilter(t *testing.T) {
	f := newFixture(t)
	resp, err := f.agg.Search(context.Background(), &models.SearchRequest{
		Query: "cache", Kind: models.SearchHybrid,
		Filters: models.SearchFilters{PathPattern: "svc/api/**/*.py"},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range resp.Results {
		if r.SourcePath != "svc/api/handlers.py" {
			t.Errorf("path filter leaked %s", r.SourcePath)
		}
	}
}

func TestSearchQualityWeight(t *testing.T) {
	f := newFixture(t)
	w := 0.3
	resp, err := f.agg.Search(context.Background(), &models.SearchRequest{
		Query: "cache eviction", Kind: models.SearchSemantic,
		Filters: models.SearchFilters{ProjectName: "svc"}, QualityWeight: &w,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.RankingMode != "weighted_score" {
		t.Errorf("ranking mode = %s", resp.RankingMode)
	}
	// svc/cache.py has lexical score 1.0 and quality 0.5 (backfilled from
	// the metadata store): final = 0.7*1.0 + 0.3*0.5 = 0.85.
	var found bool
	for _, r := range resp.Results {
		if r.SourcePath == "svc/cache.py" {
			found = true
			if r.Score < 0.84 || r.Score > 0.86 {
				t.Errorf("weighted score = %v, want ~0.85", r.Score)
			}
		}
	}
	if !found {
		t.Fatal("svc/cache.py missing from results")
	}
}

func TestSearchConfiguredQualityWeightDefault(t *testing.T) {
	f := newFixture(t)
	cfg := testConfig()
	cfg.QualityWeight = 0.3
	agg := NewAggregator(f.lex, f.embedder, f.vectors, f.graph, f.meta, cfg)

	// No per-request weight: the configured default applies.
	resp, err := agg.Search(context.Background(), &models.SearchRequest{
		Query: "cache eviction", Kind: models.SearchSemantic,
		Filters: models.SearchFilters{ProjectName: "svc"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.RankingMode != "weighted_score" {
		t.Errorf("ranking mode = %s, want weighted_score from config default", resp.RankingMode)
	}
	for _, r := range resp.Results {
		if r.SourcePath == "svc/cache.py" && (r.Score < 0.84 || r.Score > 0.86) {
			t.Errorf("weighted score = %v, want ~0.85 with default weight 0.3", r.Score)
		}
	}

	// A per-request weight overrides the configured default.
	w := 1.0
	resp, err = agg.Search(context.Background(), &models.SearchRequest{
		Query: "cache eviction", Kind: models.SearchSemantic,
		Filters: models.SearchFilters{ProjectName: "svc"}, QualityWeight: &w,
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range resp.Results {
		// Weight 1.0 ranks purely by quality: 0.5 for cache.py.
		if r.SourcePath == "svc/cache.py" && r.Score != 0.5 {
			t.Errorf("overridden score = %v, want 0.5", r.Score)
		}
	}
}

type brokenLexical struct{}

func (brokenLexical) Search(ctx context.Context, q, p string, l int) ([]lexical.Result, error) {
	return nil, context.DeadlineExceeded
}
func (brokenLexical) Close() error { return nil }

func TestSearchDegradedSuccess(t *testing.T) {
	f := newFixture(t)
	failed := []string{}
	agg := NewAggregator(brokenLexical{}, f.embedder, f.vectors, f.graph, f.meta, testConfig(),
		WithSourceFailureHook(func(s string) { failed = append(failed, s) }))

	resp, err := agg.Search(context.Background(), &models.SearchRequest{
		Query: "cache", Kind: models.SearchHybrid,
	})
	if err != nil {
		t.Fatalf("expected degraded success, got %v", err)
	}
	if len(resp.FailedSources) != 1 || resp.FailedSources[0] != SourceRAG {
		t.Errorf("failed_sources = %v", resp.FailedSources)
	}
	if len(failed) != 1 {
		t.Errorf("failure hook calls = %d", len(failed))
	}
}

func TestSearchAllSourcesFailed(t *testing.T) {
	// Every selected source is backed by a stub that always errors; the
	// context is cancelled as well.
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	agg := NewAggregator(brokenLexical{}, f.embedder, brokenVectorStore{}, brokenGraphStore{}, nil, testConfig())
	_, err := agg.Search(ctx, &models.SearchRequest{Query: "cache", Kind: models.SearchHybrid})
	if errkind.KindOf(err) != errkind.KindAllSourcesFailed {
		t.Errorf("kind = %v, want AllSourcesFailed", errkind.KindOf(err))
	}
}

type brokenVectorStore struct{}

func (brokenVectorStore) Upsert(ctx context.Context, c string, p []vectorstore.Point) error {
	return context.DeadlineExceeded
}
func (brokenVectorStore) Search(ctx context.Context, c string, v []float32, f *vectorstore.Filter, l int) ([]vectorstore.Hit, error) {
	return nil, context.DeadlineExceeded
}
func (brokenVectorStore) Delete(ctx context.Context, c string, ids []string) error {
	return context.DeadlineExceeded
}
func (brokenVectorStore) Count(ctx context.Context, c string) (int, error) {
	return 0, context.DeadlineExceeded
}
func (brokenVectorStore) Close() error { return nil }

type brokenGraphStore struct{}

func (brokenGraphStore) UpsertNode(ctx context.Context, r graphstore.Ref, p map[string]any) error {
	return context.DeadlineExceeded
}
func (brokenGraphStore) UpsertEdge(ctx context.Context, k string, f, to graphstore.Ref, p map[string]any) error {
	return context.DeadlineExceeded
}
func (brokenGraphStore) GetNode(ctx context.Context, r graphstore.Ref) (*graphstore.Node, error) {
	return nil, context.DeadlineExceeded
}
func (brokenGraphStore) FindNodes(ctx context.Context, l, s string, limit int) ([]graphstore.Node, error) {
	return nil, context.DeadlineExceeded
}
func (brokenGraphStore) Reachable(ctx context.Context, s graphstore.Ref, k []string) ([]graphstore.Node, error) {
	return nil, context.DeadlineExceeded
}
func (brokenGraphStore) Edges(ctx context.Context, f graphstore.Ref) ([]graphstore.Edge, error) {
	return nil, context.DeadlineExceeded
}
func (brokenGraphStore) Close() error { return nil }

func TestDedupeKeepsHighestScore(t *testing.T) {
	items := []models.SearchResultItem{
		{SourcePath: "a.py", Score: 0.4, Metadata: map[string]any{"source": "rag"}},
		{SourcePath: "a.py", Score: 0.9, Metadata: map[string]any{"source": "vector"}},
		{SourcePath: "b.py", Score: 0.5},
	}
	out := dedupeByPath(items)
	if len(out) != 2 {
		t.Fatalf("deduped = %d, want 2", len(out))
	}
	for _, item := range out {
		if item.SourcePath == "a.py" {
			if item.Score != 0.9 || item.Metadata["source"] != "vector" {
				t.Errorf("kept wrong instance: %+v", item)
			}
		}
	}
}

func TestRankQualityDefaultsToZero(t *testing.T) {
	w := 0.5
	items := []models.SearchResultItem{
		{SourcePath: "noq.py", Score: 1.0, Metadata: map[string]any{}},
		{SourcePath: "hq.py", Score: 0.6, Metadata: map[string]any{"quality_score": 1.0}},
	}
	out := rank(items, &w, 10)
	// noq: 0.5*1.0 + 0.5*0 = 0.5; hq: 0.5*0.6 + 0.5*1.0 = 0.8.
	if out[0].SourcePath != "hq.py" {
		t.Errorf("order = %s first, want hq.py", out[0].SourcePath)
	}
	if out[1].Score != 0.5 {
		t.Errorf("unknown quality score = %v, want 0.5", out[1].Score)
	}
}
