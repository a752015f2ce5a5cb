package runtime

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hyperjump/chishiki/internal/config"
	"github.com/hyperjump/chishiki/internal/embedding"
	"github.com/hyperjump/chishiki/internal/models"
	"github.com/hyperjump/chishiki/internal/transport"
)

func testRuntime(t *testing.T) (*Runtime, *transport.MemoryTransport) {
	t.Helper()
	cfg := config.Default()
	cfg.MetaStore.DatabasePath = filepath.Join(t.TempDir(), "meta.db")

	bus := transport.NewMemoryTransport()
	rt, err := New(cfg, nil,
		WithTransport(bus),
		WithEmbedder(embedding.NewMockEmbedder(cfg.Embedding.Dimension)),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(rt.Close)
	if err := rt.Start(); err != nil {
		t.Fatal(err)
	}
	return rt, bus
}

// TestEndToEndDegradedIndexing drives a request through the wired runtime.
// The extractor and quality endpoints are unreachable, so the pipeline
// completes degraded: hash present, enrichment failure counters populated.
func TestEndToEndDegradedIndexing(t *testing.T) {
	_, bus := testRuntime(t)

	var mu sync.Mutex
	var completed []models.IndexCompleted
	_, _ = bus.Subscribe(transport.TopicDocumentIndexCompleted, "capture", func(ctx context.Context, env transport.Envelope) error {
		var c models.IndexCompleted
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			t.Errorf("decode: %v", err)
			return nil
		}
		mu.Lock()
		completed = append(completed, c)
		mu.Unlock()
		return nil
	})

	req := models.IndexRequest{
		SourcePath:    "svc/app.py",
		Content:       "def f(): pass",
		Language:      "python",
		ProjectName:   "svc",
		CorrelationID: "e2e-1",
	}
	env, err := transport.NewEnvelope("document-index-requested", req.CorrelationID, "test", req)
	if err != nil {
		t.Fatal(err)
	}
	if err := bus.Publish(context.Background(), transport.TopicDocumentIndexRequested, env); err != nil {
		t.Fatal(err)
	}
	bus.Flush()

	mu.Lock()
	defer mu.Unlock()
	if len(completed) != 1 {
		t.Fatalf("completed events = %d, want 1", len(completed))
	}
	c := completed[0]
	if c.CorrelationID != "e2e-1" || c.DocumentHash == "" {
		t.Errorf("unexpected completion: %+v", c)
	}
	if c.ServiceFailures["entity_extraction"] < 1 {
		t.Errorf("expected extraction failure recorded, got %v", c.ServiceFailures)
	}
}

// TestEndToEndSearch drives a search request event through the wired
// runtime; with nothing indexed it completes with zero results.
func TestEndToEndSearch(t *testing.T) {
	_, bus := testRuntime(t)

	var mu sync.Mutex
	var responses []models.SearchResponse
	_, _ = bus.Subscribe(transport.TopicSearchCompleted, "capture", func(ctx context.Context, env transport.Envelope) error {
		var r models.SearchResponse
		if err := json.Unmarshal(env.Payload, &r); err != nil {
			t.Errorf("decode: %v", err)
			return nil
		}
		mu.Lock()
		responses = append(responses, r)
		mu.Unlock()
		return nil
	})

	req := models.SearchRequest{
		Query:         "cache eviction",
		Kind:          models.SearchHybrid,
		CorrelationID: "s-1",
	}
	env, _ := transport.NewEnvelope("search-requested", req.CorrelationID, "test", req)
	if err := bus.Publish(context.Background(), transport.TopicSearchRequested, env); err != nil {
		t.Fatal(err)
	}
	bus.Flush()

	mu.Lock()
	defer mu.Unlock()
	if len(responses) != 1 {
		t.Fatalf("search responses = %d, want 1", len(responses))
	}
	r := responses[0]
	if r.CorrelationID != "s-1" {
		t.Errorf("correlation_id = %s", r.CorrelationID)
	}
	if len(r.SourcesQueried) == 0 {
		t.Errorf("no sources queried: %+v", r)
	}
	if len(r.Results) != 0 {
		t.Errorf("results = %d on empty stores", len(r.Results))
	}
}
