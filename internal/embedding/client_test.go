package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/chishiki/internal/errkind"
)

func embedServer(t *testing.T, dims int, handler func(w http.ResponseWriter, r *http.Request) bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler != nil && handler(w, r) {
			return
		}
		vec := make([]float32, dims)
		for i := range vec {
			vec[i] = 0.1
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	}))
}

func TestClientEmbed(t *testing.T) {
	srv := embedServer(t, 8, nil)
	defer srv.Close()

	c := NewClient(srv.URL, 8, 3, time.Second)
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 8 {
		t.Errorf("len = %d, want 8", len(vec))
	}
}

func TestClientDimensionMismatch(t *testing.T) {
	srv := embedServer(t, 4, nil)
	defer srv.Close()

	c := NewClient(srv.URL, 8, 3, time.Second)
	_, err := c.Embed(context.Background(), "hello")
	if errkind.KindOf(err) != errkind.KindEmbeddingMalformed {
		t.Errorf("kind = %v, want EmbeddingMalformed", errkind.KindOf(err))
	}
}

func TestClientMissingVectorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 8, 3, time.Second)
	_, err := c.Embed(context.Background(), "hello")
	if errkind.KindOf(err) != errkind.KindEmbeddingMalformed {
		t.Errorf("kind = %v, want EmbeddingMalformed", errkind.KindOf(err))
	}
}

func TestClientUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 8, 3, 200*time.Millisecond)
	_, err := c.Embed(context.Background(), "hello")
	if errkind.KindOf(err) != errkind.KindEmbeddingUnavailable {
		t.Errorf("kind = %v, want EmbeddingUnavailable", errkind.KindOf(err))
	}
}

func TestClientRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	srv := embedServer(t, 8, func(w http.ResponseWriter, r *http.Request) bool {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return true
		}
		return false
	})
	defer srv.Close()

	retried := 0
	c := NewClient(srv.URL, 8, 3, time.Second, WithRetryHook(func() { retried++ }))
	if _, err := c.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("Embed after retry: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
	if retried != 1 {
		t.Errorf("retry hook fired %d times, want 1", retried)
	}
}

func TestClientSemaphoreBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		vec := make([]float32, 4)
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 4, 2, time.Second)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Embed(context.Background(), "x")
		}()
	}
	wg.Wait()
	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestCacheHitsSkipInner(t *testing.T) {
	var calls atomic.Int32
	srv := embedServer(t, 4, func(w http.ResponseWriter, r *http.Request) bool {
		calls.Add(1)
		return false
	})
	defer srv.Close()

	c := NewCache(NewClient(srv.URL, 4, 3, time.Second), 16)
	for i := 0; i < 3; i++ {
		if _, err := c.Embed(context.Background(), "same text"); err != nil {
			t.Fatalf("Embed: %v", err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("inner calls = %d, want 1", got)
	}
}

func TestCacheEviction(t *testing.T) {
	inner := NewMockEmbedder(4)
	c := NewCache(inner, 2)
	ctx := context.Background()
	_, _ = c.Embed(ctx, "a")
	_, _ = c.Embed(ctx, "b")
	_, _ = c.Embed(ctx, "c") // evicts "a"
	if len(c.entries) != 2 {
		t.Errorf("cache size = %d, want 2", len(c.entries))
	}
	if _, ok := c.entries["a"]; ok {
		t.Error("oldest entry not evicted")
	}
}

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	a, _ := e.Embed(context.Background(), "text")
	b, _ := e.Embed(context.Background(), "text")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("mock embedder not deterministic")
		}
	}
}
