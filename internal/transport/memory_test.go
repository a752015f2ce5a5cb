package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope("document-index-requested", "c-1", "test", map[string]string{"k": "v"})
	if err != nil {
		t.Fatal(err)
	}
	if env.CorrelationID != "c-1" || env.EventType != "document-index-requested" {
		t.Errorf("envelope: %+v", env)
	}
	if env.EmittedAt.IsZero() {
		t.Error("emitted_at not stamped")
	}

	// Missing correlation ID gets assigned.
	env, _ = NewEnvelope("x", "", "test", nil)
	if env.CorrelationID == "" {
		t.Error("correlation id not assigned")
	}
}

func TestMemoryTransportQueueGroupDeliversToOne(t *testing.T) {
	tr := NewMemoryTransport()
	var a, b atomic.Int32
	_, _ = tr.Subscribe("t", "workers", func(ctx context.Context, env Envelope) error {
		a.Add(1)
		return nil
	})
	_, _ = tr.Subscribe("t", "workers", func(ctx context.Context, env Envelope) error {
		b.Add(1)
		return nil
	})

	for i := 0; i < 10; i++ {
		env, _ := NewEnvelope("e", "", "test", nil)
		_ = tr.Publish(context.Background(), "t", env)
	}
	tr.Flush()

	if got := a.Load() + b.Load(); got != 10 {
		t.Errorf("total deliveries = %d, want 10", got)
	}
	if a.Load() == 0 || b.Load() == 0 {
		t.Errorf("round robin skewed: a=%d b=%d", a.Load(), b.Load())
	}
}

func TestMemoryTransportDistinctGroupsEachReceive(t *testing.T) {
	tr := NewMemoryTransport()
	var mu sync.Mutex
	got := map[string]int{}
	for _, g := range []string{"g1", "g2"} {
		group := g
		_, _ = tr.Subscribe("t", group, func(ctx context.Context, env Envelope) error {
			mu.Lock()
			got[group]++
			mu.Unlock()
			return nil
		})
	}
	env, _ := NewEnvelope("e", "", "test", nil)
	_ = tr.Publish(context.Background(), "t", env)
	tr.Flush()

	if got["g1"] != 1 || got["g2"] != 1 {
		t.Errorf("deliveries = %v, want one per group", got)
	}
}

func TestMemoryTransportTopicIsolation(t *testing.T) {
	tr := NewMemoryTransport()
	var n atomic.Int32
	_, _ = tr.Subscribe("t1", "g", func(ctx context.Context, env Envelope) error {
		n.Add(1)
		return nil
	})
	env, _ := NewEnvelope("e", "", "test", nil)
	_ = tr.Publish(context.Background(), "t2", env)
	tr.Flush()
	if n.Load() != 0 {
		t.Error("handler received envelope from another topic")
	}
}
