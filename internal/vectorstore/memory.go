package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory vector store using brute-force inner product
// search. Suitable for tests and small datasets.
type MemoryStore struct {
	dimensions  int
	mu          sync.RWMutex
	collections map[string]map[string]Point
}

// NewMemoryStore creates an in-memory store with the given dimension.
func NewMemoryStore(dimensions int) (*MemoryStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryStore{
		dimensions:  dimensions,
		collections: make(map[string]map[string]Point),
	}, nil
}

// Upsert merges points into collection by ID.
func (m *MemoryStore) Upsert(ctx context.Context, collection string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string]Point)
		m.collections[collection] = coll
	}
	for _, p := range points {
		if len(p.Vector) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(p.Vector), m.dimensions)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, p.Vector)
		payload := make(map[string]any, len(p.Payload))
		for k, v := range p.Payload {
			payload[k] = v
		}
		coll[p.ID] = Point{ID: p.ID, Vector: vec, Payload: payload}
	}
	return nil
}

// Search returns the top-limit points by inner product (cosine similarity
// for normalized vectors), restricted to those matching filter.
func (m *MemoryStore) Search(ctx context.Context, collection string, vector []float32, filter *Filter, limit int) ([]Hit, error) {
	if len(vector) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vector), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll := m.collections[collection]
	if limit <= 0 || len(coll) == 0 {
		return nil, nil
	}
	hits := make([]Hit, 0, len(coll))
	for _, p := range coll {
		if !matches(p.Payload, filter) {
			continue
		}
		var dot float64
		for i := 0; i < m.dimensions; i++ {
			dot += float64(vector[i] * p.Vector[i])
		}
		hits = append(hits, Hit{ID: p.ID, Score: dot, Payload: p.Payload})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > len(hits) {
		limit = len(hits)
	}
	return hits[:limit], nil
}

// Delete removes points by ID.
func (m *MemoryStore) Delete(ctx context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.collections[collection]
	for _, id := range ids {
		delete(coll, id)
	}
	return nil
}

// Count returns the number of points in collection.
func (m *MemoryStore) Count(ctx context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection]), nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error { return nil }
