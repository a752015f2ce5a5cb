package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hyperjump/chishiki/internal/errkind"
)

// HTTPStore talks to an external vector store over its REST API
// (points-upsert / points-search, qdrant wire shape).
type HTTPStore struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// NewHTTPStore creates a client for the store at baseURL.
func NewHTTPStore(baseURL string, timeout time.Duration) *HTTPStore {
	return &HTTPStore{baseURL: baseURL, timeout: timeout, http: &http.Client{}}
}

type wirePoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type wireCondition struct {
	Key   string         `json:"key"`
	Match map[string]any `json:"match,omitempty"`
	Range map[string]any `json:"range,omitempty"`
}

type wireFilter struct {
	Must []wireCondition `json:"must,omitempty"`
}

func toWireFilter(f *Filter) *wireFilter {
	if f == nil {
		return nil
	}
	var wf wireFilter
	for key, v := range f.Match {
		wf.Must = append(wf.Must, wireCondition{Key: key, Match: map[string]any{"value": v}})
	}
	for key, cond := range f.Range {
		r := map[string]any{}
		if cond.Min != nil {
			r["gte"] = *cond.Min
		}
		if cond.Max != nil {
			r["lte"] = *cond.Max
		}
		wf.Must = append(wf.Must, wireCondition{Key: key, Range: r})
	}
	for key, values := range f.AnyOf {
		wf.Must = append(wf.Must, wireCondition{Key: key, Match: map[string]any{"any": values}})
	}
	if len(wf.Must) == 0 {
		return nil
	}
	return &wf
}

func (h *HTTPStore) do(ctx context.Context, method, path string, in, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return errkind.Wrap(errkind.KindInternal, "encode vector store request", err)
		}
	}
	req, err := http.NewRequestWithContext(callCtx, method, h.baseURL+path, &body)
	if err != nil {
		return errkind.Wrap(errkind.KindVectorStoreUnavailable, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.http.Do(req)
	if err != nil {
		return errkind.Wrap(errkind.KindVectorStoreUnavailable, "vector store unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errkind.New(errkind.KindVectorStoreUnavailable,
			fmt.Sprintf("vector store returned %d for %s %s", resp.StatusCode, method, path))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errkind.Wrap(errkind.KindVectorStoreUnavailable, "decode vector store response", err)
		}
	}
	return nil
}

// Upsert writes points into collection.
func (h *HTTPStore) Upsert(ctx context.Context, collection string, points []Point) error {
	wp := make([]wirePoint, len(points))
	for i, p := range points {
		wp[i] = wirePoint{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
	}
	return h.do(ctx, http.MethodPut, "/collections/"+collection+"/points", map[string]any{"points": wp}, nil)
}

// Search queries collection for the nearest points matching filter.
func (h *HTTPStore) Search(ctx context.Context, collection string, vector []float32, filter *Filter, limit int) ([]Hit, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if wf := toWireFilter(filter); wf != nil {
		reqBody["filter"] = wf
	}
	var out struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := h.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", reqBody, &out); err != nil {
		return nil, err
	}
	hits := make([]Hit, len(out.Result))
	for i, r := range out.Result {
		hits[i] = Hit{ID: r.ID, Score: r.Score, Payload: r.Payload}
	}
	return hits, nil
}

// Delete removes points by ID.
func (h *HTTPStore) Delete(ctx context.Context, collection string, ids []string) error {
	return h.do(ctx, http.MethodPost, "/collections/"+collection+"/points/delete", map[string]any{"points": ids}, nil)
}

// Count returns the number of points in collection.
func (h *HTTPStore) Count(ctx context.Context, collection string) (int, error) {
	var out struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := h.do(ctx, http.MethodPost, "/collections/"+collection+"/points/count", map[string]any{}, &out); err != nil {
		return 0, err
	}
	return out.Result.Count, nil
}

// Close is a no-op for the HTTP store.
func (h *HTTPStore) Close() error { return nil }
