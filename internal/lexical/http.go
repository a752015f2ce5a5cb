package lexical

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPSource queries a remote RAG search service.
type HTTPSource struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// NewHTTPSource creates a client for the RAG service at baseURL.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{baseURL: baseURL, timeout: timeout, http: &http.Client{}}
}

// Search posts the query to the RAG service.
func (h *HTTPSource) Search(ctx context.Context, queryStr, projectName string, limit int) ([]Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"query":        queryStr,
		"project_name": projectName,
		"max_results":  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("encode rag request: %w", err)
	}
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, h.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rag request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rag service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rag service returned %d", resp.StatusCode)
	}

	var out struct {
		Results []Result `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode rag response: %w", err)
	}
	return out.Results, nil
}

// Close is a no-op for the HTTP source.
func (h *HTTPSource) Close() error { return nil }
