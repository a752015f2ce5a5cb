package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hyperjump/chishiki/internal/errkind"
)

const (
	// retryBackoff is the fixed delay before the single retry attempt.
	retryBackoff = 500 * time.Millisecond
	// attempts is the total number of tries per call.
	attempts = 2
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithRetryHook installs a callback invoked once per retried call
// (metrics).
func WithRetryHook(fn func()) ClientOption {
	return func(c *Client) { c.onRetry = fn }
}

// Client calls the external embedding service over HTTP. A process-wide
// counting semaphore of capacity maxConcurrent gates every outbound call:
// callers above the cap wait rather than queueing inside the backend. Load
// shedding happens here, at admission, so per-request latency stays
// predictable under bulk indexing.
type Client struct {
	baseURL    string
	dimensions int
	timeout    time.Duration
	sem        *semaphore.Weighted
	http       *http.Client
	onRetry    func()
}

// NewClient creates a client for the embedding service at baseURL.
// maxConcurrent is clamped to [1, 32]; timeout is the per-call budget.
func NewClient(baseURL string, dimensions, maxConcurrent int, timeout time.Duration, opts ...ClientOption) *Client {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if maxConcurrent > 32 {
		maxConcurrent = 32
	}
	c := &Client{
		baseURL:    baseURL,
		dimensions: dimensions,
		timeout:    timeout,
		sem:        semaphore.NewWeighted(int64(maxConcurrent)),
		http:       &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding for text. The call waits for a semaphore slot,
// then makes up to two attempts with a short fixed backoff. On final failure
// the typed error is returned; callers decide whether to proceed without an
// embedding.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, errkind.Wrap(errkind.KindEmbeddingTimeout, "waiting for embedding slot", err)
	}
	defer c.sem.Release(1)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if c.onRetry != nil {
				c.onRetry()
			}
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return nil, errkind.Wrap(errkind.KindEmbeddingTimeout, "cancelled during backoff", ctx.Err())
			}
		}
		vec, err := c.embedOnce(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		// Malformed responses will not fix themselves on retry.
		if errkind.KindOf(err) == errkind.KindEmbeddingMalformed {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) embedOnce(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, errkind.Wrap(errkind.KindEmbeddingMalformed, "encode request", err)
	}
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, errkind.Wrap(errkind.KindEmbeddingUnavailable, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			return nil, errkind.Wrap(errkind.KindEmbeddingTimeout, "embedding call exceeded budget", err)
		}
		return nil, errkind.Wrap(errkind.KindEmbeddingUnavailable, "embedding service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errkind.New(errkind.KindEmbeddingUnavailable,
			fmt.Sprintf("embedding service returned %d: %s", resp.StatusCode, string(b)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errkind.Wrap(errkind.KindEmbeddingMalformed, "decode response", err)
	}
	if len(out.Embedding) == 0 {
		return nil, errkind.New(errkind.KindEmbeddingMalformed, "response missing embedding field")
	}
	if len(out.Embedding) != c.dimensions {
		return nil, errkind.New(errkind.KindEmbeddingMalformed,
			fmt.Sprintf("embedding dimension mismatch: got %d, expected %d", len(out.Embedding), c.dimensions))
	}
	return out.Embedding, nil
}

// EmbedBatch embeds each text in order. The semaphore still gates each call,
// so a large batch cannot starve other callers.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch item %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (c *Client) Dimensions() int { return c.dimensions }

// Close is a no-op for the HTTP client.
func (c *Client) Close() error { return nil }
