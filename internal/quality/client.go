// Package quality provides the client for the external quality scorer.
// Quality assessment is non-critical: the orchestrator proceeds without a
// score when this client fails.
package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hyperjump/chishiki/internal/models"
	"github.com/hyperjump/chishiki/pkg/utils"
)

// Result carries the assessment and the time it took.
type Result struct {
	Report   models.QualityReport
	TimingMS float64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// Client calls the quality scorer over HTTP.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// NewClient creates a quality client with the given per-call budget.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{baseURL: baseURL, timeout: timeout, http: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type assessRequest struct {
	Content    string `json:"content"`
	SourcePath string `json:"source_path"`
	Language   string `json:"language,omitempty"`
}

type assessResponse struct {
	QualityScore float64         `json:"quality_score"`
	Compliance   map[string]bool `json:"compliance"`
}

// Assess scores content. The score is clamped to [0, 1].
func (c *Client) Assess(ctx context.Context, content, sourcePath, language string) (*Result, error) {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(assessRequest{Content: content, SourcePath: sourcePath, Language: language})
	if err != nil {
		return nil, fmt.Errorf("encode assess request: %w", err)
	}
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/assess/code", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build assess request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quality service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quality service returned %d", resp.StatusCode)
	}

	var out assessResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode assess response: %w", err)
	}
	return &Result{
		Report: models.QualityReport{
			Score:      utils.Clamp01(out.QualityScore),
			Compliance: out.Compliance,
		},
		TimingMS: float64(time.Since(start).Microseconds()) / 1000.0,
	}, nil
}
