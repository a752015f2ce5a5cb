// Package extractor provides the client for the external
// entity/relationship extraction service and normalizes its responses into
// the canonical records. The extractor's raw schema never leaves this
// package.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/chishiki/internal/errkind"
	"github.com/hyperjump/chishiki/internal/models"
)

// Options tunes one extraction call.
type Options struct {
	ExtractCodePatterns           bool   `json:"extract_code_patterns"`
	ExtractDocumentationConcepts  bool   `json:"extract_documentation_concepts"`
	IncludeSemanticAnalysis       bool   `json:"include_semantic_analysis"`
	IncludeRelationshipExtraction bool   `json:"include_relationship_extraction"`
	SemanticContext               string `json:"semantic_context,omitempty"`
}

// DefaultOptions enables every extraction feature.
func DefaultOptions() Options {
	return Options{
		ExtractCodePatterns:           true,
		ExtractDocumentationConcepts:  true,
		IncludeSemanticAnalysis:       true,
		IncludeRelationshipExtraction: true,
	}
}

// Result is a normalized extraction outcome.
type Result struct {
	Entities      []models.Entity
	Relationships []models.Relationship
	TimingMS      float64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets a logger for normalization warnings.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// Client calls the extraction service over HTTP.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates an extractor client with the given per-call budget.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{baseURL: baseURL, timeout: timeout, http: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wire types: the extractor's response schema, internal to this package.

type extractRequest struct {
	DocumentPath string  `json:"document_path"`
	Content      string  `json:"content"`
	Options      Options `json:"extraction_options"`
}

type wireEntity struct {
	EntityID    string         `json:"entity_id"`
	Name        string         `json:"name"`
	EntityType  string         `json:"entity_type"`
	Description string         `json:"description"`
	SourcePath  string         `json:"source_path"`
	Confidence  float64        `json:"confidence_score"`
	LineNumber  int            `json:"line_number"`
	Properties  map[string]any `json:"properties"`
}

type wireRelationship struct {
	RelationshipID string         `json:"relationship_id"`
	SourceID       string         `json:"source_entity_id"`
	SourceName     string         `json:"source_entity_name"`
	TargetID       string         `json:"target_entity_id"`
	TargetName     string         `json:"target_entity_name"`
	Type           string         `json:"relationship_type"`
	Confidence     float64        `json:"confidence_score"`
	Properties     map[string]any `json:"properties"`
}

type extractResponse struct {
	Entities      []wireEntity       `json:"enriched_entities"`
	Relationships []wireRelationship `json:"relationships"`
	Stats         map[string]any     `json:"extraction_statistics"`
}

// Extract calls the extraction service and returns normalized entities and
// relationships. projectName scopes the deterministic entity IDs assigned
// when the extractor does not supply one.
func (c *Client) Extract(ctx context.Context, projectName, sourcePath, content string, opts Options) (*Result, error) {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(extractRequest{DocumentPath: sourcePath, Content: content, Options: opts})
	if err != nil {
		return nil, errkind.Wrap(errkind.KindInternal, "encode extract request", err)
	}
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/extract/document", bytes.NewReader(body))
	if err != nil {
		return nil, errkind.Wrap(errkind.KindExtractionUnavailable, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if callCtx.Err() != nil {
			return nil, errkind.Wrap(errkind.KindExtractionTimeout, "extraction call exceeded budget", err)
		}
		return nil, errkind.Wrap(errkind.KindExtractionUnavailable, "extraction service unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errkind.New(errkind.KindExtractionRejected,
			fmt.Sprintf("extraction rejected with %d: %s", resp.StatusCode, string(b)))
	case resp.StatusCode != http.StatusOK:
		return nil, errkind.New(errkind.KindExtractionUnavailable,
			fmt.Sprintf("extraction service returned %d", resp.StatusCode))
	}

	var wire extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, errkind.Wrap(errkind.KindExtractionUnavailable, "decode extraction response", err)
	}

	result := c.normalize(projectName, sourcePath, &wire)
	result.TimingMS = float64(time.Since(start).Microseconds()) / 1000.0
	return result, nil
}
