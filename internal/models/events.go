package models

import (
	"encoding/json"
	"fmt"
)

// ServiceTimings maps a per-service timing name (e.g. "metadata_stamping_ms")
// to elapsed milliseconds for one request.
type ServiceTimings map[string]float64

// ServiceFailures counts non-critical failures per service name for one
// request.
type ServiceFailures map[string]int

// IndexCompleted is the payload of intelligence.document-index-completed.
type IndexCompleted struct {
	CorrelationID        string          `json:"correlation_id"`
	DocumentHash         string          `json:"document_hash"`
	EntityIDs            []string        `json:"entity_ids"`
	VectorIDs            []string        `json:"vector_ids"`
	QualityScore         *float64        `json:"quality_score,omitempty"`
	Compliance           map[string]bool `json:"compliance,omitempty"`
	EntitiesExtracted    int             `json:"entities_extracted"`
	RelationshipsCreated int             `json:"relationships_created"`
	ChunksIndexed        int             `json:"chunks_indexed"`
	ServiceTimings       ServiceTimings  `json:"service_timings"`
	ServiceFailures      ServiceFailures `json:"service_failures,omitempty"`
	CacheHit             bool            `json:"cache_hit"`
	EnrichmentPending    bool            `json:"enrichment_pending,omitempty"`
	ProcessingTimeMS     float64         `json:"processing_time_ms"`
}

// IndexFailed is the payload of intelligence.document-index-failed.
type IndexFailed struct {
	CorrelationID   string          `json:"correlation_id"`
	ErrorKind       string          `json:"error_kind"`
	ErrorMessage    string          `json:"error_message"`
	FailedComponent string          `json:"failed_component,omitempty"`
	RetryAllowed    bool            `json:"retry_allowed"`
	RetryCount      int             `json:"retry_count"`
	PartialResults  *IndexCompleted `json:"partial_results,omitempty"`
	SuggestedAction string          `json:"suggested_action,omitempty"`
}

// SearchKind selects which sources a search fans out to.
type SearchKind string

const (
	SearchSemantic       SearchKind = "semantic"
	SearchVector         SearchKind = "vector"
	SearchKnowledgeGraph SearchKind = "knowledge_graph"
	SearchHybrid         SearchKind = "hybrid"
)

// SearchFilters narrows a search. PathPattern is a glob
// (e.g. services/**/*.py) applied client-side after retrieval.
type SearchFilters struct {
	ProjectID   string     `json:"project_id,omitempty"`
	ProjectName string     `json:"project_name,omitempty"`
	Language    string     `json:"language,omitempty"`
	EntityType  EntityKind `json:"entity_type,omitempty"`
	MinQuality  *float64   `json:"min_quality,omitempty"`
	MaxQuality  *float64   `json:"max_quality,omitempty"`
	PathPattern string     `json:"path_pattern,omitempty"`
}

// SearchRequest is the payload of intelligence.search-requested.
type SearchRequest struct {
	Query          string        `json:"query"`
	Kind           SearchKind    `json:"search_type"`
	Filters        SearchFilters `json:"filters,omitempty"`
	MaxResults     int           `json:"max_results,omitempty"`
	QualityWeight  *float64      `json:"quality_weight,omitempty"`
	IncludeContext bool          `json:"include_context,omitempty"`
	CorrelationID  string        `json:"correlation_id"`
}

// SearchResponse is the payload of intelligence.search-completed.
type SearchResponse struct {
	CorrelationID  string             `json:"correlation_id"`
	Results        []SearchResultItem `json:"results"`
	TotalResults   int                `json:"total_results"`
	SourcesQueried []string           `json:"sources_queried"`
	FailedSources  []string           `json:"failed_sources,omitempty"`
	ServiceTimings ServiceTimings     `json:"service_timings,omitempty"`
	RankingMode    string             `json:"ranking_mode"`
	SearchTimeMS   float64            `json:"search_time_ms"`
}

// TreeIndexRequest is the payload of intelligence.tree-index: a batch of
// file records for bulk ingestion under one project root.
type TreeIndexRequest struct {
	ProjectName   string          `json:"project_name"`
	ProjectRoot   string          `json:"project_root"`
	Files         []FileRecord    `json:"files"`
	Options       IndexingOptions `json:"indexing_options,omitempty"`
	CorrelationID string          `json:"correlation_id"`
}

// ParseIndexRequest decodes an indexing request payload. Mis-shaped
// payloads fail here, at the boundary; internal code consumes only the
// parsed record. Required fields are checked later, by the orchestrator's
// validation gate.
func ParseIndexRequest(payload []byte) (*IndexRequest, error) {
	var req IndexRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode index request: %w", err)
	}
	return &req, nil
}

// ParseSearchRequest decodes a search request payload.
func ParseSearchRequest(payload []byte) (*SearchRequest, error) {
	var req SearchRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode search request: %w", err)
	}
	return &req, nil
}

// ParseTreeIndexRequest decodes a tree-index batch payload.
func ParseTreeIndexRequest(payload []byte) (*TreeIndexRequest, error) {
	var req TreeIndexRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode tree-index request: %w", err)
	}
	return &req, nil
}
