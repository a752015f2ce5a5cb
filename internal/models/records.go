// Package models defines the records that flow through the indexing
// pipeline and search aggregator. Records are immutable once emitted;
// mutation happens by producing a new record.
package models

import "time"

// IndexingOptions tunes one indexing request. Zero values mean "use the
// configured default" for sizes and "do not skip" for the skip flags.
type IndexingOptions struct {
	ForceReindex          bool `json:"force_reindex,omitempty"`
	SkipEntityExtraction  bool `json:"skip_entity_extraction,omitempty"`
	SkipQualityAssessment bool `json:"skip_quality_assessment,omitempty"`
	SkipVectorIndexing    bool `json:"skip_vector_indexing,omitempty"`
	SkipKnowledgeGraph    bool `json:"skip_knowledge_graph,omitempty"`
	ChunkSize             int  `json:"chunk_size,omitempty"`
	ChunkOverlap          int  `json:"chunk_overlap,omitempty"`
}

// IndexRequest is a single-document unit of work driving the orchestrator.
type IndexRequest struct {
	SourcePath    string          `json:"source_path"`
	Content       string          `json:"content"`
	Language      string          `json:"language,omitempty"`
	ProjectID     string          `json:"project_id,omitempty"`
	ProjectName   string          `json:"project_name"`
	RepositoryURL string          `json:"repository_url,omitempty"`
	CommitSHA     string          `json:"commit_sha,omitempty"`
	Options       IndexingOptions `json:"indexing_options,omitempty"`
	UserID        string          `json:"user_id,omitempty"`
	CorrelationID string          `json:"correlation_id"`
}

// Verdict is the deduplication outcome of content stamping.
type Verdict string

const (
	VerdictNew       Verdict = "new"
	VerdictDuplicate Verdict = "duplicate"
)

// Fingerprint is the stamping result for one document. Hash is a pure
// function of the content bytes; Algorithm records which digest was used so
// readers never compare digests across algorithms.
type Fingerprint struct {
	Hash      string    `json:"hash"`
	Algorithm string    `json:"algorithm"`
	Verdict   Verdict   `json:"verdict"`
	StampedAt time.Time `json:"stamped_at"`
}

// Entity is a normalized extraction result. ID is stable across
// re-ingestion of the same (project, source path, name, kind) tuple.
type Entity struct {
	ID          string         `json:"entity_id"`
	Name        string         `json:"name"`
	Kind        EntityKind     `json:"entity_type"`
	Description string         `json:"description,omitempty"`
	SourcePath  string         `json:"source_path"`
	Confidence  float64        `json:"confidence_score"`
	LineNumber  int            `json:"line_number,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	Embedding   []float32      `json:"-"`
}

// Relationship links two entities. Extraction normalization drops a
// relationship whose endpoints were not returned with it; the graph writer
// drops one with an empty endpoint ID and creates a project-scoped
// placeholder node for an endpoint it has not written itself.
type Relationship struct {
	ID         string           `json:"relationship_id"`
	SourceID   string           `json:"source_entity_id"`
	TargetID   string           `json:"target_entity_id"`
	Kind       RelationshipKind `json:"relationship_type"`
	Confidence float64          `json:"confidence_score"`
	Properties map[string]any   `json:"properties,omitempty"`
}

// QualityReport is the quality scorer's assessment of one document.
type QualityReport struct {
	Score      float64         `json:"quality_score"`
	Compliance map[string]bool `json:"compliance,omitempty"`
}

// FileRecord is one entry of a tree-index batch.
type FileRecord struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// SearchResultItem is a single ranked hit. Metadata carries provenance
// ("source": rag|vector|knowledge_graph), quality score when known, file
// path, and language. Ephemeral: held only for one query response.
type SearchResultItem struct {
	SourcePath string         `json:"source_path"`
	Score      float64        `json:"score"`
	Excerpt    string         `json:"excerpt,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
