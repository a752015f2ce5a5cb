// Package lexical provides the keyword (RAG) search source: an embedded
// bleve index for single-node deployments and an HTTP client for a remote
// RAG service. The search aggregator treats both uniformly.
package lexical

import "context"

// Document is the unit of lexical indexing.
type Document struct {
	SourcePath  string `json:"source_path"`
	ProjectName string `json:"project_name"`
	Language    string `json:"language,omitempty"`
	Content     string `json:"content"`
}

// Result is one lexical hit. Score is normalized to [0, 1] by the source.
type Result struct {
	SourcePath  string  `json:"source_path"`
	Score       float64 `json:"score"`
	Excerpt     string  `json:"excerpt,omitempty"`
	ProjectName string  `json:"project_name,omitempty"`
	Language    string  `json:"language,omitempty"`
}

// Source serves lexical queries.
type Source interface {
	Search(ctx context.Context, query, projectName string, limit int) ([]Result, error)
	Close() error
}

// Indexer is implemented by sources that also accept documents (the
// embedded bleve index does; a remote RAG service is fed elsewhere).
type Indexer interface {
	Index(ctx context.Context, doc Document) error
	Delete(ctx context.Context, sourcePath string) error
}
