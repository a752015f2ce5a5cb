// Package metastore defines the relational metadata store: one row per
// indexed document, carrying the fingerprint, quality score, and indexing
// counters. The search aggregator reads quality scores from here when a
// source does not supply them.
package metastore

import (
	"context"
	"time"
)

// DocumentRecord is the stored metadata of one indexed document.
type DocumentRecord struct {
	SourcePath    string    `db:"source_path"`
	ProjectName   string    `db:"project_name"`
	Language      string    `db:"language"`
	ContentHash   string    `db:"content_hash"`
	HashAlgorithm string    `db:"hash_algorithm"`
	QualityScore  *float64  `db:"quality_score"`
	EntityCount   int       `db:"entity_count"`
	ChunkCount    int       `db:"chunk_count"`
	IndexedAt     time.Time `db:"indexed_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// Store is the metadata persistence contract. Upsert is keyed by
// (project_name, source_path).
type Store interface {
	Upsert(ctx context.Context, rec *DocumentRecord) error
	Get(ctx context.Context, projectName, sourcePath string) (*DocumentRecord, error)
	// QualityScores returns the known quality scores for the given source
	// paths within a project. Paths without a score are absent from the map.
	QualityScores(ctx context.Context, projectName string, sourcePaths []string) (map[string]float64, error)
	List(ctx context.Context, projectName string, offset, limit int) ([]*DocumentRecord, error)
	Count(ctx context.Context, projectName string) (int64, error)
	Delete(ctx context.Context, projectName, sourcePath string) error
	Close() error
}
