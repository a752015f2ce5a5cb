package metastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not
// exist. Path ":memory:" keeps the database in memory (tests).
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise get its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	} else {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		project_name TEXT NOT NULL,
		source_path TEXT NOT NULL,
		language TEXT,
		content_hash TEXT NOT NULL,
		hash_algorithm TEXT NOT NULL,
		quality_score REAL,
		entity_count INTEGER NOT NULL DEFAULT 0,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		indexed_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (project_name, source_path)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);
	CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_name);
	`
	_, err := db.Exec(schema)
	return err
}

// Upsert inserts or replaces the record for (project_name, source_path),
// preserving the original indexed_at on update.
func (s *SQLiteStore) Upsert(ctx context.Context, rec *DocumentRecord) error {
	now := time.Now().UTC()
	if rec.IndexedAt.IsZero() {
		rec.IndexedAt = now
	}
	rec.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents
			(project_name, source_path, language, content_hash, hash_algorithm,
			 quality_score, entity_count, chunk_count, indexed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_name, source_path) DO UPDATE SET
			language = excluded.language,
			content_hash = excluded.content_hash,
			hash_algorithm = excluded.hash_algorithm,
			quality_score = COALESCE(excluded.quality_score, documents.quality_score),
			entity_count = excluded.entity_count,
			chunk_count = excluded.chunk_count,
			updated_at = excluded.updated_at`,
		rec.ProjectName, rec.SourcePath, rec.Language, rec.ContentHash, rec.HashAlgorithm,
		rec.QualityScore, rec.EntityCount, rec.ChunkCount, rec.IndexedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// Get returns the record for (projectName, sourcePath), or nil when absent.
func (s *SQLiteStore) Get(ctx context.Context, projectName, sourcePath string) (*DocumentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT project_name, source_path, language, content_hash, hash_algorithm,
		       quality_score, entity_count, chunk_count, indexed_at, updated_at
		FROM documents WHERE project_name = ? AND source_path = ?`,
		projectName, sourcePath)
	var rec DocumentRecord
	err := row.Scan(&rec.ProjectName, &rec.SourcePath, &rec.Language, &rec.ContentHash,
		&rec.HashAlgorithm, &rec.QualityScore, &rec.EntityCount, &rec.ChunkCount,
		&rec.IndexedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &rec, nil
}

// QualityScores returns the known quality scores for sourcePaths within a
// project.
func (s *SQLiteStore) QualityScores(ctx context.Context, projectName string, sourcePaths []string) (map[string]float64, error) {
	out := make(map[string]float64)
	if len(sourcePaths) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(sourcePaths)), ",")
	args := make([]any, 0, len(sourcePaths)+1)
	args = append(args, projectName)
	for _, p := range sourcePaths {
		args = append(args, p)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_path, quality_score FROM documents
		 WHERE project_name = ? AND source_path IN (`+placeholders+`)
		 AND quality_score IS NOT NULL`, args...)
	if err != nil {
		return nil, fmt.Errorf("query quality scores: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var path string
		var score float64
		if err := rows.Scan(&path, &score); err != nil {
			return nil, fmt.Errorf("scan quality score: %w", err)
		}
		out[path] = score
	}
	return out, rows.Err()
}

// List returns records for a project ordered by path.
func (s *SQLiteStore) List(ctx context.Context, projectName string, offset, limit int) ([]*DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_name, source_path, language, content_hash, hash_algorithm,
		       quality_score, entity_count, chunk_count, indexed_at, updated_at
		FROM documents WHERE project_name = ?
		ORDER BY source_path LIMIT ? OFFSET ?`,
		projectName, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	var out []*DocumentRecord
	for rows.Next() {
		var rec DocumentRecord
		if err := rows.Scan(&rec.ProjectName, &rec.SourcePath, &rec.Language, &rec.ContentHash,
			&rec.HashAlgorithm, &rec.QualityScore, &rec.EntityCount, &rec.ChunkCount,
			&rec.IndexedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Count returns the number of records for a project.
func (s *SQLiteStore) Count(ctx context.Context, projectName string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE project_name = ?`, projectName).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Delete removes the record for (projectName, sourcePath).
func (s *SQLiteStore) Delete(ctx context.Context, projectName, sourcePath string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE project_name = ? AND source_path = ?`,
		projectName, sourcePath)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
