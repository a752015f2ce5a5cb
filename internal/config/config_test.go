package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Embedding.Dimension != 1536 {
		t.Errorf("embedding dimension = %d, want 1536", cfg.Embedding.Dimension)
	}
	if cfg.Embedding.MaxConcurrent != 3 {
		t.Errorf("embedding max_concurrent = %d, want 3", cfg.Embedding.MaxConcurrent)
	}
	if cfg.Indexing.ChunkSize != 1000 || cfg.Indexing.ChunkOverlap != 200 {
		t.Errorf("chunking defaults = (%d, %d), want (1000, 200)", cfg.Indexing.ChunkSize, cfg.Indexing.ChunkOverlap)
	}
	if cfg.Indexing.HardBudgetS != 300 {
		t.Errorf("hard budget = %d, want 300", cfg.Indexing.HardBudgetS)
	}
	if cfg.Fingerprint.Algorithm != "blake3" {
		t.Errorf("fingerprint algorithm = %q, want blake3", cfg.Fingerprint.Algorithm)
	}
	if cfg.Indexing.VectorPartialFailure != "succeed" {
		t.Errorf("vector_partial_failure = %q, want succeed", cfg.Indexing.VectorPartialFailure)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
embedding:
  url: http://localhost:9000
  max_concurrent: 8
indexing:
  chunk_size: 500
  chunk_overlap: 100
vector_store:
  type: http
  url: http://localhost:6333
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug not set")
	}
	if cfg.Embedding.MaxConcurrent != 8 {
		t.Errorf("max_concurrent = %d, want 8", cfg.Embedding.MaxConcurrent)
	}
	if cfg.Embedding.Dimension != 1536 {
		t.Errorf("dimension default not applied, got %d", cfg.Embedding.Dimension)
	}
	if cfg.Indexing.ChunkSize != 500 {
		t.Errorf("chunk_size = %d, want 500", cfg.Indexing.ChunkSize)
	}
	if cfg.VectorStore.Type != "http" {
		t.Errorf("vector store type = %q, want http", cfg.VectorStore.Type)
	}
}

func TestLoadQualityWeight(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("search:\n  quality_weight: 0.3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.QualityWeight != 0.3 {
		t.Errorf("quality_weight = %v, want 0.3", cfg.Search.QualityWeight)
	}
	if Default().Search.QualityWeight != 0 {
		t.Error("default quality_weight should be 0 (disabled)")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"semaphore over cap", "embedding:\n  max_concurrent: 64\n"},
		{"overlap >= size", "indexing:\n  chunk_size: 100\n  chunk_overlap: 100\n"},
		{"bad partial policy", "indexing:\n  vector_partial_failure: maybe\n"},
		{"quality weight over 1", "search:\n  quality_weight: 1.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
