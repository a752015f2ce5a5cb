// Package config provides configuration loading and structs for the
// Chishiki services. Configuration is read once at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Transport   TransportConfig   `yaml:"transport"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	Services    ServicesConfig    `yaml:"services"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	GraphStore  GraphStoreConfig  `yaml:"graph_store"`
	Lexical     LexicalConfig     `yaml:"lexical"`
	MetaStore   MetaStoreConfig   `yaml:"meta_store"`
	Indexing    IndexingConfig    `yaml:"indexing"`
	Search      SearchConfig      `yaml:"search"`
	Crawl       CrawlConfig       `yaml:"crawl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host               string   `yaml:"host"`
	Port               int      `yaml:"port"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// TransportConfig holds NATS settings.
type TransportConfig struct {
	URL          string `yaml:"url"`
	QueueGroup   string `yaml:"queue_group"`
	MaxRedeliver int    `yaml:"max_redeliver"`
}

// EmbeddingConfig holds external embedding service settings.
type EmbeddingConfig struct {
	URL           string `yaml:"url"`
	Dimension     int    `yaml:"dimension"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	TimeoutS      int    `yaml:"generation_timeout_s"`
	CacheSize     int    `yaml:"cache_size"`
}

// FingerprintConfig holds stamping settings. Algorithm is "blake3" or
// "sha256"; RedisURL empty selects the in-memory seen index.
type FingerprintConfig struct {
	Algorithm string `yaml:"algorithm"`
	RedisURL  string `yaml:"redis_url"`
	TimeoutS  int    `yaml:"timeout_s"`
	TTLHours  int    `yaml:"ttl_hours"`
}

// ServicesConfig holds the external microservice endpoints and budgets.
type ServicesConfig struct {
	ExtractorURL      string `yaml:"extractor_url"`
	ExtractorTimeoutS int    `yaml:"extractor_timeout_s"`
	QualityURL        string `yaml:"quality_url"`
	QualityTimeoutS   int    `yaml:"quality_timeout_s"`
	RAGSearchURL      string `yaml:"rag_search_url"`
}

// VectorStoreConfig selects and configures the vector backend.
// Type is "memory" or "http".
type VectorStoreConfig struct {
	Type       string `yaml:"type"`
	URL        string `yaml:"url"`
	Collection string `yaml:"collection"`
	TimeoutS   int    `yaml:"timeout_s"`
}

// GraphStoreConfig selects and configures the graph backend.
// Type is "memory" or "http".
type GraphStoreConfig struct {
	Type     string `yaml:"type"`
	URL      string `yaml:"url"`
	TimeoutS int    `yaml:"timeout_s"`
}

// LexicalConfig configures the lexical (RAG) source. When the RAG service
// URL in ServicesConfig is set, that remote service is used and Path is
// ignored; otherwise an embedded bleve index is used, stored at Path or held
// in memory when Path is empty.
type LexicalConfig struct {
	Path string `yaml:"path"`
}

// MetaStoreConfig holds the relational metadata store settings.
type MetaStoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// IndexingConfig holds orchestrator settings.
type IndexingConfig struct {
	ChunkSize                  int    `yaml:"chunk_size"`
	ChunkOverlap               int    `yaml:"chunk_overlap"`
	MaxConcurrentRequests      int    `yaml:"max_concurrent_requests"`
	StampingTimeoutS           int    `yaml:"stamping_timeout_s"`
	SoftBudgetS                int    `yaml:"soft_budget_s"`
	HardBudgetS                int    `yaml:"hard_budget_s"`
	SkipIntelligenceEnrichment bool   `yaml:"skip_intelligence_enrichment"`
	EnableAsyncEnrichment      bool   `yaml:"enable_async_enrichment"`
	VectorPartialFailure       string `yaml:"vector_partial_failure"` // "succeed" (default) or "fail"
}

// SearchConfig holds search aggregator settings. QualityWeight is the
// default applied when a search request does not carry its own
// quality_weight; zero leaves ranking purely score-based.
type SearchConfig struct {
	DefaultMaxResults int     `yaml:"default_max_results"`
	MaxMaxResults     int     `yaml:"max_max_results"`
	PerSourceTimeoutS int     `yaml:"per_source_timeout_s"`
	QualityWeight     float64 `yaml:"quality_weight"`
}

// CrawlConfig holds repository crawler settings.
type CrawlConfig struct {
	Extensions []string `yaml:"extensions"`
	Ignore     []string `yaml:"ignore"`
	BatchSize  int      `yaml:"batch_size"`
	Watch      bool     `yaml:"watch"`
}

// Load reads and parses the config file at path, expands paths, and applies
// defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.MetaStore.DatabasePath = expandPath(cfg.MetaStore.DatabasePath)
	cfg.Lexical.Path = expandPath(cfg.Lexical.Path)
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied and no file
// read. Useful for tests and for `chishiki server` without a config file.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func (c *Config) validate() error {
	if c.Embedding.MaxConcurrent < 1 || c.Embedding.MaxConcurrent > 32 {
		return fmt.Errorf("embedding.max_concurrent must be in [1, 32], got %d", c.Embedding.MaxConcurrent)
	}
	if c.Indexing.ChunkOverlap >= c.Indexing.ChunkSize {
		return fmt.Errorf("indexing.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Indexing.ChunkOverlap, c.Indexing.ChunkSize)
	}
	switch c.Indexing.VectorPartialFailure {
	case "", "succeed", "fail":
	default:
		return fmt.Errorf("indexing.vector_partial_failure must be \"succeed\" or \"fail\", got %q",
			c.Indexing.VectorPartialFailure)
	}
	if c.Search.QualityWeight < 0 || c.Search.QualityWeight > 1 {
		return fmt.Errorf("search.quality_weight must be in [0, 1], got %v", c.Search.QualityWeight)
	}
	return nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
