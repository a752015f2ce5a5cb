package config

import "runtime"

// applyDefaults fills zero values with the documented defaults. Defaults are
// starting points, not contracts; every one of them is tunable.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8181
	}
	if cfg.Transport.URL == "" {
		cfg.Transport.URL = "nats://127.0.0.1:4222"
	}
	if cfg.Transport.QueueGroup == "" {
		cfg.Transport.QueueGroup = "chishiki-intelligence"
	}
	if cfg.Transport.MaxRedeliver == 0 {
		cfg.Transport.MaxRedeliver = 3
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 1536
	}
	if cfg.Embedding.MaxConcurrent == 0 {
		cfg.Embedding.MaxConcurrent = 3
	}
	if cfg.Embedding.TimeoutS == 0 {
		cfg.Embedding.TimeoutS = 60
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1024
	}
	if cfg.Fingerprint.Algorithm == "" {
		cfg.Fingerprint.Algorithm = "blake3"
	}
	if cfg.Fingerprint.TimeoutS == 0 {
		cfg.Fingerprint.TimeoutS = 5
	}
	if cfg.Fingerprint.TTLHours == 0 {
		cfg.Fingerprint.TTLHours = 24 * 7
	}
	if cfg.Services.ExtractorTimeoutS == 0 {
		cfg.Services.ExtractorTimeoutS = 10
	}
	if cfg.Services.QualityTimeoutS == 0 {
		cfg.Services.QualityTimeoutS = 10
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "documents"
	}
	if cfg.VectorStore.TimeoutS == 0 {
		cfg.VectorStore.TimeoutS = 10
	}
	if cfg.GraphStore.Type == "" {
		cfg.GraphStore.Type = "memory"
	}
	if cfg.GraphStore.TimeoutS == 0 {
		cfg.GraphStore.TimeoutS = 10
	}
	if cfg.MetaStore.DatabasePath == "" {
		cfg.MetaStore.DatabasePath = "chishiki.db"
	}
	if cfg.Indexing.ChunkSize == 0 {
		cfg.Indexing.ChunkSize = 1000
	}
	if cfg.Indexing.ChunkOverlap == 0 {
		cfg.Indexing.ChunkOverlap = 200
	}
	if cfg.Indexing.MaxConcurrentRequests == 0 {
		cfg.Indexing.MaxConcurrentRequests = runtime.NumCPU() * 4
	}
	if cfg.Indexing.StampingTimeoutS == 0 {
		cfg.Indexing.StampingTimeoutS = 5
	}
	if cfg.Indexing.SoftBudgetS == 0 {
		cfg.Indexing.SoftBudgetS = 60
	}
	if cfg.Indexing.HardBudgetS == 0 {
		cfg.Indexing.HardBudgetS = 300
	}
	if cfg.Indexing.VectorPartialFailure == "" {
		cfg.Indexing.VectorPartialFailure = "succeed"
	}
	if cfg.Search.DefaultMaxResults == 0 {
		cfg.Search.DefaultMaxResults = 10
	}
	if cfg.Search.MaxMaxResults == 0 {
		cfg.Search.MaxMaxResults = 100
	}
	if cfg.Search.PerSourceTimeoutS == 0 {
		cfg.Search.PerSourceTimeoutS = 10
	}
	if cfg.Crawl.BatchSize == 0 {
		cfg.Crawl.BatchSize = 50
	}
	if len(cfg.Crawl.Ignore) == 0 {
		cfg.Crawl.Ignore = []string{".git", "node_modules", "__pycache__", "vendor"}
	}
}
