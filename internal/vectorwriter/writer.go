package vectorwriter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/chishiki/internal/embedding"
	"github.com/hyperjump/chishiki/internal/models"
	"github.com/hyperjump/chishiki/internal/vectorstore"
)

// Request carries everything needed to vector-index one document.
type Request struct {
	Content      string
	ContentHash  string
	SourcePath   string
	ProjectID    string
	ProjectName  string
	Language     string
	QualityScore *float64
	ChunkSize    int
	ChunkOverlap int
}

// Result reports what was written. On a partial failure Err holds the first
// error, ChunksFailed counts the chunks not written, and VectorIDs holds the
// points that made it in.
type Result struct {
	VectorIDs    []string
	ChunksTotal  int
	ChunksFailed int
	Err          error
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithLogger sets a logger for per-chunk failures.
func WithLogger(l *zap.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// Writer is the vector index writer. For each chunk it requests an
// embedding, assembles the payload, and upserts the point under a
// deterministic ID derived from (content hash, chunk ordinal), which makes
// re-indexing identical content idempotent.
type Writer struct {
	embedder   embedding.Embedder
	store      vectorstore.Store
	collection string
	logger     *zap.Logger
}

// NewWriter creates a vector index writer.
func NewWriter(embedder embedding.Embedder, store vectorstore.Store, collection string, opts ...WriterOption) *Writer {
	w := &Writer{embedder: embedder, store: store, collection: collection}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// IndexVectors chunks content and writes one point per chunk. Empty content
// succeeds with an empty ID list. A failure on any chunk aborts the loop;
// the result reports how many chunks succeeded and callers decide whether
// partial success counts as success.
func (w *Writer) IndexVectors(ctx context.Context, req Request) *Result {
	chunks := NewChunker(req.ChunkSize, req.ChunkOverlap).Chunk(req.Content)
	result := &Result{ChunksTotal: len(chunks), VectorIDs: make([]string, 0, len(chunks))}

	for _, chunk := range chunks {
		vec, err := w.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			result.ChunksFailed = len(chunks) - len(result.VectorIDs)
			result.Err = fmt.Errorf("embed chunk %d of %s: %w", chunk.Ordinal, req.SourcePath, err)
			if w.logger != nil {
				w.logger.Warn("vector indexing aborted",
					zap.String("source_path", req.SourcePath),
					zap.Int("chunks_written", len(result.VectorIDs)),
					zap.Error(err))
			}
			return result
		}

		payload := map[string]any{
			"chunk_index":  chunk.Ordinal,
			"source_path":  req.SourcePath,
			"project_name": req.ProjectName,
			"language":     req.Language,
			"content_hash": req.ContentHash,
			"content":      chunk.Text,
		}
		if req.ProjectID != "" {
			payload["project_id"] = req.ProjectID
		}
		if req.QualityScore != nil {
			payload["quality_score"] = *req.QualityScore
		}

		pointID := models.ChunkPointID(req.ContentHash, chunk.Ordinal)
		point := vectorstore.Point{ID: pointID, Vector: vec, Payload: payload}
		if err := w.store.Upsert(ctx, w.collection, []vectorstore.Point{point}); err != nil {
			result.ChunksFailed = len(chunks) - len(result.VectorIDs)
			result.Err = fmt.Errorf("upsert chunk %d of %s: %w", chunk.Ordinal, req.SourcePath, err)
			return result
		}
		result.VectorIDs = append(result.VectorIDs, pointID)
	}
	return result
}
