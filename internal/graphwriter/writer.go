package graphwriter

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/chishiki/internal/errkind"
	"github.com/hyperjump/chishiki/internal/graphstore"
	"github.com/hyperjump/chishiki/internal/models"
)

// Result reports what IndexGraph wrote.
type Result struct {
	EntityIDs            []string
	RelationshipsCreated int
	RelationshipsDropped int
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithLogger sets a logger for step failures and dropped relationships.
func WithLogger(l *zap.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// WithDropHook installs a callback invoked once per dropped relationship
// (metrics).
func WithDropHook(fn func()) WriterOption {
	return func(w *Writer) { w.onDrop = fn }
}

// WithPlaceholderHook installs a callback invoked once per placeholder
// endpoint node created by a relationship upsert (metrics).
func WithPlaceholderHook(fn func()) WriterOption {
	return func(w *Writer) { w.onPlaceholder = fn }
}

// Writer upserts entities and relationships into the property graph and
// keeps the containment tree consistent. All writes are merges by key, so
// re-ingesting a document reproduces the same graph state modulo
// timestamps.
type Writer struct {
	store         graphstore.Store
	tree          *TreeIngestor
	logger        *zap.Logger
	onDrop        func()
	onPlaceholder func()
}

// NewWriter creates a graph index writer.
func NewWriter(store graphstore.Store, opts ...WriterOption) *Writer {
	w := &Writer{store: store}
	for _, opt := range opts {
		opt(w)
	}
	w.tree = NewTreeIngestor(store, w.logger)
	return w
}

// Tree exposes the containment tree ingestor for bulk (tree-index) calls.
func (w *Writer) Tree() *TreeIngestor { return w.tree }

// IndexGraph writes the document's entities and relationships. The
// operation order is fixed:
//
//  1. upsert all entity nodes by stable ID (abort on persistent failure);
//  2. upsert the file node and its containment path;
//  3. upsert relationships, creating project-scoped placeholders for
//     endpoints written by other documents;
//  4. link each entity to the file node via contains_entity.
//
// Steps 2-4 are non-fatal: their failures are logged and the call still
// reports the entities written. The one exception is an InvalidProject
// error from step 2, which is returned together with the partial result.
func (w *Writer) IndexGraph(ctx context.Context, entities []models.Entity, relationships []models.Relationship, sourcePath, projectName string) (*Result, error) {
	result := &Result{EntityIDs: make([]string, 0, len(entities))}
	now := time.Now().UTC().Format(time.RFC3339)

	// Step 1: entity nodes.
	known := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		props := map[string]any{
			"name":             e.Name,
			"entity_type":      string(e.Kind),
			"source_path":      e.SourcePath,
			"confidence_score": e.Confidence,
			"updated_at":       now,
		}
		if e.Description != "" {
			props["description"] = e.Description
		}
		if e.LineNumber > 0 {
			props["line_number"] = e.LineNumber
		}
		for k, v := range e.Properties {
			props[k] = v
		}
		err := w.retryOnce(func() error {
			return w.store.UpsertNode(ctx, EntityRef(projectName, e.ID), props)
		})
		if err != nil {
			return result, errkind.Wrap(errkind.KindGraphStoreUnavailable, "upsert entity nodes", err).
				WithComponent("knowledge_graph")
		}
		result.EntityIDs = append(result.EntityIDs, e.ID)
		known[e.ID] = struct{}{}
	}

	// Step 2: file node and containment path.
	if err := w.retryOnce(func() error {
		return w.tree.IngestTree(ctx, projectName, "", []string{sourcePath})
	}); err != nil {
		if errkind.KindOf(err) == errkind.KindInvalidProject {
			return result, err
		}
		w.warn("file node upsert failed", sourcePath, err)
	}

	// Step 3: relationships. Unknown endpoints become placeholder entity
	// nodes; their refs carry project_name, so a placeholder can never be
	// orphaned from its project scope.
	for _, rel := range relationships {
		if rel.SourceID == "" || rel.TargetID == "" {
			w.dropRelationship(rel, sourcePath)
			result.RelationshipsDropped++
			continue
		}
		if _, ok := known[rel.SourceID]; !ok {
			w.placeholder(ctx, projectName, rel.SourceID)
		}
		if _, ok := known[rel.TargetID]; !ok {
			w.placeholder(ctx, projectName, rel.TargetID)
		}
		props := map[string]any{"confidence_score": rel.Confidence, "updated_at": now}
		for k, v := range rel.Properties {
			props[k] = v
		}
		err := w.retryOnce(func() error {
			return w.store.UpsertEdge(ctx, string(rel.Kind),
				EntityRef(projectName, rel.SourceID),
				EntityRef(projectName, rel.TargetID), props)
		})
		if err != nil {
			w.warn("relationship upsert failed", sourcePath, err)
			continue
		}
		result.RelationshipsCreated++
	}

	// Step 4: entity -> file containment.
	fileRef := FileRef(projectName, RelativePath("", sourcePath))
	for _, id := range result.EntityIDs {
		err := w.retryOnce(func() error {
			return w.store.UpsertEdge(ctx, EdgeContainsEntity, fileRef, EntityRef(projectName, id), nil)
		})
		if err != nil {
			w.warn("contains_entity link failed", sourcePath, err)
		}
	}

	return result, nil
}

func (w *Writer) placeholder(ctx context.Context, projectName, entityID string) {
	if w.onPlaceholder != nil {
		w.onPlaceholder()
	}
	err := w.retryOnce(func() error {
		return w.store.UpsertNode(ctx, EntityRef(projectName, entityID), map[string]any{
			"placeholder": true,
		})
	})
	if err != nil {
		w.warn("placeholder node upsert failed", entityID, err)
	}
}

func (w *Writer) dropRelationship(rel models.Relationship, sourcePath string) {
	if w.onDrop != nil {
		w.onDrop()
	}
	if w.logger != nil {
		w.logger.Warn("dropping relationship with missing endpoint",
			zap.String("relationship_id", rel.ID),
			zap.String("source_path", sourcePath))
	}
}

func (w *Writer) warn(msg, subject string, err error) {
	if w.logger != nil {
		w.logger.Warn(msg, zap.String("subject", subject), zap.Error(err))
	}
}

// retryOnce runs fn, retrying a single time after a short pause.
func (w *Writer) retryOnce(fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	time.Sleep(100 * time.Millisecond)
	return fn()
}
