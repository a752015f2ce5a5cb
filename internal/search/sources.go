package search

import (
	"context"

	"github.com/hyperjump/chishiki/internal/embedding"
	"github.com/hyperjump/chishiki/internal/graphstore"
	"github.com/hyperjump/chishiki/internal/graphwriter"
	"github.com/hyperjump/chishiki/internal/lexical"
	"github.com/hyperjump/chishiki/internal/models"
	"github.com/hyperjump/chishiki/internal/vectorstore"
	"github.com/hyperjump/chishiki/pkg/utils"
)

// Source names as they appear in sources_queried / failed_sources.
const (
	SourceRAG            = "rag"
	SourceVector         = "vector"
	SourceKnowledgeGraph = "knowledge_graph"
)

// ragSource queries the lexical (RAG) backend.
type ragSource struct {
	lexical lexical.Source
}

func (s *ragSource) name() string { return SourceRAG }

func (s *ragSource) search(ctx context.Context, req *models.SearchRequest, limit int) ([]models.SearchResultItem, error) {
	results, err := s.lexical.Search(ctx, req.Query, req.Filters.ProjectName, limit)
	if err != nil {
		return nil, err
	}
	items := make([]models.SearchResultItem, 0, len(results))
	for _, r := range results {
		meta := map[string]any{"source": SourceRAG, "file_path": r.SourcePath}
		if r.Language != "" {
			meta["language"] = r.Language
		}
		items = append(items, models.SearchResultItem{
			SourcePath: r.SourcePath,
			Score:      utils.Clamp01(r.Score),
			Excerpt:    r.Excerpt,
			Metadata:   meta,
		})
	}
	return items, nil
}

// vectorSource embeds the query and searches the vector store with native
// payload filters.
type vectorSource struct {
	embedder   embedding.Embedder
	store      vectorstore.Store
	collection string
}

func (s *vectorSource) name() string { return SourceVector }

func (s *vectorSource) search(ctx context.Context, req *models.SearchRequest, limit int) ([]models.SearchResultItem, error) {
	vec, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	filter := storeFilter(&req.Filters)
	hits, err := s.store.Search(ctx, s.collection, vec, filter, limit)
	if err != nil {
		return nil, err
	}
	items := make([]models.SearchResultItem, 0, len(hits))
	for _, h := range hits {
		path, _ := h.Payload["source_path"].(string)
		if path == "" {
			continue
		}
		meta := map[string]any{"source": SourceVector, "file_path": path}
		if lang, ok := h.Payload["language"].(string); ok && lang != "" {
			meta["language"] = lang
		}
		if q, ok := h.Payload["quality_score"]; ok {
			meta["quality_score"] = q
		}
		excerpt := ""
		if req.IncludeContext {
			if content, ok := h.Payload["content"].(string); ok {
				excerpt = utils.Excerpt(content, req.Query, 240)
			}
		}
		items = append(items, models.SearchResultItem{
			SourcePath: path,
			Score:      utils.Clamp01(h.Score),
			Excerpt:    excerpt,
			Metadata:   meta,
		})
	}
	return items, nil
}

// storeFilter maps search filters onto native vector store conditions.
// Path patterns are NOT translated: the store cannot express them, so the
// aggregator applies them client-side after retrieval.
func storeFilter(f *models.SearchFilters) *vectorstore.Filter {
	out := &vectorstore.Filter{}
	hasCondition := false
	if f.ProjectID != "" {
		ensureMatch(out)["project_id"] = f.ProjectID
		hasCondition = true
	}
	if f.ProjectName != "" {
		ensureMatch(out)["project_name"] = f.ProjectName
		hasCondition = true
	}
	if f.Language != "" {
		ensureMatch(out)["language"] = f.Language
		hasCondition = true
	}
	if f.EntityType != "" {
		ensureMatch(out)["entity_type"] = string(f.EntityType)
		hasCondition = true
	}
	if f.MinQuality != nil || f.MaxQuality != nil {
		out.Range = map[string]vectorstore.RangeCondition{
			"quality_score": {Min: f.MinQuality, Max: f.MaxQuality},
		}
		hasCondition = true
	}
	if !hasCondition {
		return nil
	}
	return out
}

func ensureMatch(f *vectorstore.Filter) map[string]any {
	if f.Match == nil {
		f.Match = make(map[string]any)
	}
	return f.Match
}

// graphSource substring-matches entity nodes in the knowledge graph.
type graphSource struct {
	store graphstore.Store
}

func (s *graphSource) name() string { return SourceKnowledgeGraph }

func (s *graphSource) search(ctx context.Context, req *models.SearchRequest, limit int) ([]models.SearchResultItem, error) {
	nodes, err := s.store.FindNodes(ctx, graphwriter.LabelEntity, req.Query, limit)
	if err != nil {
		return nil, err
	}
	items := make([]models.SearchResultItem, 0, len(nodes))
	for _, n := range nodes {
		if req.Filters.ProjectName != "" && n.Props["project_name"] != req.Filters.ProjectName {
			continue
		}
		if req.Filters.EntityType != "" && n.Props["entity_type"] != string(req.Filters.EntityType) {
			continue
		}
		path, _ := n.Props["source_path"].(string)
		if path == "" {
			continue
		}
		score := 0.5
		if c, ok := toFloat(n.Props["confidence_score"]); ok {
			score = c
		}
		meta := map[string]any{"source": SourceKnowledgeGraph, "file_path": path}
		if name, ok := n.Props["name"].(string); ok {
			meta["entity_name"] = name
		}
		if kind, ok := n.Props["entity_type"].(string); ok {
			meta["entity_type"] = kind
		}
		excerpt := ""
		if desc, ok := n.Props["description"].(string); ok {
			excerpt = utils.Excerpt(desc, req.Query, 240)
		}
		items = append(items, models.SearchResultItem{
			SourcePath: path,
			Score:      utils.Clamp01(score),
			Excerpt:    excerpt,
			Metadata:   meta,
		})
	}
	return items, nil
}
