package lexical

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/chishiki/pkg/utils"
)

// BleveSource is an embedded lexical index. Path "" keeps the index in
// memory (tests).
type BleveSource struct {
	index bleve.Index
}

// NewBleveSource creates or opens a bleve index at path. An existing index
// is opened and reused; change the mapping in code and remove the directory
// to force a rebuild.
func NewBleveSource(path string) (*BleveSource, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming): identifier-like
	// queries must match the exact token.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("source_path", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("project_name", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("language", keywordFieldMapping)
	im.DefaultMapping = docMapping

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("create in-memory bleve index: %w", err)
		}
		return &BleveSource{index: index}, nil
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("open bleve index: %w", openErr)
		}
		return &BleveSource{index: index}, nil
	}
	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &BleveSource{index: index}, nil
}

// Index stores doc under its source path.
func (b *BleveSource) Index(ctx context.Context, doc Document) error {
	return b.index.Index(doc.SourcePath, doc)
}

// Delete removes the document at sourcePath.
func (b *BleveSource) Delete(ctx context.Context, sourcePath string) error {
	return b.index.Delete(sourcePath)
}

// Search runs a match query over content, optionally scoped to a project,
// and normalizes scores to [0, 1] by the maximum.
func (b *BleveSource) Search(ctx context.Context, queryStr, projectName string, limit int) ([]Result, error) {
	match := bleve.NewMatchQuery(queryStr)
	match.SetField("content")

	var q query.Query = match
	if projectName != "" {
		scope := bleve.NewTermQuery(projectName)
		scope.SetField("project_name")
		q = bleve.NewConjunctionQuery(match, scope)
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"source_path", "project_name", "language", "content"}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	var maxScore float64
	for _, hit := range res.Hits {
		if hit.Score > maxScore {
			maxScore = hit.Score
		}
	}
	out := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		score := 0.0
		if maxScore > 0 {
			score = hit.Score / maxScore
		}
		r := Result{SourcePath: hit.ID, Score: score}
		if s, ok := hit.Fields["project_name"].(string); ok {
			r.ProjectName = s
		}
		if s, ok := hit.Fields["language"].(string); ok {
			r.Language = s
		}
		if s, ok := hit.Fields["content"].(string); ok {
			r.Excerpt = utils.Excerpt(s, queryStr, 240)
		}
		out = append(out, r)
	}
	return out, nil
}

// Close releases the index.
func (b *BleveSource) Close() error { return b.index.Close() }
