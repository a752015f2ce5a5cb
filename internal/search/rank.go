package search

import (
	"sort"

	"github.com/hyperjump/chishiki/internal/models"
)

// dedupeByPath keeps the highest-scoring item per source path, preserving
// that item's metadata.
func dedupeByPath(items []models.SearchResultItem) []models.SearchResultItem {
	best := make(map[string]models.SearchResultItem, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		prev, seen := best[item.SourcePath]
		if !seen {
			order = append(order, item.SourcePath)
			best[item.SourcePath] = item
			continue
		}
		if item.Score > prev.Score {
			best[item.SourcePath] = item
		}
	}
	out := make([]models.SearchResultItem, 0, len(best))
	for _, path := range order {
		out = append(out, best[path])
	}
	return out
}

// rank computes final scores, sorts descending, and truncates to
// maxResults. With a quality weight w the final score is
// (1-w)*semantic + w*quality, quality defaulting to 0 when unknown.
func rank(items []models.SearchResultItem, qualityWeight *float64, maxResults int) []models.SearchResultItem {
	if qualityWeight != nil {
		w := *qualityWeight
		for i := range items {
			quality := 0.0
			if q, ok := items[i].Metadata["quality_score"]; ok {
				if f, ok := toFloat(q); ok {
					quality = f
				}
			}
			items[i].Score = (1-w)*items[i].Score + w*quality
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if maxResults > 0 && len(items) > maxResults {
		items = items[:maxResults]
	}
	return items
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
