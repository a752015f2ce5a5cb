// Package vectorstore defines the vector store contract the core depends
// on, with an in-memory implementation for tests and small deployments and
// an HTTP client for an external store.
package vectorstore

import "context"

// Point is one stored vector with its payload. The payload must be rich
// enough for the search aggregator to filter by project, language, quality
// range, and entity type with native store filters.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Filter narrows a search. All set conditions are conjunctive.
type Filter struct {
	// Match requires payload[key] == value for each entry.
	Match map[string]any
	// Range requires payload[key] to be a number within [Min, Max] (nil
	// bound = unbounded).
	Range map[string]RangeCondition
	// AnyOf requires payload[key] to equal one of the listed values.
	AnyOf map[string][]any
}

// RangeCondition is a numeric range bound.
type RangeCondition struct {
	Min *float64
	Max *float64
}

// Hit is one search result.
type Hit struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Store is the vector store operation contract.
type Store interface {
	Upsert(ctx context.Context, collection string, points []Point) error
	Search(ctx context.Context, collection string, vector []float32, filter *Filter, limit int) ([]Hit, error)
	Delete(ctx context.Context, collection string, ids []string) error
	Count(ctx context.Context, collection string) (int, error)
	Close() error
}

// matches reports whether payload satisfies filter. Shared by the memory
// store and by client-side re-checks.
func matches(payload map[string]any, filter *Filter) bool {
	if filter == nil {
		return true
	}
	for key, want := range filter.Match {
		if payload[key] != want {
			return false
		}
	}
	for key, cond := range filter.Range {
		v, ok := asFloat(payload[key])
		if !ok {
			return false
		}
		if cond.Min != nil && v < *cond.Min {
			return false
		}
		if cond.Max != nil && v > *cond.Max {
			return false
		}
	}
	for key, values := range filter.AnyOf {
		found := false
		for _, want := range values {
			if payload[key] == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
