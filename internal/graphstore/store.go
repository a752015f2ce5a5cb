// Package graphstore defines the property graph contract the core depends
// on: parametric upsert-by-key for nodes and edges, substring queries, and
// containment traversal. An in-memory implementation backs tests; an HTTP
// client talks to an external graph service.
package graphstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Ref identifies a node by label and key properties. Two refs with the same
// label and key properties address the same node.
type Ref struct {
	Label string
	Key   map[string]any
}

// KeyString renders a ref's identity deterministically.
func (r Ref) KeyString() string {
	keys := make([]string, 0, len(r.Key))
	for k := range r.Key {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(r.Label)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%v", k, r.Key[k])
	}
	return b.String()
}

// Node is a stored node with its merged properties (key properties
// included).
type Node struct {
	Label string
	Props map[string]any
}

// Edge is a stored relationship.
type Edge struct {
	Kind  string
	From  Ref
	To    Ref
	Props map[string]any
}

// Store is the graph store operation contract. Upserts merge by key:
// existing nodes gain the new properties (last-writer-wins per property) and
// never lose properties the write omits. An edge upsert whose endpoint does
// not exist creates it with the ref's key properties — callers must put
// every load-bearing property (project_name above all) into the key or
// upsert the node first.
type Store interface {
	UpsertNode(ctx context.Context, ref Ref, props map[string]any) error
	UpsertEdge(ctx context.Context, kind string, from, to Ref, props map[string]any) error
	GetNode(ctx context.Context, ref Ref) (*Node, error)
	// FindNodes returns nodes whose name, description, or content property
	// contains substring (case-insensitive). Empty label matches any.
	FindNodes(ctx context.Context, label, substring string, limit int) ([]Node, error)
	// Reachable returns every node reachable from start following only
	// edges of the given kinds.
	Reachable(ctx context.Context, start Ref, edgeKinds []string) ([]Node, error)
	// Edges returns the outgoing edges of a node.
	Edges(ctx context.Context, from Ref) ([]Edge, error)
	Close() error
}
