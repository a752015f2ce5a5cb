package graphstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type memoryNode struct {
	ref   Ref
	props map[string]any
}

type memoryEdge struct {
	kind  string
	from  string
	to    string
	props map[string]any
}

// MemoryStore is an in-memory property graph for tests and single-node
// runs. All operations are safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]*memoryNode
	edges map[string]*memoryEdge
}

// NewMemoryStore creates an empty in-memory graph.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]*memoryNode),
		edges: make(map[string]*memoryEdge),
	}
}

// UpsertNode merges props onto the node addressed by ref, creating it if
// absent. Key properties are always present on the stored node.
func (m *MemoryStore) UpsertNode(ctx context.Context, ref Ref, props map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertNodeLocked(ref, props)
	return nil
}

func (m *MemoryStore) upsertNodeLocked(ref Ref, props map[string]any) *memoryNode {
	id := ref.KeyString()
	n, ok := m.nodes[id]
	if !ok {
		n = &memoryNode{ref: ref, props: make(map[string]any)}
		m.nodes[id] = n
	}
	for k, v := range ref.Key {
		n.props[k] = v
	}
	for k, v := range props {
		n.props[k] = v
	}
	return n
}

// UpsertEdge merges an edge, creating missing endpoints from their refs'
// key properties.
func (m *MemoryStore) UpsertEdge(ctx context.Context, kind string, from, to Ref, props map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fromID := from.KeyString()
	toID := to.KeyString()
	if _, ok := m.nodes[fromID]; !ok {
		m.upsertNodeLocked(from, nil)
	}
	if _, ok := m.nodes[toID]; !ok {
		m.upsertNodeLocked(to, nil)
	}
	edgeID := fmt.Sprintf("%s|%s|%s", fromID, kind, toID)
	e, ok := m.edges[edgeID]
	if !ok {
		e = &memoryEdge{kind: kind, from: fromID, to: toID, props: make(map[string]any)}
		m.edges[edgeID] = e
	}
	for k, v := range props {
		e.props[k] = v
	}
	return nil
}

// GetNode returns a copy of the node at ref, or nil when absent.
func (m *MemoryStore) GetNode(ctx context.Context, ref Ref) (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[ref.KeyString()]
	if !ok {
		return nil, nil
	}
	return n.copy(), nil
}

func (n *memoryNode) copy() *Node {
	props := make(map[string]any, len(n.props))
	for k, v := range n.props {
		props[k] = v
	}
	return &Node{Label: n.ref.Label, Props: props}
}

// FindNodes substring-matches name, description, and content properties.
func (m *MemoryStore) FindNodes(ctx context.Context, label, substring string, limit int) ([]Node, error) {
	needle := strings.ToLower(substring)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Node
	for _, n := range m.nodes {
		if label != "" && n.ref.Label != label {
			continue
		}
		if needle != "" && !nodeMatches(n.props, needle) {
			continue
		}
		out = append(out, *n.copy())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func nodeMatches(props map[string]any, needle string) bool {
	for _, key := range []string{"name", "description", "content"} {
		if s, ok := props[key].(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

// Reachable walks outgoing edges of the given kinds from start.
func (m *MemoryStore) Reachable(ctx context.Context, start Ref, edgeKinds []string) ([]Node, error) {
	kinds := make(map[string]struct{}, len(edgeKinds))
	for _, k := range edgeKinds {
		kinds[k] = struct{}{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	startID := start.KeyString()
	if _, ok := m.nodes[startID]; !ok {
		return nil, nil
	}
	visited := map[string]struct{}{startID: {}}
	queue := []string{startID}
	var out []Node
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range m.edges {
			if e.from != cur {
				continue
			}
			if len(kinds) > 0 {
				if _, ok := kinds[e.kind]; !ok {
					continue
				}
			}
			if _, seen := visited[e.to]; seen {
				continue
			}
			visited[e.to] = struct{}{}
			queue = append(queue, e.to)
			if n, ok := m.nodes[e.to]; ok {
				out = append(out, *n.copy())
			}
		}
	}
	return out, nil
}

// Edges returns copies of the outgoing edges of from.
func (m *MemoryStore) Edges(ctx context.Context, from Ref) ([]Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fromID := from.KeyString()
	var out []Edge
	for _, e := range m.edges {
		if e.from != fromID {
			continue
		}
		fromNode := m.nodes[e.from]
		toNode := m.nodes[e.to]
		if fromNode == nil || toNode == nil {
			continue
		}
		props := make(map[string]any, len(e.props))
		for k, v := range e.props {
			props[k] = v
		}
		out = append(out, Edge{Kind: e.kind, From: fromNode.ref, To: toNode.ref, Props: props})
	}
	return out, nil
}

// NodeCount reports the number of stored nodes (test helper).
func (m *MemoryStore) NodeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error { return nil }
