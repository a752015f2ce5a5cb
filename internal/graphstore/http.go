package graphstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hyperjump/chishiki/internal/errkind"
)

// HTTPStore talks to an external graph service over its REST API. The
// service exposes parametric node/edge upserts and substring queries;
// transactions are per-batch on the service side.
type HTTPStore struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// NewHTTPStore creates a client for the graph service at baseURL.
func NewHTTPStore(baseURL string, timeout time.Duration) *HTTPStore {
	return &HTTPStore{baseURL: baseURL, timeout: timeout, http: &http.Client{}}
}

type wireRef struct {
	Label string         `json:"label"`
	Key   map[string]any `json:"key"`
}

func (h *HTTPStore) do(ctx context.Context, path string, in, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return errkind.Wrap(errkind.KindInternal, "encode graph request", err)
		}
	}
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, h.baseURL+path, &body)
	if err != nil {
		return errkind.Wrap(errkind.KindGraphStoreUnavailable, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.http.Do(req)
	if err != nil {
		return errkind.Wrap(errkind.KindGraphStoreUnavailable, "graph store unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errkind.New(errkind.KindGraphStoreUnavailable,
			fmt.Sprintf("graph store returned %d for %s", resp.StatusCode, path))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errkind.Wrap(errkind.KindGraphStoreUnavailable, "decode graph response", err)
		}
	}
	return nil
}

// UpsertNode merges props onto the node addressed by ref.
func (h *HTTPStore) UpsertNode(ctx context.Context, ref Ref, props map[string]any) error {
	return h.do(ctx, "/nodes/upsert", map[string]any{
		"ref":   wireRef{Label: ref.Label, Key: ref.Key},
		"props": props,
	}, nil)
}

// UpsertEdge merges an edge between from and to.
func (h *HTTPStore) UpsertEdge(ctx context.Context, kind string, from, to Ref, props map[string]any) error {
	return h.do(ctx, "/edges/upsert", map[string]any{
		"kind":  kind,
		"from":  wireRef{Label: from.Label, Key: from.Key},
		"to":    wireRef{Label: to.Label, Key: to.Key},
		"props": props,
	}, nil)
}

// GetNode fetches a node, or nil when absent.
func (h *HTTPStore) GetNode(ctx context.Context, ref Ref) (*Node, error) {
	var out struct {
		Node *Node `json:"node"`
	}
	if err := h.do(ctx, "/nodes/get", map[string]any{"ref": wireRef{Label: ref.Label, Key: ref.Key}}, &out); err != nil {
		return nil, err
	}
	return out.Node, nil
}

// FindNodes substring-matches nodes on the service side.
func (h *HTTPStore) FindNodes(ctx context.Context, label, substring string, limit int) ([]Node, error) {
	var out struct {
		Nodes []Node `json:"nodes"`
	}
	if err := h.do(ctx, "/nodes/find", map[string]any{
		"label": label, "substring": substring, "limit": limit,
	}, &out); err != nil {
		return nil, err
	}
	return out.Nodes, nil
}

// Reachable walks containment on the service side.
func (h *HTTPStore) Reachable(ctx context.Context, start Ref, edgeKinds []string) ([]Node, error) {
	var out struct {
		Nodes []Node `json:"nodes"`
	}
	if err := h.do(ctx, "/nodes/reachable", map[string]any{
		"start": wireRef{Label: start.Label, Key: start.Key}, "edge_kinds": edgeKinds,
	}, &out); err != nil {
		return nil, err
	}
	return out.Nodes, nil
}

// Edges lists outgoing edges of from.
func (h *HTTPStore) Edges(ctx context.Context, from Ref) ([]Edge, error) {
	var out struct {
		Edges []struct {
			Kind  string         `json:"kind"`
			From  wireRef        `json:"from"`
			To    wireRef        `json:"to"`
			Props map[string]any `json:"props"`
		} `json:"edges"`
	}
	if err := h.do(ctx, "/edges/list", map[string]any{"from": wireRef{Label: from.Label, Key: from.Key}}, &out); err != nil {
		return nil, err
	}
	edges := make([]Edge, len(out.Edges))
	for i, e := range out.Edges {
		edges[i] = Edge{
			Kind:  e.Kind,
			From:  Ref{Label: e.From.Label, Key: e.From.Key},
			To:    Ref{Label: e.To.Label, Key: e.To.Key},
			Props: e.Props,
		}
	}
	return edges, nil
}

// Close is a no-op for the HTTP store.
func (h *HTTPStore) Close() error { return nil }
