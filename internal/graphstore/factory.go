package graphstore

import (
	"fmt"
	"time"
)

// StoreType selects the graph backend.
type StoreType string

const (
	// StoreTypeMemory keeps the graph in process memory.
	StoreTypeMemory StoreType = "memory"
	// StoreTypeHTTP talks to an external graph service.
	StoreTypeHTTP StoreType = "http"
)

// New creates a graph store of the specified type.
func New(storeType, url string, timeout time.Duration) (Store, error) {
	switch StoreType(storeType) {
	case StoreTypeMemory, "":
		return NewMemoryStore(), nil
	case StoreTypeHTTP:
		if url == "" {
			return nil, fmt.Errorf("graph store type http requires a url")
		}
		return NewHTTPStore(url, timeout), nil
	default:
		return nil, fmt.Errorf("unknown graph store type: %s (supported: memory, http)", storeType)
	}
}
