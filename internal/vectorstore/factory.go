package vectorstore

import (
	"fmt"
	"time"
)

// StoreType selects the vector store backend.
type StoreType string

const (
	// StoreTypeMemory uses in-memory brute-force search. Good for tests
	// and small datasets.
	StoreTypeMemory StoreType = "memory"
	// StoreTypeHTTP talks to an external store over REST.
	StoreTypeHTTP StoreType = "http"
)

// New creates a vector store of the specified type.
func New(storeType, url string, dimensions int, timeout time.Duration) (Store, error) {
	switch StoreType(storeType) {
	case StoreTypeMemory, "":
		return NewMemoryStore(dimensions)
	case StoreTypeHTTP:
		if url == "" {
			return nil, fmt.Errorf("vector store type http requires a url")
		}
		return NewHTTPStore(url, timeout), nil
	default:
		return nil, fmt.Errorf("unknown vector store type: %s (supported: memory, http)", storeType)
	}
}
