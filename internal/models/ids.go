package models

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// chunkNamespace scopes deterministic chunk point IDs. Changing it orphans
// every previously written vector point.
var chunkNamespace = uuid.MustParse("c9a1b5e2-6f1d-4c3a-9b7e-2d8f0a4e5c61")

// EntityID derives a stable identifier for an entity the extractor did not
// assign one to. It is a pure function of (project, sourcePath, name, kind),
// so re-ingesting the same document reproduces the same IDs.
func EntityID(project, sourcePath, name string, kind EntityKind) string {
	h := xxhash.New()
	_, _ = h.WriteString(project)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(sourcePath)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(name)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(string(kind))
	return fmt.Sprintf("ent_%016x", h.Sum64())
}

// RelationshipID derives a stable identifier for a relationship from its
// endpoints and kind.
func RelationshipID(sourceID, targetID string, kind RelationshipKind) string {
	h := xxhash.New()
	_, _ = h.WriteString(sourceID)
	_, _ = h.WriteString("->")
	_, _ = h.WriteString(targetID)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(string(kind))
	return fmt.Sprintf("rel_%016x", h.Sum64())
}

// ChunkPointID derives the vector-store point ID for one chunk from the
// document's content hash and the chunk ordinal. Re-indexing identical
// content reuses the same point IDs, which makes vector upserts idempotent.
func ChunkPointID(contentHash string, ordinal int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s-%d", contentHash, ordinal))).String()
}
