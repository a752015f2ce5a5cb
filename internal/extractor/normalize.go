package extractor

import (
	"go.uber.org/zap"

	"github.com/hyperjump/chishiki/internal/models"
	"github.com/hyperjump/chishiki/pkg/utils"
)

// normalize converts the wire response into canonical records. Unknown
// entity kinds fall back to concept; confidence is clamped to [0,1];
// relationships whose endpoints were not also returned are dropped. Each
// deviation is logged once.
func (c *Client) normalize(projectName, sourcePath string, wire *extractResponse) *Result {
	result := &Result{
		Entities:      make([]models.Entity, 0, len(wire.Entities)),
		Relationships: make([]models.Relationship, 0, len(wire.Relationships)),
	}

	// nameToID resolves relationships the extractor expressed by name.
	nameToID := make(map[string]string, len(wire.Entities))
	known := make(map[string]struct{}, len(wire.Entities))

	for _, we := range wire.Entities {
		if we.Name == "" {
			continue
		}
		kind, ok := models.ParseEntityKind(we.EntityType)
		if !ok && c.logger != nil {
			c.logger.Warn("unknown entity kind, defaulting to concept",
				zap.String("entity_type", we.EntityType),
				zap.String("name", we.Name),
				zap.String("source_path", sourcePath))
		}
		path := we.SourcePath
		if path == "" {
			path = sourcePath
		}
		id := we.EntityID
		if id == "" {
			id = models.EntityID(projectName, path, we.Name, kind)
		}
		entity := models.Entity{
			ID:          id,
			Name:        we.Name,
			Kind:        kind,
			Description: we.Description,
			SourcePath:  path,
			Confidence:  utils.Clamp01(we.Confidence),
			LineNumber:  we.LineNumber,
			Properties:  we.Properties,
		}
		result.Entities = append(result.Entities, entity)
		known[id] = struct{}{}
		nameToID[we.Name] = id
	}

	for _, wr := range wire.Relationships {
		srcID := wr.SourceID
		if srcID == "" {
			srcID = nameToID[wr.SourceName]
		}
		dstID := wr.TargetID
		if dstID == "" {
			dstID = nameToID[wr.TargetName]
		}
		_, srcKnown := known[srcID]
		_, dstKnown := known[dstID]
		if srcID == "" || dstID == "" || !srcKnown || !dstKnown {
			if c.logger != nil {
				c.logger.Warn("dropping relationship with unknown endpoint",
					zap.String("source", wr.SourceName),
					zap.String("target", wr.TargetName),
					zap.String("relationship_type", wr.Type),
					zap.String("source_path", sourcePath))
			}
			continue
		}
		kind, _ := models.ParseRelationshipKind(wr.Type)
		id := wr.RelationshipID
		if id == "" {
			id = models.RelationshipID(srcID, dstID, kind)
		}
		result.Relationships = append(result.Relationships, models.Relationship{
			ID:         id,
			SourceID:   srcID,
			TargetID:   dstID,
			Kind:       kind,
			Confidence: utils.Clamp01(wr.Confidence),
			Properties: wr.Properties,
		})
	}
	return result
}
