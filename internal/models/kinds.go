package models

import "strings"

// EntityKind classifies an extracted entity. The set is closed; anything the
// extractor returns outside it is normalized to EntityConcept.
type EntityKind string

const (
	EntityFunction      EntityKind = "function"
	EntityMethod        EntityKind = "method"
	EntityClass         EntityKind = "class"
	EntityModule        EntityKind = "module"
	EntityVariable      EntityKind = "variable"
	EntityConstant      EntityKind = "constant"
	EntityAPIEndpoint   EntityKind = "api_endpoint"
	EntityConfigSetting EntityKind = "config_setting"
	EntityConcept       EntityKind = "concept"
	EntityDocument      EntityKind = "document"
	EntityPattern       EntityKind = "pattern"
	EntityService       EntityKind = "service"
	EntityKeyword       EntityKind = "keyword"
	EntityCodeExample   EntityKind = "code_example"
	EntityStructType    EntityKind = "struct_type"
	EntityInterface     EntityKind = "interface"
	EntityTestCase      EntityKind = "test_case"
)

var entityKinds = map[EntityKind]struct{}{
	EntityFunction: {}, EntityMethod: {}, EntityClass: {}, EntityModule: {},
	EntityVariable: {}, EntityConstant: {}, EntityAPIEndpoint: {},
	EntityConfigSetting: {}, EntityConcept: {}, EntityDocument: {},
	EntityPattern: {}, EntityService: {}, EntityKeyword: {},
	EntityCodeExample: {}, EntityStructType: {}, EntityInterface: {},
	EntityTestCase: {},
}

// ParseEntityKind matches s against the closed set, case-insensitively.
// The second return is false when s is unknown (caller normalizes to
// EntityConcept and records a warning).
func ParseEntityKind(s string) (EntityKind, bool) {
	k := EntityKind(strings.ToLower(strings.TrimSpace(s)))
	_, ok := entityKinds[k]
	if !ok {
		return EntityConcept, false
	}
	return k, true
}

// RelationshipKind classifies a relationship between two entities.
type RelationshipKind string

const (
	RelCalls          RelationshipKind = "calls"
	RelImports        RelationshipKind = "imports"
	RelContains       RelationshipKind = "contains"
	RelContainsEntity RelationshipKind = "contains_entity"
	RelRelatesTo      RelationshipKind = "relates_to"
	RelDependsOn      RelationshipKind = "depends_on"
	RelReferences     RelationshipKind = "references"
	RelExtends        RelationshipKind = "extends"
	RelImplements     RelationshipKind = "implements"
	RelDocuments      RelationshipKind = "documents"
)

var relationshipKinds = map[RelationshipKind]struct{}{
	RelCalls: {}, RelImports: {}, RelContains: {}, RelContainsEntity: {},
	RelRelatesTo: {}, RelDependsOn: {}, RelReferences: {}, RelExtends: {},
	RelImplements: {}, RelDocuments: {},
}

// ParseRelationshipKind matches s against the closed set, case-insensitively,
// defaulting unknown kinds to RelRelatesTo.
func ParseRelationshipKind(s string) (RelationshipKind, bool) {
	k := RelationshipKind(strings.ToLower(strings.TrimSpace(s)))
	_, ok := relationshipKinds[k]
	if !ok {
		return RelRelatesTo, false
	}
	return k, true
}
