package models

import (
	"strings"
	"testing"
)

func TestParseEntityKind(t *testing.T) {
	tests := []struct {
		in     string
		want   EntityKind
		wantOK bool
	}{
		{"function", EntityFunction, true},
		{"FUNCTION", EntityFunction, true},
		{"  Class ", EntityClass, true},
		{"api_endpoint", EntityAPIEndpoint, true},
		{"code_example", EntityCodeExample, true},
		{"widget", EntityConcept, false},
		{"", EntityConcept, false},
	}
	for _, tt := range tests {
		got, ok := ParseEntityKind(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseEntityKind(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseRelationshipKind(t *testing.T) {
	if got, ok := ParseRelationshipKind("CALLS"); got != RelCalls || !ok {
		t.Errorf("ParseRelationshipKind(CALLS) = (%q, %v)", got, ok)
	}
	if got, ok := ParseRelationshipKind("owns"); got != RelRelatesTo || ok {
		t.Errorf("ParseRelationshipKind(owns) = (%q, %v), want relates_to fallback", got, ok)
	}
}

func TestEntityIDStable(t *testing.T) {
	a := EntityID("svc", "svc/app.py", "f", EntityFunction)
	b := EntityID("svc", "svc/app.py", "f", EntityFunction)
	if a != b {
		t.Errorf("EntityID not stable: %s != %s", a, b)
	}
	if !strings.HasPrefix(a, "ent_") || len(a) != len("ent_")+16 {
		t.Errorf("unexpected EntityID shape: %s", a)
	}
	if a == EntityID("other", "svc/app.py", "f", EntityFunction) {
		t.Error("EntityID should differ across projects")
	}
	if a == EntityID("svc", "svc/app.py", "f", EntityMethod) {
		t.Error("EntityID should differ across kinds")
	}
}

func TestChunkPointIDDeterministic(t *testing.T) {
	a := ChunkPointID("abc123", 0)
	b := ChunkPointID("abc123", 0)
	if a != b {
		t.Errorf("ChunkPointID not deterministic: %s != %s", a, b)
	}
	if a == ChunkPointID("abc123", 1) {
		t.Error("ChunkPointID should differ across ordinals")
	}
	// uuid.NewSHA1 output shape
	if len(a) != 36 {
		t.Errorf("expected UUID string, got %s", a)
	}
}

func TestParseIndexRequest(t *testing.T) {
	payload := []byte(`{"source_path":"svc/app.py","content":"def f(): pass","language":"python","project_name":"svc","correlation_id":"c-1","indexing_options":{"chunk_size":500}}`)
	req, err := ParseIndexRequest(payload)
	if err != nil {
		t.Fatalf("ParseIndexRequest: %v", err)
	}
	if req.SourcePath != "svc/app.py" || req.ProjectName != "svc" {
		t.Errorf("unexpected request: %+v", req)
	}
	if req.Options.ChunkSize != 500 {
		t.Errorf("chunk_size = %d, want 500", req.Options.ChunkSize)
	}
	if _, err := ParseIndexRequest([]byte(`{`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}
