package graphwriter

import (
	"context"
	"testing"

	"github.com/hyperjump/chishiki/internal/graphstore"
	"github.com/hyperjump/chishiki/internal/models"
)

func sampleEntities() []models.Entity {
	return []models.Entity{
		{ID: "ent_1", Name: "f", Kind: models.EntityFunction, SourcePath: "svc/app.py", Confidence: 0.9},
		{ID: "ent_2", Name: "Widget", Kind: models.EntityClass, SourcePath: "svc/app.py", Confidence: 0.8,
			Description: "a widget"},
	}
}

func TestIndexGraphWritesEntitiesAndLinks(t *testing.T) {
	store := graphstore.NewMemoryStore()
	w := NewWriter(store)
	ctx := context.Background()

	rels := []models.Relationship{
		{ID: "rel_1", SourceID: "ent_1", TargetID: "ent_2", Kind: models.RelCalls, Confidence: 0.7},
	}
	res, err := w.IndexGraph(ctx, sampleEntities(), rels, "svc/app.py", "svc")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.EntityIDs) != 2 || res.RelationshipsCreated != 1 {
		t.Errorf("result = %+v", res)
	}

	// Entity node merged with properties.
	n, _ := store.GetNode(ctx, EntityRef("svc", "ent_1"))
	if n == nil || n.Props["name"] != "f" || n.Props["entity_type"] != "function" {
		t.Errorf("entity node: %+v", n)
	}

	// File node exists, reachable from the project, project-scoped.
	f, _ := store.GetNode(ctx, FileRef("svc", "svc/app.py"))
	if f == nil || f.Props["project_name"] != "svc" {
		t.Errorf("file node: %+v", f)
	}

	// contains_entity links from the file.
	edges, _ := store.Edges(ctx, FileRef("svc", "svc/app.py"))
	containsEntity := 0
	for _, e := range edges {
		if e.Kind == EdgeContainsEntity {
			containsEntity++
		}
	}
	if containsEntity != 2 {
		t.Errorf("contains_entity edges = %d, want 2", containsEntity)
	}
}

func TestIndexGraphPlaceholderCarriesProjectName(t *testing.T) {
	store := graphstore.NewMemoryStore()
	w := NewWriter(store)
	ctx := context.Background()

	// ent_external was extracted from another document and does not appear
	// in this batch's entity list.
	rels := []models.Relationship{
		{ID: "rel_x", SourceID: "ent_1", TargetID: "ent_external", Kind: models.RelReferences, Confidence: 0.5},
	}
	if _, err := w.IndexGraph(ctx, sampleEntities()[:1], rels, "svc/app.py", "svc"); err != nil {
		t.Fatal(err)
	}

	n, _ := store.GetNode(ctx, EntityRef("svc", "ent_external"))
	if n == nil {
		t.Fatal("placeholder node not created")
	}
	if n.Props["project_name"] != "svc" {
		t.Errorf("placeholder missing project_name: %+v", n.Props)
	}
	if n.Props["placeholder"] != true {
		t.Errorf("placeholder not marked: %+v", n.Props)
	}
}

func TestIndexGraphDropsRelationshipWithEmptyEndpoint(t *testing.T) {
	store := graphstore.NewMemoryStore()
	dropped := 0
	w := NewWriter(store, WithDropHook(func() { dropped++ }))

	rels := []models.Relationship{
		{ID: "rel_bad", SourceID: "ent_1", TargetID: "", Kind: models.RelCalls},
	}
	res, err := w.IndexGraph(context.Background(), sampleEntities()[:1], rels, "svc/app.py", "svc")
	if err != nil {
		t.Fatal(err)
	}
	if res.RelationshipsCreated != 0 || dropped != 1 {
		t.Errorf("created = %d, dropped = %d", res.RelationshipsCreated, dropped)
	}
}

func TestIndexGraphIdempotent(t *testing.T) {
	store := graphstore.NewMemoryStore()
	w := NewWriter(store)
	ctx := context.Background()
	rels := []models.Relationship{
		{ID: "rel_1", SourceID: "ent_1", TargetID: "ent_2", Kind: models.RelCalls, Confidence: 0.7},
	}

	if _, err := w.IndexGraph(ctx, sampleEntities(), rels, "svc/app.py", "svc"); err != nil {
		t.Fatal(err)
	}
	before := store.NodeCount()
	res, err := w.IndexGraph(ctx, sampleEntities(), rels, "svc/app.py", "svc")
	if err != nil {
		t.Fatal(err)
	}
	if store.NodeCount() != before {
		t.Errorf("node count changed on re-index: %d -> %d", before, store.NodeCount())
	}
	if res.RelationshipsCreated != 1 {
		t.Errorf("relationships = %d on re-index, want 1", res.RelationshipsCreated)
	}
}

func TestIndexGraphMergePreservesOmittedProperties(t *testing.T) {
	store := graphstore.NewMemoryStore()
	w := NewWriter(store)
	ctx := context.Background()

	first := []models.Entity{{ID: "ent_1", Name: "f", Kind: models.EntityFunction,
		SourcePath: "a.py", Confidence: 0.9, Description: "original description"}}
	if _, err := w.IndexGraph(ctx, first, nil, "a.py", "svc"); err != nil {
		t.Fatal(err)
	}

	// Second write omits the description; it must survive.
	second := []models.Entity{{ID: "ent_1", Name: "f renamed", Kind: models.EntityFunction,
		SourcePath: "a.py", Confidence: 0.95}}
	if _, err := w.IndexGraph(ctx, second, nil, "a.py", "svc"); err != nil {
		t.Fatal(err)
	}

	n, _ := store.GetNode(ctx, EntityRef("svc", "ent_1"))
	if n.Props["name"] != "f renamed" {
		t.Errorf("name = %v, want last writer", n.Props["name"])
	}
	if n.Props["description"] != "original description" {
		t.Errorf("description = %v, want preserved", n.Props["description"])
	}
}

func TestIndexGraphInvalidProject(t *testing.T) {
	store := graphstore.NewMemoryStore()
	w := NewWriter(store)
	// Step 1 writes entities, but step 2's empty-project failure must surface.
	_, err := w.IndexGraph(context.Background(), sampleEntities(), nil, "a.py", " ")
	if err == nil {
		t.Fatal("expected InvalidProject error")
	}
}
