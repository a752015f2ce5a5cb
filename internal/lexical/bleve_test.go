package lexical

import (
	"context"
	"testing"
)

func TestBleveSourceIndexAndSearch(t *testing.T) {
	src, err := NewBleveSource("")
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	ctx := context.Background()

	docs := []Document{
		{SourcePath: "svc/cache.py", ProjectName: "svc", Language: "python", Content: "LRU cache eviction policy for hot entries"},
		{SourcePath: "svc/parser.py", ProjectName: "svc", Language: "python", Content: "tokenizer and parser"},
		{SourcePath: "other/cache.go", ProjectName: "other", Language: "go", Content: "cache eviction in go"},
	}
	for _, d := range docs {
		if err := src.Index(ctx, d); err != nil {
			t.Fatalf("Index(%s): %v", d.SourcePath, err)
		}
	}

	results, err := src.Search(ctx, "cache eviction", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	// Scores normalized: top hit is 1.0.
	if results[0].Score != 1.0 {
		t.Errorf("top score = %v, want 1.0", results[0].Score)
	}

	// Project scoping.
	results, err = src.Search(ctx, "cache eviction", "svc", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].SourcePath != "svc/cache.py" {
		t.Errorf("scoped results: %+v", results)
	}
}

func TestBleveSourceDelete(t *testing.T) {
	src, err := NewBleveSource("")
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	ctx := context.Background()

	_ = src.Index(ctx, Document{SourcePath: "a.py", ProjectName: "svc", Content: "needle content"})
	if err := src.Delete(ctx, "a.py"); err != nil {
		t.Fatal(err)
	}
	results, _ := src.Search(ctx, "needle", "", 10)
	if len(results) != 0 {
		t.Errorf("expected no results after delete, got %+v", results)
	}
}

func TestBleveSourceReindexSamePath(t *testing.T) {
	src, _ := NewBleveSource("")
	defer src.Close()
	ctx := context.Background()

	_ = src.Index(ctx, Document{SourcePath: "a.py", ProjectName: "svc", Content: "old words"})
	_ = src.Index(ctx, Document{SourcePath: "a.py", ProjectName: "svc", Content: "new words"})

	if results, _ := src.Search(ctx, "old", "", 10); len(results) != 0 {
		t.Errorf("stale content still searchable: %+v", results)
	}
	results, _ := src.Search(ctx, "new", "", 10)
	if len(results) != 1 {
		t.Errorf("reindexed content not found: %+v", results)
	}
}
