package metastore

import (
	"context"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func score(v float64) *float64 { return &v }

func TestUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &DocumentRecord{
		ProjectName:   "svc",
		SourcePath:    "svc/app.py",
		Language:      "python",
		ContentHash:   "abc",
		HashAlgorithm: "blake3",
		QualityScore:  score(0.8),
		EntityCount:   3,
		ChunkCount:    2,
	}
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "svc", "svc/app.py")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ContentHash != "abc" || got.EntityCount != 3 {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.QualityScore == nil || *got.QualityScore != 0.8 {
		t.Errorf("quality score = %v", got.QualityScore)
	}

	// Missing record is nil, not an error.
	got, err = s.Get(ctx, "svc", "nope.py")
	if err != nil || got != nil {
		t.Errorf("missing record: got %+v, err %v", got, err)
	}
}

func TestUpsertPreservesQualityOnNilUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &DocumentRecord{ProjectName: "svc", SourcePath: "a.py", ContentHash: "h1",
		HashAlgorithm: "blake3", QualityScore: score(0.7)}
	if err := s.Upsert(ctx, first); err != nil {
		t.Fatal(err)
	}
	// Re-index without a fresh quality score: the old one stays.
	second := &DocumentRecord{ProjectName: "svc", SourcePath: "a.py", ContentHash: "h2",
		HashAlgorithm: "blake3"}
	if err := s.Upsert(ctx, second); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Get(ctx, "svc", "a.py")
	if got.ContentHash != "h2" {
		t.Errorf("content hash = %s, want h2", got.ContentHash)
	}
	if got.QualityScore == nil || *got.QualityScore != 0.7 {
		t.Errorf("quality score = %v, want preserved 0.7", got.QualityScore)
	}
}

func TestQualityScores(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.Upsert(ctx, &DocumentRecord{ProjectName: "svc", SourcePath: "a.py",
		ContentHash: "h", HashAlgorithm: "blake3", QualityScore: score(0.9)})
	_ = s.Upsert(ctx, &DocumentRecord{ProjectName: "svc", SourcePath: "b.py",
		ContentHash: "h", HashAlgorithm: "blake3"})

	scores, err := s.QualityScores(ctx, "svc", []string{"a.py", "b.py", "c.py"})
	if err != nil {
		t.Fatal(err)
	}
	if len(scores) != 1 || scores["a.py"] != 0.9 {
		t.Errorf("scores = %v", scores)
	}
	if scores, _ := s.QualityScores(ctx, "svc", nil); len(scores) != 0 {
		t.Errorf("empty path list should give empty map, got %v", scores)
	}
}

func TestListCountDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, p := range []string{"a.py", "b.py", "c.py"} {
		_ = s.Upsert(ctx, &DocumentRecord{ProjectName: "svc", SourcePath: p,
			ContentHash: "h", HashAlgorithm: "blake3"})
	}
	_ = s.Upsert(ctx, &DocumentRecord{ProjectName: "other", SourcePath: "x.py",
		ContentHash: "h", HashAlgorithm: "blake3"})

	n, _ := s.Count(ctx, "svc")
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
	recs, _ := s.List(ctx, "svc", 1, 10)
	if len(recs) != 2 || recs[0].SourcePath != "b.py" {
		t.Errorf("list offset: %+v", recs)
	}
	_ = s.Delete(ctx, "svc", "a.py")
	n, _ = s.Count(ctx, "svc")
	if n != 2 {
		t.Errorf("count after delete = %d, want 2", n)
	}
}
