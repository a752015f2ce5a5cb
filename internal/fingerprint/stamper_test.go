package fingerprint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/hyperjump/chishiki/internal/models"
)

type failingSeenIndex struct{}

func (failingSeenIndex) Observe(ctx context.Context, hash string) (bool, error) {
	return false, errors.New("connection refused")
}
func (failingSeenIndex) Close() error { return nil }

func TestStampHashIsPureOverContent(t *testing.T) {
	s, err := NewStamper(AlgorithmBLAKE3, NewMemorySeenIndex())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	a, _ := s.Stamp(ctx, "def f(): pass", "a.py")
	// Different path, same content: same hash.
	s2, _ := NewStamper(AlgorithmBLAKE3, NewMemorySeenIndex())
	b, _ := s2.Stamp(ctx, "def f(): pass", "b.py")
	if a.Hash != b.Hash {
		t.Errorf("hash differs for identical content: %s vs %s", a.Hash, b.Hash)
	}
	if a.Hash == "" || a.Algorithm != AlgorithmBLAKE3 {
		t.Errorf("unexpected fingerprint: %+v", a)
	}
}

func TestStampVerdicts(t *testing.T) {
	s, _ := NewStamper(AlgorithmBLAKE3, NewMemorySeenIndex())
	ctx := context.Background()

	first, err := s.Stamp(ctx, "content", "a.py")
	if err != nil {
		t.Fatal(err)
	}
	if first.Verdict != models.VerdictNew {
		t.Errorf("first verdict = %s, want new", first.Verdict)
	}
	second, _ := s.Stamp(ctx, "content", "a.py")
	if second.Verdict != models.VerdictDuplicate {
		t.Errorf("second verdict = %s, want duplicate", second.Verdict)
	}
	other, _ := s.Stamp(ctx, "different content", "a.py")
	if other.Verdict != models.VerdictNew {
		t.Errorf("other verdict = %s, want new", other.Verdict)
	}
}

func TestStampAlgorithmRecorded(t *testing.T) {
	s, _ := NewStamper(AlgorithmSHA256, NewMemorySeenIndex())
	fp, _ := s.Stamp(context.Background(), "x", "a.py")
	if fp.Algorithm != AlgorithmSHA256 {
		t.Errorf("algorithm = %s, want sha256", fp.Algorithm)
	}
	if len(fp.Hash) != 64 {
		t.Errorf("sha256 hex length = %d, want 64", len(fp.Hash))
	}
}

func TestStampDegradesToNewOnIndexFailure(t *testing.T) {
	degraded := 0
	s, _ := NewStamper(AlgorithmBLAKE3, failingSeenIndex{}, WithDegradeHook(func() { degraded++ }))
	fp, err := s.Stamp(context.Background(), "content", "a.py")
	if err != nil {
		t.Fatalf("Stamp should not fail on index outage: %v", err)
	}
	if fp.Verdict != models.VerdictNew {
		t.Errorf("verdict = %s, want new", fp.Verdict)
	}
	if degraded != 1 {
		t.Errorf("degrade hook fired %d times, want 1", degraded)
	}
}

func TestUnknownAlgorithmRejected(t *testing.T) {
	if _, err := NewStamper("md5", NewMemorySeenIndex()); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func TestRedisSeenIndex(t *testing.T) {
	mr := miniredis.RunT(t)
	idx, err := NewRedisSeenIndex("redis://"+mr.Addr(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	seen, err := idx.Observe(ctx, "blake3:abc")
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Error("first observe should report unseen")
	}
	seen, _ = idx.Observe(ctx, "blake3:abc")
	if !seen {
		t.Error("second observe should report seen")
	}

	// TTL expiry re-opens the dedup window.
	mr.FastForward(2 * time.Hour)
	seen, _ = idx.Observe(ctx, "blake3:abc")
	if seen {
		t.Error("expired hash should report unseen")
	}
}

func TestRedisSeenIndexDown(t *testing.T) {
	mr := miniredis.RunT(t)
	idx, err := NewRedisSeenIndex("redis://"+mr.Addr(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	mr.Close()

	if _, err := idx.Observe(context.Background(), "blake3:abc"); err == nil {
		t.Error("expected error when redis is down")
	}
}
