// Package fingerprint produces content hashes and deduplication verdicts
// for incoming documents.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"
	"lukechampine.com/blake3"

	"github.com/hyperjump/chishiki/internal/models"
)

// AlgorithmBLAKE3 and AlgorithmSHA256 are the digest algorithms the stamper
// can record. BLAKE3 is preferred; SHA-256 is the fallback for deployments
// that cannot carry the blake3 module.
const (
	AlgorithmBLAKE3 = "blake3"
	AlgorithmSHA256 = "sha256"
)

// SeenIndex answers "have we seen this hash before" and records it. It may
// be backed by redis or by process memory; it may be unavailable.
type SeenIndex interface {
	// Observe records hash and reports whether it was already present.
	Observe(ctx context.Context, hash string) (seen bool, err error)
	Close() error
}

// StamperOption configures a Stamper.
type StamperOption func(*Stamper)

// WithLogger sets a logger for degradation warnings.
func WithLogger(l *zap.Logger) StamperOption {
	return func(s *Stamper) { s.logger = l }
}

// WithDegradeHook installs a callback invoked when a verdict degrades to
// new because the seen index was unreachable (metrics).
func WithDegradeHook(fn func()) StamperOption {
	return func(s *Stamper) { s.onDegrade = fn }
}

// Stamper hashes content and consults a SeenIndex for the dedup verdict.
// The hash is a pure function of the content bytes; the verdict depends on
// the index state. On an unreachable index the verdict degrades to new — a
// duplicate that slips through costs a re-index, a false duplicate would
// drop a document.
type Stamper struct {
	algorithm string
	seen      SeenIndex
	logger    *zap.Logger
	onDegrade func()
	now       func() time.Time
}

// NewStamper creates a stamper using the given algorithm ("blake3" or
// "sha256") and seen index.
func NewStamper(algorithm string, seen SeenIndex, opts ...StamperOption) (*Stamper, error) {
	switch algorithm {
	case AlgorithmBLAKE3, AlgorithmSHA256:
	case "":
		algorithm = AlgorithmBLAKE3
	default:
		return nil, fmt.Errorf("unknown fingerprint algorithm: %s (supported: blake3, sha256)", algorithm)
	}
	s := &Stamper{algorithm: algorithm, seen: seen, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Stamp hashes content and returns the fingerprint with its dedup verdict.
func (s *Stamper) Stamp(ctx context.Context, content, sourcePath string) (models.Fingerprint, error) {
	fp := models.Fingerprint{
		Hash:      s.digest([]byte(content)),
		Algorithm: s.algorithm,
		Verdict:   models.VerdictNew,
		StampedAt: s.now().UTC(),
	}
	seen, err := s.seen.Observe(ctx, fp.Algorithm+":"+fp.Hash)
	if err != nil {
		if s.onDegrade != nil {
			s.onDegrade()
		}
		if s.logger != nil {
			s.logger.Warn("seen index unreachable, defaulting verdict to new",
				zap.String("source_path", sourcePath), zap.Error(err))
		}
		return fp, nil
	}
	if seen {
		fp.Verdict = models.VerdictDuplicate
	}
	return fp, nil
}

func (s *Stamper) digest(content []byte) string {
	if s.algorithm == AlgorithmSHA256 {
		sum := sha256.Sum256(content)
		return hex.EncodeToString(sum[:])
	}
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}
