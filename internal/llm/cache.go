package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/raine/dermadict/internal/storage"
	"github.com/rs/zerolog/log"
)

// CachedAnalyzer wraps an Analyzer with a persistent result cache.
type CachedAnalyzer struct {
	inner  Analyzer
	store  storage.AnalysisCache
	maxAge time.Duration
}

// NewCachedAnalyzer creates a cached analyzer. Entries older than maxAge
// are ignored.
func NewCachedAnalyzer(inner Analyzer, store storage.AnalysisCache, maxAge time.Duration) *CachedAnalyzer {
	return &CachedAnalyzer{inner: inner, store: store, maxAge: maxAge}
}

// hashImage creates a SHA256 hash of the encoded image.
func hashImage(image string) string {
	h := sha256.Sum256([]byte(image))
	return hex.EncodeToString(h[:])
}

// Analyze implements the Analyzer interface with caching. Cache errors are
// logged and never fail the analysis.
func (c *CachedAnalyzer) Analyze(ctx context.Context, image string) (*AnalysisResult, error) {
	if image == "" || c.store == nil {
		return c.inner.Analyze(ctx, image)
	}

	hash := hashImage(image)

	cached, err := c.store.GetAnalysis(hash, c.maxAge)
	if err != nil {
		log.Warn().Err(err).Msg("failed to check analysis cache")
	} else if cached != nil {
		log.Debug().Str("hash", hash[:16]).Msg("analysis cache hit")
		return &AnalysisResult{Result: cached.Result, Cached: true}, nil
	}

	result, err := c.inner.Analyze(ctx, image)
	if err != nil {
		return nil, err
	}

	// Fallback results are never cached
	if result.Result.IsFallback() {
		return result, nil
	}

	if err := c.store.SetAnalysis(hash, result.Result); err != nil {
		log.Warn().Err(err).Msg("failed to cache analysis result")
	} else {
		log.Debug().Str("hash", hash[:16]).Msg("cached analysis result")
	}

	return result, nil
}
