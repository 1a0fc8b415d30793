package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raine/dermadict/internal/analysis"
	"github.com/raine/dermadict/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type analyzerMock struct {
	mock.Mock
}

func (m *analyzerMock) Analyze(ctx context.Context, image string) (*AnalysisResult, error) {
	args := m.Called(ctx, image)
	res, _ := args.Get(0).(*AnalysisResult)
	return res, args.Error(1)
}

type failingCache struct{}

func (failingCache) GetAnalysis(string, time.Duration) (*storage.CacheEntry, error) {
	return nil, errors.New("disk on fire")
}
func (failingCache) SetAnalysis(string, analysis.Result) error { return errors.New("disk on fire") }
func (failingCache) PruneAnalyses(time.Duration) (int64, error) { return 0, nil }
func (failingCache) Close() error                               { return nil }

func newTestCache(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	key, err := storage.DeriveKey("test")
	require.NoError(t, err)
	store, err := storage.NewSQLiteStore(":memory:", key)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCachedAnalyzer_HitSkipsInner(t *testing.T) {
	inner := new(analyzerMock)
	want := analysis.Result{Disease: "Eczema", Causes: "Dry skin", Summary: "Mild case"}
	inner.On("Analyze", mock.Anything, testImage).
		Return(&AnalysisResult{Result: want, Usage: Usage{TotalTokens: 10}}, nil).Once()

	cached := NewCachedAnalyzer(inner, newTestCache(t), time.Hour)

	first, err := cached.Analyze(context.Background(), testImage)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := cached.Analyze(context.Background(), testImage)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, want, second.Result)
	assert.Equal(t, Usage{}, second.Usage)

	inner.AssertExpectations(t)
}

func TestCachedAnalyzer_FallbackNotCached(t *testing.T) {
	inner := new(analyzerMock)
	fallback := analysis.ParseReply("not json")
	inner.On("Analyze", mock.Anything, testImage).
		Return(&AnalysisResult{Result: fallback}, nil).Twice()

	cached := NewCachedAnalyzer(inner, newTestCache(t), time.Hour)
	for i := 0; i < 2; i++ {
		res, err := cached.Analyze(context.Background(), testImage)
		require.NoError(t, err)
		assert.False(t, res.Cached)
	}

	inner.AssertExpectations(t)
}

func TestCachedAnalyzer_ErrorsPassThrough(t *testing.T) {
	inner := new(analyzerMock)
	inner.On("Analyze", mock.Anything, testImage).Return(nil, analysis.ErrRateLimited).Once()

	cached := NewCachedAnalyzer(inner, newTestCache(t), time.Hour)
	_, err := cached.Analyze(context.Background(), testImage)
	assert.ErrorIs(t, err, analysis.ErrRateLimited)
}

func TestCachedAnalyzer_StoreFailureIsNotFatal(t *testing.T) {
	inner := new(analyzerMock)
	want := analysis.Result{Disease: "Acne"}
	inner.On("Analyze", mock.Anything, testImage).Return(&AnalysisResult{Result: want}, nil).Once()

	cached := NewCachedAnalyzer(inner, failingCache{}, time.Hour)
	res, err := cached.Analyze(context.Background(), testImage)
	require.NoError(t, err)
	assert.Equal(t, want, res.Result)
}

func TestHashImage(t *testing.T) {
	assert.Equal(t, hashImage("a"), hashImage("a"))
	assert.NotEqual(t, hashImage("a"), hashImage("b"))
	assert.Len(t, hashImage("a"), 64)
}
