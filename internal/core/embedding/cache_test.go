package embedding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	calls      int
	batchSizes []int
	fail       bool
	failWith   error
}

func (p *stubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *stubProvider) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	p.calls++
	p.batchSizes = append(p.batchSizes, len(texts))
	if p.fail {
		if p.failWith != nil {
			return nil, p.failWith
		}
		return nil, errors.New("provider down")
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), 1, 0}
	}
	return vectors, nil
}

func (p *stubProvider) ModelName() string { return "stub-model" }
func (p *stubProvider) Dimension() int    { return 3 }

type stubStore struct {
	entries map[string][]float32
	puts    int
	getErr  error
}

func newStubStore() *stubStore {
	return &stubStore{entries: map[string][]float32{}}
}

func (s *stubStore) Get(ctx context.Context, textHash, model string) (mo.Option[[]float32], error) {
	if s.getErr != nil {
		return mo.None[[]float32](), s.getErr
	}
	if vec, ok := s.entries[textHash]; ok {
		return mo.Some(vec), nil
	}
	return mo.None[[]float32](), nil
}

func (s *stubStore) Put(ctx context.Context, entry *CacheEntry) error {
	s.puts++
	s.entries[entry.TextHash] = entry.Embedding
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCachingEmbedder_RepeatedTextHitsCache(t *testing.T) {
	provider := &stubProvider{}
	embedder := NewCachingEmbedder(provider, WithEmbedderLogger(discardLogger()))

	first, err := embedder.Embed(context.Background(), "hello world")
	require.NoError(t, err)

	second, err := embedder.Embed(context.Background(), "hello world")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.calls)
}

func TestCachingEmbedder_NormalizationSharesCacheEntry(t *testing.T) {
	provider := &stubProvider{}
	embedder := NewCachingEmbedder(provider, WithEmbedderLogger(discardLogger()))

	_, err := embedder.Embed(context.Background(), "hello   world")
	require.NoError(t, err)

	_, err = embedder.Embed(context.Background(), "  hello world  ")
	require.NoError(t, err)

	// 空白の差は正規化で吸収されプロバイダは1回だけ呼ばれる
	assert.Equal(t, 1, provider.calls)
}

func TestCachingEmbedder_BatchMissesCollapseToSingleCall(t *testing.T) {
	provider := &stubProvider{}
	embedder := NewCachingEmbedder(provider, WithEmbedderLogger(discardLogger()))

	_, err := embedder.Embed(context.Background(), "cached text")
	require.NoError(t, err)
	require.Equal(t, 1, provider.calls)

	vectors, err := embedder.BatchEmbed(context.Background(), []string{
		"cached text", "miss one", "miss two", "miss three",
	})
	require.NoError(t, err)
	require.Len(t, vectors, 4)

	// ミス3件は1回のバッチ呼び出しにまとめられる
	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, 3, provider.batchSizes[1])
}

func TestCachingEmbedder_PersistentStoreRoundTrip(t *testing.T) {
	store := newStubStore()

	provider := &stubProvider{}
	first := NewCachingEmbedder(provider, WithCacheStore(store), WithEmbedderLogger(discardLogger()))
	_, err := first.Embed(context.Background(), "persist me")
	require.NoError(t, err)
	assert.Equal(t, 1, store.puts)

	// 新しいインスタンス（空のインプロセスキャッシュ）でも永続層からヒットする
	freshProvider := &stubProvider{}
	second := NewCachingEmbedder(freshProvider, WithCacheStore(store), WithEmbedderLogger(discardLogger()))
	_, err = second.Embed(context.Background(), "persist me")
	require.NoError(t, err)
	assert.Equal(t, 0, freshProvider.calls)
}

func TestCachingEmbedder_StoreFailureFallsBackToProvider(t *testing.T) {
	store := newStubStore()
	store.getErr = errors.New("store down")

	provider := &stubProvider{}
	embedder := NewCachingEmbedder(provider, WithCacheStore(store), WithEmbedderLogger(discardLogger()))

	vec, err := embedder.Embed(context.Background(), "resilient")
	require.NoError(t, err)
	assert.NotEmpty(t, vec)
	assert.Equal(t, 1, provider.calls)
}

func TestCachingEmbedder_ProviderErrorIsWrapped(t *testing.T) {
	provider := &stubProvider{fail: true}
	embedder := NewCachingEmbedder(provider, WithEmbedderLogger(discardLogger()))

	_, err := embedder.Embed(context.Background(), "boom")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvider)
}

func TestCachingEmbedder_ContextErrorPassesThrough(t *testing.T) {
	provider := &stubProvider{
		fail:     true,
		failWith: fmt.Errorf("call aborted: %w", context.DeadlineExceeded),
	}
	embedder := NewCachingEmbedder(provider, WithEmbedderLogger(discardLogger()))

	_, err := embedder.Embed(context.Background(), "slow")
	require.Error(t, err)

	// タイムアウトはプロバイダー障害として包まず呼び出し側に渡す
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrProvider)
}

func TestCachingEmbedder_EmptyInput(t *testing.T) {
	embedder := NewCachingEmbedder(&stubProvider{}, WithEmbedderLogger(discardLogger()))

	_, err := embedder.BatchEmbed(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = embedder.Embed(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestCacheKey_ModelSeparation(t *testing.T) {
	a := CacheKey("same text", "model-a")
	b := CacheKey("same text", "model-b")
	assert.NotEqual(t, a, b)

	assert.Equal(t, CacheKey("same text", "model-a"), a)
}

func TestCachingEmbedder_FastTTLExpiry(t *testing.T) {
	provider := &stubProvider{}
	embedder := NewCachingEmbedder(provider,
		WithFastTTL(time.Nanosecond),
		WithEmbedderLogger(discardLogger()),
	)

	_, err := embedder.Embed(context.Background(), "short lived")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	_, err = embedder.Embed(context.Background(), "short lived")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
}
