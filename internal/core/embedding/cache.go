package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/mo"

	"github.com/jinford/portfolio-rag/internal/core/cache"
)

// CacheEntry は永続キャッシュの1エントリを表す
type CacheEntry struct {
	TextHash  string
	Embedding []float32
	ModelName string
	ExpiresAt *time.Time // nilは無期限
}

// CacheStore は永続キャッシュ層のインターフェース
// 実装はPostgres（infra/postgres）。期限切れエントリはヒットとして返さない
type CacheStore interface {
	Get(ctx context.Context, textHash, model string) (mo.Option[[]float32], error)
	Put(ctx context.Context, entry *CacheEntry) error
}

// CachingEmbedder はプロバイダEmbedderを二層キャッシュでラップする
// 参照順: インプロセスTTLキャッシュ → 永続キャッシュ → プロバイダ。
// 同一の正規化済みテキスト＋モデルに対してはプロバイダを再呼び出ししない
type CachingEmbedder struct {
	provider Embedder
	store    CacheStore // nil可（永続層なしで動作）
	fast     *cache.TTL[[]float32]
	fastTTL  time.Duration
	logger   *slog.Logger
}

type cachingEmbedderOptions struct {
	store   CacheStore
	fastTTL time.Duration
	logger  *slog.Logger
}

// CachingEmbedderOption は CachingEmbedder のオプション設定
type CachingEmbedderOption func(*cachingEmbedderOptions)

// WithCacheStore は永続キャッシュ層を設定する
func WithCacheStore(store CacheStore) CachingEmbedderOption {
	return func(o *cachingEmbedderOptions) {
		o.store = store
	}
}

// WithFastTTL はインプロセスキャッシュのTTLを設定する
func WithFastTTL(ttl time.Duration) CachingEmbedderOption {
	return func(o *cachingEmbedderOptions) {
		o.fastTTL = ttl
	}
}

// WithEmbedderLogger は CachingEmbedder にロガーを設定する
func WithEmbedderLogger(logger *slog.Logger) CachingEmbedderOption {
	return func(o *cachingEmbedderOptions) {
		o.logger = logger
	}
}

// NewCachingEmbedder は新しい CachingEmbedder を作成します
func NewCachingEmbedder(provider Embedder, opts ...CachingEmbedderOption) *CachingEmbedder {
	options := cachingEmbedderOptions{
		fastTTL: 24 * time.Hour,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &CachingEmbedder{
		provider: provider,
		store:    options.store,
		fast:     cache.NewTTL[[]float32](),
		fastTTL:  options.fastTTL,
		logger:   options.logger,
	}
}

// Embed は単一テキストのEmbeddingを生成する
func (e *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// BatchEmbed は複数テキストのEmbeddingを一括生成する
// キャッシュミスしたテキストのみをプロバイダへの単一バッチ呼び出しにまとめる
func (e *CachingEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	model := e.provider.ModelName()
	results := make([][]float32, len(texts))

	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		normalized := Normalize(text)
		if normalized == "" {
			return nil, fmt.Errorf("%w: text at index %d", ErrEmptyInput, i)
		}

		key := CacheKey(normalized, model)
		if vec, ok := e.fast.Get(key); ok {
			results[i] = vec
			continue
		}

		if e.store != nil {
			stored, err := e.store.Get(ctx, key, model)
			if err != nil {
				// 永続層の失敗は致命的ではないためプロバイダにフォールバック
				e.logger.Warn("embedding cache store lookup failed", "error", err)
			} else if vec, ok := stored.Get(); ok {
				e.fast.Set(key, vec, e.fastTTL)
				results[i] = vec
				continue
			}
		}

		missIdx = append(missIdx, i)
		missTexts = append(missTexts, normalized)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	// ミス分を1回のバッチ呼び出しで解決する（N回の個別呼び出しは禁止）
	vectors, err := e.provider.BatchEmbed(ctx, missTexts)
	if err != nil {
		// タイムアウト/キャンセルは呼び出し側で区別するためそのまま返す
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("%w: provider returned %d vectors for %d texts", ErrProvider, len(vectors), len(missTexts))
	}

	for j, i := range missIdx {
		vec := vectors[j]
		key := CacheKey(missTexts[j], model)
		e.fast.Set(key, vec, e.fastTTL)
		if e.store != nil {
			entry := &CacheEntry{
				TextHash:  key,
				Embedding: vec,
				ModelName: model,
			}
			if err := e.store.Put(ctx, entry); err != nil {
				e.logger.Warn("failed to persist embedding cache entry", "error", err)
			}
		}
		results[i] = vec
	}

	return results, nil
}

// ModelName はモデル名を返す
func (e *CachingEmbedder) ModelName() string {
	return e.provider.ModelName()
}

// Dimension はベクトル次元数を返す
func (e *CachingEmbedder) Dimension() int {
	return e.provider.Dimension()
}

// インターフェース実装の確認
var _ Embedder = (*CachingEmbedder)(nil)
