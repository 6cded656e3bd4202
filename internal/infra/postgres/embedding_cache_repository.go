package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samber/mo"

	"github.com/jinford/portfolio-rag/internal/core/embedding"
)

// EmbeddingCacheRepository は embedding.CacheStore を実装する PostgreSQL リポジトリです
type EmbeddingCacheRepository struct {
	pool *pgxpool.Pool
}

// NewEmbeddingCacheRepository は新しい EmbeddingCacheRepository を作成します
func NewEmbeddingCacheRepository(pool *pgxpool.Pool) *EmbeddingCacheRepository {
	return &EmbeddingCacheRepository{pool: pool}
}

// コンパイル時の型チェック
var _ embedding.CacheStore = (*EmbeddingCacheRepository)(nil)

// Get はキャッシュ済みEmbeddingを返します
// 期限切れエントリはミス扱いにする
func (r *EmbeddingCacheRepository) Get(ctx context.Context, textHash, model string) (mo.Option[[]float32], error) {
	var vec pgvector.Vector
	err := r.pool.QueryRow(ctx,
		`SELECT embedding FROM embedding_cache
		 WHERE text_hash = $1 AND model_name = $2
		   AND (expires_at IS NULL OR expires_at > now())`,
		textHash, model,
	).Scan(&vec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[[]float32](), nil
		}
		return mo.None[[]float32](), fmt.Errorf("failed to get cached embedding: %w", err)
	}

	return mo.Some(vec.Slice()), nil
}

// Put はEmbeddingをキャッシュに保存します（同一キーは上書き）
func (r *EmbeddingCacheRepository) Put(ctx context.Context, entry *embedding.CacheEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO embedding_cache (text_hash, model_name, embedding, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (text_hash, model_name)
		 DO UPDATE SET embedding = EXCLUDED.embedding, expires_at = EXCLUDED.expires_at, created_at = now()`,
		entry.TextHash,
		entry.ModelName,
		pgvector.NewVector(entry.Embedding),
		TimePtrToPgtype(entry.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to put cached embedding: %w", err)
	}
	return nil
}

// Prune は期限切れエントリを削除し、削除件数を返します
func (r *EmbeddingCacheRepository) Prune(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM embedding_cache WHERE expires_at IS NOT NULL AND expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune embedding cache: %w", err)
	}
	return tag.RowsAffected(), nil
}
