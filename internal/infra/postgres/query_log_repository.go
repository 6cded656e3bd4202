package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/portfolio-rag/internal/core/query"
)

// QueryLogRepository は query.LogRepository を実装する PostgreSQL リポジトリです
type QueryLogRepository struct {
	pool *pgxpool.Pool
}

// NewQueryLogRepository は新しい QueryLogRepository を作成します
func NewQueryLogRepository(pool *pgxpool.Pool) *QueryLogRepository {
	return &QueryLogRepository{pool: pool}
}

// コンパイル時の型チェック
var _ query.LogRepository = (*QueryLogRepository)(nil)

// Append はクエリ履歴を1件追加します
func (r *QueryLogRepository) Append(ctx context.Context, entry *query.LogEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO rag_query_logs
			(id, question, context_type, source_id, answer, confidence, chunks_retrieved, chunks_used, tokens_used, response_time_ms, cached, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		UUIDToPgtype(entry.ID),
		entry.Question,
		entry.ContextType,
		entry.SourceID,
		entry.Answer,
		entry.Confidence,
		entry.ChunksRetrieved,
		entry.ChunksUsed,
		entry.TokensUsed,
		entry.ResponseTime.Milliseconds(),
		entry.Cached,
		TimeToPgtype(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append query log: %w", err)
	}
	return nil
}

// Recent は新しい順に最大 limit 件の履歴を返します
func (r *QueryLogRepository) Recent(ctx context.Context, limit int) ([]*query.LogEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, question, context_type, source_id, answer, confidence, chunks_retrieved, chunks_used, tokens_used, response_time_ms, cached, created_at
		 FROM rag_query_logs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list query logs: %w", err)
	}
	defer rows.Close()

	var entries []*query.LogEntry
	for rows.Next() {
		var (
			e          query.LogEntry
			id         pgtype.UUID
			responseMS int64
			createdAt  pgtype.Timestamp
		)
		err := rows.Scan(&id, &e.Question, &e.ContextType, &e.SourceID, &e.Answer, &e.Confidence, &e.ChunksRetrieved, &e.ChunksUsed, &e.TokensUsed, &responseMS, &e.Cached, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query log row: %w", err)
		}

		e.ID = PgtypeToUUID(id)
		e.ResponseTime = time.Duration(responseMS) * time.Millisecond
		e.CreatedAt = PgtypeToTime(createdAt)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate query log rows: %w", err)
	}

	return entries, nil
}

// Stats は直近 window 分の集計値を返します
func (r *QueryLogRepository) Stats(ctx context.Context, window time.Duration) (*query.LogStats, error) {
	since := time.Now().Add(-window)

	var stats query.LogStats
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
			COALESCE(AVG(confidence), 0),
			COALESCE(AVG(response_time_ms), 0),
			COALESCE(AVG(CASE WHEN cached THEN 1.0 ELSE 0.0 END), 0)
		 FROM rag_query_logs WHERE created_at >= $1`,
		TimeToPgtype(since),
	).Scan(&stats.TotalQueries, &stats.AvgConfidence, &stats.AvgResponseMS, &stats.CacheHitRate)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate query logs: %w", err)
	}

	return &stats, nil
}
