package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/portfolio-rag/internal/core/ingestion"
	"github.com/jinford/portfolio-rag/internal/core/retrieval"
	"github.com/jinford/portfolio-rag/pkg/lock"
)

// ChunkRepository はチャンクの永続化と類似度検索を提供する PostgreSQL リポジトリです
type ChunkRepository struct {
	pool *pgxpool.Pool
}

// NewChunkRepository は新しい ChunkRepository を作成します
func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// コンパイル時の型チェック
var (
	_ ingestion.Repository = (*ChunkRepository)(nil)
	_ retrieval.Repository = (*ChunkRepository)(nil)
)

// ReplaceChunks はソースのチャンク集合を新世代に置き換えます
// トランザクション内でアドバイザリロックを取得して同一ソースへの並行
// 取り込みを直列化し、新世代の挿入後に旧世代を非活性化する
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, sourceType ingestion.SourceType, sourceID string, chunks []*ingestion.Chunk) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	lockID := lock.GenerateLockID("chunk", string(sourceType), sourceID)
	if err := lock.Acquire(ctx, tx, lockID); err != nil {
		return 0, err
	}

	var generation int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(generation), 0) + 1 FROM content_chunks WHERE source_type = $1 AND source_id = $2`,
		string(sourceType), sourceID,
	).Scan(&generation)
	if err != nil {
		return 0, fmt.Errorf("failed to determine next generation: %w", err)
	}

	for _, c := range chunks {
		_, err = tx.Exec(ctx,
			`INSERT INTO content_chunks
				(id, source_type, source_id, source_title, sequence_index, content, token_count, embedding, generation, active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10)`,
			UUIDToPgtype(c.ID),
			string(sourceType),
			sourceID,
			c.SourceTitle,
			c.SequenceIndex,
			c.Content,
			c.TokenCount,
			pgvector.NewVector(c.Embedding),
			generation,
			TimeToPgtype(c.CreatedAt),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert chunk %d: %w", c.SequenceIndex, err)
		}
	}

	// 新世代の挿入が完了してから旧世代を落とす
	_, err = tx.Exec(ctx,
		`UPDATE content_chunks SET active = FALSE
		 WHERE source_type = $1 AND source_id = $2 AND generation < $3 AND active`,
		string(sourceType), sourceID, generation,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate old generations: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit chunk replacement: %w", err)
	}

	return generation, nil
}

// SearchActiveChunks はアクティブなチャンクをコサイン類似度の降順で返します
func (r *ChunkRepository) SearchActiveChunks(ctx context.Context, queryVector []float32, filter retrieval.Filter, limit int) ([]*retrieval.Result, error) {
	query := `SELECT id, source_type, source_id, source_title, sequence_index, content, token_count, embedding, generation, created_at,
			1 - (embedding <=> $1) AS similarity
		FROM content_chunks
		WHERE active`
	args := []any{pgvector.NewVector(queryVector)}

	if st, ok := filter.SourceType.Get(); ok {
		args = append(args, string(st))
		query += fmt.Sprintf(" AND source_type = $%d", len(args))
	}
	if id, ok := filter.SourceID.Get(); ok {
		args = append(args, id)
		query += fmt.Sprintf(" AND source_id = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var results []*retrieval.Result
	for rows.Next() {
		var (
			c          ingestion.Chunk
			id         pgtype.UUID
			sourceType string
			embedding  pgvector.Vector
			createdAt  pgtype.Timestamp
			similarity float64
		)
		err := rows.Scan(
			&id, &sourceType, &c.SourceID, &c.SourceTitle, &c.SequenceIndex,
			&c.Content, &c.TokenCount, &embedding, &c.Generation, &createdAt,
			&similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}

		c.ID = PgtypeToUUID(id)
		c.SourceType = ingestion.SourceType(sourceType)
		c.Embedding = embedding.Slice()
		c.Active = true
		c.CreatedAt = PgtypeToTime(createdAt)

		results = append(results, &retrieval.Result{
			Chunk:      &c,
			Similarity: similarity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunk rows: %w", err)
	}

	return results, nil
}

// CreateJob は取り込みジョブを記録します
func (r *ChunkRepository) CreateJob(ctx context.Context, job *ingestion.IngestJob) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO ingest_jobs (id, source_type, source_id, source_title, status, chunks_created, error_message, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		UUIDToPgtype(job.ID),
		string(job.SourceType),
		job.SourceID,
		job.SourceTitle,
		string(job.Status),
		job.ChunksCreated,
		job.ErrorMessage,
		TimeToPgtype(job.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create ingest job: %w", err)
	}
	return nil
}

// FinishJob はジョブの完了状態を記録します
func (r *ChunkRepository) FinishJob(ctx context.Context, jobID uuid.UUID, status ingestion.JobStatus, chunksCreated int, errorMessage string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE ingest_jobs SET status = $2, chunks_created = $3, error_message = $4, completed_at = now()
		 WHERE id = $1`,
		UUIDToPgtype(jobID),
		string(status),
		chunksCreated,
		errorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to finish ingest job: %w", err)
	}
	return nil
}
