package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/portfolio-rag/internal/core/embedding"
	"github.com/jinford/portfolio-rag/internal/core/ingestion"
	"github.com/jinford/portfolio-rag/internal/core/query"
	"github.com/jinford/portfolio-rag/internal/core/retrieval"
)

const testDimension = 3

// startPostgres はpgvector入りのPostgreSQLコンテナを起動する
// Dockerが利用できない環境ではテストをスキップする
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "pgvector/pgvector",
		Tag:        "pg16",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=portfolio_test",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pool.Purge(resource)
	})
	_ = resource.Expire(300)

	connString := fmt.Sprintf(
		"host=localhost port=%s user=test password=test dbname=portfolio_test sslmode=disable",
		resource.GetPort("5432/tcp"),
	)

	var dbPool *pgxpool.Pool
	err = pool.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		p, err := pgxpool.New(ctx, connString)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		dbPool = p
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(dbPool.Close)

	// テスト用のスキーマはベクトル次元を小さくする
	require.NoError(t, Migrate(context.Background(), dbPool))
	_, err = dbPool.Exec(context.Background(), fmt.Sprintf(
		"ALTER TABLE content_chunks ALTER COLUMN embedding TYPE vector(%d) USING embedding::vector(%d)",
		testDimension, testDimension))
	require.NoError(t, err)
	_, err = dbPool.Exec(context.Background(), fmt.Sprintf(
		"ALTER TABLE embedding_cache ALTER COLUMN embedding TYPE vector(%d) USING embedding::vector(%d)",
		testDimension, testDimension))
	require.NoError(t, err)

	return dbPool
}

func testChunk(seq int, content string, embedding []float32) *ingestion.Chunk {
	return &ingestion.Chunk{
		ID:            uuid.New(),
		SourceTitle:   "Chat App",
		SequenceIndex: seq,
		Content:       content,
		TokenCount:    10,
		Embedding:     embedding,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestChunkRepository_ReplaceAndSearch(t *testing.T) {
	dbPool := startPostgres(t)
	repo := NewChunkRepository(dbPool)
	ctx := context.Background()

	gen1, err := repo.ReplaceChunks(ctx, ingestion.SourceTypeProject, "chat-app", []*ingestion.Chunk{
		testChunk(0, "caching layer", []float32{1, 0, 0}),
		testChunk(1, "deployment", []float32{0, 1, 0}),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, gen1)

	results, err := repo.SearchActiveChunks(ctx, []float32{1, 0, 0}, retrieval.Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "caching layer", results[0].Chunk.Content)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)

	// 再取り込みで旧世代は検索から消える
	gen2, err := repo.ReplaceChunks(ctx, ingestion.SourceTypeProject, "chat-app", []*ingestion.Chunk{
		testChunk(0, "rewritten content", []float32{1, 0, 0}),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, gen2)

	results, err = repo.SearchActiveChunks(ctx, []float32{1, 0, 0}, retrieval.Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rewritten content", results[0].Chunk.Content)
	assert.Equal(t, 2, results[0].Chunk.Generation)
}

func TestChunkRepository_SearchFilter(t *testing.T) {
	dbPool := startPostgres(t)
	repo := NewChunkRepository(dbPool)
	ctx := context.Background()

	_, err := repo.ReplaceChunks(ctx, ingestion.SourceTypeProfile, "p1", []*ingestion.Chunk{
		testChunk(0, "profile text", []float32{1, 0, 0}),
	})
	require.NoError(t, err)
	_, err = repo.ReplaceChunks(ctx, ingestion.SourceTypeProject, "proj1", []*ingestion.Chunk{
		testChunk(0, "project text", []float32{1, 0, 0}),
	})
	require.NoError(t, err)

	results, err := repo.SearchActiveChunks(ctx, []float32{1, 0, 0},
		retrieval.Filter{SourceType: mo.Some(ingestion.SourceTypeProfile)}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ingestion.SourceTypeProfile, results[0].Chunk.SourceType)

	results, err = repo.SearchActiveChunks(ctx, []float32{1, 0, 0},
		retrieval.Filter{SourceID: mo.Some("proj1")}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "proj1", results[0].Chunk.SourceID)
}

func TestChunkRepository_JobLifecycle(t *testing.T) {
	dbPool := startPostgres(t)
	repo := NewChunkRepository(dbPool)
	ctx := context.Background()

	job := &ingestion.IngestJob{
		ID:         uuid.New(),
		SourceType: ingestion.SourceTypeResume,
		SourceID:   "resume.pdf",
		Status:     ingestion.JobStatusProcessing,
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.CreateJob(ctx, job))
	require.NoError(t, repo.FinishJob(ctx, job.ID, ingestion.JobStatusCompleted, 5, ""))

	var status string
	var chunksCreated int
	err := dbPool.QueryRow(ctx,
		"SELECT status, chunks_created FROM ingest_jobs WHERE id = $1", UUIDToPgtype(job.ID),
	).Scan(&status, &chunksCreated)
	require.NoError(t, err)
	assert.Equal(t, "completed", status)
	assert.Equal(t, 5, chunksCreated)
}

func TestEmbeddingCacheRepository_RoundTrip(t *testing.T) {
	dbPool := startPostgres(t)
	repo := NewEmbeddingCacheRepository(dbPool)
	ctx := context.Background()

	missing, err := repo.Get(ctx, "no-such-hash", "model")
	require.NoError(t, err)
	assert.True(t, missing.IsAbsent())

	entry := &embedding.CacheEntry{
		TextHash:  "hash-1",
		Embedding: []float32{0.1, 0.2, 0.3},
		ModelName: "model",
	}
	require.NoError(t, repo.Put(ctx, entry))

	got, err := repo.Get(ctx, "hash-1", "model")
	require.NoError(t, err)
	vec, ok := got.Get()
	require.True(t, ok)
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.3}, vec, 1e-6)

	// 期限切れエントリはミス扱い
	expired := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Put(ctx, &embedding.CacheEntry{
		TextHash:  "hash-2",
		Embedding: []float32{1, 1, 1},
		ModelName: "model",
		ExpiresAt: &expired,
	}))

	gone, err := repo.Get(ctx, "hash-2", "model")
	require.NoError(t, err)
	assert.True(t, gone.IsAbsent())

	pruned, err := repo.Prune(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)
}

func TestQueryLogRepository_AppendRecentStats(t *testing.T) {
	dbPool := startPostgres(t)
	repo := NewQueryLogRepository(dbPool)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry := &query.LogEntry{
			ID:              uuid.New(),
			Question:        fmt.Sprintf("question %d", i),
			ContextType:     "project",
			SourceID:        "proj1",
			Answer:          "answer",
			Confidence:      0.8,
			ChunksRetrieved: 4,
			ChunksUsed:      2,
			TokensUsed:      100,
			ResponseTime:    150 * time.Millisecond,
			Cached:          i == 2,
			CreatedAt:       time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Append(ctx, entry))
	}

	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "question 2", recent[0].Question)
	assert.Equal(t, "project", recent[0].ContextType)
	assert.Equal(t, "proj1", recent[0].SourceID)
	assert.Equal(t, 4, recent[0].ChunksRetrieved)
	assert.Equal(t, 150*time.Millisecond, recent[0].ResponseTime)

	stats, err := repo.Stats(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalQueries)
	assert.InDelta(t, 0.8, stats.AvgConfidence, 1e-6)
	assert.InDelta(t, 1.0/3.0, stats.CacheHitRate, 1e-6)
}
