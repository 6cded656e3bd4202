package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jinford/portfolio-rag/internal/core/ingestion"
	"github.com/jinford/portfolio-rag/internal/core/retrieval"
)

// ChunkIndex はインメモリのチャンクストアです
// 開発・テスト用途向けで、Postgres実装と同じ世代置き換えセマンティクスを持つ
type ChunkIndex struct {
	mu     sync.RWMutex
	chunks []*ingestion.Chunk
	gens   map[string]int
	jobs   map[uuid.UUID]*ingestion.IngestJob
}

// NewChunkIndex は新しい ChunkIndex を作成します
func NewChunkIndex() *ChunkIndex {
	return &ChunkIndex{
		gens: make(map[string]int),
		jobs: make(map[uuid.UUID]*ingestion.IngestJob),
	}
}

// コンパイル時の型チェック
var (
	_ ingestion.Repository = (*ChunkIndex)(nil)
	_ retrieval.Repository = (*ChunkIndex)(nil)
)

func sourceKey(sourceType ingestion.SourceType, sourceID string) string {
	return string(sourceType) + "\x00" + sourceID
}

// ReplaceChunks はソースのチャンク集合を新世代に置き換えます
func (x *ChunkIndex) ReplaceChunks(ctx context.Context, sourceType ingestion.SourceType, sourceID string, chunks []*ingestion.Chunk) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	key := sourceKey(sourceType, sourceID)
	generation := x.gens[key] + 1
	x.gens[key] = generation

	for _, c := range chunks {
		stored := *c
		stored.SourceType = sourceType
		stored.SourceID = sourceID
		stored.Generation = generation
		stored.Active = true
		x.chunks = append(x.chunks, &stored)
	}

	for _, c := range x.chunks {
		if c.SourceType == sourceType && c.SourceID == sourceID && c.Generation < generation {
			c.Active = false
		}
	}

	return generation, nil
}

// SearchActiveChunks はアクティブなチャンクをコサイン類似度の降順で返します
func (x *ChunkIndex) SearchActiveChunks(ctx context.Context, queryVector []float32, filter retrieval.Filter, limit int) ([]*retrieval.Result, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var results []*retrieval.Result
	for _, c := range x.chunks {
		if !c.Active || !filter.Matches(c) {
			continue
		}
		results = append(results, &retrieval.Result{
			Chunk:      c,
			Similarity: retrieval.CosineSimilarity(queryVector, c.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// ActiveChunks は指定ソースのアクティブなチャンクをシーケンス順で返します
func (x *ChunkIndex) ActiveChunks(sourceType ingestion.SourceType, sourceID string) []*ingestion.Chunk {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var chunks []*ingestion.Chunk
	for _, c := range x.chunks {
		if c.Active && c.SourceType == sourceType && c.SourceID == sourceID {
			chunks = append(chunks, c)
		}
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].SequenceIndex < chunks[j].SequenceIndex
	})

	return chunks
}

// CreateJob は取り込みジョブを記録します
func (x *ChunkIndex) CreateJob(ctx context.Context, job *ingestion.IngestJob) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	stored := *job
	x.jobs[job.ID] = &stored
	return nil
}

// FinishJob はジョブの完了状態を記録します
func (x *ChunkIndex) FinishJob(ctx context.Context, jobID uuid.UUID, status ingestion.JobStatus, chunksCreated int, errorMessage string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if job, ok := x.jobs[jobID]; ok {
		job.Status = status
		job.ChunksCreated = chunksCreated
		job.ErrorMessage = errorMessage
	}
	return nil
}

// Job は記録済みジョブを返します（テスト用）
func (x *ChunkIndex) Job(jobID uuid.UUID) (*ingestion.IngestJob, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	job, ok := x.jobs[jobID]
	return job, ok
}
