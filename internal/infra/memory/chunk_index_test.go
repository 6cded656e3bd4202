package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/portfolio-rag/internal/core/ingestion"
	"github.com/jinford/portfolio-rag/internal/core/retrieval"
)

func newChunk(seq int, embedding []float32) *ingestion.Chunk {
	return &ingestion.Chunk{
		ID:            uuid.New(),
		SequenceIndex: seq,
		Content:       "content",
		Embedding:     embedding,
	}
}

func TestReplaceChunks_KeepsSingleActiveGeneration(t *testing.T) {
	index := NewChunkIndex()
	ctx := context.Background()

	gen1, err := index.ReplaceChunks(ctx, ingestion.SourceTypeProfile, "p1", []*ingestion.Chunk{
		newChunk(0, []float32{1, 0}),
		newChunk(1, []float32{1, 0}),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, gen1)

	gen2, err := index.ReplaceChunks(ctx, ingestion.SourceTypeProfile, "p1", []*ingestion.Chunk{
		newChunk(0, []float32{0, 1}),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, gen2)

	active := index.ActiveChunks(ingestion.SourceTypeProfile, "p1")
	require.Len(t, active, 1)
	assert.Equal(t, 2, active[0].Generation)
}

func TestReplaceChunks_GenerationsArePerSource(t *testing.T) {
	index := NewChunkIndex()
	ctx := context.Background()

	_, err := index.ReplaceChunks(ctx, ingestion.SourceTypeProfile, "p1", []*ingestion.Chunk{newChunk(0, []float32{1, 0})})
	require.NoError(t, err)

	gen, err := index.ReplaceChunks(ctx, ingestion.SourceTypeProject, "proj1", []*ingestion.Chunk{newChunk(0, []float32{1, 0})})
	require.NoError(t, err)
	assert.Equal(t, 1, gen)

	assert.Len(t, index.ActiveChunks(ingestion.SourceTypeProfile, "p1"), 1)
	assert.Len(t, index.ActiveChunks(ingestion.SourceTypeProject, "proj1"), 1)
}

func TestSearchActiveChunks_ExcludesInactiveAndFilters(t *testing.T) {
	index := NewChunkIndex()
	ctx := context.Background()

	_, err := index.ReplaceChunks(ctx, ingestion.SourceTypeProfile, "p1", []*ingestion.Chunk{newChunk(0, []float32{1, 0})})
	require.NoError(t, err)
	_, err = index.ReplaceChunks(ctx, ingestion.SourceTypeProfile, "p1", []*ingestion.Chunk{newChunk(0, []float32{1, 0})})
	require.NoError(t, err)
	_, err = index.ReplaceChunks(ctx, ingestion.SourceTypeProject, "proj1", []*ingestion.Chunk{newChunk(0, []float32{1, 0})})
	require.NoError(t, err)

	all, err := index.SearchActiveChunks(ctx, []float32{1, 0}, retrieval.Filter{}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2, "old generation must not appear")

	projects, err := index.SearchActiveChunks(ctx, []float32{1, 0},
		retrieval.Filter{SourceType: mo.Some(ingestion.SourceTypeProject)}, 10)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "proj1", projects[0].Chunk.SourceID)
}

func TestSearchActiveChunks_OrdersBySimilarityAndLimits(t *testing.T) {
	index := NewChunkIndex()
	ctx := context.Background()

	_, err := index.ReplaceChunks(ctx, ingestion.SourceTypeProject, "proj1", []*ingestion.Chunk{
		newChunk(0, []float32{1, 0}),
		newChunk(1, []float32{0.5, 0.5}),
		newChunk(2, []float32{0, 1}),
	})
	require.NoError(t, err)

	results, err := index.SearchActiveChunks(ctx, []float32{1, 0}, retrieval.Filter{}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
	assert.Equal(t, 0, results[0].Chunk.SequenceIndex)
}

func TestJobLifecycle(t *testing.T) {
	index := NewChunkIndex()
	ctx := context.Background()

	job := &ingestion.IngestJob{
		ID:         uuid.New(),
		SourceType: ingestion.SourceTypeResume,
		SourceID:   "resume.pdf",
		Status:     ingestion.JobStatusProcessing,
	}
	require.NoError(t, index.CreateJob(ctx, job))

	require.NoError(t, index.FinishJob(ctx, job.ID, ingestion.JobStatusCompleted, 3, ""))

	stored, ok := index.Job(job.ID)
	require.True(t, ok)
	assert.Equal(t, ingestion.JobStatusCompleted, stored.Status)
	assert.Equal(t, 3, stored.ChunksCreated)
}
