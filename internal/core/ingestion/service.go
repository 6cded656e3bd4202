package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/portfolio-rag/internal/core/chunk"
	"github.com/jinford/portfolio-rag/internal/core/embedding"
)

// embedBatchSize はプロバイダへの1バッチあたりの最大テキスト数
const embedBatchSize = 100

// ContentProcessor はソースレコードをチャンク化・埋め込み・永続化する
// Chunkの作成と非活性化はこのサービスのみが行う
type ContentProcessor struct {
	chunker       *chunk.Chunker
	embedder      embedding.Embedder
	repo          Repository
	maxTokens     int
	overlapTokens int
	logger        *slog.Logger
}

type processorOptions struct {
	maxTokens     int
	overlapTokens int
	logger        *slog.Logger
}

// ProcessorOption は ContentProcessor のオプション設定
type ProcessorOption func(*processorOptions)

// WithChunkSize はチャンクのトークン上限とオーバーラップを設定する
func WithChunkSize(maxTokens, overlapTokens int) ProcessorOption {
	return func(o *processorOptions) {
		o.maxTokens = maxTokens
		o.overlapTokens = overlapTokens
	}
}

// WithProcessorLogger は ContentProcessor にロガーを設定する
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(o *processorOptions) {
		o.logger = logger
	}
}

// NewContentProcessor は新しい ContentProcessor を作成します
func NewContentProcessor(chunker *chunk.Chunker, embedder embedding.Embedder, repo Repository, opts ...ProcessorOption) *ContentProcessor {
	options := processorOptions{
		maxTokens:     500,
		overlapTokens: 50,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &ContentProcessor{
		chunker:       chunker,
		embedder:      embedder,
		repo:          repo,
		maxTokens:     options.maxTokens,
		overlapTokens: options.overlapTokens,
		logger:        options.logger,
	}
}

// ProcessProfile はプロフィールレコードを取り込みます
func (p *ContentProcessor) ProcessProfile(ctx context.Context, rec *ProfileRecord) ([]*Chunk, error) {
	if rec == nil || rec.ProfileID == "" {
		return nil, fmt.Errorf("%w: profile id is required", ErrInvalidRecord)
	}
	if rec.Name == "" {
		return nil, fmt.Errorf("%w: profile name is required", ErrInvalidRecord)
	}

	return p.process(ctx, SourceTypeProfile, rec.ProfileID, rec.Name, NormalizeProfile(rec))
}

// ProcessProject はプロジェクトレコードを取り込みます
func (p *ContentProcessor) ProcessProject(ctx context.Context, rec *ProjectRecord) ([]*Chunk, error) {
	if rec == nil || rec.ProjectID == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrInvalidRecord)
	}
	if rec.Title == "" {
		return nil, fmt.Errorf("%w: project title is required", ErrInvalidRecord)
	}
	if rec.Description == "" {
		return nil, fmt.Errorf("%w: project description is required", ErrInvalidRecord)
	}

	return p.process(ctx, SourceTypeProject, rec.ProjectID, rec.Title, NormalizeProject(rec))
}

// ProcessText は自由テキスト（レジュメ等）を取り込みます
func (p *ContentProcessor) ProcessText(ctx context.Context, sourceType SourceType, sourceID, title, text string) ([]*Chunk, error) {
	if !sourceType.Valid() {
		return nil, fmt.Errorf("%w: unknown source type %q", ErrInvalidRecord, sourceType)
	}
	if sourceID == "" {
		return nil, fmt.Errorf("%w: source id is required", ErrInvalidRecord)
	}

	return p.process(ctx, sourceType, sourceID, title, text)
}

// process はチャンク化→埋め込み→世代置き換えの共通パイプライン
// 同一レコードを再取り込みした場合、正規化テキストはバイト単位で同一に
// なるため、チャンク列も同一になり埋め込みはキャッシュにヒットする
func (p *ContentProcessor) process(ctx context.Context, sourceType SourceType, sourceID, title, blob string) ([]*Chunk, error) {
	job := &IngestJob{
		ID:          uuid.New(),
		SourceType:  sourceType,
		SourceID:    sourceID,
		SourceTitle: title,
		Status:      JobStatusProcessing,
		StartedAt:   time.Now(),
	}
	if err := p.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create ingest job: %w", err)
	}

	chunks, err := p.buildChunks(ctx, sourceType, sourceID, title, blob)
	if err != nil {
		p.failJob(ctx, job.ID, err)
		return nil, err
	}

	generation, err := p.repo.ReplaceChunks(ctx, sourceType, sourceID, chunks)
	if err != nil {
		p.failJob(ctx, job.ID, err)
		return nil, fmt.Errorf("failed to replace chunks: %w", err)
	}

	if err := p.repo.FinishJob(ctx, job.ID, JobStatusCompleted, len(chunks), ""); err != nil {
		p.logger.Warn("failed to finish ingest job", "jobID", job.ID, "error", err)
	}

	p.logger.Info("source ingested",
		"sourceType", sourceType,
		"sourceID", sourceID,
		"chunks", len(chunks),
		"generation", generation,
	)

	return chunks, nil
}

// buildChunks はテキストをチャンク化して埋め込みを付与する
func (p *ContentProcessor) buildChunks(ctx context.Context, sourceType SourceType, sourceID, title, blob string) ([]*Chunk, error) {
	pieces, err := p.chunker.Split(blob, p.maxTokens, p.overlapTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk content: %w", err)
	}
	if len(pieces) == 0 {
		return nil, nil
	}

	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Content
	}

	// バッチ上限を超える場合は分割して埋め込む
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := p.embedder.BatchEmbed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks: %w", err)
		}
		vectors = append(vectors, batch...)
	}

	now := time.Now()
	chunks := make([]*Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &Chunk{
			ID:            uuid.New(),
			SourceType:    sourceType,
			SourceID:      sourceID,
			SourceTitle:   title,
			SequenceIndex: i,
			Content:       piece.Content,
			TokenCount:    piece.TokenCount,
			Embedding:     vectors[i],
			Active:        true,
			CreatedAt:     now,
		}
	}

	return chunks, nil
}

func (p *ContentProcessor) failJob(ctx context.Context, jobID uuid.UUID, cause error) {
	if err := p.repo.FinishJob(ctx, jobID, JobStatusFailed, 0, cause.Error()); err != nil {
		p.logger.Warn("failed to record ingest job failure", "jobID", jobID, "error", err)
	}
}

// BatchFailure はバッチ取り込み中の1ソースの失敗を表す
type BatchFailure struct {
	SourceType SourceType
	SourceID   string
	Err        error
}

// BatchResult はバッチ取り込みの結果サマリ
type BatchResult struct {
	Processed     int
	ChunksCreated int
	Failures      []BatchFailure
}

// ProcessAll は複数ソースを一括取り込みします
// 1ソースの失敗は他のソースの処理を中断しない
func (p *ContentProcessor) ProcessAll(ctx context.Context, profiles []*ProfileRecord, projects []*ProjectRecord) *BatchResult {
	result := &BatchResult{}

	for _, rec := range profiles {
		chunks, err := p.ProcessProfile(ctx, rec)
		if err != nil {
			// rec は nil の可能性がある（バリデーションで弾かれた場合）
			var id string
			if rec != nil {
				id = rec.ProfileID
			}
			p.logger.Error("profile ingestion failed", "profileID", id, "error", err)
			result.Failures = append(result.Failures, BatchFailure{SourceTypeProfile, id, err})
			continue
		}
		result.Processed++
		result.ChunksCreated += len(chunks)
	}

	for _, rec := range projects {
		chunks, err := p.ProcessProject(ctx, rec)
		if err != nil {
			var id string
			if rec != nil {
				id = rec.ProjectID
			}
			p.logger.Error("project ingestion failed", "projectID", id, "error", err)
			result.Failures = append(result.Failures, BatchFailure{SourceTypeProject, id, err})
			continue
		}
		result.Processed++
		result.ChunksCreated += len(chunks)
	}

	return result
}
