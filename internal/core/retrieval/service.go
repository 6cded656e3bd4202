package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// candidateMultiplier はフロア未満の候補を見越して多めに取得する倍率
const candidateMultiplier = 3

// Embedder はクエリのEmbedding生成インターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service は類似度検索のビジネスロジックを提供する
type Service struct {
	repo            Repository
	embedder        Embedder
	similarityFloor float64
	logger          *slog.Logger
}

type serviceOptions struct {
	similarityFloor float64
	logger          *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*serviceOptions)

// WithSimilarityFloor は類似度の下限を設定する
func WithSimilarityFloor(floor float64) ServiceOption {
	return func(o *serviceOptions) {
		o.similarityFloor = floor
	}
}

// WithRetrievalLogger は Service にロガーを設定する
func WithRetrievalLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewService は新しい検索サービスを作成します
func NewService(repo Repository, embedder Embedder, opts ...ServiceOption) *Service {
	options := serviceOptions{
		similarityFloor: 0.7,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Service{
		repo:            repo,
		embedder:        embedder,
		similarityFloor: options.similarityFloor,
		logger:          options.logger,
	}
}

// Search はクエリテキストに類似するチャンクを検索します
// 結果は類似度降順。同点の場合は SequenceIndex 昇順、次に SourceID の
// 辞書順で安定させ、同一クエリの繰り返しに対して決定的な結果を返す。
// フロアを超えるチャンクが存在しない場合は空のスライスを返す（エラーではない）
func (s *Service) Search(ctx context.Context, query string, filter Filter, topK int) ([]*Result, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if topK <= 0 {
		return []*Result{}, nil
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// フロア未満で脱落する候補を見込んで多めに取得する
	candidates, err := s.repo.SearchActiveChunks(ctx, queryVector, filter, topK*candidateMultiplier)
	if err != nil {
		return nil, fmt.Errorf("chunk search failed: %w", err)
	}

	results := make([]*Result, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity >= s.similarityFloor {
			results = append(results, c)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].Chunk.SequenceIndex != results[j].Chunk.SequenceIndex {
			return results[i].Chunk.SequenceIndex < results[j].Chunk.SequenceIndex
		}
		return results[i].Chunk.SourceID < results[j].Chunk.SourceID
	})

	if len(results) > topK {
		results = results[:topK]
	}

	s.logger.Debug("retrieval completed",
		"candidates", len(candidates),
		"aboveFloor", len(results),
		"topK", topK,
	)

	return results, nil
}

// SimilarityFloor は設定された類似度の下限を返す
func (s *Service) SimilarityFloor() float64 {
	return s.similarityFloor
}
