package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jinford/portfolio-rag/internal/core/answer"
	"github.com/jinford/portfolio-rag/internal/core/cache"
	"github.com/jinford/portfolio-rag/internal/core/confidence"
	"github.com/jinford/portfolio-rag/internal/core/embedding"
	"github.com/jinford/portfolio-rag/internal/core/retrieval"
)

// ErrEmptyQuestion は空の質問を表す
var ErrEmptyQuestion = errors.New("question is required")

// retryAnswer はプロバイダー障害時の定型回答
const retryAnswer = "I'm having trouble generating an answer right now. Please try again in a moment."

// timeoutAnswer はタイムアウト時の定型回答
const timeoutAnswer = "I'm still thinking about that one. Please try asking again."

// Service はRAGクエリパイプライン全体を統括する
type Service struct {
	retriever   *retrieval.Service
	builder     *ContextBuilder
	synthesizer *answer.Synthesizer
	scorer      Scorer
	logs        LogRepository

	cache        *cache.TTL[*Result]
	cacheTTL     time.Duration
	group        singleflight.Group
	queryTimeout time.Duration
	defaultTopK  int
	logger       *slog.Logger
}

// Scorer は回答の信頼度計算インターフェース
type Scorer interface {
	Score(in confidence.Input) float64
}

type serviceOptions struct {
	cacheTTL     time.Duration
	queryTimeout time.Duration
	defaultTopK  int
	logs         LogRepository
	logger       *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*serviceOptions)

// WithCacheTTL はクエリ結果キャッシュのTTLを設定する
func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		o.cacheTTL = ttl
	}
}

// WithQueryTimeout はクエリ全体のタイムアウトを設定する
func WithQueryTimeout(timeout time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		o.queryTimeout = timeout
	}
}

// WithDefaultTopK は取得チャンク数の既定値を設定する
func WithDefaultTopK(topK int) ServiceOption {
	return func(o *serviceOptions) {
		o.defaultTopK = topK
	}
}

// WithLogRepository はクエリ履歴リポジトリを設定する
func WithLogRepository(logs LogRepository) ServiceOption {
	return func(o *serviceOptions) {
		o.logs = logs
	}
}

// WithQueryLogger は Service にロガーを設定する
func WithQueryLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewService は新しいクエリサービスを作成します
func NewService(
	retriever *retrieval.Service,
	builder *ContextBuilder,
	synthesizer *answer.Synthesizer,
	scorer Scorer,
	opts ...ServiceOption,
) *Service {
	options := serviceOptions{
		cacheTTL:     time.Hour,
		queryTimeout: 8 * time.Second,
		defaultTopK:  5,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Service{
		retriever:    retriever,
		builder:      builder,
		synthesizer:  synthesizer,
		scorer:       scorer,
		logs:         options.logs,
		cache:        cache.NewTTL[*Result](),
		cacheTTL:     options.cacheTTL,
		queryTimeout: options.queryTimeout,
		defaultTopK:  options.defaultTopK,
		logger:       options.logger,
	}
}

// Ask はRAGパイプラインで質問に回答します
// 同一の質問（正規化・スコープ込み）の同時実行は singleflight で1回に
// まとめ、成功した結果のみをTTLキャッシュに保存する。プロバイダー障害や
// タイムアウトの場合は Retry フラグ付きのフォールバック結果を返す
func (s *Service) Ask(ctx context.Context, params Params) (*Result, error) {
	question := strings.TrimSpace(params.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	params.Question = question

	key := cacheKey(params)
	if cached, ok := s.cache.Get(key); ok {
		result := *cached
		result.Cached = true
		result.ResponseTime = 0
		s.logQuery(ctx, params, &result)
		return &result, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.ask(ctx, params, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (s *Service) ask(ctx context.Context, params Params, key string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	start := time.Now()

	topK := params.MaxChunks
	if topK <= 0 {
		topK = s.defaultTopK
	}

	filter := retrieval.Filter{
		SourceType: params.ContextType,
		SourceID:   params.SourceID,
	}

	results, err := s.retriever.Search(ctx, params.Question, filter, topK)
	if err != nil {
		if fallback := s.fallback(err, start); fallback != nil {
			s.logQuery(ctx, params, fallback)
			return fallback, nil
		}
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	built := s.builder.Build(results)

	ans, err := s.synthesizer.Synthesize(ctx, built.Text, params.Question)
	if err != nil {
		if fallback := s.fallback(err, start); fallback != nil {
			s.logQuery(ctx, params, fallback)
			return fallback, nil
		}
		return nil, fmt.Errorf("answer synthesis failed: %w", err)
	}

	score := s.scorer.Score(confidence.Input{
		Answer:         ans.Text,
		ChunksUsed:     len(built.ChunkIDs),
		MeanSimilarity: built.MeanSimilarity,
		TokensUsed:     ans.TokensUsed,
	})

	result := &Result{
		Answer:          ans.Text,
		Confidence:      score,
		ChunksUsed:      built.ChunkIDs,
		ChunksRetrieved: len(results),
		TokensUsed:      ans.TokensUsed,
		ResponseTime:    time.Since(start),
	}

	s.cache.Set(key, result, s.cacheTTL)
	s.logQuery(ctx, params, result)

	s.logger.Info("query answered",
		"chunksUsed", len(result.ChunksUsed),
		"confidence", result.Confidence,
		"responseTimeMS", result.ResponseTime.Milliseconds(),
	)

	return result, nil
}

// fallback は再試行可能な失敗をフォールバック結果に変換する
// 該当しないエラーの場合は nil を返す。フォールバックはキャッシュしない
func (s *Service) fallback(err error, start time.Time) *Result {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("query timed out", "error", err)
		return &Result{
			Answer:       timeoutAnswer,
			Retry:        true,
			ResponseTime: time.Since(start),
		}
	case errors.Is(err, answer.ErrProvider), errors.Is(err, embedding.ErrProvider):
		s.logger.Warn("provider failed", "error", err)
		return &Result{
			Answer:       retryAnswer,
			Retry:        true,
			ResponseTime: time.Since(start),
		}
	default:
		return nil
	}
}

// InvalidateAll はクエリ結果キャッシュを全消去します
// コンテンツの再取り込み後に呼び出して古い回答の再利用を防ぐ
func (s *Service) InvalidateAll() {
	s.cache.Flush()
	s.logger.Info("query cache invalidated")
}

func (s *Service) logQuery(ctx context.Context, params Params, result *Result) {
	if s.logs == nil {
		return
	}

	entry := &LogEntry{
		ID:              uuid.New(),
		Question:        params.Question,
		ContextType:     string(params.ContextType.OrElse("")),
		SourceID:        params.SourceID.OrElse(""),
		Answer:          result.Answer,
		Confidence:      result.Confidence,
		ChunksRetrieved: result.ChunksRetrieved,
		ChunksUsed:      len(result.ChunksUsed),
		TokensUsed:      result.TokensUsed,
		ResponseTime:    result.ResponseTime,
		Cached:          result.Cached,
		CreatedAt:       time.Now(),
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		// 履歴の欠落で回答を失敗させない
		s.logger.Warn("failed to append query log", "error", err)
	}
}

// cacheKey は正規化した質問とスコープからキャッシュキーを導出する
func cacheKey(params Params) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(params.Question), " "))

	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte{0})
	if st, ok := params.ContextType.Get(); ok {
		h.Write([]byte(st))
	}
	h.Write([]byte{0})
	if id, ok := params.SourceID.Get(); ok {
		h.Write([]byte(id))
	}
	h.Write([]byte{0})
	h.Write([]byte(fmt.Sprintf("%d", params.MaxChunks)))
	return hex.EncodeToString(h.Sum(nil))
}
