package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/portfolio-rag/internal/core/answer"
	"github.com/jinford/portfolio-rag/internal/core/chunk"
	"github.com/jinford/portfolio-rag/internal/core/confidence"
	"github.com/jinford/portfolio-rag/internal/core/embedding"
	"github.com/jinford/portfolio-rag/internal/core/ingestion"
	"github.com/jinford/portfolio-rag/internal/core/query"
	"github.com/jinford/portfolio-rag/internal/core/retrieval"
	"github.com/jinford/portfolio-rag/internal/infra/gitrepo"
	infraopenai "github.com/jinford/portfolio-rag/internal/infra/openai"
	"github.com/jinford/portfolio-rag/internal/infra/postgres"
	"github.com/jinford/portfolio-rag/pkg/config"
	"github.com/jinford/portfolio-rag/pkg/db"
)

// ServiceContainer はアプリケーションの依存関係を保持する
type ServiceContainer struct {
	Processor    *ingestion.ContentProcessor
	QueryService *query.Service
	QueryLogs    query.LogRepository
	GitClient    *gitrepo.Client

	logger   *slog.Logger
	database *db.DB
}

type containerOptions struct {
	logger    *slog.Logger
	embedder  embedding.Embedder
	completer answer.Completer
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(o *containerOptions) {
		o.logger = logger
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder embedding.Embedder) ContainerOption {
	return func(o *containerOptions) {
		o.embedder = embedder
	}
}

// WithContainerCompleter はカスタム Completer を注入する
func WithContainerCompleter(completer answer.Completer) ContainerOption {
	return func(o *containerOptions) {
		o.completer = completer
	}
}

// NewContainer は設定からコンテナを生成する
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	logger := options.logger

	database, err := db.New(ctx, db.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := postgres.Migrate(ctx, database.Pool); err != nil {
		database.Close()
		return nil, err
	}

	chunkRepo := postgres.NewChunkRepository(database.Pool)
	embedCacheRepo := postgres.NewEmbeddingCacheRepository(database.Pool)
	queryLogRepo := postgres.NewQueryLogRepository(database.Pool)

	provider := options.embedder
	if provider == nil {
		provider = infraopenai.NewEmbedder(
			cfg.OpenAI.APIKey,
			infraopenai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			infraopenai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
		)
	}

	cachingEmbedder := embedding.NewCachingEmbedder(
		provider,
		embedding.WithCacheStore(embedCacheRepo),
		embedding.WithFastTTL(cfg.RAG.EmbedCacheTTL),
		embedding.WithEmbedderLogger(logger),
	)

	chunker, err := chunk.NewChunker()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}

	processor := ingestion.NewContentProcessor(
		chunker,
		cachingEmbedder,
		chunkRepo,
		ingestion.WithChunkSize(cfg.RAG.ChunkMaxTokens, cfg.RAG.ChunkOverlapTokens),
		ingestion.WithProcessorLogger(logger),
	)

	retriever := retrieval.NewService(
		chunkRepo,
		cachingEmbedder,
		retrieval.WithSimilarityFloor(cfg.RAG.SimilarityFloor),
		retrieval.WithRetrievalLogger(logger),
	)

	completer := options.completer
	if completer == nil {
		c, err := infraopenai.NewCompleter(
			cfg.OpenAI.APIKey,
			infraopenai.WithCompletionModel(cfg.OpenAI.CompletionModel),
		)
		if err != nil {
			database.Close()
			return nil, err
		}
		completer = c
	}

	synthesizer := answer.NewSynthesizer(
		completer,
		answer.WithAnswerMaxTokens(cfg.RAG.AnswerMaxTokens),
		answer.WithTemperature(cfg.RAG.Temperature),
		answer.WithSynthesizerLogger(logger),
	)

	scorer := confidence.NewScorer(confidence.Weights{
		Base:               cfg.RAG.Confidence.Base,
		Retrieval:          cfg.RAG.Confidence.Retrieval,
		AnswerLength:       cfg.RAG.Confidence.AnswerLength,
		AnswerLengthCap:    cfg.RAG.Confidence.AnswerLengthCap,
		TokenUsage:         cfg.RAG.Confidence.TokenUsage,
		TokenUsageCap:      cfg.RAG.Confidence.TokenUsageCap,
		UncertaintyPenalty: cfg.RAG.Confidence.UncertaintyPenalty,
	})

	builder := query.NewContextBuilder(chunker, cfg.RAG.MaxContextTokens)

	queryService := query.NewService(
		retriever,
		builder,
		synthesizer,
		scorer,
		query.WithCacheTTL(cfg.RAG.QueryCacheTTL),
		query.WithQueryTimeout(cfg.RAG.QueryTimeout),
		query.WithDefaultTopK(cfg.RAG.TopK),
		query.WithLogRepository(queryLogRepo),
		query.WithQueryLogger(logger),
	)

	gitClient := gitrepo.NewClient(
		gitrepo.WithWorkDir(cfg.Git.CloneDir),
		gitrepo.WithGitLogger(logger),
	)

	return &ServiceContainer{
		Processor:    processor,
		QueryService: queryService,
		QueryLogs:    queryLogRepo,
		GitClient:    gitClient,
		logger:       logger,
		database:     database,
	}, nil
}

// Logger はコンテナのロガーを返す
func (c *ServiceContainer) Logger() *slog.Logger {
	return c.logger
}

// Close はコンテナが保持するリソースをクリーンアップする
func (c *ServiceContainer) Close() {
	if c.database != nil {
		c.database.Close()
	}
}
