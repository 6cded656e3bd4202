package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定
	Database DatabaseConfig

	// OpenAI設定（Embeddings + Completion）
	OpenAI OpenAIConfig

	// RAGパイプラインのチューニング設定
	RAG RAGConfig

	// プロジェクトリポジトリ取り込み設定
	Git GitConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
	CompletionModel    string
}

// RAGConfig はRAGパイプラインのチューニングパラメータ
// 環境変数および tuning.yaml で上書き可能
type RAGConfig struct {
	ChunkMaxTokens     int           `yaml:"chunkMaxTokens"`
	ChunkOverlapTokens int           `yaml:"chunkOverlapTokens"`
	TopK               int           `yaml:"topK"`
	SimilarityFloor    float64       `yaml:"similarityFloor"`
	MaxContextTokens   int           `yaml:"maxContextTokens"`
	AnswerMaxTokens    int           `yaml:"answerMaxTokens"`
	Temperature        float64       `yaml:"temperature"`
	QueryTimeout       time.Duration `yaml:"queryTimeout"`
	QueryCacheTTL      time.Duration `yaml:"queryCacheTTL"`
	EmbedCacheTTL      time.Duration `yaml:"embedCacheTTL"`

	// 信頼度スコアの重み付け
	Confidence ConfidenceWeights `yaml:"confidence"`
}

// ConfidenceWeights は信頼度スコアの重み設定
type ConfidenceWeights struct {
	Base               float64 `yaml:"base"`
	Retrieval          float64 `yaml:"retrieval"`
	AnswerLength       float64 `yaml:"answerLength"`
	AnswerLengthCap    int     `yaml:"answerLengthCap"`
	TokenUsage         float64 `yaml:"tokenUsage"`
	TokenUsageCap      int     `yaml:"tokenUsageCap"`
	UncertaintyPenalty float64 `yaml:"uncertaintyPenalty"`
}

// GitConfig はプロジェクトリポジトリのクローン設定
type GitConfig struct {
	CloneDir     string
	CloneTimeout time.Duration
}

// DefaultRAGConfig はRAGチューニングのデフォルト値を返します
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		ChunkMaxTokens:     500,
		ChunkOverlapTokens: 50,
		TopK:               5,
		SimilarityFloor:    0.7,
		MaxContextTokens:   4000,
		AnswerMaxTokens:    500,
		Temperature:        0.7,
		QueryTimeout:       8 * time.Second,
		QueryCacheTTL:      time.Hour,
		EmbedCacheTTL:      24 * time.Hour,
		Confidence: ConfidenceWeights{
			Base:               0.5,
			Retrieval:          0.3,
			AnswerLength:       0.2,
			AnswerLengthCap:    200,
			TokenUsage:         0.2,
			TokenUsageCap:      300,
			UncertaintyPenalty: 0.1,
		},
	}
}

// Load は環境変数または.envファイルから設定を読み込みます
// RAG_TUNING_FILE が指定されている場合はRAGチューニング値をYAMLで上書きします
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	rag := DefaultRAGConfig()
	rag.ChunkMaxTokens = getEnvAsInt("RAG_CHUNK_MAX_TOKENS", rag.ChunkMaxTokens)
	rag.ChunkOverlapTokens = getEnvAsInt("RAG_CHUNK_OVERLAP_TOKENS", rag.ChunkOverlapTokens)
	rag.TopK = getEnvAsInt("RAG_TOP_K", rag.TopK)
	rag.SimilarityFloor = getEnvAsFloat("RAG_SIMILARITY_FLOOR", rag.SimilarityFloor)
	rag.MaxContextTokens = getEnvAsInt("RAG_MAX_CONTEXT_TOKENS", rag.MaxContextTokens)
	rag.AnswerMaxTokens = getEnvAsInt("RAG_ANSWER_MAX_TOKENS", rag.AnswerMaxTokens)
	rag.Temperature = getEnvAsFloat("RAG_TEMPERATURE", rag.Temperature)
	rag.QueryTimeout = getEnvAsDuration("RAG_QUERY_TIMEOUT", rag.QueryTimeout)
	rag.QueryCacheTTL = getEnvAsDuration("RAG_QUERY_CACHE_TTL", rag.QueryCacheTTL)
	rag.EmbedCacheTTL = getEnvAsDuration("RAG_EMBED_CACHE_TTL", rag.EmbedCacheTTL)

	if tuningPath := getEnv("RAG_TUNING_FILE", ""); tuningPath != "" {
		if err := loadTuningFile(tuningPath, &rag); err != nil {
			return nil, fmt.Errorf("failed to load tuning file: %w", err)
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "portfolio"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "portfolio"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 4),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 0),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			CompletionModel:    getEnv("OPENAI_COMPLETION_MODEL", "gpt-4o-mini"),
		},
		RAG: rag,
		Git: GitConfig{
			CloneDir:     getEnv("GIT_CLONE_DIR", os.TempDir()),
			CloneTimeout: getEnvAsDuration("GIT_CLONE_TIMEOUT", 60*time.Second),
		},
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数をDurationとして取得します
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
