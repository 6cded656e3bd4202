package query

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/portfolio-rag/internal/core/ingestion"
)

// Params はRAGクエリのパラメータを表す
type Params struct {
	Question    string
	ContextType mo.Option[ingestion.SourceType]
	SourceID    mo.Option[string]
	MaxChunks   int
}

// Result はRAGクエリの結果を表す
// ChunksRetrieved は検索で得た件数、ChunksUsed はコンテキストに
// 実際に含めたチャンクのID
type Result struct {
	Answer          string
	Confidence      float64
	ChunksUsed      []uuid.UUID
	ChunksRetrieved int
	TokensUsed      int
	ResponseTime    time.Duration
	Retry           bool
	Cached          bool
}

// LogEntry はクエリ履歴の1件を表す
// ContextType / SourceID はクエリ時の絞り込みスコープ（未指定は空文字列）
type LogEntry struct {
	ID              uuid.UUID
	Question        string
	ContextType     string
	SourceID        string
	Answer          string
	Confidence      float64
	ChunksRetrieved int
	ChunksUsed      int
	TokensUsed      int
	ResponseTime    time.Duration
	Cached          bool
	CreatedAt       time.Time
}

// LogStats はクエリ履歴の集計値を表す
type LogStats struct {
	TotalQueries  int
	AvgConfidence float64
	AvgResponseMS float64
	CacheHitRate  float64
}

// LogRepository はクエリ履歴の永続化インターフェース
type LogRepository interface {
	// Append はクエリ履歴を1件追加する
	Append(ctx context.Context, entry *LogEntry) error
	// Recent は新しい順に最大 limit 件の履歴を返す
	Recent(ctx context.Context, limit int) ([]*LogEntry, error)
	// Stats は直近 window 分の集計値を返す
	Stats(ctx context.Context, window time.Duration) (*LogStats, error)
}
