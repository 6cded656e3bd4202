package ingestion

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidRecord は不正なソースレコードのエラー
var ErrInvalidRecord = errors.New("invalid source record")

// Repository は取り込み関連の全データアクセスを統合するインターフェース
// テスト時のモック用に消費者側で定義
type Repository interface {
	// ReplaceChunks はソースのチャンク集合を新世代に置き換える
	// 単一の論理トランザクションとして実行され、同一 (sourceType, sourceID) への
	// 並行呼び出しは直列化される。新世代の挿入が完了してから旧世代を
	// 非活性化するため、読み手がアクティブなチャンクゼロの状態を観測する
	// ことはない。戻り値は新しい世代番号
	ReplaceChunks(ctx context.Context, sourceType SourceType, sourceID string, chunks []*Chunk) (int, error)

	// CreateJob は取り込みジョブを記録する
	CreateJob(ctx context.Context, job *IngestJob) error

	// FinishJob はジョブの完了状態を記録する
	FinishJob(ctx context.Context, jobID uuid.UUID, status JobStatus, chunksCreated int, errorMessage string) error
}
