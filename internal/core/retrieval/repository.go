package retrieval

import "context"

// Repository はチャンク検索のデータアクセスインターフェース
// 読み取り専用であり、チャンクを変更することはない。
// テスト時のモック用に消費者側で定義
type Repository interface {
	// SearchActiveChunks はアクティブかつフィルタに合致するチャンクを
	// クエリベクトルとの類似度降順で最大 limit 件返す
	// 類似度の下限フィルタと最終的な並べ替えはサービス層が行う
	SearchActiveChunks(ctx context.Context, queryVector []float32, filter Filter, limit int) ([]*Result, error)
}
