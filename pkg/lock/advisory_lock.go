package lock

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GenerateLockID は文字列からロックIDを生成します
// 各パートをNUL区切りでハッシュするため、("ab","c") と ("a","bc") の
// ような連結の曖昧さで衝突しない
func GenerateLockID(parts ...string) int64 {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	hash := h.Sum(nil)

	// ハッシュの最初の8バイトをint64として使用
	var id int64
	for i := range 8 {
		id = (id << 8) | int64(hash[i])
	}

	return id
}

// Acquire はトランザクションスコープのアドバイザリロックを取得します
// pg_advisory_xact_lock を使うためトランザクション終了時に自動解放され、
// 明示的な解放は不要。取り込み処理が同一ソースへ並行実行されないことを
// 保証するために使う
func Acquire(ctx context.Context, tx pgx.Tx, lockID int64) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockID); err != nil {
		return fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	return nil
}
