package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	// ErrProvider は埋め込みプロバイダの呼び出しに失敗した場合のエラー
	// ゼロベクトルでの代替は類似度ランキングを破壊するため禁止。
	// 呼び出し側は errors.Is で判定してフォールバック応答に変換する
	ErrProvider = errors.New("embedding provider request failed")

	// ErrEmptyInput は空テキストが渡された場合のエラー
	ErrEmptyInput = errors.New("empty text provided for embedding")
)

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)

	// BatchEmbed は複数テキストのEmbeddingを一括生成する
	// 部分的な失敗は許容せず、1件でも失敗したらバッチ全体がエラーになる
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName はモデル名を返す
	ModelName() string

	// Dimension はベクトル次元数を返す
	Dimension() int
}

// Normalize は埋め込み対象テキストを正規化します
// 前後の空白を除去し、連続する空白文字を単一スペースに畳み込む。
// キャッシュキーはこの正規化後のテキストから導出する
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// CacheKey は正規化済みテキストとモデル名からキャッシュキーを導出します
// SHA-256（衝突耐性のある暗号学的ハッシュ）の16進表現
func CacheKey(normalized, model string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(normalized))
	return hex.EncodeToString(h.Sum(nil))
}
