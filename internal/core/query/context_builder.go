package query

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jinford/portfolio-rag/internal/core/retrieval"
)

// TokenCounter はテキストのトークン計測・切り詰めインターフェース
type TokenCounter interface {
	CountTokens(text string) int
	Truncate(text string, maxTokens int) string
}

// sectionSeparator はセクション間の区切り文字列
// トークン予算には区切りの分も含めて数える
const sectionSeparator = "\n\n"

// BuiltContext は組み立てられたコンテキストを表す
// MeanSimilarity は実際にコンテキストへ含めたチャンクの平均類似度
type BuiltContext struct {
	Text           string
	TokenCount     int
	ChunkIDs       []uuid.UUID
	TopSimilarity  float64
	MeanSimilarity float64
}

// ContextBuilder は検索結果からプロンプト用コンテキストを組み立てる
type ContextBuilder struct {
	counter   TokenCounter
	maxTokens int
}

// NewContextBuilder は新しいコンテキストビルダーを作成します
func NewContextBuilder(counter TokenCounter, maxTokens int) *ContextBuilder {
	return &ContextBuilder{
		counter:   counter,
		maxTokens: maxTokens,
	}
}

// Build は検索結果を出典マーカー付きで連結します
// 重複チャンク（同一ソースの同一シーケンス）は除外し、累積トークン数が
// 予算を超える直前で組み立てを打ち切る。先頭チャンク単体が予算を超える
// 場合のみそのチャンクを切り詰めて採用する。
// 返り値の ChunkIDs は実際にコンテキストへ含めたチャンクのみを含む
func (b *ContextBuilder) Build(results []*retrieval.Result) *BuiltContext {
	built := &BuiltContext{}
	if len(results) == 0 {
		return built
	}

	type dedupKey struct {
		sourceType string
		sourceID   string
		sequence   int
	}
	seen := make(map[dedupKey]struct{}, len(results))
	sepTokens := b.counter.CountTokens(sectionSeparator)

	var sections []string
	var similaritySum float64
	remaining := b.maxTokens

	for _, r := range results {
		c := r.Chunk
		key := dedupKey{string(c.SourceType), c.SourceID, c.SequenceIndex}
		if _, ok := seen[key]; ok {
			continue
		}

		section := fmt.Sprintf("[Source: %s - %s]\n%s", c.SourceType, c.SourceTitle, c.Content)
		need := b.counter.CountTokens(section)
		if len(sections) > 0 {
			need += sepTokens
		}

		if need > remaining {
			if len(sections) > 0 {
				break
			}
			// 最初のチャンクだけは切り詰めてでも採用する
			section = b.counter.Truncate(section, remaining)
			need = b.counter.CountTokens(section)
		}

		seen[key] = struct{}{}
		sections = append(sections, section)
		remaining -= need
		built.TokenCount += need
		built.ChunkIDs = append(built.ChunkIDs, c.ID)
		similaritySum += r.Similarity
		if r.Similarity > built.TopSimilarity {
			built.TopSimilarity = r.Similarity
		}
	}

	if len(built.ChunkIDs) > 0 {
		built.MeanSimilarity = similaritySum / float64(len(built.ChunkIDs))
	}

	built.Text = strings.Join(sections, sectionSeparator)
	return built
}
