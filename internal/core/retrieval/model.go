package retrieval

import (
	"github.com/samber/mo"

	"github.com/jinford/portfolio-rag/internal/core/ingestion"
)

// Result はベクトル検索の1件の結果を表す（永続化しない）
type Result struct {
	Chunk      *ingestion.Chunk
	Similarity float64 // [0,1] のコサイン類似度
}

// Filter は検索時の任意フィルタを表す
type Filter struct {
	SourceType mo.Option[ingestion.SourceType]
	SourceID   mo.Option[string]
}

// Matches はチャンクがフィルタに合致するかを返す
func (f Filter) Matches(c *ingestion.Chunk) bool {
	if st, ok := f.SourceType.Get(); ok && c.SourceType != st {
		return false
	}
	if id, ok := f.SourceID.Get(); ok && c.SourceID != id {
		return false
	}
	return true
}
