package confidence

import (
	"math"
	"strings"
)

// uncertaintyMarkers は回答の不確実性を示すフレーズ
// いずれかが含まれる場合はスコアを減点する
var uncertaintyMarkers = []string{
	"i don't have enough information",
	"i'm not sure",
	"i am not sure",
	"i cannot",
	"i can't",
	"unclear",
	"not specified",
	"no information",
}

// Weights は信頼度スコアの重み設定を表す
type Weights struct {
	Base               float64
	Retrieval          float64
	AnswerLength       float64
	AnswerLengthCap    int
	TokenUsage         float64
	TokenUsageCap      int
	UncertaintyPenalty float64
}

// DefaultWeights は信頼度スコアの既定の重みを返す
func DefaultWeights() Weights {
	return Weights{
		Base:               0.5,
		Retrieval:          0.3,
		AnswerLength:       0.2,
		AnswerLengthCap:    200,
		TokenUsage:         0.2,
		TokenUsageCap:      300,
		UncertaintyPenalty: 0.1,
	}
}

// Input はスコア計算への入力を表す
// MeanSimilarity はコンテキストに実際に使用したチャンクの平均類似度
type Input struct {
	Answer         string
	ChunksUsed     int
	MeanSimilarity float64
	TokensUsed     int
}

// Scorer は回答の信頼度スコアを計算する
type Scorer struct {
	weights Weights
}

// NewScorer は新しい信頼度スコアラーを作成します
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score は [0.0, 1.0] の信頼度を小数第2位に丸めて返します
// 検索チャンクが0件の場合は常に 0.0 を返す
func (s *Scorer) Score(in Input) float64 {
	if in.ChunksUsed == 0 {
		return 0.0
	}

	w := s.weights
	score := w.Base
	score += w.Retrieval * clamp01(in.MeanSimilarity)
	score += w.AnswerLength * ratio(len(in.Answer), w.AnswerLengthCap)
	score += w.TokenUsage * ratio(in.TokensUsed, w.TokenUsageCap)

	lower := strings.ToLower(in.Answer)
	for _, marker := range uncertaintyMarkers {
		if strings.Contains(lower, marker) {
			score -= w.UncertaintyPenalty
			break
		}
	}

	return math.Round(clamp01(score)*100) / 100
}

func ratio(n, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return math.Min(float64(n)/float64(limit), 1.0)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
