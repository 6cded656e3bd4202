package retrieval

import "math"

// CosineSimilarity は2ベクトルのコサイン類似度を返します
// dot(a,b) / (|a| * |b|)。分母がゼロ（縮退ベクトル）の場合は 0 と定義する。
// 次元が一致しない場合も 0 を返す
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
