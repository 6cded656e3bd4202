package chunk

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// TextChunk は分割されたテキスト断片を表す
type TextChunk struct {
	Content    string
	TokenCount int
}

// Chunker はテキストをトークン数上限付きの断片に分割する
// 純粋関数として動作し、同一入力に対して常に同一の出力を返す
type Chunker struct {
	encoder *tiktoken.Tiktoken
}

// sentenceEnders は文末とみなす句読点
var sentenceEnders = []rune{'.', '!', '?', '。', '！', '？'}

// NewChunker は新しいChunkerを作成します
func NewChunker() (*Chunker, error) {
	// cl100k_baseエンコーダを使用（OpenAIのtext-embedding-3-smallと互換）
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoder: %w", err)
	}

	return &Chunker{encoder: encoder}, nil
}

// Split はテキストをオーバーラップ付きの断片に分割します
// 各断片は maxTokens 以下で、隣接する断片は overlapTokens 分の内容を共有する。
// 分割点は可能な限り文末に揃える: ハード境界から後方に文末句読点を探索し、
// ウィンドウの半分を超える位置で見つかればそこで切る。
func (c *Chunker) Split(text string, maxTokens, overlapTokens int) ([]*TextChunk, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("maxTokens must be positive, got %d", maxTokens)
	}
	if overlapTokens < 0 || overlapTokens >= maxTokens {
		return nil, fmt.Errorf("overlapTokens must satisfy 0 <= overlap < maxTokens, got %d", overlapTokens)
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	tokens := c.encoder.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return []*TextChunk{{Content: text, TokenCount: len(tokens)}}, nil
	}

	var chunks []*TextChunk
	start := 0
	for start < len(tokens) {
		end := start + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}

		// 末尾以外の断片は文末に揃えて切る
		if end < len(tokens) {
			if cut := c.sentenceCut(tokens[start:end]); cut > maxTokens/2 {
				end = start + cut
			}
		}

		chunks = append(chunks, &TextChunk{
			Content:    c.encoder.Decode(tokens[start:end]),
			TokenCount: end - start,
		})

		if end >= len(tokens) {
			break
		}

		next := end - overlapTokens
		if next <= start {
			// オーバーラップが大きく前進できない場合はハード境界で進める
			next = end
		}
		start = next
	}

	return chunks, nil
}

// sentenceCut はウィンドウ内の最後の文末位置をトークン数で返します
// 文末が見つからない場合は 0 を返す
func (c *Chunker) sentenceCut(window []int) int {
	decoded := c.encoder.Decode(window)

	lastEnd := -1
	for i, r := range decoded {
		for _, e := range sentenceEnders {
			if r == e {
				lastEnd = i + len(string(r))
				break
			}
		}
	}
	if lastEnd < 0 {
		return 0
	}

	// 文末までのプレフィックスを再エンコードしてトークン数に換算する
	return len(c.encoder.Encode(decoded[:lastEnd], nil, nil))
}

// CountTokens はテキストのトークン数を返します
func (c *Chunker) CountTokens(text string) int {
	return len(c.encoder.Encode(text, nil, nil))
}

// Truncate はテキストを maxTokens トークン以内に切り詰めます
func (c *Chunker) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	tokens := c.encoder.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return c.encoder.Decode(tokens[:maxTokens])
}
