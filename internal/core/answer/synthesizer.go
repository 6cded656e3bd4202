package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrProvider は生成プロバイダー側の失敗を表す
var ErrProvider = errors.New("completion provider error")

// InsufficientAnswer はコンテキスト不足時の定型回答
const InsufficientAnswer = "I don't have enough information to answer that question based on the available content."

// CompletionRequest はチャット補完のリクエストを表す
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// CompletionResponse はチャット補完のレスポンスを表す
type CompletionResponse struct {
	Content    string
	TokensUsed int
	Model      string
}

// Completer はチャット補完プロバイダーのインターフェース
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Answer は生成された回答を表す
type Answer struct {
	Text       string
	TokensUsed int
	Model      string
}

// Synthesizer は検索コンテキストに基づく回答生成を提供する
type Synthesizer struct {
	completer   Completer
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

type synthesizerOptions struct {
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

// SynthesizerOption は Synthesizer のオプション設定
type SynthesizerOption func(*synthesizerOptions)

// WithAnswerMaxTokens は回答の最大トークン数を設定する
func WithAnswerMaxTokens(n int) SynthesizerOption {
	return func(o *synthesizerOptions) {
		o.maxTokens = n
	}
}

// WithTemperature は生成温度を設定する
func WithTemperature(t float64) SynthesizerOption {
	return func(o *synthesizerOptions) {
		o.temperature = t
	}
}

// WithSynthesizerLogger は Synthesizer にロガーを設定する
func WithSynthesizerLogger(logger *slog.Logger) SynthesizerOption {
	return func(o *synthesizerOptions) {
		o.logger = logger
	}
}

// NewSynthesizer は新しい回答生成サービスを作成します
func NewSynthesizer(completer Completer, opts ...SynthesizerOption) *Synthesizer {
	options := synthesizerOptions{
		maxTokens:   500,
		temperature: 0.7,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Synthesizer{
		completer:   completer,
		maxTokens:   options.maxTokens,
		temperature: options.temperature,
		logger:      options.logger,
	}
}

// Synthesize はコンテキストと質問から回答を生成します
// コンテキストが空の場合はプロバイダーを呼ばずに定型回答を返す
func (s *Synthesizer) Synthesize(ctx context.Context, contextText, question string) (*Answer, error) {
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	if strings.TrimSpace(contextText) == "" {
		s.logger.Debug("empty context, returning canned answer")
		return &Answer{Text: InsufficientAnswer}, nil
	}

	resp, err := s.completer.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(contextText, question),
		MaxTokens:    s.maxTokens,
		Temperature:  s.temperature,
	})
	if err != nil {
		// タイムアウト/キャンセルは呼び出し側で区別するためそのまま返す
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, fmt.Errorf("%w: empty completion", ErrProvider)
	}

	return &Answer{
		Text:       text,
		TokensUsed: resp.TokensUsed,
		Model:      resp.Model,
	}, nil
}
