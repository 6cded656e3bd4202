package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jinford/portfolio-rag/internal/core/answer"
)

const (
	// DefaultCompletionModel はデフォルトで使用するチャットモデル
	DefaultCompletionModel = "gpt-4o-mini"

	// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultTimeout = 60 * time.Second

	// MaxRetries はレート制限エラー時の最大リトライ回数
	MaxRetries = 3

	// BaseBackoff はExponential Backoffの基底時間
	BaseBackoff = 2 * time.Second

	// MaxBackoff はExponential Backoffの最大待機時間
	MaxBackoff = 32 * time.Second
)

var (
	// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
	ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")

	// ErrMaxRetriesExceeded は最大リトライ回数を超過した場合のエラー
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// Completer は OpenAI API を使用したチャット補完クライアント実装
type Completer struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

type completerOptions struct {
	model   string
	timeout time.Duration
}

// CompleterOption は Completer のオプション設定
type CompleterOption func(*completerOptions)

// WithCompletionModel はチャットモデルを上書きする
func WithCompletionModel(model string) CompleterOption {
	return func(o *completerOptions) {
		o.model = model
	}
}

// WithCompletionTimeout はAPIコールのタイムアウトを上書きする
func WithCompletionTimeout(timeout time.Duration) CompleterOption {
	return func(o *completerOptions) {
		o.timeout = timeout
	}
}

// NewCompleter は新しい Completer を作成する
func NewCompleter(apiKey string, opts ...CompleterOption) (*Completer, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	options := completerOptions{
		model:   DefaultCompletionModel,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Completer{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   options.model,
		timeout: options.timeout,
	}, nil
}

// ModelName はモデル名を返す
func (c *Completer) ModelName() string {
	return c.model
}

// Complete は OpenAI API を使用して回答テキストを生成する
// レート制限(429)の場合はExponential Backoffでリトライする
func (c *Completer) Complete(ctx context.Context, req answer.CompletionRequest) (*answer.CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			backoffDuration := time.Duration(math.Pow(2, float64(attempt-1))) * BaseBackoff
			if backoffDuration > MaxBackoff {
				backoffDuration = MaxBackoff
			}

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffDuration):
			}
		}

		params := openai.ChatCompletionNewParams{
			Model: shared.ChatModel(c.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(req.SystemPrompt),
				openai.UserMessage(req.UserPrompt),
			},
			Temperature: openai.Float(req.Temperature),
		}

		if req.MaxTokens > 0 {
			params.MaxTokens = openai.Int(int64(req.MaxTokens))
		}

		completion, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err

			if isRateLimitError(err) {
				continue
			}

			return nil, fmt.Errorf("OpenAI API call failed: %w", err)
		}

		if len(completion.Choices) == 0 {
			return nil, fmt.Errorf("no completion choices returned")
		}

		return &answer.CompletionResponse{
			Content:    completion.Choices[0].Message.Content,
			TokensUsed: int(completion.Usage.TotalTokens),
			Model:      string(completion.Model),
		}, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}

	return false
}

// インターフェース実装の確認
var _ answer.Completer = (*Completer)(nil)
