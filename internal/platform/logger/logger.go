package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Config はロガーの設定
type Config struct {
	Level  slog.Level
	Format string // "json" or "text"
}

// DefaultConfig はデフォルトのロガー設定
func DefaultConfig() Config {
	return Config{
		Level:  slog.LevelInfo,
		Format: "json",
	}
}

// FromEnv は LOG_LEVEL / LOG_FORMAT 環境変数から設定を組み立てます
// 未指定または不正な値はデフォルトにフォールバックする
func FromEnv() Config {
	cfg := DefaultConfig()

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.Level = slog.LevelDebug
	case "warn":
		cfg.Level = slog.LevelWarn
	case "error":
		cfg.Level = slog.LevelError
	case "info":
		cfg.Level = slog.LevelInfo
	}

	if format := strings.ToLower(os.Getenv("LOG_FORMAT")); format == "text" || format == "json" {
		cfg.Format = format
	}

	return cfg
}

// New は新しいロガーを作成し、デフォルトロガーとして設定します
// 標準出力はコマンドの回答表示に使うため、ログは標準エラーに書く
func New(cfg Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: cfg.Level,
	}

	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default: // "json"
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
