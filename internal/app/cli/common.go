package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/portfolio-rag/internal/platform/container"
	"github.com/jinford/portfolio-rag/internal/platform/logger"
	"github.com/jinford/portfolio-rag/pkg/config"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Container *container.ServiceContainer
}

// NewAppContext は設定ファイルを読み込み、DBに接続して AppContext を作成する
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	appLogger := logger.New(logger.FromEnv())

	cont, err := container.NewContainer(ctx, cfg,
		container.WithContainerLogger(appLogger),
	)
	if err != nil {
		return nil, fmt.Errorf("コンテナの初期化に失敗: %w", err)
	}

	return &AppContext{
		Container: cont,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Container != nil {
		ac.Container.Close()
	}
}

// Logger はAppContextのロガーを返す
func (ac *AppContext) Logger() *slog.Logger {
	if ac.Container != nil {
		return ac.Container.Logger()
	}
	return slog.Default()
}
