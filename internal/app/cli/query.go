package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/mo"
	"github.com/urfave/cli/v3"

	"github.com/jinford/portfolio-rag/internal/core/ingestion"
	"github.com/jinford/portfolio-rag/internal/core/query"
)

// QueryAction は質問応答コマンドのアクション
func QueryAction(ctx context.Context, cmd *cli.Command) error {
	contextType := cmd.String("type")
	sourceID := cmd.String("source")
	maxChunks := cmd.Int("max-chunks")
	envFile := cmd.String("env")

	question := cmd.Args().First()
	if question == "" {
		return fmt.Errorf("質問文を指定してください")
	}

	params := query.Params{
		Question:  question,
		MaxChunks: maxChunks,
	}

	if contextType != "" {
		st := ingestion.SourceType(contextType)
		if !st.Valid() {
			return fmt.Errorf("不明なコンテキスト種別: %s（profile / project / resume）", contextType)
		}
		params.ContextType = mo.Some(st)
	}
	if sourceID != "" {
		params.SourceID = mo.Some(sourceID)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("質問応答を開始", "question", question, "type", contextType, "source", sourceID)

	result, err := appCtx.Container.QueryService.Ask(ctx, params)
	if err != nil {
		slog.Error("質問応答に失敗しました", "error", err)
		return err
	}

	fmt.Println(result.Answer)
	fmt.Printf("\n信頼度: %.2f / 使用チャンク: %d / 応答時間: %dms",
		result.Confidence,
		len(result.ChunksUsed),
		result.ResponseTime.Milliseconds(),
	)
	if result.Cached {
		fmt.Print(" (キャッシュ)")
	}
	if result.Retry {
		fmt.Print(" (再試行を推奨)")
	}
	fmt.Println()

	return nil
}

// CacheClearAction はクエリキャッシュを消去するコマンドのアクション
func CacheClearAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	appCtx.Container.QueryService.InvalidateAll()
	fmt.Println("クエリキャッシュを消去しました")
	return nil
}
