package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
)

// LogsAction は直近のクエリ履歴を表示するコマンドのアクション
func LogsAction(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	entries, err := appCtx.Container.QueryLogs.Recent(ctx, limit)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("クエリ履歴はありません")
		return nil
	}

	for _, e := range entries {
		cached := ""
		if e.Cached {
			cached = " [cached]"
		}
		fmt.Printf("%s  conf=%.2f chunks=%d %dms%s\n  Q: %s\n",
			e.CreatedAt.Format(time.RFC3339),
			e.Confidence,
			e.ChunksUsed,
			e.ResponseTime.Milliseconds(),
			cached,
			e.Question,
		)
	}

	return nil
}

// StatsAction はクエリ履歴の集計値を表示するコマンドのアクション
func StatsAction(ctx context.Context, cmd *cli.Command) error {
	window := cmd.Duration("window")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	stats, err := appCtx.Container.QueryLogs.Stats(ctx, window)
	if err != nil {
		return err
	}

	fmt.Printf("集計期間: 直近 %s\n", window)
	fmt.Printf("クエリ数: %d\n", stats.TotalQueries)
	fmt.Printf("平均信頼度: %.2f\n", stats.AvgConfidence)
	fmt.Printf("平均応答時間: %.0fms\n", stats.AvgResponseMS)
	fmt.Printf("キャッシュヒット率: %.0f%%\n", stats.CacheHitRate*100)

	return nil
}
