package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	appcli "github.com/jinford/portfolio-rag/internal/app/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定（標準出力は回答表示用に空けておく）
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	envFlag := &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}

	app := &cli.Command{
		Name:  "portfolio-rag",
		Usage: "開発者ポートフォリオ向け質問応答（RAG）システム",
		Commands: []*cli.Command{
			{
				Name:  "ingest",
				Usage: "コンテンツ取り込みコマンド",
				Commands: []*cli.Command{
					{
						Name:  "profile",
						Usage: "プロフィールJSONを取り込み",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "file",
								Usage:    "プロフィールJSONファイルパス",
								Required: true,
							},
						},
						Action: appcli.IngestProfileAction,
					},
					{
						Name:  "project",
						Usage: "プロジェクトJSONを取り込み",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "file",
								Usage:    "プロジェクトJSONファイルパス",
								Required: true,
							},
							&cli.BoolFlag{
								Name:  "with-repo",
								Usage: "GitHubリポジトリを解析して要約を含める",
							},
						},
						Action: appcli.IngestProjectAction,
					},
					{
						Name:  "resume",
						Usage: "PDF履歴書を取り込み",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "file",
								Usage:    "履歴書PDFファイルパス",
								Required: true,
							},
						},
						Action: appcli.IngestResumeAction,
					},
					{
						Name:  "all",
						Usage: "プロフィール・プロジェクト一式を一括取り込み",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "file",
								Usage:    "一括取り込みJSONファイルパス",
								Required: true,
							},
						},
						Action: appcli.IngestAllAction,
					},
				},
			},
			{
				Name:      "query",
				Usage:     "ポートフォリオへの質問応答",
				ArgsUsage: "<質問文>",
				Flags: []cli.Flag{
					envFlag,
					&cli.StringFlag{
						Name:  "type",
						Usage: "コンテキスト種別で絞り込み（profile / project / resume）",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "ソースIDで絞り込み",
					},
					&cli.IntFlag{
						Name:  "max-chunks",
						Usage: "使用する最大チャンク数",
					},
				},
				Action: appcli.QueryAction,
			},
			{
				Name:  "cache",
				Usage: "キャッシュ管理コマンド",
				Commands: []*cli.Command{
					{
						Name:   "clear",
						Usage:  "クエリキャッシュを消去",
						Flags:  []cli.Flag{envFlag},
						Action: appcli.CacheClearAction,
					},
				},
			},
			{
				Name:  "logs",
				Usage: "クエリ履歴を表示",
				Flags: []cli.Flag{
					envFlag,
					&cli.IntFlag{
						Name:  "limit",
						Usage: "表示件数",
						Value: 20,
					},
				},
				Action: appcli.LogsAction,
			},
			{
				Name:  "stats",
				Usage: "クエリ履歴の集計値を表示",
				Flags: []cli.Flag{
					envFlag,
					&cli.DurationFlag{
						Name:  "window",
						Usage: "集計期間",
						Value: 24 * time.Hour,
					},
				},
				Action: appcli.StatsAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
