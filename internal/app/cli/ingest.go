package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/jinford/portfolio-rag/internal/core/ingestion"
	"github.com/jinford/portfolio-rag/internal/infra/resume"
)

// IngestProfileAction はプロフィールJSONを取り込むコマンドのアクション
func IngestProfileAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	var rec ingestion.ProfileRecord
	if err := readJSONFile(path, &rec); err != nil {
		return err
	}

	slog.Info("プロフィールを取り込みます", "profileID", rec.ProfileID)

	chunks, err := appCtx.Container.Processor.ProcessProfile(ctx, &rec)
	if err != nil {
		slog.Error("プロフィールの取り込みに失敗しました", "error", err)
		return err
	}

	appCtx.Container.QueryService.InvalidateAll()

	fmt.Printf("プロフィール %s を取り込みました（%dチャンク）\n", rec.ProfileID, len(chunks))
	return nil
}

// IngestProjectAction はプロジェクトJSONを取り込むコマンドのアクション
// --with-repo 指定時はGitHubリポジトリを解析して要約を追加する
func IngestProjectAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	withRepo := cmd.Bool("with-repo")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	var rec ingestion.ProjectRecord
	if err := readJSONFile(path, &rec); err != nil {
		return err
	}

	if withRepo && rec.GitHubURL != "" {
		slog.Info("リポジトリを解析します", "url", rec.GitHubURL)

		digest, err := appCtx.Container.GitClient.BuildDigest(ctx, rec.GitHubURL)
		if err != nil {
			// リポジトリ解析の失敗でプロジェクト本体の取り込みは止めない
			slog.Warn("リポジトリ解析に失敗しました", "url", rec.GitHubURL, "error", err)
		} else {
			rec.RepoDigest = digest.Text()
		}
	}

	slog.Info("プロジェクトを取り込みます", "projectID", rec.ProjectID, "title", rec.Title)

	chunks, err := appCtx.Container.Processor.ProcessProject(ctx, &rec)
	if err != nil {
		slog.Error("プロジェクトの取り込みに失敗しました", "error", err)
		return err
	}

	appCtx.Container.QueryService.InvalidateAll()

	fmt.Printf("プロジェクト %s を取り込みました（%dチャンク）\n", rec.ProjectID, len(chunks))
	return nil
}

// IngestResumeAction はPDF履歴書を取り込むコマンドのアクション
func IngestResumeAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("履歴書を取り込みます", "file", path)

	text, err := resume.ReadText(path)
	if err != nil {
		slog.Error("PDFの読み込みに失敗しました", "error", err)
		return err
	}

	title := filepath.Base(path)
	chunks, err := appCtx.Container.Processor.ProcessText(ctx, ingestion.SourceTypeResume, title, title, text)
	if err != nil {
		slog.Error("履歴書の取り込みに失敗しました", "error", err)
		return err
	}

	appCtx.Container.QueryService.InvalidateAll()

	fmt.Printf("履歴書 %s を取り込みました（%dチャンク）\n", title, len(chunks))
	return nil
}

// IngestAllAction はプロフィール・プロジェクト一式を一括で取り込む
// 入力は {"profiles": [...], "projects": [...]} 形式のJSONファイル
func IngestAllAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	var payload struct {
		Profiles []*ingestion.ProfileRecord `json:"profiles"`
		Projects []*ingestion.ProjectRecord `json:"projects"`
	}
	if err := readJSONFile(path, &payload); err != nil {
		return err
	}

	slog.Info("一括取り込みを開始します",
		"profiles", len(payload.Profiles),
		"projects", len(payload.Projects),
	)

	result := appCtx.Container.Processor.ProcessAll(ctx, payload.Profiles, payload.Projects)

	appCtx.Container.QueryService.InvalidateAll()

	fmt.Printf("取り込み完了: 成功 %d（%dチャンク） / 失敗 %d\n", result.Processed, result.ChunksCreated, len(result.Failures))
	for _, f := range result.Failures {
		fmt.Printf("  失敗: %s/%s: %v\n", f.SourceType, f.SourceID, f.Err)
	}

	if len(result.Failures) > 0 {
		return fmt.Errorf("%d件のソースの取り込みに失敗しました", len(result.Failures))
	}
	return nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("JSONの解析に失敗: %w", err)
	}
	return nil
}
