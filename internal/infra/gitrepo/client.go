package gitrepo

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"
	"github.com/go-git/go-git/v5"
	gitignore "github.com/sabhiram/go-gitignore"
	giturls "github.com/whilp/git-urls"
)

// maxFileReadBytes は言語判定のために読み込む最大バイト数
const maxFileReadBytes = 16 * 1024

// Client はGitリポジトリを解析して要約を生成する
type Client struct {
	workDir string
	logger  *slog.Logger
}

type clientOptions struct {
	workDir string
	logger  *slog.Logger
}

// ClientOption は Client のオプション設定
type ClientOption func(*clientOptions)

// WithWorkDir はクローン先のベースディレクトリを設定する
func WithWorkDir(dir string) ClientOption {
	return func(o *clientOptions) {
		o.workDir = dir
	}
}

// WithGitLogger は Client にロガーを設定する
func WithGitLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// NewClient は新しい Client を作成します
func NewClient(opts ...ClientOption) *Client {
	options := clientOptions{
		workDir: os.TempDir(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Client{
		workDir: options.workDir,
		logger:  options.logger,
	}
}

// RepoNameFromURL はGit URLからリポジトリ名（owner/name形式）を導出します
func RepoNameFromURL(gitURL string) (string, error) {
	u, err := giturls.Parse(gitURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse git URL: %w", err)
	}

	name := strings.TrimPrefix(u.Path, "/")
	name = strings.TrimSuffix(name, ".git")
	if name == "" {
		return "", fmt.Errorf("git URL has no repository path: %s", gitURL)
	}

	return name, nil
}

// BuildDigest はリポジトリを浅くクローンして要約を生成します
// クローン先は処理後に削除される
func (c *Client) BuildDigest(ctx context.Context, gitURL string) (*Digest, error) {
	repoName, err := RepoNameFromURL(gitURL)
	if err != nil {
		return nil, err
	}

	destDir, err := os.MkdirTemp(c.workDir, "portfolio-rag-clone-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create clone directory: %w", err)
	}
	defer os.RemoveAll(destDir)

	c.logger.Info("cloning repository", "url", gitURL)

	_, err = git.PlainCloneContext(ctx, destDir, false, &git.CloneOptions{
		URL:          gitURL,
		Depth:        1,
		SingleBranch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clone repository: %w", err)
	}

	digest, err := digestWorktree(destDir)
	if err != nil {
		return nil, err
	}
	digest.RepoName = repoName

	return digest, nil
}

// digestWorktree はチェックアウト済みワークツリーを走査して要約を作ります
func digestWorktree(root string) (*Digest, error) {
	matcher := loadIgnoreMatcher(root)

	languageByFile := make(map[string]string)
	fileCount := 0
	var readmeExcerpt string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if d.Name() == ".git" || matcher.MatchesPath(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if matcher.MatchesPath(rel) {
			return nil
		}

		fileCount++

		content := readHead(path, maxFileReadBytes)
		if enry.IsBinary(content) {
			return nil
		}

		if lang := enry.GetLanguage(d.Name(), content); lang != "" && !enry.IsVendor(rel) {
			languageByFile[rel] = lang
		}

		if readmeExcerpt == "" && isReadme(d.Name()) {
			readmeExcerpt = excerpt(string(content), maxReadmeExcerptRunes)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan worktree: %w", err)
	}

	return &Digest{
		FileCount:     fileCount,
		Languages:     buildLanguageStats(languageByFile),
		ReadmeExcerpt: readmeExcerpt,
	}, nil
}

// loadIgnoreMatcher は .gitignore とデフォルトパターンからマッチャーを作ります
func loadIgnoreMatcher(root string) *gitignore.GitIgnore {
	patterns := defaultIgnorePatterns()

	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			patterns = append(patterns, line)
		}
	}

	return gitignore.CompileIgnoreLines(patterns...)
}

func defaultIgnorePatterns() []string {
	return []string{
		".git",
		"node_modules",
		"vendor",
		"dist",
		"build",
		"target",
		"*.min.js",
		"*.lock",
		"*.png",
		"*.jpg",
		"*.jpeg",
		"*.gif",
		"*.ico",
		"*.pdf",
		"*.zip",
		"*.tar",
		"*.gz",
	}
}

func readHead(path string, maxBytes int) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	buf := make([]byte, maxBytes)
	n, _ := f.Read(buf)
	return buf[:n]
}

func isReadme(name string) bool {
	base := strings.ToLower(name)
	return base == "readme" || base == "readme.md" || base == "readme.txt" || base == "readme.rst"
}
