package gitrepo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepoNameFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://github.com/alice/chat-app.git", "alice/chat-app"},
		{"https://github.com/alice/chat-app", "alice/chat-app"},
		{"git@github.com:alice/chat-app.git", "alice/chat-app"},
	}

	for _, tt := range tests {
		got, err := RepoNameFromURL(tt.url)
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.want, got, tt.url)
	}
}

func TestRepoNameFromURL_Invalid(t *testing.T) {
	_, err := RepoNameFromURL("https://github.com")
	assert.Error(t, err)
}

func TestDigestText_IsDeterministic(t *testing.T) {
	d := &Digest{
		RepoName:  "alice/chat-app",
		FileCount: 42,
		Languages: []LanguageStat{
			{Language: "Go", Files: 30},
			{Language: "SQL", Files: 5},
		},
		ReadmeExcerpt: "A realtime chat application.",
	}

	first := d.Text()
	assert.Equal(t, first, d.Text())
	assert.Contains(t, first, "Repository: alice/chat-app")
	assert.Contains(t, first, "Files: 42")
	assert.Contains(t, first, "Go (30 files), SQL (5 files)")
	assert.Contains(t, first, "A realtime chat application.")
}

func TestBuildLanguageStats_Ordering(t *testing.T) {
	stats := buildLanguageStats(map[string]string{
		"a.go":  "Go",
		"b.go":  "Go",
		"c.py":  "Python",
		"d.rb":  "Ruby",
		"e.py":  "Python",
		"skip":  "",
		"f.sql": "SQL",
	})

	require.Len(t, stats, 4)
	assert.Equal(t, LanguageStat{Language: "Go", Files: 2}, stats[0])
	assert.Equal(t, LanguageStat{Language: "Python", Files: 2}, stats[1])
	// 同数は言語名の辞書順
	assert.Equal(t, "Ruby", stats[2].Language)
	assert.Equal(t, "SQL", stats[3].Language)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", excerpt("  short  ", 100))
	assert.Equal(t, "abc", excerpt("abcdef", 3))
	assert.Equal(t, "日本語", excerpt("日本語のテキスト", 3))
}

func TestDigestWorktree(t *testing.T) {
	root := t.TempDir()

	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")
	writeFile(t, root, "util.go", "package main\n\nfunc helper() {}\n")
	writeFile(t, root, "README.md", "# Chat App\nA realtime chat application.")
	writeFile(t, root, "ignored.log", "should be skipped")
	writeFile(t, root, ".gitignore", "*.log\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0o755))
	writeFile(t, root, filepath.Join("node_modules", "pkg", "index.js"), "console.log('skip')")

	digest, err := digestWorktree(root)
	require.NoError(t, err)

	assert.Contains(t, digest.ReadmeExcerpt, "A realtime chat application.")

	var languages []string
	for _, l := range digest.Languages {
		languages = append(languages, l.Language)
	}
	assert.Contains(t, languages, "Go")
	assert.NotContains(t, strings.Join(languages, ","), "JavaScript")
}

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
}
