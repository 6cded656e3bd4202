package gitrepo

import (
	"fmt"
	"sort"
	"strings"
)

// maxReadmeExcerptRunes はREADME要約の最大文字数
const maxReadmeExcerptRunes = 1500

// LanguageStat はリポジトリ内の1言語の統計を表す
type LanguageStat struct {
	Language string
	Files    int
}

// Digest はリポジトリ解析の要約を表す
// Text() の出力は同一入力に対して決定的
type Digest struct {
	RepoName      string
	FileCount     int
	Languages     []LanguageStat
	ReadmeExcerpt string
}

// Text はEmbedding対象となる要約テキストを組み立てます
func (d *Digest) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Repository: %s\n", d.RepoName)
	fmt.Fprintf(&b, "Files: %d\n", d.FileCount)

	if len(d.Languages) > 0 {
		names := make([]string, 0, len(d.Languages))
		for _, l := range d.Languages {
			names = append(names, fmt.Sprintf("%s (%d files)", l.Language, l.Files))
		}
		fmt.Fprintf(&b, "Languages: %s\n", strings.Join(names, ", "))
	}

	if d.ReadmeExcerpt != "" {
		fmt.Fprintf(&b, "README:\n%s\n", d.ReadmeExcerpt)
	}

	return b.String()
}

// buildLanguageStats はファイルごとの言語判定結果を集計します
// 件数の降順、同数は言語名の辞書順で安定させる
func buildLanguageStats(languageByFile map[string]string) []LanguageStat {
	counts := make(map[string]int)
	for _, lang := range languageByFile {
		if lang == "" {
			continue
		}
		counts[lang]++
	}

	stats := make([]LanguageStat, 0, len(counts))
	for lang, n := range counts {
		stats = append(stats, LanguageStat{Language: lang, Files: n})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Files != stats[j].Files {
			return stats[i].Files > stats[j].Files
		}
		return stats[i].Language < stats[j].Language
	})

	return stats
}

// excerpt は先頭 maxRunes 文字を切り出します
func excerpt(text string, maxRunes int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}
