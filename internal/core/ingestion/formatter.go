package ingestion

import (
	"fmt"
	"strings"
)

// 構造化レコードから正規化テキストへの変換は、フィールド名と整形関数の
// 明示的な順序付きリストで定義する。マップ走査のような順序不定な手段を
// 使わないことで、同一レコードからは常にバイト単位で同一のテキストが
// 得られ、再取り込みが冪等になる。

// profileField はプロフィールの1フィールドの整形定義
type profileField struct {
	name   string
	format func(r *ProfileRecord) string
}

// profileFields はプロフィールの正規化順序（変更はチャンク再生成を伴う）
var profileFields = []profileField{
	{"name", func(r *ProfileRecord) string {
		if r.Name == "" {
			return ""
		}
		return "Name: " + r.Name
	}},
	{"bio", func(r *ProfileRecord) string { return r.Bio }},
	{"location", func(r *ProfileRecord) string {
		if r.Location == "" {
			return ""
		}
		return "Location: " + r.Location
	}},
	{"skills", formatSkills},
	{"experience", formatExperience},
	{"education", formatEducation},
	{"certifications", func(r *ProfileRecord) string {
		if len(r.Certifications) == 0 {
			return ""
		}
		return "Certifications: " + strings.Join(r.Certifications, ", ")
	}},
}

// projectField はプロジェクトの1フィールドの整形定義
type projectField struct {
	name   string
	format func(r *ProjectRecord) string
}

// projectFields はプロジェクトの正規化順序
var projectFields = []projectField{
	{"title", func(r *ProjectRecord) string {
		if r.Title == "" {
			return ""
		}
		return "Project: " + r.Title
	}},
	{"description", func(r *ProjectRecord) string { return r.Description }},
	{"detailedDescription", func(r *ProjectRecord) string { return r.DetailedDescription }},
	{"techStack", formatTechStack},
	{"role", func(r *ProjectRecord) string {
		if r.MyRole == "" {
			return ""
		}
		if r.TeamSize > 1 {
			return fmt.Sprintf("Role: %s (team of %d)", r.MyRole, r.TeamSize)
		}
		return "Role: " + r.MyRole
	}},
	{"achievements", formatAchievements},
	{"challenges", formatChallenges},
	{"learnings", func(r *ProjectRecord) string {
		if r.Learnings == "" {
			return ""
		}
		return "Key Learnings: " + r.Learnings
	}},
	{"repository", func(r *ProjectRecord) string { return r.RepoDigest }},
}

// NormalizeProfile はプロフィールレコードを正規化テキストに変換します
func NormalizeProfile(r *ProfileRecord) string {
	sections := make([]string, 0, len(profileFields))
	for _, f := range profileFields {
		if s := strings.TrimSpace(f.format(r)); s != "" {
			sections = append(sections, s)
		}
	}
	return strings.Join(sections, "\n\n")
}

// NormalizeProject はプロジェクトレコードを正規化テキストに変換します
func NormalizeProject(r *ProjectRecord) string {
	sections := make([]string, 0, len(projectFields))
	for _, f := range projectFields {
		if s := strings.TrimSpace(f.format(r)); s != "" {
			sections = append(sections, s)
		}
	}
	return strings.Join(sections, "\n\n")
}

func formatSkills(r *ProfileRecord) string {
	if len(r.Skills) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Skills))
	for _, s := range r.Skills {
		text := s.Name
		if s.Level != "" {
			text += fmt.Sprintf(" (Level: %s)", s.Level)
		}
		if s.Years > 0 {
			text += fmt.Sprintf(" - %d years of experience", s.Years)
		}
		parts = append(parts, text)
	}
	return "Skills: " + strings.Join(parts, ", ")
}

func formatExperience(r *ProfileRecord) string {
	if len(r.Experience) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Experience))
	for _, e := range r.Experience {
		text := "Position: " + e.Title
		if e.Company != "" {
			text += " at " + e.Company
		}
		if e.DurationYears > 0 {
			text += fmt.Sprintf(" (%d years)", e.DurationYears)
		}
		if e.Description != "" {
			text += ". " + e.Description
		}
		parts = append(parts, text)
	}
	return "Work Experience: " + strings.Join(parts, ". ")
}

func formatEducation(r *ProfileRecord) string {
	if len(r.Education) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Education))
	for _, e := range r.Education {
		text := e.Degree
		if e.Institution != "" {
			text += " from " + e.Institution
		}
		if e.Year > 0 {
			text += fmt.Sprintf(" (%d)", e.Year)
		}
		parts = append(parts, text)
	}
	return "Education: " + strings.Join(parts, ". ")
}

func formatTechStack(r *ProjectRecord) string {
	if len(r.TechStack) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.TechStack))
	for _, t := range r.TechStack {
		text := t.Name
		if t.Category != "" {
			text += fmt.Sprintf(" (%s)", t.Category)
		}
		parts = append(parts, text)
	}
	return "Technologies used: " + strings.Join(parts, ", ")
}

func formatAchievements(r *ProjectRecord) string {
	if len(r.Achievements) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Achievements))
	for _, a := range r.Achievements {
		text := a.Title
		if a.Description != "" {
			text += ": " + a.Description
		}
		parts = append(parts, text)
	}
	return "Project Achievements: " + strings.Join(parts, ". ")
}

func formatChallenges(r *ProjectRecord) string {
	if len(r.Challenges) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Challenges))
	for _, c := range r.Challenges {
		text := "Challenge: " + c.Title
		if c.Description != "" {
			text += " - " + c.Description
		}
		if c.Solution != "" {
			text += " Solution: " + c.Solution
		}
		parts = append(parts, text)
	}
	return "Project Challenges: " + strings.Join(parts, ". ")
}
