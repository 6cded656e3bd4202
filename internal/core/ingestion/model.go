package ingestion

import (
	"time"

	"github.com/google/uuid"
)

// SourceType は取り込み元コンテンツの種別を表す
type SourceType string

const (
	SourceTypeProfile SourceType = "profile"
	SourceTypeProject SourceType = "project"
	SourceTypeResume  SourceType = "resume"
)

// Valid は既知のソース種別かどうかを返す
func (s SourceType) Valid() bool {
	switch s {
	case SourceTypeProfile, SourceTypeProject, SourceTypeResume:
		return true
	}
	return false
}

// Chunk は埋め込みベクトル付きのテキスト断片を表す
// SequenceIndex は (SourceType, SourceID, Generation) 内で一意。
// ソース再取り込み時は新しい Generation が作られ、旧世代は
// active=false になる（物理削除はしない）
type Chunk struct {
	ID            uuid.UUID
	SourceType    SourceType
	SourceID      string
	SourceTitle   string
	SequenceIndex int
	Content       string
	TokenCount    int
	Embedding     []float32
	Generation    int
	Active        bool
	CreatedAt     time.Time
}

// JobStatus は取り込みジョブの状態を表す
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IngestJob は1ソースの取り込み実行を記録する
type IngestJob struct {
	ID            uuid.UUID
	SourceType    SourceType
	SourceID      string
	SourceTitle   string
	Status        JobStatus
	ChunksCreated int
	ErrorMessage  string
	StartedAt     time.Time
	CompletedAt   *time.Time
}

// Skill はプロフィールのスキル項目
type Skill struct {
	Name  string `json:"name"`
	Level string `json:"level,omitempty"`
	Years int    `json:"years,omitempty"`
}

// Experience は職務経歴の項目
type Experience struct {
	Title         string `json:"title"`
	Company       string `json:"company,omitempty"`
	DurationYears int    `json:"durationYears,omitempty"`
	Description   string `json:"description,omitempty"`
}

// Education は学歴の項目
type Education struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution,omitempty"`
	Year        int    `json:"year,omitempty"`
}

// ProfileRecord は開発者プロフィールの取り込み元レコード
type ProfileRecord struct {
	ProfileID      string       `json:"profileId"`
	Name           string       `json:"name"`
	Bio            string       `json:"bio,omitempty"`
	Location       string       `json:"location,omitempty"`
	Skills         []Skill      `json:"skills,omitempty"`
	Experience     []Experience `json:"experience,omitempty"`
	Education      []Education  `json:"education,omitempty"`
	Certifications []string     `json:"certifications,omitempty"`
}

// Technology はプロジェクトの技術スタック項目
type Technology struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// Achievement はプロジェクトの成果項目
type Achievement struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Challenge はプロジェクトで直面した課題と解決策
type Challenge struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Solution    string `json:"solution,omitempty"`
}

// ProjectRecord はプロジェクトの取り込み元レコード
type ProjectRecord struct {
	ProjectID           string        `json:"projectId"`
	Title               string        `json:"title"`
	Description         string        `json:"description"`
	DetailedDescription string        `json:"detailedDescription,omitempty"`
	TechStack           []Technology  `json:"techStack,omitempty"`
	MyRole              string        `json:"myRole,omitempty"`
	TeamSize            int           `json:"teamSize,omitempty"`
	Achievements        []Achievement `json:"achievements,omitempty"`
	Challenges          []Challenge   `json:"challenges,omitempty"`
	Learnings           string        `json:"learnings,omitempty"`
	GitHubURL           string        `json:"githubUrl,omitempty"`

	// RepoDigest はリポジトリ解析（infra/gitrepo）で得た要約テキスト
	// 空の場合はスキップされる
	RepoDigest string `json:"-"`
}
