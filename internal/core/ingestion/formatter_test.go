package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleProfile() *ProfileRecord {
	return &ProfileRecord{
		ProfileID: "p1",
		Name:      "Alice",
		Bio:       "Backend developer focused on data systems.",
		Location:  "Tokyo",
		Skills: []Skill{
			{Name: "Go", Level: "Expert", Years: 6},
			{Name: "PostgreSQL", Years: 4},
		},
		Experience: []Experience{
			{Title: "Senior Engineer", Company: "Acme", DurationYears: 3, Description: "Led the platform team."},
		},
		Education: []Education{
			{Degree: "BSc Computer Science", Institution: "Tokyo Tech", Year: 2015},
		},
		Certifications: []string{"AWS SAA"},
	}
}

func TestNormalizeProfile_IsDeterministic(t *testing.T) {
	rec := sampleProfile()
	assert.Equal(t, NormalizeProfile(rec), NormalizeProfile(rec))
}

func TestNormalizeProfile_IncludesAllSections(t *testing.T) {
	text := NormalizeProfile(sampleProfile())

	assert.Contains(t, text, "Name: Alice")
	assert.Contains(t, text, "Location: Tokyo")
	assert.Contains(t, text, "Go (Level: Expert) - 6 years of experience")
	assert.Contains(t, text, "Senior Engineer at Acme")
	assert.Contains(t, text, "BSc Computer Science")
	assert.Contains(t, text, "Certifications: AWS SAA")
}

func TestNormalizeProfile_SkipsEmptyFields(t *testing.T) {
	text := NormalizeProfile(&ProfileRecord{ProfileID: "p1", Name: "Bob"})

	assert.Equal(t, "Name: Bob", text)
	assert.NotContains(t, text, "Location")
	assert.NotContains(t, text, "\n\n\n")
}

func TestNormalizeProject_SectionOrderIsStable(t *testing.T) {
	rec := &ProjectRecord{
		ProjectID:   "proj1",
		Title:       "Chat App",
		Description: "Realtime chat application.",
		TechStack: []Technology{
			{Name: "Go", Category: "backend"},
			{Name: "React", Category: "frontend"},
		},
		MyRole:   "Tech Lead",
		TeamSize: 4,
		Achievements: []Achievement{
			{Title: "Scaled to 10k users", Description: "Horizontal sharding."},
		},
		Challenges: []Challenge{
			{Title: "Message ordering", Description: "Cross-shard ordering.", Solution: "Lamport timestamps."},
		},
		Learnings: "Consistency tradeoffs are subtle.",
	}

	text := NormalizeProject(rec)

	// タイトルが先頭、学びが技術スタックより後ろに来る
	assert.True(t, strings.HasPrefix(text, "Project: Chat App"))
	assert.Less(t, strings.Index(text, "Technologies used"), strings.Index(text, "Key Learnings"))
	assert.Contains(t, text, "Role: Tech Lead (team of 4)")
	assert.Contains(t, text, "Challenge: Message ordering")
	assert.Contains(t, text, "Solution: Lamport timestamps.")
}

func TestNormalizeProject_RepoDigestIsAppendedLast(t *testing.T) {
	rec := &ProjectRecord{
		ProjectID:   "proj1",
		Title:       "Chat App",
		Description: "Realtime chat application.",
		RepoDigest:  "Repository: alice/chat-app\nFiles: 120",
	}

	text := NormalizeProject(rec)
	assert.True(t, strings.HasSuffix(text, "Files: 120"))
}
