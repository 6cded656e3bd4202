package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateLockID_Deterministic(t *testing.T) {
	a := GenerateLockID("chunk", "profile", "p1")
	b := GenerateLockID("chunk", "profile", "p1")
	assert.Equal(t, a, b)
}

func TestGenerateLockID_DistinguishesParts(t *testing.T) {
	assert.NotEqual(t,
		GenerateLockID("chunk", "profile", "p1"),
		GenerateLockID("chunk", "project", "p1"),
	)

	// 区切りが曖昧な結合（"ab"+"c" vs "a"+"bc"）でも衝突しない
	assert.NotEqual(t,
		GenerateLockID("ab", "c"),
		GenerateLockID("a", "bc"),
	)
}
