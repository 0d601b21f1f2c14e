// internal/resume/chunker_test.go
package resume

import (
	"strings"
	"testing"

	"jobhunt-pipeline/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResume = `Summary
Engineering Manager with 21 years of experience leading platform teams.

Experience
Led a team of 10 engineers building SaaS products on Kubernetes and AWS. Introduced DevSecOps practices across four product lines. Reduced deployment lead time from two weeks to one day.

Skills
Golang, Kubernetes, AWS, Terraform, PostgreSQL, DevSecOps.

Education
B.E. Computer Science.`

func TestChunker_SectionLabels(t *testing.T) {
	chunker := NewChunker(Config{MaxChars: 200, MinChars: 20})

	chunks, err := chunker.Chunk(sampleResume)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	seen := map[string]bool{}
	for _, ch := range chunks {
		seen[ch.Section] = true
	}
	assert.True(t, seen[models.SectionSummary])
	assert.True(t, seen[models.SectionExperience])
	assert.True(t, seen[models.SectionSkills])
}

func TestChunker_Deterministic(t *testing.T) {
	chunker := NewChunker(Config{MaxChars: 120, MinChars: 20})

	first, err := chunker.Chunk(sampleResume)
	require.NoError(t, err)
	second, err := chunker.Chunk(sampleResume)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Text, second[i].Text)
		assert.Equal(t, first[i].Section, second[i].Section)
		assert.Equal(t, first[i].Index, second[i].Index)
	}
}

func TestChunker_RespectsBudget(t *testing.T) {
	chunker := NewChunker(Config{MaxChars: 80, MinChars: 10})

	chunks, err := chunker.Chunk(sampleResume)
	require.NoError(t, err)

	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 80, "chunk %d over budget: %q", ch.Index, ch.Text)
	}
}

func TestChunker_IndexesAreOrdered(t *testing.T) {
	chunker := NewChunker(Config{MaxChars: 100, MinChars: 10})

	chunks, err := chunker.Chunk(sampleResume)
	require.NoError(t, err)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
	}
}

func TestChunker_NoTinyFragments(t *testing.T) {
	chunker := NewChunker(Config{MaxChars: 200, MinChars: 30})

	chunks, err := chunker.Chunk(sampleResume)
	require.NoError(t, err)

	for i, ch := range chunks[:len(chunks)-1] {
		// The last chunk of a section may stay small; no chunk should be a
		// single word.
		assert.NotEqual(t, 1, len(strings.Fields(ch.Text)), "chunk %d is a single word", i)
	}
}

func TestChunker_EmptyInput(t *testing.T) {
	chunker := NewChunker(Config{})

	_, err := chunker.Chunk("   \n\n  ")
	assert.ErrorIs(t, err, ErrEmptyResume)
}

func TestChunker_LongSentenceIsHardCut(t *testing.T) {
	chunker := NewChunker(Config{MaxChars: 50, MinChars: 5})

	long := strings.Repeat("kubernetes platform engineering ", 10)
	chunks, err := chunker.Chunk(long)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 50)
	}
}
