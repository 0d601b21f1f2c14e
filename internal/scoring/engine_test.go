// internal/scoring/engine_test.go
package scoring

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobhunt-pipeline/internal/common/config"
	commonerrors "jobhunt-pipeline/internal/common/errors"
	"jobhunt-pipeline/internal/common/logger"
	"jobhunt-pipeline/internal/matchindex"
	"jobhunt-pipeline/internal/models"
)

// hashProvider produces deterministic pseudo-embeddings from the text so
// that similarity is reproducible without a real backend. Texts sharing
// words land closer together than unrelated ones.
type hashProvider struct{}

func (hashProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 16)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		var h uint32
		for _, r := range word {
			h = h*31 + uint32(r)
		}
		vec[h%16]++
	}
	return vec, nil
}

func matchingConfig() config.MatchingConfig {
	return config.MatchingConfig{
		RetrievalK:         5,
		SemanticWeight:     0.6,
		RequirementsWeight: 0.4,
		Parallelism:        2,
	}
}

func builtIndex(t *testing.T) *matchindex.Index {
	t.Helper()
	idx := matchindex.New(hashProvider{}, logger.NewNoOpLogger())
	chunks := []models.ResumeChunk{
		{Index: 0, Section: models.SectionSummary, Text: "Engineering manager with platform background"},
		{Index: 1, Section: models.SectionExperience, Text: "Ran Kubernetes clusters on AWS for five years"},
		{Index: 2, Section: models.SectionSkills, Text: "Kubernetes, AWS, Terraform, Go"},
	}
	require.NoError(t, idx.Rebuild(context.Background(), "v1", chunks))
	return idx
}

func TestEngine_ScoreBounds(t *testing.T) {
	engine := NewEngine(builtIndex(t), matchingConfig(), logger.NewNoOpLogger())
	prefs := models.SearchPreferences{TechStack: []string{"Kubernetes", "AWS"}}

	jobs := []models.JobListing{
		{Source: "a", SourceID: "1", Description: "Kubernetes AWS platform team"},
		{Source: "a", SourceID: "2", Description: "completely unrelated pastry chef role"},
		{Source: "a", SourceID: "3", Description: ""},
	}
	for _, job := range jobs {
		score, err := engine.Score(context.Background(), job, prefs)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, score.Score, 0.0)
		assert.LessOrEqual(t, score.Score, 1.0)
	}
}

func TestEngine_Deterministic(t *testing.T) {
	engine := NewEngine(builtIndex(t), matchingConfig(), logger.NewNoOpLogger())
	prefs := models.SearchPreferences{TechStack: []string{"Kubernetes", "AWS"}}
	job := models.JobListing{Source: "li", SourceID: "42", Title: "EM", Company: "Acme",
		Description: "Engineering manager for a Kubernetes platform team on AWS"}

	first, err := engine.Score(context.Background(), job, prefs)
	require.NoError(t, err)
	second, err := engine.Score(context.Background(), job, prefs)
	require.NoError(t, err)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Rationale, second.Rationale)
	assert.Equal(t, first.ContributingChunks, second.ContributingChunks)
}

func TestEngine_TagMatchingIsCaseInsensitive(t *testing.T) {
	engine := NewEngine(builtIndex(t), matchingConfig(), logger.NewNoOpLogger())
	prefs := models.SearchPreferences{TechStack: []string{"kubernetes", "AWS", "Rust"}}
	job := models.JobListing{Source: "li", SourceID: "1",
		Description: "We run KUBERNETES on aws"}

	score, err := engine.Score(context.Background(), job, prefs)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"kubernetes", "AWS"}, score.MatchedTags)
	assert.Equal(t, []string{"Rust"}, score.MissingTags)
	assert.InDelta(t, 2.0/3.0, score.RequirementsScore, 1e-9)
}

func TestEngine_TagsMatchAgainstRetrievedChunks(t *testing.T) {
	// "Terraform" appears only in the resume, not the job description.
	engine := NewEngine(builtIndex(t), matchingConfig(), logger.NewNoOpLogger())
	prefs := models.SearchPreferences{TechStack: []string{"Terraform"}}
	job := models.JobListing{Source: "li", SourceID: "1", Description: "infrastructure role"}

	score, err := engine.Score(context.Background(), job, prefs)
	require.NoError(t, err)
	assert.Equal(t, []string{"Terraform"}, score.MatchedTags)
	assert.Equal(t, 1.0, score.RequirementsScore)
}

func TestEngine_RationaleCitesTagsAndChunks(t *testing.T) {
	engine := NewEngine(builtIndex(t), matchingConfig(), logger.NewNoOpLogger())
	prefs := models.SearchPreferences{TechStack: []string{"Kubernetes", "Rust"}}
	job := models.JobListing{Source: "li", SourceID: "1", Title: "Platform EM", Company: "Acme",
		Description: "Kubernetes platform leadership"}

	score, err := engine.Score(context.Background(), job, prefs)
	require.NoError(t, err)

	assert.Contains(t, score.Rationale, "Kubernetes")
	assert.Contains(t, score.Rationale, "missing tags [Rust]")
	assert.Contains(t, score.Rationale, models.SectionSkills)
	assert.NotEmpty(t, score.ContributingChunks)
}

func TestEngine_IndexNotReady(t *testing.T) {
	idx := matchindex.New(hashProvider{}, logger.NewNoOpLogger())
	engine := NewEngine(idx, matchingConfig(), logger.NewNoOpLogger())

	_, err := engine.Score(context.Background(), models.JobListing{Source: "a", SourceID: "1"}, models.SearchPreferences{})
	require.Error(t, err)
	assert.Equal(t, commonerrors.ErrCodeIndexNotReady, commonerrors.CodeOf(err))
}

func TestEngine_ResumeVersionStamped(t *testing.T) {
	engine := NewEngine(builtIndex(t), matchingConfig(), logger.NewNoOpLogger())

	score, err := engine.Score(context.Background(), models.JobListing{Source: "a", SourceID: "1", Description: "x"}, models.SearchPreferences{})
	require.NoError(t, err)
	assert.Equal(t, "v1", score.ResumeVersion)
}
