// internal/scoring/engine.go
package scoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobhunt-pipeline/internal/common/config"
	"jobhunt-pipeline/internal/common/errors"
	"jobhunt-pipeline/internal/common/logger"
	"jobhunt-pipeline/internal/matchindex"
	"jobhunt-pipeline/internal/models"
)

// Engine computes one MatchScore per job listing. Scoring is a pure function
// of (job description, published index snapshot, preferences): the same
// inputs always yield the same score and the same rationale.
type Engine struct {
	index              *matchindex.Index
	retrievalK         int
	semanticWeight     float64
	requirementsWeight float64
	logger             logger.Logger
}

func NewEngine(index *matchindex.Index, cfg config.MatchingConfig, log logger.Logger) *Engine {
	return &Engine{
		index:              index,
		retrievalK:         cfg.RetrievalK,
		semanticWeight:     cfg.SemanticWeight,
		requirementsWeight: cfg.RequirementsWeight,
		logger:             log.WithFields(map[string]interface{}{"component": "scoring-engine"}),
	}
}

// Score retrieves the resume chunks most relevant to the job description and
// combines a semantic sub-score (mean retrieved similarity) with a
// requirements sub-score (preference tag coverage) into a clamped [0,1]
// weighted sum.
func (e *Engine) Score(ctx context.Context, job models.JobListing, prefs models.SearchPreferences) (models.MatchScore, error) {
	hits, err := e.index.Query(ctx, job.Description, e.retrievalK)
	if err != nil {
		if err == matchindex.ErrIndexNotReady {
			return models.MatchScore{}, errors.NewIndexNotReadyError()
		}
		return models.MatchScore{}, errors.NewScoringFailedError(job.ID(), err)
	}

	semantic := semanticScore(hits)
	matched, missing := matchTags(prefs.TechStack, job, hits)
	requirements := requirementsScore(len(matched), len(prefs.TechStack))

	var score float64
	if len(prefs.TechStack) == 0 {
		// No required tags to check: the semantic signal is all there is.
		score = semantic
	} else {
		score = e.semanticWeight*semantic + e.requirementsWeight*requirements
	}
	score = clamp01(score)

	contributing := make([]int, 0, len(hits))
	for _, h := range hits {
		contributing = append(contributing, h.Chunk.Index)
	}

	return models.MatchScore{
		JobID:              job.ID(),
		ResumeVersion:      e.index.Version(),
		Score:              score,
		SemanticScore:      semantic,
		RequirementsScore:  requirements,
		ContributingChunks: contributing,
		MatchedTags:        matched,
		MissingTags:        missing,
		Rationale:          buildRationale(job, hits, matched, missing),
		ComputedAt:         time.Now().UTC(),
	}, nil
}

// semanticScore is the mean cosine similarity of the retrieved chunks,
// clamped to [0,1] so that dissimilar chunks contribute nothing negative.
func semanticScore(hits []matchindex.Hit) float64 {
	if len(hits) == 0 {
		return 0
	}
	var sum float64
	for _, h := range hits {
		sum += h.Similarity
	}
	return clamp01(sum / float64(len(hits)))
}

func requirementsScore(matched, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}

// matchTags checks each required tag against the job description and the
// retrieved chunk texts with a case-insensitive substring match.
func matchTags(tags []string, job models.JobListing, hits []matchindex.Hit) (matched, missing []string) {
	haystack := strings.ToLower(job.Description)
	for _, h := range hits {
		haystack += "\n" + strings.ToLower(h.Chunk.Text)
	}
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(tag)) {
			matched = append(matched, tag)
		} else {
			missing = append(missing, tag)
		}
	}
	return matched, missing
}

func buildRationale(job models.JobListing, hits []matchindex.Hit, matched, missing []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s at %s: ", job.Title, job.Company)
	if len(matched) > 0 {
		fmt.Fprintf(&b, "matched tags [%s]", strings.Join(matched, ", "))
	} else {
		b.WriteString("no required tags matched")
	}
	if len(missing) > 0 {
		fmt.Fprintf(&b, "; missing tags [%s]", strings.Join(missing, ", "))
	}
	if len(hits) > 0 {
		labels := make([]string, 0, len(hits))
		for _, h := range hits {
			labels = append(labels, fmt.Sprintf("%s#%d", h.Chunk.Section, h.Chunk.Index))
		}
		fmt.Fprintf(&b, "; supported by resume chunks [%s]", strings.Join(labels, ", "))
	} else {
		b.WriteString("; no resume chunks retrieved")
	}
	return b.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
