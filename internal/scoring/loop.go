// internal/scoring/loop.go
package scoring

import (
	"context"
	"sort"
	"sync"
	"time"

	"jobhunt-pipeline/internal/common/config"
	"jobhunt-pipeline/internal/common/logger"
	"jobhunt-pipeline/internal/common/metrics"
	"jobhunt-pipeline/internal/models"
)

// Controller drives the scoring engine over a batch of listings until every
// job has a definite outcome or a budget runs out. One bad job never aborts
// the batch: it is marked scoring-failed and the loop moves on.
type Controller struct {
	engine         *Engine
	maxJobs        int
	maxWallClock   time.Duration
	parallelism    int
	scoreThreshold float64
	logger         logger.Logger
}

func NewController(engine *Engine, cfg config.MatchingConfig, log logger.Logger) *Controller {
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Controller{
		engine:         engine,
		maxJobs:        cfg.MaxJobs,
		maxWallClock:   time.Duration(cfg.MaxWallClock) * time.Millisecond,
		parallelism:    parallelism,
		scoreThreshold: cfg.ScoreThreshold,
		logger:         log.WithFields(map[string]interface{}{"component": "match-loop"}),
	}
}

// Run scores the batch with bounded parallelism. Termination, in priority
// order: all jobs have an outcome; the job-count or wall-clock budget is
// exhausted (remaining jobs flagged unscored); cancellation is observed at
// the next loop iteration (in-flight scorings complete first).
func (c *Controller) Run(ctx context.Context, jobs []models.JobListing, prefs models.SearchPreferences) BatchResult {
	results := make([]JobResult, len(jobs))
	for i, job := range jobs {
		results[i] = JobResult{Listing: job, Status: StatusUnscored}
	}

	budgetCtx := ctx
	if c.maxWallClock > 0 {
		var cancel context.CancelFunc
		budgetCtx, cancel = context.WithTimeout(ctx, c.maxWallClock)
		defer cancel()
	}

	sem := make(chan struct{}, c.parallelism)
	var wg sync.WaitGroup
	exhausted := false

	for i := range jobs {
		if budgetCtx.Err() != nil {
			exhausted = exhausted || ctx.Err() == nil
			break
		}
		if c.maxJobs > 0 && i >= c.maxJobs {
			exhausted = true
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = c.scoreOne(budgetCtx, jobs[i], prefs)
		}(i)
	}
	wg.Wait()

	scored, failed, unscored := BatchResult{Results: results}.Counts()
	c.logger.Info("match loop finished", map[string]interface{}{
		"jobs":     len(jobs),
		"scored":   scored,
		"failed":   failed,
		"unscored": unscored,
	})

	return BatchResult{
		Ranked:          c.rank(results),
		Results:         results,
		BudgetExhausted: exhausted || unscored > 0,
	}
}

func (c *Controller) scoreOne(ctx context.Context, job models.JobListing, prefs models.SearchPreferences) JobResult {
	start := time.Now()
	score, err := c.engine.Score(ctx, job, prefs)
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			// Budget or cancellation hit mid-flight: no definite score.
			metrics.ScoringJobsTotal.WithLabelValues(string(StatusUnscored)).Inc()
			return JobResult{Listing: job, Status: StatusUnscored, Err: err}
		}
		c.logger.Warn("job scoring failed", map[string]interface{}{
			"jobId": job.ID(),
			"error": err.Error(),
		})
		metrics.ScoringJobsTotal.WithLabelValues(string(StatusFailed)).Inc()
		return JobResult{Listing: job, Status: StatusFailed, Err: err}
	}

	metrics.ScoringJobsTotal.WithLabelValues(string(StatusScored)).Inc()
	return JobResult{Listing: job, Status: StatusScored, Score: &score}
}

// rank filters scored jobs below the threshold and sorts the rest descending
// by score, ties by posting recency (newer first), then by job id.
func (c *Controller) rank(results []JobResult) []JobResult {
	ranked := make([]JobResult, 0, len(results))
	for _, r := range results {
		if r.Status != StatusScored {
			continue
		}
		if r.Score.Score < c.scoreThreshold {
			continue
		}
		ranked = append(ranked, r)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score.Score != b.Score.Score {
			return a.Score.Score > b.Score.Score
		}
		if !a.Listing.PostedAt.Equal(b.Listing.PostedAt) {
			return a.Listing.PostedAt.After(b.Listing.PostedAt)
		}
		return a.Listing.ID() < b.Listing.ID()
	})
	return ranked
}
