// internal/scoring/models.go
package scoring

import "jobhunt-pipeline/internal/models"

// JobStatus is the definite outcome of one job in a batch.
type JobStatus string

const (
	StatusScored   JobStatus = "scored"
	StatusFailed   JobStatus = "scoring-failed"
	StatusUnscored JobStatus = "unscored"
)

// JobResult pairs a listing with its scoring outcome. Score is nil unless
// Status is StatusScored.
type JobResult struct {
	Listing models.JobListing
	Status  JobStatus
	Score   *models.MatchScore
	Err     error
}

// BatchResult is what the match loop hands back to the orchestrator.
// Ranked holds scored jobs at or above the threshold, in rank order.
// Results holds every job in the input batch with its definite status.
type BatchResult struct {
	Ranked          []JobResult
	Results         []JobResult
	BudgetExhausted bool
}

// Counts tallies outcomes across the batch.
func (b BatchResult) Counts() (scored, failed, unscored int) {
	for _, r := range b.Results {
		switch r.Status {
		case StatusScored:
			scored++
		case StatusFailed:
			failed++
		case StatusUnscored:
			unscored++
		}
	}
	return
}
