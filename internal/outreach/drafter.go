// internal/outreach/drafter.go
package outreach

import (
	"context"
	"time"

	"jobhunt-pipeline/internal/models"
)

// Artifact is a drafted outreach package for one job. Downstream only
// consumes success or failure; the content is passed through for review.
type Artifact struct {
	JobID       string    `json:"jobId"`
	Message     string    `json:"message"`
	CoverLetter string    `json:"coverLetter"`
	Model       string    `json:"model"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Drafter produces outreach artifacts for scored jobs.
type Drafter interface {
	Draft(ctx context.Context, job models.JobListing, resumeText string, score models.MatchScore) (*Artifact, error)
}
