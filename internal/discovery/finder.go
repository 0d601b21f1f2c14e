// internal/discovery/finder.go
package discovery

import (
	"context"

	"jobhunt-pipeline/internal/models"
)

// Finder discovers job listings matching the candidate's preferences.
// Implementations may return an empty slice; that is not an error.
type Finder interface {
	Find(ctx context.Context, prefs models.SearchPreferences) ([]models.JobListing, error)
}
