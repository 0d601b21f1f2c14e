// internal/store/listings.go
package store

import (
	"context"
	"database/sql"

	"jobhunt-pipeline/internal/common/errors"
	"jobhunt-pipeline/internal/common/logger"
	"jobhunt-pipeline/internal/models"
)

// ListingStore persists discovered job listings keyed by (source, source_id).
// Listings are immutable after ingestion: conflicts are ignored, not merged.
type ListingStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewListingStore(db *sql.DB, log logger.Logger) *ListingStore {
	return &ListingStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"store": "listings"}),
	}
}

func (s *ListingStore) SaveAll(ctx context.Context, listings []models.JobListing) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	for _, l := range listings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO job_listings (
				source, source_id, title, company, location,
				description, posted_at, compensation, url
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (source, source_id) DO NOTHING`,
			l.Source, l.SourceID, l.Title, l.Company, l.Location,
			l.Description, l.PostedAt, l.Compensation, l.URL,
		)
		if err != nil {
			return errors.NewDatabaseInsertFailedError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	s.logger.Debug("listings saved", map[string]interface{}{"count": len(listings)})
	return nil
}

func (s *ListingStore) Get(ctx context.Context, source, sourceID string) (*models.JobListing, error) {
	var l models.JobListing
	err := s.db.QueryRowContext(ctx, `
		SELECT source, source_id, title, company, location,
		       description, posted_at, compensation, url
		FROM job_listings WHERE source = $1 AND source_id = $2`,
		source, sourceID).
		Scan(&l.Source, &l.SourceID, &l.Title, &l.Company, &l.Location,
			&l.Description, &l.PostedAt, &l.Compensation, &l.URL)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("select job_listings", err)
	}
	return &l, nil
}
