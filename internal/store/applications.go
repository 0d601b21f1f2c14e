// internal/store/applications.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"jobhunt-pipeline/internal/common/errors"
	"jobhunt-pipeline/internal/common/logger"
	"jobhunt-pipeline/internal/models"
)

// ApplicationStore persists application records with their stage-history log.
type ApplicationStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewApplicationStore(db *sql.DB, log logger.Logger) *ApplicationStore {
	return &ApplicationStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"store": "applications"}),
	}
}

// Save upserts the record. The stage history is stored whole: the tracker is
// the source of truth for transition legality, the store only persists.
func (s *ApplicationStore) Save(ctx context.Context, rec *models.ApplicationRecord) error {
	historyJSON, err := json.Marshal(rec.History)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(fmt.Errorf("marshal history: %w", err))
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO applications (
			job_id, company, title, match_score, stage,
			history, next_reminder_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job_id) DO UPDATE SET
			stage = EXCLUDED.stage,
			history = EXCLUDED.history,
			next_reminder_at = EXCLUDED.next_reminder_at,
			updated_at = EXCLUDED.updated_at`,
		rec.JobID, rec.Company, rec.Title, rec.MatchScore, string(rec.Stage),
		historyJSON, rec.NextReminderAt, rec.UpdatedAt,
	)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// Get loads one record, or nil when the job is not tracked.
func (s *ApplicationStore) Get(ctx context.Context, jobID string) (*models.ApplicationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, company, title, match_score, stage,
		       history, next_reminder_at, updated_at
		FROM applications WHERE job_id = $1`, jobID)

	rec, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("select applications", err)
	}
	return rec, nil
}

// ListDue returns records whose reminder time has elapsed at now.
func (s *ApplicationStore) ListDue(ctx context.Context, now time.Time) ([]*models.ApplicationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, company, title, match_score, stage,
		       history, next_reminder_at, updated_at
		FROM applications
		WHERE next_reminder_at IS NOT NULL AND next_reminder_at <= $1
		ORDER BY next_reminder_at`, now)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("select due applications", err)
	}
	defer rows.Close()

	var due []*models.ApplicationRecord
	for rows.Next() {
		rec, err := scanApplication(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan applications", err)
		}
		due = append(due, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("iterate applications", err)
	}
	return due, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*models.ApplicationRecord, error) {
	var (
		rec            models.ApplicationRecord
		stage          string
		historyJSON    []byte
		nextReminderAt sql.NullTime
	)
	err := row.Scan(&rec.JobID, &rec.Company, &rec.Title, &rec.MatchScore, &stage,
		&historyJSON, &nextReminderAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Stage = models.ApplicationStage(stage)
	if nextReminderAt.Valid {
		t := nextReminderAt.Time
		rec.NextReminderAt = &t
	}
	if err := json.Unmarshal(historyJSON, &rec.History); err != nil {
		return nil, err
	}
	return &rec, nil
}
