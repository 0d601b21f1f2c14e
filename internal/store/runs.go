// internal/store/runs.go
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

// RunStore persists pipeline run snapshots.
type RunStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRunStore(db *sql.DB, log logger.Logger) *RunStore {
	return &RunStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"store": "runs"}),
	}
}

// Save upserts the run snapshot. Called by the orchestrator on every stage
// transition so that a restart can report the last known state.
func (s *RunStore) Save(ctx context.Context, run *models.PipelineRun) error {
	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(fmt.Errorf("marshal run errors: %w", err))
	}
	stageLogJSON, err := json.Marshal(run.StageLog)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(fmt.Errorf("marshal stage log: %w", err))
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (
			id, stage, status, errors, stage_log, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			stage = EXCLUDED.stage,
			status = EXCLUDED.status,
			errors = EXCLUDED.errors,
			stage_log = EXCLUDED.stage_log,
			completed_at = EXCLUDED.completed_at`,
		run.ID,
		string(run.Stage),
		string(run.Status),
		errorsJSON,
		stageLogJSON,
		run.StartedAt,
		nullableTime(run.CompletedAt),
	)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// Get loads one run snapshot by id.
func (s *RunStore) Get(ctx context.Context, runID string) (*models.PipelineRun, error) {
	var (
		run          models.PipelineRun
		stage        string
		status       string
		errorsJSON   []byte
		stageLogJSON []byte
		completedAt  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, stage, status, errors, stage_log, started_at, completed_at
		FROM pipeline_runs WHERE id = $1`, runID).
		Scan(&run.ID, &stage, &status, &errorsJSON, &stageLogJSON, &run.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("select pipeline_runs", err)
	}

	run.Stage = models.Stage(stage)
	run.Status = models.RunStatus(status)
	if completedAt.Valid {
		run.CompletedAt = completedAt.Time
	}
	if err := json.Unmarshal(errorsJSON, &run.Errors); err != nil {
		return nil, errors.NewQueryExecutionFailedError("decode run errors", err)
	}
	if err := json.Unmarshal(stageLogJSON, &run.StageLog); err != nil {
		return nil, errors.NewQueryExecutionFailedError("decode stage log", err)
	}
	return &run, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
