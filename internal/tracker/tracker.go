// internal/tracker/tracker.go
package tracker

import (
	"sort"
	"sync"
	"time"

	"jobhunt-pipeline/internal/common/config"
	"jobhunt-pipeline/internal/common/errors"
	"jobhunt-pipeline/internal/common/logger"
	"jobhunt-pipeline/internal/models"
)

// allowedTransitions is the forward edge set of the application lifecycle.
// REJECTED is additionally reachable from any non-terminal stage.
var allowedTransitions = map[models.ApplicationStage]models.ApplicationStage{
	models.AppStageDiscovered:      models.AppStageOutreachDrafted,
	models.AppStageOutreachDrafted: models.AppStageApplied,
	models.AppStageApplied:         models.AppStageInterviewing,
	models.AppStageInterviewing:    models.AppStageOffer,
}

// Tracker holds application records and enforces the stage machine. Records
// are registered once per job and only ever advance; they are never removed.
type Tracker struct {
	mu           sync.RWMutex
	records      map[string]*models.ApplicationRecord
	reminderDays map[models.ApplicationStage]int
	now          func() time.Time
	logger       logger.Logger
}

func New(cfg config.TrackerConfig, log logger.Logger) *Tracker {
	reminderDays := make(map[models.ApplicationStage]int, len(cfg.ReminderDays))
	for stage, days := range cfg.ReminderDays {
		reminderDays[models.ApplicationStage(stage)] = days
	}
	return &Tracker{
		records:      make(map[string]*models.ApplicationRecord),
		reminderDays: reminderDays,
		now:          time.Now,
		logger:       log.WithFields(map[string]interface{}{"component": "tracker"}),
	}
}

// Register creates a DISCOVERED record for a job selected during a run.
// Registering an already-tracked job is a no-op returning the existing record.
func (t *Tracker) Register(job models.JobListing, matchScore float64) *models.ApplicationRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.records[job.ID()]; ok {
		return existing.Clone()
	}

	now := t.now().UTC()
	rec := &models.ApplicationRecord{
		JobID:      job.ID(),
		Company:    job.Company,
		Title:      job.Title,
		MatchScore: matchScore,
		Stage:      models.AppStageDiscovered,
		History:    []models.StageTransition{{Stage: models.AppStageDiscovered, Timestamp: now}},
		UpdatedAt:  now,
	}
	rec.NextReminderAt = t.nextReminder(models.AppStageDiscovered, now)
	t.records[job.ID()] = rec

	t.logger.Info("application registered", map[string]interface{}{
		"jobId":   job.ID(),
		"company": job.Company,
	})
	return rec.Clone()
}

// Advance moves a tracked application to target. The transition must follow
// the allowed edge set; REJECTED is accepted from any non-terminal stage.
// On an illegal transition the record is left untouched and an
// INVALID_TRANSITION error is returned.
func (t *Tracker) Advance(jobID string, target models.ApplicationStage) (*models.ApplicationRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[jobID]
	if !ok {
		return nil, errors.NewValidationFailedError("unknown job id: " + jobID)
	}
	if !transitionAllowed(rec.Stage, target) {
		return nil, errors.NewInvalidTransitionError(jobID, string(rec.Stage), string(target))
	}

	now := t.now().UTC()
	rec.Stage = target
	rec.History = append(rec.History, models.StageTransition{Stage: target, Timestamp: now})
	rec.NextReminderAt = t.nextReminder(target, now)
	rec.UpdatedAt = now

	t.logger.Info("application advanced", map[string]interface{}{
		"jobId": jobID,
		"stage": string(target),
	})
	return rec.Clone(), nil
}

// Get returns a snapshot of one record.
func (t *Tracker) Get(jobID string) (*models.ApplicationRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[jobID]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// DueReminders returns snapshots of all records whose reminder time has
// elapsed at now, oldest reminder first.
func (t *Tracker) DueReminders(now time.Time) []*models.ApplicationRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var due []*models.ApplicationRecord
	for _, rec := range t.records {
		if rec.NextReminderAt != nil && !rec.NextReminderAt.After(now) {
			due = append(due, rec.Clone())
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextReminderAt.Before(*due[j].NextReminderAt)
	})
	return due
}

// ClearReminder drops the pending reminder after it has been delivered.
func (t *Tracker) ClearReminder(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[jobID]; ok {
		rec.NextReminderAt = nil
	}
}

// nextReminder computes the reminder time from the stage interval table.
// Terminal stages and stages without an interval get no reminder.
func (t *Tracker) nextReminder(stage models.ApplicationStage, from time.Time) *time.Time {
	if stage.Terminal() {
		return nil
	}
	days, ok := t.reminderDays[stage]
	if !ok || days <= 0 {
		return nil
	}
	at := from.Add(time.Duration(days) * 24 * time.Hour)
	return &at
}

func transitionAllowed(from, to models.ApplicationStage) bool {
	if from.Terminal() {
		return false
	}
	if to == models.AppStageRejected {
		return true
	}
	return allowedTransitions[from] == to
}
