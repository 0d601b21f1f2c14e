// internal/models/application.go
package models

import "time"

// ApplicationStage is one lifecycle stage of a tracked application.
type ApplicationStage string

const (
	AppStageDiscovered      ApplicationStage = "DISCOVERED"
	AppStageOutreachDrafted ApplicationStage = "OUTREACH_DRAFTED"
	AppStageApplied         ApplicationStage = "APPLIED"
	AppStageInterviewing    ApplicationStage = "INTERVIEWING"
	AppStageOffer           ApplicationStage = "OFFER"
	AppStageRejected        ApplicationStage = "REJECTED"
)

// Terminal reports whether no further transitions are allowed.
func (s ApplicationStage) Terminal() bool {
	return s == AppStageOffer || s == AppStageRejected
}

// StageTransition is one entry in an application's stage history.
type StageTransition struct {
	Stage     ApplicationStage `json:"stage"`
	Timestamp time.Time        `json:"timestamp"`
}

// ApplicationRecord tracks one job application over its lifetime. Records
// are never deleted, only stage-advanced.
type ApplicationRecord struct {
	JobID          string            `json:"jobId"`
	Company        string            `json:"company"`
	Title          string            `json:"title"`
	MatchScore     float64           `json:"matchScore"`
	Stage          ApplicationStage  `json:"stage"`
	History        []StageTransition `json:"history"`
	NextReminderAt *time.Time        `json:"nextReminderAt,omitempty"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Clone returns a deep copy of the record.
func (a *ApplicationRecord) Clone() *ApplicationRecord {
	cp := *a
	cp.History = append([]StageTransition(nil), a.History...)
	if a.NextReminderAt != nil {
		t := *a.NextReminderAt
		cp.NextReminderAt = &t
	}
	return &cp
}
