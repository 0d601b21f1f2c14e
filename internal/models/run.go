// internal/models/run.go
package models

import "time"

// Stage is one phase of the pipeline state machine.
type Stage string

const (
	StageInit     Stage = "INIT"
	StageFinding  Stage = "FINDING"
	StageMatching Stage = "MATCHING"
	StageOutreach Stage = "OUTREACH"
	StageTracking Stage = "TRACKING"
	StageDone     Stage = "DONE"
	StageFailed   Stage = "FAILED"
)

// Terminal reports whether the stage is absorbing.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// RunStatus qualifies how a run finished.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusNoResults RunStatus = "no-results"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// StageResult records the outcome of one stage invocation.
type StageResult struct {
	Stage       Stage     `json:"stage"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
	Error       string    `json:"error,omitempty"`
}

// RunError is one entry in the run's accumulated error list.
type RunError struct {
	Stage     Stage     `json:"stage"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PipelineRun is the mutable state of one end-to-end execution. Only the
// orchestrator goroutine owning the run writes to it; everyone else sees
// deep-copied snapshots.
type PipelineRun struct {
	ID          string            `json:"id"`
	Preferences SearchPreferences `json:"preferences"`
	Stage       Stage             `json:"stage"`
	Status      RunStatus         `json:"status"`
	StageLog    []StageResult     `json:"stageLog"`
	Errors      []RunError        `json:"errors"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt time.Time         `json:"completedAt,omitempty"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (r *PipelineRun) Clone() *PipelineRun {
	cp := *r
	cp.StageLog = append([]StageResult(nil), r.StageLog...)
	cp.Errors = append([]RunError(nil), r.Errors...)
	cp.Preferences.TechStack = append([]string(nil), r.Preferences.TechStack...)
	return &cp
}
