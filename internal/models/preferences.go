// internal/models/preferences.go
package models

// SearchPreferences captures what the candidate is looking for. A run takes
// a snapshot of this struct at start; it is never mutated afterwards.
type SearchPreferences struct {
	Role          string   `json:"role"`
	Location      string   `json:"location"`
	TechStack     []string `json:"techStack"`
	MinSalary     int64    `json:"minSalary"`
	Currency      string   `json:"currency"`
	ResumeRef     string   `json:"resumeRef"`
	CandidateName string   `json:"candidateName,omitempty"`
}
