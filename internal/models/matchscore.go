// internal/models/matchscore.go
package models

import "time"

// MatchScore is the scored fit between one job listing and one resume
// version. Recomputation overwrites the previous value, never merges.
type MatchScore struct {
	JobID              string    `json:"jobId"`
	ResumeVersion      string    `json:"resumeVersion"`
	Score              float64   `json:"score"`
	SemanticScore      float64   `json:"semanticScore"`
	RequirementsScore  float64   `json:"requirementsScore"`
	ContributingChunks []int     `json:"contributingChunks"`
	MatchedTags        []string  `json:"matchedTags"`
	MissingTags        []string  `json:"missingTags"`
	Rationale          string    `json:"rationale"`
	ComputedAt         time.Time `json:"computedAt"`
}
