// internal/models/resume.go
package models

// ResumeChunk is one retrievable span of resume text. Chunks belong to a
// single resume version; a re-upload replaces them wholesale.
type ResumeChunk struct {
	Index     int       `json:"index"`
	Section   string    `json:"section"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Resume section labels recognized by the chunker.
const (
	SectionSummary    = "summary"
	SectionExperience = "experience"
	SectionSkills     = "skills"
	SectionEducation  = "education"
	SectionProjects   = "projects"
	SectionOther      = "other"
)
