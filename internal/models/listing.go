// internal/models/listing.go
package models

import "time"

// JobListing is one discovered job posting. Listings are immutable after
// ingestion and identified by (Source, SourceID).
type JobListing struct {
	Source       string    `json:"source"`
	SourceID     string    `json:"sourceId"`
	Title        string    `json:"title"`
	Company      string    `json:"company"`
	Location     string    `json:"location"`
	Description  string    `json:"description"`
	PostedAt     time.Time `json:"postedAt"`
	Compensation string    `json:"compensation,omitempty"`
	URL          string    `json:"url,omitempty"`
}

// ID returns the composite identity used as a key everywhere downstream.
func (l JobListing) ID() string {
	return l.Source + ":" + l.SourceID
}
