package domain

import "time"

// LinkSnapshot is page metadata fetched for a link seen during a run.
// Re-fetching the same (run, url) merges into the existing row.
type LinkSnapshot struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	RunID        string     `json:"run_id" gorm:"index:idx_run_url,unique;not null"`
	URL          string     `json:"url" gorm:"index:idx_run_url,unique;not null"`
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty" gorm:"type:text"`
	CanonicalURL string     `json:"canonical_url,omitempty"`
	SocialLinks  StringList `json:"social_links" gorm:"type:jsonb"`
	FetchedAt    time.Time  `json:"fetched_at"`
}

// TableName specifies the table name for GORM
func (LinkSnapshot) TableName() string {
	return "link_snapshots"
}
