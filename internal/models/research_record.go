package models

import "time"

// Record statuses. A record is immutable after publishing except for the
// Notion bookkeeping fields.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusPublished = "published"
	StatusFailed    = "failed"
)

type ResearchRecord struct {
	ID           uint `gorm:"primaryKey"`
	Query        string
	Title        string
	SearchQuery  string // the arXiv query the planner produced
	Digest       string `gorm:"type:text"`
	Status       string `gorm:"default:pending"`
	UsedTokens   int64
	NotionPageID string
	NotionURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
