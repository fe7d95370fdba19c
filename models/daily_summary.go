package models

import (
	"encoding/json"
	"time"
)

// DailySummary is the per-document per-day rollup recomputed from raw
// session rows. Rows are keyed (document_id, summary_date) and upserted
// idempotently, so regenerating a day any number of times yields the same
// result. Summaries outlive raw sessions so historical charts survive
// session retention deletes.
// CountryCounts, DeviceCounts and RefererCounts are small frequency maps
// stored as jsonb.
type DailySummary struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DocumentID  uint      `gorm:"not null;uniqueIndex:uk_daily_summaries_document_date" json:"document_id"`
	SummaryDate time.Time `gorm:"type:date;not null;uniqueIndex:uk_daily_summaries_document_date;index:idx_daily_summaries_summary_date" json:"summary_date"`

	TotalViews      int64 `gorm:"not null;default:0" json:"total_views"`
	UniqueViews     int64 `gorm:"not null;default:0" json:"unique_views"`
	TotalDurationMS int64 `gorm:"not null;default:0" json:"total_duration_ms"`
	AvgDurationMS   int64 `gorm:"not null;default:0" json:"avg_duration_ms"`
	EmailCaptures   int64 `gorm:"not null;default:0" json:"email_captures"`

	CountryCounts json.RawMessage `gorm:"type:jsonb" json:"country_counts,omitempty"`
	DeviceCounts  json.RawMessage `gorm:"type:jsonb" json:"device_counts,omitempty"`
	RefererCounts json.RawMessage `gorm:"type:jsonb" json:"referer_counts,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for DailySummary
func (DailySummary) TableName() string { return "daily_summaries" }

// DailySummaryFilter provides filter fields for repository queries
type DailySummaryFilter struct {
	ID         *uint
	DocumentID *uint
	DateAfter  *time.Time
	DateBefore *time.Time
}
