package models

import "time"

// GlobalAggregateID is the primary key of the singleton aggregate row
const GlobalAggregateID = 1

// GlobalAggregate is the platform-wide counter row kept hot by the
// incremental aggregation path so dashboards never scan session history.
// It is an approximation: retry duplicates may drift it slightly, and a full
// recomputation re-baselines it from raw rows.
// All mutations go through single conditional UPDATE statements, never
// read-modify-write in application code.
type GlobalAggregate struct {
	ID              uint  `gorm:"primaryKey" json:"id"`
	TotalViews      int64 `gorm:"not null;default:0" json:"total_views"`
	UniqueViews     int64 `gorm:"not null;default:0" json:"unique_views"`
	TotalDurationMS int64 `gorm:"not null;default:0" json:"total_duration_ms"`
	AvgDurationMS   int64 `gorm:"not null;default:0" json:"avg_duration_ms"`
	TotalPageViews  int64 `gorm:"not null;default:0" json:"total_page_views"`
	EmailCaptures   int64 `gorm:"not null;default:0" json:"email_captures"`

	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for GlobalAggregate
func (GlobalAggregate) TableName() string { return "global_aggregates" }
