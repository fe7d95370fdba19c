package models

import "time"

// PageView represents a single page visit within a view session.
// Rows are append-only: they are never updated after insert and are removed
// only by cascade when the owning session is deleted.
// DurationMS is the elapsed time the viewer spent on the page as reported by
// the client; the entry marker for a session carries zero.
type PageView struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	SessionID   uint         `gorm:"not null;index:idx_page_views_session_id" json:"session_id"`
	Session     *ViewSession `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE" json:"session,omitempty"`
	PageNumber  int          `gorm:"not null" json:"page_number"`
	TotalPages  int          `gorm:"not null" json:"total_pages"`
	DurationMS  int64        `gorm:"not null;default:0" json:"duration_ms"`
	ScrollDepth *int         `json:"scroll_depth,omitempty"`
	ViewedAt    time.Time    `gorm:"not null;default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_page_views_viewed_at" json:"viewed_at"`
}

// TableName returns the table name for PageView
func (PageView) TableName() string { return "page_views" }

// PageViewFilter provides filter fields for repository queries
type PageViewFilter struct {
	ID           *uint
	SessionID    *uint
	PageNumber   *int
	ViewedAfter  *time.Time
	ViewedBefore *time.Time
}
