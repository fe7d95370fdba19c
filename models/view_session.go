package models

import (
	"time"

	"github.com/google/uuid"
)

// ViewSession represents one continuous viewing attempt against a share link.
// UUID is the opaque session id handed to the client emitter.
// IPHash is a sha256 fingerprint of the viewer IP; the raw IP is never stored.
// TotalDurationMS is authoritative only from an explicit session-end event
// and is monotonically non-decreasing while the session is active; the idle
// reaper flips IsActive but never touches duration.
// DataRetentionDate is fixed at creation (started_at + retention window) and
// drives the retention sweeper.
type ViewSession struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_view_sessions_uuid" json:"uuid"`
	ShareLinkID uint       `gorm:"not null;index:idx_view_sessions_share_link_id" json:"share_link_id"`
	ShareLink   *ShareLink `gorm:"foreignKey:ShareLinkID;references:ID;constraint:OnDelete:CASCADE" json:"share_link,omitempty"`
	DocumentID  uint       `gorm:"not null;index:idx_view_sessions_document_id" json:"document_id"`

	ViewerEmail *string `gorm:"size:255;index:idx_view_sessions_viewer_email" json:"viewer_email,omitempty"`
	ViewerName  *string `gorm:"size:255" json:"viewer_name,omitempty"`
	IPHash      string  `gorm:"size:64;not null;index:idx_view_sessions_ip_hash" json:"ip_hash"`
	Country     *string `gorm:"size:2;index:idx_view_sessions_country" json:"country,omitempty"`
	Device      string  `gorm:"size:32" json:"device"`
	Browser     string  `gorm:"size:32" json:"browser"`
	OS          string  `gorm:"size:32" json:"os"`
	Referer     *string `gorm:"type:text" json:"referer,omitempty"`

	StartedAt       time.Time `gorm:"not null;default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_view_sessions_started_at" json:"started_at"`
	LastActiveAt    time.Time `gorm:"not null;default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_view_sessions_last_active_at" json:"last_active_at"`
	TotalDurationMS int64     `gorm:"not null;default:0" json:"total_duration_ms"`
	PagesViewed     int       `gorm:"default:0" json:"pages_viewed"`
	MaxPageReached  int       `gorm:"default:0" json:"max_page_reached"`
	CurrentPage     int       `gorm:"default:0" json:"current_page"`

	IsUnique *bool `gorm:"default:false" json:"is_unique"`
	IsActive *bool `gorm:"default:true;index:idx_view_sessions_is_active" json:"is_active"`

	DataRetentionDate time.Time `gorm:"not null;index:idx_view_sessions_data_retention_date" json:"data_retention_date"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for ViewSession
func (ViewSession) TableName() string { return "view_sessions" }

// ViewSessionFilter provides filter fields for repository queries
type ViewSessionFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	ShareLinkID   *uint
	DocumentID    *uint
	ViewerEmail   *string
	IPHash        *string
	Country       *string
	Device        *string
	IsUnique      *bool
	IsActive      *bool
	StartedAfter  *time.Time
	StartedBefore *time.Time
}
