package models

import "time"

// ShareLink represents a published, tokenized view surface for one document.
// Token is the short unique string end users distribute.
// PasswordHash, ExpiresAt, MaxViews and EmailGated are the owner-controlled
// access policy; ViewCount and UniqueViewCount are maintained by the access
// gate via atomic counter updates and must satisfy
// unique_view_count <= view_count at all times.
type ShareLink struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Token        string     `gorm:"size:64;not null;uniqueIndex:uk_share_links_token" json:"token"`
	DocumentID   uint       `gorm:"not null;index:idx_share_links_document_id" json:"document_id"`
	Document     *Document  `gorm:"foreignKey:DocumentID;references:ID;constraint:OnDelete:CASCADE" json:"document,omitempty"`
	PasswordHash *string    `gorm:"type:text" json:"-"`
	ExpiresAt    *time.Time `gorm:"index:idx_share_links_expires_at" json:"expires_at,omitempty"`
	MaxViews     *int       `json:"max_views,omitempty"`
	EmailGated   *bool      `gorm:"default:false" json:"email_gated"`
	IsActive     *bool      `gorm:"default:true;index:idx_share_links_is_active" json:"is_active"`

	ViewCount       int64 `gorm:"not null;default:0" json:"view_count"`
	UniqueViewCount int64 `gorm:"not null;default:0" json:"unique_view_count"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_share_links_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for ShareLink
func (ShareLink) TableName() string { return "share_links" }

// HasPassword reports whether the link requires a password
func (s *ShareLink) HasPassword() bool {
	return s.PasswordHash != nil && *s.PasswordHash != ""
}

// ViewLimitReached reports whether the max-view cap has been consumed
func (s *ShareLink) ViewLimitReached() bool {
	return s.MaxViews != nil && s.ViewCount >= int64(*s.MaxViews)
}

// ShareLinkFilter provides filter fields for repository queries
type ShareLinkFilter struct {
	ID            *uint
	Token         *string
	DocumentID    *uint
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
