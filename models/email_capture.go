package models

import "time"

// EmailCapture is a lead record created when a viewer supplies an email to
// pass an email-gated share link. Captures have their own retention window,
// independent from sessions.
type EmailCapture struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ShareLinkID uint       `gorm:"not null;index:idx_email_captures_share_link_id" json:"share_link_id"`
	ShareLink   *ShareLink `gorm:"foreignKey:ShareLinkID;references:ID;constraint:OnDelete:CASCADE" json:"share_link,omitempty"`
	DocumentID  uint       `gorm:"not null;index:idx_email_captures_document_id" json:"document_id"`
	Email       string     `gorm:"size:255;not null;index:idx_email_captures_email" json:"email"`
	Name        *string    `gorm:"size:255" json:"name,omitempty"`
	CapturedAt  time.Time  `gorm:"not null;default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_email_captures_captured_at" json:"captured_at"`
}

// TableName returns the table name for EmailCapture
func (EmailCapture) TableName() string { return "email_captures" }

// EmailCaptureFilter provides filter fields for repository queries
type EmailCaptureFilter struct {
	ID             *uint
	ShareLinkID    *uint
	DocumentID     *uint
	Email          *string
	CapturedAfter  *time.Time
	CapturedBefore *time.Time
}
