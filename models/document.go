// Package models contains domain entities and business models for the document analytics platform
package models

import (
	"time"

	"github.com/google/uuid"
)

// Document represents an uploaded PDF tracked by the platform.
// Upload and storage management live outside this service; the pipeline only
// needs the owning row for share links, aggregation keys, and orphan cleanup.
// OwnerID is nullable: documents whose owner account was deleted become
// orphans and are swept after a grace period.
type Document struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_documents_uuid" json:"uuid"`
	OwnerID    *uint     `gorm:"index:idx_documents_owner_id" json:"owner_id,omitempty"`
	Title      string    `gorm:"size:255;not null" json:"title"`
	StorageKey string    `gorm:"type:text;not null" json:"storage_key"`
	NumPages   int       `gorm:"default:0" json:"num_pages"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_documents_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for Document
func (Document) TableName() string { return "documents" }

// IsOrphaned reports whether the document has no valid owner
func (d *Document) IsOrphaned() bool {
	return d.OwnerID == nil
}

// DocumentFilter provides filter fields for repository queries
type DocumentFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	OwnerID       *uint
	Orphaned      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
