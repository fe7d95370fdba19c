package models

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	DocumentID   *uint           `gorm:"index:idx_audit_document_id" json:"document_id,omitempty"`
	ShareLinkID  *uint           `gorm:"index:idx_audit_share_link_id" json:"share_link_id,omitempty"`
	SessionUUID  *string         `gorm:"size:64;index:idx_audit_session_uuid" json:"session_uuid,omitempty"`
	Action       string          `gorm:"size:64;not null;index:idx_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPHash       *string         `gorm:"size:64;index:idx_audit_ip_hash" json:"ip_hash,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionShareLinkCreated   = "share_link_created"
	AuditActionAccessGranted      = "access_granted"
	AuditActionAccessDenied       = "access_denied"
	AuditActionSessionStarted     = "session_started"
	AuditActionSessionEnded       = "session_ended"
	AuditActionEmailCaptured      = "email_captured"
	AuditActionDocumentUploaded   = "document_uploaded"
	AuditActionRetentionSweep     = "retention_sweep"
	AuditActionSummaryGenerated   = "summary_generated"
	AuditActionSuspiciousActivity = "suspicious_activity"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	DocumentID    *uint
	ShareLinkID   *uint
	Action        *string
	Success       *bool
	IPHash        *string
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}

func (a *AuditLog) IsSecurityEvent() bool {
	securityActions := map[string]bool{
		AuditActionAccessDenied:       true,
		AuditActionSuspiciousActivity: true,
	}
	return securityActions[a.Action]
}
