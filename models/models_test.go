package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func TestShareLinkHasPassword(t *testing.T) {
	link := &ShareLink{}
	assert.False(t, link.HasPassword())

	empty := ""
	link.PasswordHash = &empty
	assert.False(t, link.HasPassword())

	hash := "$2a$10$abcdefghijklmnopqrstuv"
	link.PasswordHash = &hash
	assert.True(t, link.HasPassword())
}

func TestShareLinkViewLimitReached(t *testing.T) {
	link := &ShareLink{ViewCount: 100}
	assert.False(t, link.ViewLimitReached(), "no cap means no limit")

	link.MaxViews = intPtr(100)
	assert.True(t, link.ViewLimitReached())

	link.MaxViews = intPtr(101)
	assert.False(t, link.ViewLimitReached())

	link.ViewCount = 150
	assert.True(t, link.ViewLimitReached(), "cap stays consumed once exceeded")
}

func TestDocumentIsOrphaned(t *testing.T) {
	doc := &Document{}
	assert.True(t, doc.IsOrphaned())

	owner := uint(7)
	doc.OwnerID = &owner
	assert.False(t, doc.IsOrphaned())
}

func TestAuditLogIsSecurityEvent(t *testing.T) {
	cases := []struct {
		action   string
		security bool
	}{
		{AuditActionAccessDenied, true},
		{AuditActionSuspiciousActivity, true},
		{AuditActionAccessGranted, false},
		{AuditActionSessionEnded, false},
		{AuditActionRetentionSweep, false},
	}

	for _, tc := range cases {
		log := &AuditLog{Action: tc.action}
		assert.Equal(t, tc.security, log.IsSecurityEvent(), tc.action)
	}
}

func TestAuditLogIsFailed(t *testing.T) {
	log := &AuditLog{}
	assert.False(t, log.IsFailed(), "nil success means not failed")

	log.Success = boolPtr(true)
	assert.False(t, log.IsFailed())

	log.Success = boolPtr(false)
	assert.True(t, log.IsFailed())
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "documents", Document{}.TableName())
	assert.Equal(t, "share_links", ShareLink{}.TableName())
	assert.Equal(t, "view_sessions", ViewSession{}.TableName())
	assert.Equal(t, "page_views", PageView{}.TableName())
	assert.Equal(t, "email_captures", EmailCapture{}.TableName())
	assert.Equal(t, "daily_summaries", DailySummary{}.TableName())
	assert.Equal(t, "global_aggregates", GlobalAggregate{}.TableName())
	assert.Equal(t, "audit_log", AuditLog{}.TableName())
}

func TestViewSessionDefaults(t *testing.T) {
	now := time.Now().UTC()
	s := ViewSession{StartedAt: now, LastActiveAt: now}
	assert.Zero(t, s.TotalDurationMS)
	assert.Zero(t, s.PagesViewed)
	assert.Zero(t, s.MaxPageReached)
}
