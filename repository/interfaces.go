// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/docpulse/docpulse/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// DocumentRepository defines operations for uploaded documents
type DocumentRepository interface {
	Repository[models.Document, models.DocumentFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	UpdateNumPages(ctx context.Context, documentID uint, numPages int) error
	ListOrphanedBefore(ctx context.Context, cutoff time.Time) ([]*models.Document, error)
	DeleteByID(ctx context.Context, documentID uint) error
}

// ShareLinkRepository defines operations for share links
type ShareLinkRepository interface {
	Repository[models.ShareLink, models.ShareLinkFilter]
	ByToken(ctx context.Context, token string) (*models.ShareLink, error)
	// IncrementViewCounts bumps view_count (and unique_view_count when unique)
	// in a single conditional UPDATE so concurrent accesses never lose counts.
	IncrementViewCounts(ctx context.Context, shareLinkID uint, unique bool) error
}

// SessionRollup is one document's recomputed totals for a calendar day
type SessionRollup struct {
	DocumentID      uint
	TotalViews      int64
	UniqueViews     int64
	TotalDurationMS int64
}

// ViewSessionRepository defines operations for view sessions
type ViewSessionRepository interface {
	Repository[models.ViewSession, models.ViewSessionFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.ViewSession, error)
	// ExistsPrior reports whether the share link already has a session with the
	// same viewer fingerprint (and email, when supplied). Drives is_unique.
	ExistsPrior(ctx context.Context, shareLinkID uint, ipHash string, email *string) (bool, error)
	// Touch extends last_active_at and re-marks the session active (heartbeat path)
	Touch(ctx context.Context, sessionID uint, at time.Time, currentPage *int) error
	// ApplyPageView folds one page transition into the session counters
	// in a single UPDATE
	ApplyPageView(ctx context.Context, sessionID uint, page int, durationMS int64, at time.Time) error
	// Close sets is_active=false; duration/pages fields are overwritten only
	// when non-nil (last write wins, session-end path only)
	Close(ctx context.Context, sessionID uint, totalDurationMS *int64, pagesViewed, maxPageReached *int, at time.Time) error
	// ReapIdle closes every active session not heard from since cutoff,
	// without touching durations. Returns the number of sessions closed.
	ReapIdle(ctx context.Context, cutoff time.Time, at time.Time) (int64, error)
	// DeleteExpired removes sessions past their retention date or older than
	// the fallback cutoff. Page views go with them by cascade.
	DeleteExpired(ctx context.Context, now time.Time, fallbackCutoff time.Time) (int64, error)
	// RollupRange aggregates sessions started in [from, to) grouped by document
	RollupRange(ctx context.Context, from, to time.Time, documentID *uint) ([]*SessionRollup, error)
	// ListForRange returns the coarse dimension columns (country/device/referer)
	// for sessions started in [from, to), for frequency-map folding
	ListForRange(ctx context.Context, from, to time.Time, documentID *uint) ([]*models.ViewSession, error)
	// GlobalTotals recomputes the platform-wide counters from raw rows
	GlobalTotals(ctx context.Context) (*SessionRollup, error)
}

// PageViewRepository defines operations for page view rows
type PageViewRepository interface {
	Repository[models.PageView, models.PageViewFilter]
	ListBySession(ctx context.Context, sessionID uint) ([]*models.PageView, error)
	// MaxTotalPages returns the largest total_pages reported for a document's
	// sessions, used to refresh the document's page count opportunistically
	MaxTotalPages(ctx context.Context, documentID uint) (int, error)
	// TopPages returns per-page view counts for a document, most viewed first
	TopPages(ctx context.Context, documentID uint, limit int) ([]*PageCount, error)
}

// PageCount is a per-page view tally for stats reads
type PageCount struct {
	PageNumber int
	Views      int64
}

// EmailCaptureRepository defines operations for captured viewer emails
type EmailCaptureRepository interface {
	Repository[models.EmailCapture, models.EmailCaptureFilter]
	CountPerDocument(ctx context.Context, from, to time.Time) (map[uint]int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// DailySummaryRepository defines operations for per-document daily rollups
type DailySummaryRepository interface {
	Repository[models.DailySummary, models.DailySummaryFilter]
	// Upsert writes a recomputed summary keyed (document_id, summary_date);
	// re-running for the same key overwrites with identical results
	Upsert(ctx context.Context, summary *models.DailySummary) error
	ByDocumentAndDate(ctx context.Context, documentID uint, date time.Time) (*models.DailySummary, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// GlobalAggregateRepository defines operations for the singleton platform counters
type GlobalAggregateRepository interface {
	Get(ctx context.Context) (*models.GlobalAggregate, error)
	// EnsureRow creates the singleton row if it does not exist yet
	EnsureRow(ctx context.Context) error
	// ApplySessionStart applies the incremental path for a new session
	ApplySessionStart(ctx context.Context, unique bool) error
	// ApplySessionEnd accumulates a session's final duration delta
	ApplySessionEnd(ctx context.Context, durationDeltaMS int64) error
	ApplyPageView(ctx context.Context) error
	ApplyEmailCapture(ctx context.Context) error
	// Rebaseline overwrites the row with totals recomputed from raw rows
	Rebaseline(ctx context.Context, totals *SessionRollup, pageViews, emailCaptures int64) error
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByDocument(ctx context.Context, documentID uint, limit, offset int) ([]*models.AuditLog, error)
	ListSecurityEvents(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
	// CountDistinctIPs returns how many distinct viewer fingerprints touched a document
	CountDistinctIPs(ctx context.Context, documentID uint) (int64, error)
}
