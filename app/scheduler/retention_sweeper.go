package scheduler

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/docpulse/docpulse/app/middleware"
	"github.com/docpulse/docpulse/app/services"
	"github.com/docpulse/docpulse/models"
	"github.com/docpulse/docpulse/repository"
	"github.com/docpulse/docpulse/utils"
	"github.com/robfig/cron/v3"
)

// SweepReport is the outcome of one retention pass. Each category is swept
// independently, so a failure in one leaves the others' counts intact.
type SweepReport struct {
	SessionsDeleted  int64 `json:"sessions_deleted"`
	SummariesDeleted int64 `json:"summaries_deleted"`
	EmailsDeleted    int64 `json:"emails_deleted"`
	DocumentsDeleted int64 `json:"documents_deleted"`
	Errors           int   `json:"errors"`
}

// RetentionSweeper enforces the advertised data retention windows on a daily schedule
type RetentionSweeper struct {
	sessionRepo  repository.ViewSessionRepository
	summaryRepo  repository.DailySummaryRepository
	emailRepo    repository.EmailCaptureRepository
	documentRepo repository.DocumentRepository
	auditRepo    repository.AuditLogRepository
	storage      services.ObjectStorage
	clock        Clock
	logger       *log.Logger
	schedule     string

	cron *cron.Cron
}

func NewRetentionSweeper(
	sessionRepo repository.ViewSessionRepository,
	summaryRepo repository.DailySummaryRepository,
	emailRepo repository.EmailCaptureRepository,
	documentRepo repository.DocumentRepository,
	auditRepo repository.AuditLogRepository,
	storage services.ObjectStorage,
	clock Clock,
	logger *log.Logger,
	schedule string,
) *RetentionSweeper {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	if schedule == "" {
		schedule = "30 3 * * *"
	}

	return &RetentionSweeper{
		sessionRepo:  sessionRepo,
		summaryRepo:  summaryRepo,
		emailRepo:    emailRepo,
		documentRepo: documentRepo,
		auditRepo:    auditRepo,
		storage:      storage,
		clock:        clock,
		logger:       logger,
		schedule:     schedule,
	}
}

// Start registers the daily sweep with a cron runner and returns a stop function
func (s *RetentionSweeper) Start(parent context.Context) (func(), error) {
	ctx, cancel := context.WithCancel(parent)

	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(s.schedule, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		cancel()
		return nil, err
	}
	s.cron = c
	c.Start()

	return func() {
		cancel()
		stopCtx := c.Stop()
		<-stopCtx.Done()
	}, nil
}

// RunOnce performs a single retention pass across all four data categories
func (s *RetentionSweeper) RunOnce(ctx context.Context) SweepReport {
	now := s.clock.Now()
	var report SweepReport

	// Raw sessions: per-row retention date, with a hard fallback cutoff for
	// rows written before retention dates were stamped
	sessions, err := s.sessionRepo.DeleteExpired(ctx, now, now.Add(-utils.SessionRetention))
	if err != nil {
		s.logger.Printf("sweeper: delete expired sessions failed: %v", err)
		report.Errors++
	} else {
		report.SessionsDeleted = sessions
		middleware.RecordRetentionDeleted("view_sessions", sessions)
	}

	summaries, err := s.summaryRepo.DeleteOlderThan(ctx, utils.SummaryCutoff(now))
	if err != nil {
		s.logger.Printf("sweeper: delete old summaries failed: %v", err)
		report.Errors++
	} else {
		report.SummariesDeleted = summaries
		middleware.RecordRetentionDeleted("daily_summaries", summaries)
	}

	emails, err := s.emailRepo.DeleteOlderThan(ctx, now.Add(-utils.EmailCaptureRetention))
	if err != nil {
		s.logger.Printf("sweeper: delete old email captures failed: %v", err)
		report.Errors++
	} else {
		report.EmailsDeleted = emails
		middleware.RecordRetentionDeleted("email_captures", emails)
	}

	// Orphan sweep needs the object store; without it the rows would be
	// deleted while their blobs leak
	if s.storage != nil {
		docs, errs := s.sweepOrphanedDocuments(ctx, now.Add(-utils.OrphanDocumentRetention))
		report.DocumentsDeleted = docs
		report.Errors += errs
		middleware.RecordRetentionDeleted("documents", docs)
	}

	s.logger.Printf("sweeper: retention pass done: sessions=%d summaries=%d emails=%d documents=%d errors=%d",
		report.SessionsDeleted, report.SummariesDeleted, report.EmailsDeleted, report.DocumentsDeleted, report.Errors)

	success := report.Errors == 0
	audit := &models.AuditLog{
		Action:    models.AuditActionRetentionSweep,
		Metadata:  mustMetadataJSON(report),
		Success:   &success,
		CreatedAt: now,
	}
	if err := s.auditRepo.Save(ctx, audit); err != nil {
		s.logger.Printf("sweeper: save audit log failed: %v", err)
	}

	return report
}

// sweepOrphanedDocuments deletes ownerless documents past the grace period.
// The stored object is removed first, but a storage failure only counts as
// an error; the row still goes so the retention window holds regardless of
// blob store health.
func (s *RetentionSweeper) sweepOrphanedDocuments(ctx context.Context, cutoff time.Time) (int64, int) {
	orphans, err := s.documentRepo.ListOrphanedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Printf("sweeper: list orphaned documents failed: %v", err)
		return 0, 1
	}

	var deleted int64
	var errs int
	for _, doc := range orphans {
		if err := s.storage.DeleteObject(ctx, doc.StorageKey); err != nil {
			s.logger.Printf("sweeper: delete stored object failed for document id=%d key=%s: %v", doc.ID, doc.StorageKey, err)
			errs++
		}
		if err := s.documentRepo.DeleteByID(ctx, doc.ID); err != nil {
			s.logger.Printf("sweeper: delete document row failed for id=%d: %v", doc.ID, err)
			errs++
			continue
		}
		deleted++
	}
	return deleted, errs
}

func mustMetadataJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
