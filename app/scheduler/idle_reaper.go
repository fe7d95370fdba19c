// Package scheduler
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/docpulse/docpulse/app/middleware"
	"github.com/docpulse/docpulse/models"
	"github.com/docpulse/docpulse/repository"
	"github.com/docpulse/docpulse/utils"
)

// Clock abstracts time for schedulers so tests can pin "now"
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return utils.UTCNow() }

// IdleReaper periodically closes view sessions that stopped sending heartbeats.
// Reaped sessions keep their accumulated counters; no synthetic duration is added.
type IdleReaper struct {
	sessionRepo repository.ViewSessionRepository
	auditRepo   repository.AuditLogRepository
	clock       Clock
	logger      *log.Logger
	interval    time.Duration
	threshold   time.Duration
}

func NewIdleReaper(
	sessionRepo repository.ViewSessionRepository,
	auditRepo repository.AuditLogRepository,
	clock Clock,
	logger *log.Logger,
	interval time.Duration,
	threshold time.Duration,
) *IdleReaper {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	if interval <= 0 {
		interval = utils.ReaperInterval
	}
	if threshold <= 0 {
		threshold = utils.IdleThreshold
	}

	return &IdleReaper{
		sessionRepo: sessionRepo,
		auditRepo:   auditRepo,
		clock:       clock,
		logger:      logger,
		interval:    interval,
		threshold:   threshold,
	}
}

// Start launches the reaper loop in a background goroutine and returns a stop function
func (r *IdleReaper) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.RunOnce(ctx)
			}
		}
	}()

	return cancel
}

// RunOnce performs a single reap pass and returns the number of sessions closed
func (r *IdleReaper) RunOnce(ctx context.Context) int64 {
	now := r.clock.Now()
	cutoff := now.Add(-r.threshold)

	reaped, err := r.sessionRepo.ReapIdle(ctx, cutoff, now)
	if err != nil {
		r.logger.Printf("reaper: reap idle sessions failed: %v", err)
		return 0
	}
	if reaped == 0 {
		return 0
	}

	r.logger.Printf("reaper: closed %d idle sessions (cutoff=%s)", reaped, cutoff.Format(time.RFC3339))
	middleware.RecordReapedSessions(reaped)

	description := "idle sessions closed by reaper"
	audit := &models.AuditLog{
		Action:      models.AuditActionSessionEnded,
		Description: &description,
		Metadata:    mustMetadataJSON(map[string]any{"reaped": reaped, "cutoff": cutoff.Format(time.RFC3339)}),
		CreatedAt:   now,
	}
	if err := r.auditRepo.Save(ctx, audit); err != nil {
		r.logger.Printf("reaper: save audit log failed: %v", err)
	}

	return reaped
}
