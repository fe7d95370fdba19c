package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docpulse/docpulse/app/scheduler"
	"github.com/docpulse/docpulse/app/services"
	businessflow "github.com/docpulse/docpulse/business_flow"
	"github.com/docpulse/docpulse/models"
	"github.com/docpulse/docpulse/repository"
	testingutil "github.com/docpulse/docpulse/testing"
	"github.com/docpulse/docpulse/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock pins "now" so reap cutoffs and retention windows are deterministic
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// failingStorage rejects every delete, standing in for an unhealthy blob store
type failingStorage struct {
	attempts int
}

func (s *failingStorage) DeleteObject(_ context.Context, _ string) error {
	s.attempts++
	return errors.New("storage unavailable")
}

func (s *failingStorage) DeleteObjects(_ context.Context, _ []string) error {
	return errors.New("storage unavailable")
}

func (s *failingStorage) ObjectExists(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func TestIdleReaper(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		sessionRepo := repository.NewViewSessionRepository(testDB.DB)
		auditRepo := repository.NewAuditLogRepository(testDB.DB)

		now := time.Now().UTC()
		clock := fixedClock{now: now}

		t.Run("ClosesOnlyStaleActiveSessions", func(t *testing.T) {
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)

			stale, err := fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.LastActiveAt = now.Add(-45 * time.Minute)
				s.TotalDurationMS = 20000
			})
			require.NoError(t, err)
			fresh, err := fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.LastActiveAt = now.Add(-5 * time.Minute)
			})
			require.NoError(t, err)

			reaper := scheduler.NewIdleReaper(sessionRepo, auditRepo, clock, nil, 0, 0)
			reaped := reaper.RunOnce(ctx)
			assert.Equal(t, int64(1), reaped)

			reloaded, err := sessionRepo.ByID(ctx, stale.ID)
			require.NoError(t, err)
			require.NotNil(t, reloaded)
			assert.False(t, utils.IsTrue(reloaded.IsActive))
			assert.Equal(t, int64(20000), reloaded.TotalDurationMS, "reaping must not touch duration")

			reloaded, err = sessionRepo.ByID(ctx, fresh.ID)
			require.NoError(t, err)
			require.NotNil(t, reloaded)
			assert.True(t, utils.IsTrue(reloaded.IsActive))

			// a reap pass leaves an audit trail
			action := models.AuditActionSessionEnded
			count, err := auditRepo.Count(ctx, models.AuditLogFilter{Action: &action})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		t.Run("QuietPassWritesNoAudit", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			reaper := scheduler.NewIdleReaper(sessionRepo, auditRepo, clock, nil, 0, 0)
			reaped := reaper.RunOnce(ctx)
			assert.Zero(t, reaped)

			count, err := auditRepo.Count(ctx, models.AuditLogFilter{})
			require.NoError(t, err)
			assert.Zero(t, count)
		})

		t.Run("CustomThreshold", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)
			_, err = fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.LastActiveAt = now.Add(-10 * time.Minute)
			})
			require.NoError(t, err)

			reaper := scheduler.NewIdleReaper(sessionRepo, auditRepo, clock, nil, 0, 5*time.Minute)
			assert.Equal(t, int64(1), reaper.RunOnce(ctx))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestRetentionSweeper(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		sessionRepo := repository.NewViewSessionRepository(testDB.DB)
		summaryRepo := repository.NewDailySummaryRepository(testDB.DB)
		emailRepo := repository.NewEmailCaptureRepository(testDB.DB)
		documentRepo := repository.NewDocumentRepository(testDB.DB)
		auditRepo := repository.NewAuditLogRepository(testDB.DB)

		now := time.Now().UTC()
		clock := fixedClock{now: now}

		newSweeper := func(storage services.ObjectStorage) *scheduler.RetentionSweeper {
			return scheduler.NewRetentionSweeper(
				sessionRepo, summaryRepo, emailRepo, documentRepo, auditRepo,
				storage, clock, nil, "",
			)
		}

		t.Run("SweepsEachCategory", func(t *testing.T) {
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)

			// expired session
			_, err = fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.DataRetentionDate = now.Add(-time.Hour)
			})
			require.NoError(t, err)
			// session still inside its window
			_, err = fixtures.CreateTestSession(link)
			require.NoError(t, err)

			// summary past the 26 month window
			require.NoError(t, summaryRepo.Upsert(ctx, &models.DailySummary{
				DocumentID:  link.DocumentID,
				SummaryDate: utils.SummaryCutoff(now).Add(-24 * time.Hour),
				TotalViews:  3,
			}))

			// stale email capture
			capture, err := fixtures.CreateTestEmailCapture(link, "stale@example.com")
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(capture).
				Update("captured_at", now.Add(-utils.EmailCaptureRetention-24*time.Hour)).Error)

			// orphaned document past the grace period
			orphan, err := fixtures.CreateTestDocument(nil)
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(orphan).
				Update("created_at", now.Add(-utils.OrphanDocumentRetention-24*time.Hour)).Error)

			storage := services.NewMemoryStorage(orphan.StorageKey)
			report := newSweeper(storage).RunOnce(ctx)

			assert.Equal(t, int64(1), report.SessionsDeleted)
			assert.Equal(t, int64(1), report.SummariesDeleted)
			assert.Equal(t, int64(1), report.EmailsDeleted)
			assert.Equal(t, int64(1), report.DocumentsDeleted)
			assert.Zero(t, report.Errors)

			// the blob went with the row
			assert.Equal(t, []string{orphan.StorageKey}, storage.Deleted)
			gone, err := documentRepo.ByID(ctx, orphan.ID)
			require.NoError(t, err)
			assert.Nil(t, gone)

			// the sweep itself is audited
			action := models.AuditActionRetentionSweep
			count, err := auditRepo.Count(ctx, models.AuditLogFilter{Action: &action})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		t.Run("NoStorageSkipsOrphanSweep", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			orphan, err := fixtures.CreateTestDocument(nil)
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(orphan).
				Update("created_at", now.Add(-utils.OrphanDocumentRetention-24*time.Hour)).Error)

			report := newSweeper(nil).RunOnce(ctx)
			assert.Zero(t, report.DocumentsDeleted)

			// the row survives rather than leaking its blob
			still, err := documentRepo.ByID(ctx, orphan.ID)
			require.NoError(t, err)
			assert.NotNil(t, still)
		})

		t.Run("BlobFailureStillDeletesRow", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			orphan, err := fixtures.CreateTestDocument(nil)
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(orphan).
				Update("created_at", now.Add(-utils.OrphanDocumentRetention-24*time.Hour)).Error)

			storage := &failingStorage{}
			report := newSweeper(storage).RunOnce(ctx)

			// the failure is counted but never holds the retention window hostage
			assert.Equal(t, 1, storage.attempts)
			assert.Equal(t, 1, report.Errors)
			assert.Equal(t, int64(1), report.DocumentsDeleted)

			gone, err := documentRepo.ByID(ctx, orphan.ID)
			require.NoError(t, err)
			assert.Nil(t, gone)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestSummaryScheduler(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		sessionRepo := repository.NewViewSessionRepository(testDB.DB)
		pageViewRepo := repository.NewPageViewRepository(testDB.DB)
		emailRepo := repository.NewEmailCaptureRepository(testDB.DB)
		summaryRepo := repository.NewDailySummaryRepository(testDB.DB)
		globalRepo := repository.NewGlobalAggregateRepository(testDB.DB)
		auditRepo := repository.NewAuditLogRepository(testDB.DB)
		require.NoError(t, globalRepo.EnsureRow(ctx))

		summaryFlow := businessflow.NewSummaryFlow(
			sessionRepo, pageViewRepo, emailRepo, summaryRepo,
			globalRepo, auditRepo, repository.NewDocumentRepository(testDB.DB),
			businessflow.NewAggregateMirror(nil, ""),
		)

		now := time.Now().UTC()
		clock := fixedClock{now: now}

		t.Run("CoversTodayAndYesterday", func(t *testing.T) {
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)

			_, err = fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.StartedAt = now
				s.TotalDurationMS = 5000
			})
			require.NoError(t, err)
			// a session from yesterday that straddled midnight
			_, err = fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.StartedAt = now.AddDate(0, 0, -1)
				s.TotalDurationMS = 8000
			})
			require.NoError(t, err)

			sched := scheduler.NewSummaryScheduler(summaryFlow, clock, nil, 0, 0)
			sched.RunOnce(ctx)

			today, err := summaryRepo.ByDocumentAndDate(ctx, link.DocumentID, utils.DayStart(now))
			require.NoError(t, err)
			require.NotNil(t, today)
			assert.Equal(t, int64(1), today.TotalViews)

			yesterday, err := summaryRepo.ByDocumentAndDate(ctx, link.DocumentID, utils.DayStart(now.AddDate(0, 0, -1)))
			require.NoError(t, err)
			require.NotNil(t, yesterday)
			assert.Equal(t, int64(1), yesterday.TotalViews)
		})

		t.Run("RebaselinesOnSchedule", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			require.NoError(t, globalRepo.EnsureRow(ctx))

			// drift the counter; only a rebaseline can correct it
			require.NoError(t, globalRepo.ApplySessionStart(ctx, true))

			sched := scheduler.NewSummaryScheduler(summaryFlow, clock, nil, 0, 2)

			sched.RunOnce(ctx)
			agg, err := globalRepo.Get(ctx)
			require.NoError(t, err)
			require.NotNil(t, agg)
			assert.Equal(t, int64(1), agg.TotalViews, "first pass does not rebaseline yet")

			sched.RunOnce(ctx)
			agg, err = globalRepo.Get(ctx)
			require.NoError(t, err)
			require.NotNil(t, agg)
			assert.Zero(t, agg.TotalViews, "second pass rebaselines from raw rows")
		})

		return nil
	})
	require.NoError(t, err)
}
