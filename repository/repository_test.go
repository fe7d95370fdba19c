package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docpulse/docpulse/models"
	"github.com/docpulse/docpulse/repository"
	testingutil "github.com/docpulse/docpulse/testing"
	"github.com/docpulse/docpulse/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareLinkRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		repo := repository.NewShareLinkRepository(testDB.DB)

		t.Run("ByToken", func(t *testing.T) {
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)

			found, err := repo.ByToken(ctx, link.Token)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, link.ID, found.ID)

			missing, err := repo.ByToken(ctx, "no-such-token")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})

		t.Run("IncrementViewCounts", func(t *testing.T) {
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)

			require.NoError(t, repo.IncrementViewCounts(ctx, link.ID, true))
			require.NoError(t, repo.IncrementViewCounts(ctx, link.ID, false))
			require.NoError(t, repo.IncrementViewCounts(ctx, link.ID, true))

			reloaded, err := repo.ByID(ctx, link.ID)
			require.NoError(t, err)
			require.NotNil(t, reloaded)
			assert.Equal(t, int64(3), reloaded.ViewCount)
			assert.Equal(t, int64(2), reloaded.UniqueViewCount)
			assert.LessOrEqual(t, reloaded.UniqueViewCount, reloaded.ViewCount)
		})

		t.Run("IncrementViewCountsMissingLink", func(t *testing.T) {
			err := repo.IncrementViewCounts(ctx, 999999, false)
			assert.Error(t, err)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestViewSessionRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		repo := repository.NewViewSessionRepository(testDB.DB)

		t.Run("ByUUID", func(t *testing.T) {
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)
			session, err := fixtures.CreateTestSession(link)
			require.NoError(t, err)

			found, err := repo.ByUUID(ctx, session.UUID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, session.ID, found.ID)

			missing, err := repo.ByUUID(ctx, uuid.New())
			require.NoError(t, err)
			assert.Nil(t, missing)
		})

		t.Run("ExistsPrior", func(t *testing.T) {
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)

			ipHash := utils.HashIP("198.51.100.9")
			email := "viewer@example.com"
			_, err = fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.IPHash = ipHash
				s.ViewerEmail = &email
			})
			require.NoError(t, err)

			prior, err := repo.ExistsPrior(ctx, link.ID, ipHash, nil)
			require.NoError(t, err)
			assert.True(t, prior)

			prior, err = repo.ExistsPrior(ctx, link.ID, ipHash, &email)
			require.NoError(t, err)
			assert.True(t, prior)

			other := "someone-else@example.com"
			prior, err = repo.ExistsPrior(ctx, link.ID, ipHash, &other)
			require.NoError(t, err)
			assert.False(t, prior, "different email means a different viewer")

			prior, err = repo.ExistsPrior(ctx, link.ID, utils.HashIP("198.51.100.10"), nil)
			require.NoError(t, err)
			assert.False(t, prior)
		})

		t.Run("ApplyPageView", func(t *testing.T) {
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)
			session, err := fixtures.CreateTestSession(link)
			require.NoError(t, err)

			now := time.Now().UTC()
			require.NoError(t, repo.ApplyPageView(ctx, session.ID, 3, 0, now))
			require.NoError(t, repo.ApplyPageView(ctx, session.ID, 7, 4500, now))
			// going back to an earlier page must not lower the high-water mark
			require.NoError(t, repo.ApplyPageView(ctx, session.ID, 2, 1500, now))

			reloaded, err := repo.ByID(ctx, session.ID)
			require.NoError(t, err)
			require.NotNil(t, reloaded)
			assert.Equal(t, 3, reloaded.PagesViewed)
			assert.Equal(t, 7, reloaded.MaxPageReached)
			assert.Equal(t, 2, reloaded.CurrentPage)
			assert.Equal(t, int64(6000), reloaded.TotalDurationMS)
			assert.True(t, utils.IsTrue(reloaded.IsActive))
		})

		t.Run("Touch", func(t *testing.T) {
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)
			stale := time.Now().UTC().Add(-time.Hour)
			session, err := fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.LastActiveAt = stale
				s.IsActive = utils.ToPtr(false)
			})
			require.NoError(t, err)

			now := time.Now().UTC()
			page := 4
			require.NoError(t, repo.Touch(ctx, session.ID, now, &page))

			reloaded, err := repo.ByID(ctx, session.ID)
			require.NoError(t, err)
			require.NotNil(t, reloaded)
			assert.True(t, utils.IsTrue(reloaded.IsActive), "heartbeat revives the session")
			assert.Equal(t, 4, reloaded.CurrentPage)
			assert.True(t, reloaded.LastActiveAt.After(stale))
		})

		t.Run("Close", func(t *testing.T) {
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)
			session, err := fixtures.CreateTestSession(link)
			require.NoError(t, err)

			now := time.Now().UTC()
			require.NoError(t, repo.ApplyPageView(ctx, session.ID, 2, 3000, now))

			duration := int64(95000)
			pages := 5
			maxPage := 8
			require.NoError(t, repo.Close(ctx, session.ID, &duration, &pages, &maxPage, now))

			reloaded, err := repo.ByID(ctx, session.ID)
			require.NoError(t, err)
			require.NotNil(t, reloaded)
			assert.False(t, utils.IsTrue(reloaded.IsActive))
			assert.Equal(t, int64(95000), reloaded.TotalDurationMS, "explicit end overwrites accumulated duration")
			assert.Equal(t, 5, reloaded.PagesViewed)
			assert.Equal(t, 8, reloaded.MaxPageReached)
		})

		t.Run("CloseNilDurationKeepsAccumulated", func(t *testing.T) {
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)
			session, err := fixtures.CreateTestSession(link)
			require.NoError(t, err)

			now := time.Now().UTC()
			require.NoError(t, repo.ApplyPageView(ctx, session.ID, 2, 3000, now))
			require.NoError(t, repo.Close(ctx, session.ID, nil, nil, nil, now))

			reloaded, err := repo.ByID(ctx, session.ID)
			require.NoError(t, err)
			require.NotNil(t, reloaded)
			assert.False(t, utils.IsTrue(reloaded.IsActive))
			assert.Equal(t, int64(3000), reloaded.TotalDurationMS)
		})

		t.Run("ReapIdle", func(t *testing.T) {
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)
			now := time.Now().UTC()

			staleActive, err := fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.LastActiveAt = now.Add(-time.Hour)
				s.TotalDurationMS = 12000
			})
			require.NoError(t, err)
			freshActive, err := fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.LastActiveAt = now.Add(-time.Minute)
			})
			require.NoError(t, err)
			staleClosed, err := fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.LastActiveAt = now.Add(-2 * time.Hour)
				s.IsActive = utils.ToPtr(false)
			})
			require.NoError(t, err)

			reaped, err := repo.ReapIdle(ctx, now.Add(-30*time.Minute), now)
			require.NoError(t, err)
			assert.Equal(t, int64(1), reaped)

			reloaded, err := repo.ByID(ctx, staleActive.ID)
			require.NoError(t, err)
			assert.False(t, utils.IsTrue(reloaded.IsActive))
			assert.Equal(t, int64(12000), reloaded.TotalDurationMS, "reaper never fabricates durations")

			reloaded, err = repo.ByID(ctx, freshActive.ID)
			require.NoError(t, err)
			assert.True(t, utils.IsTrue(reloaded.IsActive))

			reloaded, err = repo.ByID(ctx, staleClosed.ID)
			require.NoError(t, err)
			assert.False(t, utils.IsTrue(reloaded.IsActive))
		})

		t.Run("DeleteExpired", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)
			now := time.Now().UTC()

			expired, err := fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.DataRetentionDate = now.Add(-24 * time.Hour)
			})
			require.NoError(t, err)
			// retention date still in the future but the row predates the
			// fallback cutoff, the belt-and-suspenders path
			ancient, err := fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.StartedAt = now.Add(-90 * 24 * time.Hour)
				s.DataRetentionDate = now.Add(24 * time.Hour)
			})
			require.NoError(t, err)
			kept, err := fixtures.CreateTestSession(link)
			require.NoError(t, err)

			deleted, err := repo.DeleteExpired(ctx, now, now.Add(-utils.SessionRetention))
			require.NoError(t, err)
			assert.Equal(t, int64(2), deleted)

			gone, err := repo.ByID(ctx, expired.ID)
			require.NoError(t, err)
			assert.Nil(t, gone)
			gone, err = repo.ByID(ctx, ancient.ID)
			require.NoError(t, err)
			assert.Nil(t, gone)
			still, err := repo.ByID(ctx, kept.ID)
			require.NoError(t, err)
			assert.NotNil(t, still)
		})

		t.Run("RollupRange", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)
			day := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)

			for i, spec := range []struct {
				unique     bool
				durationMS int64
			}{
				{true, 10000},
				{false, 5000},
				{true, 15000},
			} {
				_, err := fixtures.CreateTestSession(link, func(s *models.ViewSession) {
					s.StartedAt = day.Add(time.Duration(i) * time.Hour)
					s.IsUnique = utils.ToPtr(spec.unique)
					s.TotalDurationMS = spec.durationMS
				})
				require.NoError(t, err)
			}
			// outside the window
			_, err = fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.StartedAt = day.AddDate(0, 0, 1).Add(time.Hour)
			})
			require.NoError(t, err)

			rollups, err := repo.RollupRange(ctx, day, day.AddDate(0, 0, 1), nil)
			require.NoError(t, err)
			require.Len(t, rollups, 1)
			assert.Equal(t, link.DocumentID, rollups[0].DocumentID)
			assert.Equal(t, int64(3), rollups[0].TotalViews)
			assert.Equal(t, int64(2), rollups[0].UniqueViews)
			assert.Equal(t, int64(30000), rollups[0].TotalDurationMS)
		})

		t.Run("GlobalTotals", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)
			_, err = fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.TotalDurationMS = 7000
			})
			require.NoError(t, err)
			_, err = fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.IsUnique = utils.ToPtr(false)
				s.TotalDurationMS = 3000
			})
			require.NoError(t, err)

			totals, err := repo.GlobalTotals(ctx)
			require.NoError(t, err)
			require.NotNil(t, totals)
			assert.Equal(t, int64(2), totals.TotalViews)
			assert.Equal(t, int64(1), totals.UniqueViews)
			assert.Equal(t, int64(10000), totals.TotalDurationMS)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestPageViewRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		repo := repository.NewPageViewRepository(testDB.DB)

		t.Run("ListBySession", func(t *testing.T) {
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)
			session, err := fixtures.CreateTestSession(link)
			require.NoError(t, err)

			_, err = fixtures.CreateTestPageView(session.ID, 1, 10, 0)
			require.NoError(t, err)
			_, err = fixtures.CreateTestPageView(session.ID, 2, 10, 4000)
			require.NoError(t, err)

			rows, err := repo.ListBySession(ctx, session.ID)
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, 1, rows[0].PageNumber)
			assert.Equal(t, int64(0), rows[0].DurationMS, "entry marker carries zero dwell")
		})

		t.Run("MaxTotalPages", func(t *testing.T) {
			doc, err := fixtures.CreateTestDocument(nil)
			require.NoError(t, err)
			link, err := fixtures.CreateTestShareLink(doc.ID)
			require.NoError(t, err)
			session, err := fixtures.CreateTestSession(link)
			require.NoError(t, err)

			_, err = fixtures.CreateTestPageView(session.ID, 1, 12, 0)
			require.NoError(t, err)
			_, err = fixtures.CreateTestPageView(session.ID, 2, 18, 2000)
			require.NoError(t, err)

			max, err := repo.MaxTotalPages(ctx, doc.ID)
			require.NoError(t, err)
			assert.Equal(t, 18, max)

			empty, err := fixtures.CreateTestDocument(nil)
			require.NoError(t, err)
			max, err = repo.MaxTotalPages(ctx, empty.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, max)
		})

		t.Run("TopPages", func(t *testing.T) {
			doc, err := fixtures.CreateTestDocument(nil)
			require.NoError(t, err)
			link, err := fixtures.CreateTestShareLink(doc.ID)
			require.NoError(t, err)
			session, err := fixtures.CreateTestSession(link)
			require.NoError(t, err)

			for _, page := range []int{1, 2, 2, 2, 3, 3} {
				_, err = fixtures.CreateTestPageView(session.ID, page, 10, 1000)
				require.NoError(t, err)
			}

			top, err := repo.TopPages(ctx, doc.ID, 2)
			require.NoError(t, err)
			require.Len(t, top, 2)
			assert.Equal(t, 2, top[0].PageNumber)
			assert.Equal(t, int64(3), top[0].Views)
			assert.Equal(t, 3, top[1].PageNumber)
			assert.Equal(t, int64(2), top[1].Views)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestDailySummaryRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		repo := repository.NewDailySummaryRepository(testDB.DB)

		t.Run("UpsertIsIdempotent", func(t *testing.T) {
			doc, err := fixtures.CreateTestDocument(nil)
			require.NoError(t, err)
			day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

			first := &models.DailySummary{
				DocumentID:      doc.ID,
				SummaryDate:     day,
				TotalViews:      5,
				UniqueViews:     3,
				TotalDurationMS: 50000,
				AvgDurationMS:   10000,
			}
			require.NoError(t, repo.Upsert(ctx, first))

			// regeneration with corrected numbers overwrites, never duplicates
			second := &models.DailySummary{
				DocumentID:      doc.ID,
				SummaryDate:     day,
				TotalViews:      7,
				UniqueViews:     4,
				TotalDurationMS: 70000,
				AvgDurationMS:   10000,
			}
			require.NoError(t, repo.Upsert(ctx, second))

			count, err := repo.Count(ctx, models.DailySummaryFilter{DocumentID: &doc.ID})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			row, err := repo.ByDocumentAndDate(ctx, doc.ID, day)
			require.NoError(t, err)
			require.NotNil(t, row)
			assert.Equal(t, int64(7), row.TotalViews)
			assert.Equal(t, int64(4), row.UniqueViews)
		})

		t.Run("DeleteOlderThan", func(t *testing.T) {
			doc, err := fixtures.CreateTestDocument(nil)
			require.NoError(t, err)
			old := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
			recent := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

			require.NoError(t, repo.Upsert(ctx, &models.DailySummary{DocumentID: doc.ID, SummaryDate: old, TotalViews: 1}))
			require.NoError(t, repo.Upsert(ctx, &models.DailySummary{DocumentID: doc.ID, SummaryDate: recent, TotalViews: 1}))

			deleted, err := repo.DeleteOlderThan(ctx, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
			require.NoError(t, err)
			assert.Equal(t, int64(1), deleted)

			row, err := repo.ByDocumentAndDate(ctx, doc.ID, recent)
			require.NoError(t, err)
			assert.NotNil(t, row)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestGlobalAggregateRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		repo := repository.NewGlobalAggregateRepository(testDB.DB)

		t.Run("EnsureRow", func(t *testing.T) {
			require.NoError(t, repo.EnsureRow(ctx))
			require.NoError(t, repo.EnsureRow(ctx), "ensure is idempotent")

			row, err := repo.Get(ctx)
			require.NoError(t, err)
			require.NotNil(t, row)
			assert.Equal(t, uint(models.GlobalAggregateID), row.ID)
			assert.Zero(t, row.TotalViews)
		})

		t.Run("IncrementalPath", func(t *testing.T) {
			require.NoError(t, repo.EnsureRow(ctx))

			require.NoError(t, repo.ApplySessionStart(ctx, true))
			require.NoError(t, repo.ApplySessionStart(ctx, false))
			require.NoError(t, repo.ApplySessionEnd(ctx, 30000))
			require.NoError(t, repo.ApplyPageView(ctx))
			require.NoError(t, repo.ApplyPageView(ctx))
			require.NoError(t, repo.ApplyEmailCapture(ctx))

			row, err := repo.Get(ctx)
			require.NoError(t, err)
			require.NotNil(t, row)
			assert.Equal(t, int64(2), row.TotalViews)
			assert.Equal(t, int64(1), row.UniqueViews)
			assert.Equal(t, int64(30000), row.TotalDurationMS)
			assert.Equal(t, int64(15000), row.AvgDurationMS)
			assert.Equal(t, int64(2), row.TotalPageViews)
			assert.Equal(t, int64(1), row.EmailCaptures)
		})

		t.Run("Rebaseline", func(t *testing.T) {
			require.NoError(t, repo.EnsureRow(ctx))

			totals := &repository.SessionRollup{
				TotalViews:      10,
				UniqueViews:     6,
				TotalDurationMS: 120000,
			}
			require.NoError(t, repo.Rebaseline(ctx, totals, 42, 5))

			row, err := repo.Get(ctx)
			require.NoError(t, err)
			require.NotNil(t, row)
			assert.Equal(t, int64(10), row.TotalViews)
			assert.Equal(t, int64(6), row.UniqueViews)
			assert.Equal(t, int64(120000), row.TotalDurationMS)
			assert.Equal(t, int64(12000), row.AvgDurationMS)
			assert.Equal(t, int64(42), row.TotalPageViews)
			assert.Equal(t, int64(5), row.EmailCaptures)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestEmailCaptureRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		repo := repository.NewEmailCaptureRepository(testDB.DB)

		t.Run("CountPerDocument", func(t *testing.T) {
			_, linkA, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)
			_, linkB, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)

			_, err = fixtures.CreateTestEmailCapture(linkA, "a@example.com")
			require.NoError(t, err)
			_, err = fixtures.CreateTestEmailCapture(linkA, "b@example.com")
			require.NoError(t, err)
			_, err = fixtures.CreateTestEmailCapture(linkB, "c@example.com")
			require.NoError(t, err)

			now := time.Now().UTC()
			counts, err := repo.CountPerDocument(ctx, now.Add(-time.Hour), now.Add(time.Hour))
			require.NoError(t, err)
			assert.Equal(t, int64(2), counts[linkA.DocumentID])
			assert.Equal(t, int64(1), counts[linkB.DocumentID])
		})

		t.Run("DeleteOlderThan", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)

			old, err := fixtures.CreateTestEmailCapture(link, "old@example.com")
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(old).
				Update("captured_at", time.Now().UTC().Add(-400*24*time.Hour)).Error)
			_, err = fixtures.CreateTestEmailCapture(link, "fresh@example.com")
			require.NoError(t, err)

			deleted, err := repo.DeleteOlderThan(ctx, time.Now().UTC().Add(-utils.EmailCaptureRetention))
			require.NoError(t, err)
			assert.Equal(t, int64(1), deleted)

			count, err := repo.Count(ctx, models.EmailCaptureFilter{})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestDocumentRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		repo := repository.NewDocumentRepository(testDB.DB)

		t.Run("ByUUID", func(t *testing.T) {
			doc, err := fixtures.CreateTestDocument(nil)
			require.NoError(t, err)

			found, err := repo.ByUUID(ctx, doc.UUID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, doc.ID, found.ID)
		})

		t.Run("UpdateNumPages", func(t *testing.T) {
			doc, err := fixtures.CreateTestDocument(nil)
			require.NoError(t, err)

			require.NoError(t, repo.UpdateNumPages(ctx, doc.ID, 25))

			reloaded, err := repo.ByID(ctx, doc.ID)
			require.NoError(t, err)
			require.NotNil(t, reloaded)
			assert.Equal(t, 25, reloaded.NumPages)
		})

		t.Run("ListOrphanedBefore", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			owner := uint(1)
			_, err := fixtures.CreateTestDocument(&owner)
			require.NoError(t, err)
			orphan, err := fixtures.CreateTestDocument(nil)
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(orphan).
				Update("created_at", time.Now().UTC().Add(-120*24*time.Hour)).Error)
			_, err = fixtures.CreateTestDocument(nil) // orphan inside grace period
			require.NoError(t, err)

			rows, err := repo.ListOrphanedBefore(ctx, time.Now().UTC().Add(-utils.OrphanDocumentRetention))
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, orphan.ID, rows[0].ID)
		})

		t.Run("DeleteByID", func(t *testing.T) {
			doc, err := fixtures.CreateTestDocument(nil)
			require.NoError(t, err)

			require.NoError(t, repo.DeleteByID(ctx, doc.ID))

			gone, err := repo.ByID(ctx, doc.ID)
			require.NoError(t, err)
			assert.Nil(t, gone)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAuditLogRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		repo := repository.NewAuditLogRepository(testDB.DB)

		t.Run("ListByDocument", func(t *testing.T) {
			doc, err := fixtures.CreateTestDocument(nil)
			require.NoError(t, err)
			_, err = fixtures.CreateTestAuditLog(&doc.ID, models.AuditActionAccessGranted, true)
			require.NoError(t, err)
			_, err = fixtures.CreateTestAuditLog(&doc.ID, models.AuditActionSessionStarted, true)
			require.NoError(t, err)
			_, err = fixtures.CreateTestAuditLog(nil, models.AuditActionRetentionSweep, true)
			require.NoError(t, err)

			rows, err := repo.ListByDocument(ctx, doc.ID, 10, 0)
			require.NoError(t, err)
			assert.Len(t, rows, 2)
		})

		t.Run("ListSecurityEvents", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			doc, err := fixtures.CreateTestDocument(nil)
			require.NoError(t, err)
			_, err = fixtures.CreateTestAuditLog(&doc.ID, models.AuditActionAccessDenied, false)
			require.NoError(t, err)
			_, err = fixtures.CreateTestAuditLog(&doc.ID, models.AuditActionAccessGranted, true)
			require.NoError(t, err)

			rows, err := repo.ListSecurityEvents(ctx, 10, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, models.AuditActionAccessDenied, rows[0].Action)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestWithTransaction(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		repo := repository.NewShareLinkRepository(testDB.DB)

		t.Run("CommitOnSuccess", func(t *testing.T) {
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)

			err = repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
				return repo.IncrementViewCounts(txCtx, link.ID, false)
			})
			require.NoError(t, err)

			reloaded, err := repo.ByID(ctx, link.ID)
			require.NoError(t, err)
			require.NotNil(t, reloaded)
			assert.Equal(t, int64(1), reloaded.ViewCount)
		})

		t.Run("RollbackOnError", func(t *testing.T) {
			_, link, err := fixtures.CreateSharedDocument()
			require.NoError(t, err)

			boom := errors.New("boom")
			err = repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
				if err := repo.IncrementViewCounts(txCtx, link.ID, false); err != nil {
					return err
				}
				return boom
			})
			require.ErrorIs(t, err, boom)

			reloaded, err := repo.ByID(ctx, link.ID)
			require.NoError(t, err)
			require.NotNil(t, reloaded)
			assert.Zero(t, reloaded.ViewCount, "failed transaction leaves no trace")
		})

		return nil
	})
	require.NoError(t, err)
}
