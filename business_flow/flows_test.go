package businessflow_test

import (
	"testing"
	"time"

	"github.com/docpulse/docpulse/app/dto"
	"github.com/docpulse/docpulse/app/services"
	businessflow "github.com/docpulse/docpulse/business_flow"
	"github.com/docpulse/docpulse/models"
	"github.com/docpulse/docpulse/repository"
	testingutil "github.com/docpulse/docpulse/testing"
	"github.com/docpulse/docpulse/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHandleSecret = "test-handle-secret-key-0123456789abcdef"

type flowEnv struct {
	db           *testingutil.TestDB
	fixtures     *testingutil.TestFixtures
	access       businessflow.AccessFlow
	telemetry    businessflow.TelemetryFlow
	summary      businessflow.SummaryFlow
	sessionRepo  repository.ViewSessionRepository
	linkRepo     repository.ShareLinkRepository
	pageViewRepo repository.PageViewRepository
	summaryRepo  repository.DailySummaryRepository
	globalRepo   repository.GlobalAggregateRepository
	auditRepo    repository.AuditLogRepository
	docRepo      repository.DocumentRepository
}

func newFlowEnv(t *testing.T, testDB *testingutil.TestDB) *flowEnv {
	t.Helper()

	documentRepo := repository.NewDocumentRepository(testDB.DB)
	shareLinkRepo := repository.NewShareLinkRepository(testDB.DB)
	sessionRepo := repository.NewViewSessionRepository(testDB.DB)
	pageViewRepo := repository.NewPageViewRepository(testDB.DB)
	emailCaptureRepo := repository.NewEmailCaptureRepository(testDB.DB)
	dailySummaryRepo := repository.NewDailySummaryRepository(testDB.DB)
	globalRepo := repository.NewGlobalAggregateRepository(testDB.DB)
	auditRepo := repository.NewAuditLogRepository(testDB.DB)

	require.NoError(t, globalRepo.EnsureRow(testingutil.CreateTestContext()))

	handleService, err := services.NewHandleService(utils.DocumentHandleTTL, "docpulse", "docpulse-viewer", testHandleSecret)
	require.NoError(t, err)

	mirror := businessflow.NewAggregateMirror(nil, "")

	return &flowEnv{
		db:       testDB,
		fixtures: testingutil.NewTestFixtures(testDB),
		access: businessflow.NewAccessFlow(
			testDB.DB, documentRepo, shareLinkRepo, sessionRepo,
			emailCaptureRepo, globalRepo, auditRepo, handleService, mirror,
		),
		telemetry: businessflow.NewTelemetryFlow(
			documentRepo, shareLinkRepo, sessionRepo, pageViewRepo,
			globalRepo, auditRepo, mirror,
		),
		summary: businessflow.NewSummaryFlow(
			sessionRepo, pageViewRepo, emailCaptureRepo, dailySummaryRepo,
			globalRepo, auditRepo, documentRepo, mirror,
		),
		sessionRepo:  sessionRepo,
		linkRepo:     shareLinkRepo,
		pageViewRepo: pageViewRepo,
		summaryRepo:  dailySummaryRepo,
		globalRepo:   globalRepo,
		auditRepo:    auditRepo,
		docRepo:      documentRepo,
	}
}

func testMetadata() *businessflow.ClientMetadata {
	return businessflow.NewClientMetadata("203.0.113.50", "Mozilla/5.0 (X11; Linux x86_64) Chrome/124.0")
}

func TestAccessFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(t, testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("UnknownToken", func(t *testing.T) {
			_, err := env.access.Access(ctx, "no-such-token", &dto.AccessRequest{}, testMetadata())
			assert.True(t, businessflow.IsShareLinkNotFound(err))
		})

		t.Run("DisabledLink", func(t *testing.T) {
			doc, err := env.fixtures.CreateTestDocument(nil)
			require.NoError(t, err)
			link, err := env.fixtures.CreateTestShareLink(doc.ID, testingutil.Disabled())
			require.NoError(t, err)

			_, err = env.access.Access(ctx, link.Token, &dto.AccessRequest{}, testMetadata())
			assert.True(t, businessflow.IsShareLinkDisabled(err))
		})

		t.Run("ExpiredLink", func(t *testing.T) {
			doc, err := env.fixtures.CreateTestDocument(nil)
			require.NoError(t, err)
			link, err := env.fixtures.CreateTestShareLink(doc.ID,
				testingutil.WithExpiry(time.Now().UTC().Add(-time.Hour)))
			require.NoError(t, err)

			_, err = env.access.Access(ctx, link.Token, &dto.AccessRequest{}, testMetadata())
			assert.True(t, businessflow.IsShareLinkExpired(err))
		})

		t.Run("ExpiryCheckedBeforePassword", func(t *testing.T) {
			doc, err := env.fixtures.CreateTestDocument(nil)
			require.NoError(t, err)
			link, err := env.fixtures.CreateTestShareLink(doc.ID,
				testingutil.WithExpiry(time.Now().UTC().Add(-time.Hour)),
				testingutil.WithPassword("hunter2"))
			require.NoError(t, err)

			// even a correct password must not reveal that the link existed
			_, err = env.access.Access(ctx, link.Token, &dto.AccessRequest{Password: "hunter2"}, testMetadata())
			assert.True(t, businessflow.IsShareLinkExpired(err))
		})

		t.Run("ViewLimit", func(t *testing.T) {
			doc, err := env.fixtures.CreateTestDocument(nil)
			require.NoError(t, err)
			link, err := env.fixtures.CreateTestShareLink(doc.ID, testingutil.WithMaxViews(1))
			require.NoError(t, err)

			_, err = env.access.Access(ctx, link.Token, &dto.AccessRequest{}, testMetadata())
			require.NoError(t, err)

			_, err = env.access.Access(ctx, link.Token, &dto.AccessRequest{}, testMetadata())
			assert.True(t, businessflow.IsViewLimitReached(err))
		})

		t.Run("WrongPassword", func(t *testing.T) {
			doc, err := env.fixtures.CreateTestDocument(nil)
			require.NoError(t, err)
			link, err := env.fixtures.CreateTestShareLink(doc.ID, testingutil.WithPassword("hunter2"))
			require.NoError(t, err)

			_, err = env.access.Access(ctx, link.Token, &dto.AccessRequest{Password: "wrong"}, testMetadata())
			assert.True(t, businessflow.IsIncorrectPassword(err))

			resp, err := env.access.Access(ctx, link.Token, &dto.AccessRequest{Password: "hunter2"}, testMetadata())
			require.NoError(t, err)
			assert.NotEmpty(t, resp.DocumentHandle)
		})

		t.Run("EmailGate", func(t *testing.T) {
			doc, err := env.fixtures.CreateTestDocument(nil)
			require.NoError(t, err)
			link, err := env.fixtures.CreateTestShareLink(doc.ID, testingutil.WithEmailGate())
			require.NoError(t, err)

			_, err = env.access.Access(ctx, link.Token, &dto.AccessRequest{}, testMetadata())
			assert.True(t, businessflow.IsEmailRequired(err))

			resp, err := env.access.Access(ctx, link.Token,
				&dto.AccessRequest{Email: "  Viewer@Example.COM ", Name: "Viewer"}, testMetadata())
			require.NoError(t, err)
			assert.NotEmpty(t, resp.SessionID)

			emailRepo := repository.NewEmailCaptureRepository(testDB.DB)
			captures, err := emailRepo.ByFilter(ctx, models.EmailCaptureFilter{DocumentID: &doc.ID}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, captures, 1)
			assert.Equal(t, "viewer@example.com", captures[0].Email)
		})

		t.Run("UniqueDetection", func(t *testing.T) {
			_, link, err := env.fixtures.CreateSharedDocument()
			require.NoError(t, err)

			meta := testMetadata()
			first, err := env.access.Access(ctx, link.Token, &dto.AccessRequest{}, meta)
			require.NoError(t, err)
			assert.True(t, first.IsUnique)

			second, err := env.access.Access(ctx, link.Token, &dto.AccessRequest{}, meta)
			require.NoError(t, err)
			assert.False(t, second.IsUnique, "same fingerprint is a repeat visit")

			otherViewer := businessflow.NewClientMetadata("198.51.100.77", meta.UserAgent)
			third, err := env.access.Access(ctx, link.Token, &dto.AccessRequest{}, otherViewer)
			require.NoError(t, err)
			assert.True(t, third.IsUnique)

			reloaded, err := env.linkRepo.ByID(ctx, link.ID)
			require.NoError(t, err)
			require.NotNil(t, reloaded)
			assert.Equal(t, int64(3), reloaded.ViewCount)
			assert.Equal(t, int64(2), reloaded.UniqueViewCount)
		})

		t.Run("SessionRowShape", func(t *testing.T) {
			_, link, err := env.fixtures.CreateSharedDocument()
			require.NoError(t, err)

			meta := testMetadata()
			meta.SetReferer("https://example.com/post")
			meta.SetCountry("DE")
			resp, err := env.access.Access(ctx, link.Token, &dto.AccessRequest{}, meta)
			require.NoError(t, err)

			sessions, err := env.sessionRepo.ByFilter(ctx, models.ViewSessionFilter{ShareLinkID: &link.ID}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, sessions, 1)
			s := sessions[0]
			assert.Equal(t, resp.SessionID, s.UUID.String())
			assert.Equal(t, meta.IPHash(), s.IPHash)
			assert.Equal(t, "desktop", s.Device)
			assert.Equal(t, "chrome", s.Browser)
			assert.Equal(t, "linux", s.OS)
			require.NotNil(t, s.Country)
			assert.Equal(t, "DE", *s.Country)
			assert.True(t, utils.IsTrue(s.IsActive))
			assert.WithinDuration(t, s.StartedAt.Add(utils.SessionRetention), s.DataRetentionDate, time.Second)
		})

		t.Run("Manifest", func(t *testing.T) {
			doc, err := env.fixtures.CreateTestDocument(nil)
			require.NoError(t, err)

			manifest, err := env.access.Manifest(ctx, doc.UUID.String())
			require.NoError(t, err)
			assert.Equal(t, doc.Title, manifest.Title)
			assert.Equal(t, 10, manifest.NumPages)

			_, err = env.access.Manifest(ctx, "not-a-uuid")
			assert.True(t, businessflow.IsDocumentNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestTelemetryFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(t, testDB)
		ctx := testingutil.CreateTestContext()

		openSession := func(t *testing.T) (*models.ShareLink, string) {
			t.Helper()
			_, link, err := env.fixtures.CreateSharedDocument()
			require.NoError(t, err)
			resp, err := env.access.Access(ctx, link.Token, &dto.AccessRequest{}, testMetadata())
			require.NoError(t, err)
			return link, resp.SessionID
		}

		t.Run("UnknownSession", func(t *testing.T) {
			link, _ := openSession(t)
			err := env.telemetry.RecordPageView(ctx, &dto.PageViewEvent{
				ShareID:    link.Token,
				SessionID:  "019526f1-0000-7000-8000-000000000000",
				Page:       1,
				TotalPages: 10,
			}, testMetadata())
			assert.True(t, businessflow.IsSessionNotFound(err))
		})

		t.Run("ShareMismatch", func(t *testing.T) {
			_, sessionID := openSession(t)
			otherLink, _ := openSession(t)

			err := env.telemetry.RecordPageView(ctx, &dto.PageViewEvent{
				ShareID:    otherLink.Token,
				SessionID:  sessionID,
				Page:       1,
				TotalPages: 10,
			}, testMetadata())
			assert.True(t, businessflow.IsSessionShareMismatch(err))
		})

		t.Run("PageOutOfRange", func(t *testing.T) {
			link, sessionID := openSession(t)
			err := env.telemetry.RecordPageView(ctx, &dto.PageViewEvent{
				ShareID:    link.Token,
				SessionID:  sessionID,
				Page:       11,
				TotalPages: 10,
			}, testMetadata())
			assert.True(t, businessflow.IsPageOutOfRange(err))
		})

		t.Run("PageViewFoldsIntoSession", func(t *testing.T) {
			link, sessionID := openSession(t)

			events := []dto.PageViewEvent{
				{ShareID: link.Token, SessionID: sessionID, Page: 1, TotalPages: 10, DurationMS: 0},
				{ShareID: link.Token, SessionID: sessionID, Page: 5, TotalPages: 10, DurationMS: 8000},
				{ShareID: link.Token, SessionID: sessionID, Page: 3, TotalPages: 10, DurationMS: 2500},
			}
			for i := range events {
				require.NoError(t, env.telemetry.RecordPageView(ctx, &events[i], testMetadata()))
			}

			sessions, err := env.sessionRepo.ByFilter(ctx, models.ViewSessionFilter{ShareLinkID: &link.ID}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, sessions, 1)
			s := sessions[0]
			assert.Equal(t, 3, s.PagesViewed)
			assert.Equal(t, 5, s.MaxPageReached)
			assert.Equal(t, 3, s.CurrentPage)
			assert.Equal(t, int64(10500), s.TotalDurationMS)

			rows, err := env.pageViewRepo.ListBySession(ctx, s.ID)
			require.NoError(t, err)
			require.Len(t, rows, 3)
			assert.Equal(t, int64(0), rows[0].DurationMS)
		})

		t.Run("PageCountAdoption", func(t *testing.T) {
			link, sessionID := openSession(t)

			// the client sees more pages than the document row knows about
			require.NoError(t, env.telemetry.RecordPageView(ctx, &dto.PageViewEvent{
				ShareID:    link.Token,
				SessionID:  sessionID,
				Page:       1,
				TotalPages: 24,
			}, testMetadata()))

			doc, err := env.docRepo.ByID(ctx, link.DocumentID)
			require.NoError(t, err)
			require.NotNil(t, doc)
			assert.Equal(t, 24, doc.NumPages)
		})

		t.Run("EndSessionLastWriteWins", func(t *testing.T) {
			link, sessionID := openSession(t)

			require.NoError(t, env.telemetry.RecordPageView(ctx, &dto.PageViewEvent{
				ShareID: link.Token, SessionID: sessionID, Page: 2, TotalPages: 10, DurationMS: 4000,
			}, testMetadata()))

			end := &dto.SessionEndEvent{
				ShareID:         link.Token,
				SessionID:       sessionID,
				DurationSeconds: 60,
				PagesViewed:     4,
				TotalPages:      10,
				MaxPageReached:  7,
			}
			require.NoError(t, env.telemetry.EndSession(ctx, end, testMetadata()))

			sessions, err := env.sessionRepo.ByFilter(ctx, models.ViewSessionFilter{ShareLinkID: &link.ID}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, sessions, 1)
			s := sessions[0]
			assert.False(t, utils.IsTrue(s.IsActive))
			assert.Equal(t, int64(60000), s.TotalDurationMS, "seconds on the wire, milliseconds at rest")
			assert.Equal(t, 4, s.PagesViewed)
			assert.Equal(t, 7, s.MaxPageReached)

			// a retried end event with a larger total overwrites cleanly
			end.DurationSeconds = 75
			require.NoError(t, env.telemetry.EndSession(ctx, end, testMetadata()))

			reloaded, err := env.sessionRepo.ByID(ctx, s.ID)
			require.NoError(t, err)
			require.NotNil(t, reloaded)
			assert.Equal(t, int64(75000), reloaded.TotalDurationMS)
		})

		t.Run("ActivityTouch", func(t *testing.T) {
			link, sessionID := openSession(t)

			sessions, err := env.sessionRepo.ByFilter(ctx, models.ViewSessionFilter{ShareLinkID: &link.ID}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, sessions, 1)
			before := sessions[0].LastActiveAt

			time.Sleep(20 * time.Millisecond)
			page := 6
			require.NoError(t, env.telemetry.RecordActivity(ctx, &dto.SessionActivityEvent{
				SessionID:   sessionID,
				CurrentPage: &page,
			}, testMetadata()))

			reloaded, err := env.sessionRepo.ByID(ctx, sessions[0].ID)
			require.NoError(t, err)
			require.NotNil(t, reloaded)
			assert.True(t, reloaded.LastActiveAt.After(before))
			assert.Equal(t, 6, reloaded.CurrentPage)
			assert.Equal(t, int64(0), reloaded.TotalDurationMS, "heartbeats never carry durations")
		})

		return nil
	})
	require.NoError(t, err)
}

func TestStatsFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(t, testDB)
		ctx := testingutil.CreateTestContext()

		statsFlow := businessflow.NewStatsFlow(
			env.docRepo, env.linkRepo, env.sessionRepo, env.pageViewRepo,
			repository.NewEmailCaptureRepository(testDB.DB), env.summaryRepo,
			env.globalRepo, businessflow.NewAggregateMirror(nil, ""),
		)

		t.Run("DocumentStats", func(t *testing.T) {
			doc, link, err := env.fixtures.CreateSharedDocument()
			require.NoError(t, err)

			resp, err := env.access.Access(ctx, link.Token, &dto.AccessRequest{}, testMetadata())
			require.NoError(t, err)
			require.NoError(t, env.telemetry.RecordPageView(ctx, &dto.PageViewEvent{
				ShareID: link.Token, SessionID: resp.SessionID, Page: 1, TotalPages: 10,
			}, testMetadata()))
			require.NoError(t, env.telemetry.RecordPageView(ctx, &dto.PageViewEvent{
				ShareID: link.Token, SessionID: resp.SessionID, Page: 2, TotalPages: 10, DurationMS: 6000,
			}, testMetadata()))

			stats, err := statsFlow.DocumentStats(ctx, link.Token)
			require.NoError(t, err)
			assert.Equal(t, doc.UUID.String(), stats.DocumentUUID)
			assert.Equal(t, 10, stats.TotalPages)
			assert.Equal(t, int64(1), stats.Views)
			assert.Equal(t, int64(1), stats.UniqueViews)
			assert.Equal(t, int64(6000), stats.TotalDurationMS)
			require.Len(t, stats.TopPages, 2)

			_, err = statsFlow.DocumentStats(ctx, "no-such-token")
			assert.True(t, businessflow.IsShareLinkNotFound(err))
		})

		t.Run("PageCountFallsBackToTelemetry", func(t *testing.T) {
			doc, link, err := env.fixtures.CreateSharedDocument()
			require.NoError(t, err)
			session, err := env.fixtures.CreateTestSession(link)
			require.NoError(t, err)
			_, err = env.fixtures.CreateTestPageView(session.ID, 3, 18, 0)
			require.NoError(t, err)

			// document uploaded before page counting
			require.NoError(t, testDB.DB.Model(doc).Update("num_pages", 0).Error)

			stats, err := statsFlow.DocumentStats(ctx, link.Token)
			require.NoError(t, err)
			assert.Equal(t, 18, stats.TotalPages)
		})

		t.Run("ListSessionsPagination", func(t *testing.T) {
			_, link, err := env.fixtures.CreateSharedDocument()
			require.NoError(t, err)
			for i := 0; i < 5; i++ {
				_, err := env.fixtures.CreateTestSession(link)
				require.NoError(t, err)
			}

			page1, err := statsFlow.ListSessions(ctx, link.Token, &dto.SessionListRequest{Page: 1, PageSize: 2})
			require.NoError(t, err)
			assert.Equal(t, int64(5), page1.Total)
			assert.Len(t, page1.Sessions, 2)

			page3, err := statsFlow.ListSessions(ctx, link.Token, &dto.SessionListRequest{Page: 3, PageSize: 2})
			require.NoError(t, err)
			assert.Len(t, page3.Sessions, 1)

			_, err = statsFlow.ListSessions(ctx, link.Token, &dto.SessionListRequest{PageSize: 500})
			assert.True(t, businessflow.IsInvalidPageSize(err))
		})

		t.Run("SessionDetail", func(t *testing.T) {
			_, link, err := env.fixtures.CreateSharedDocument()
			require.NoError(t, err)
			resp, err := env.access.Access(ctx, link.Token, &dto.AccessRequest{}, testMetadata())
			require.NoError(t, err)
			require.NoError(t, env.telemetry.RecordPageView(ctx, &dto.PageViewEvent{
				ShareID: link.Token, SessionID: resp.SessionID, Page: 1, TotalPages: 10,
			}, testMetadata()))

			detail, err := statsFlow.SessionDetail(ctx, link.Token, resp.SessionID)
			require.NoError(t, err)
			assert.Equal(t, resp.SessionID, detail.SessionID)
			require.Len(t, detail.PageViews, 1)
			assert.Equal(t, 1, detail.PageViews[0].PageNumber)

			// a session is only visible through its own share link
			_, otherLink, err := env.fixtures.CreateSharedDocument()
			require.NoError(t, err)
			_, err = statsFlow.SessionDetail(ctx, otherLink.Token, resp.SessionID)
			assert.True(t, businessflow.IsSessionNotFound(err))
		})

		t.Run("ExportSessions", func(t *testing.T) {
			_, link, err := env.fixtures.CreateSharedDocument()
			require.NoError(t, err)
			_, err = env.fixtures.CreateTestSession(link)
			require.NoError(t, err)

			filename, data, err := statsFlow.ExportSessions(ctx, link.Token, &dto.SessionListRequest{})
			require.NoError(t, err)
			assert.Contains(t, filename, ".xlsx")
			assert.NotEmpty(t, data)
		})

		t.Run("GlobalStats", func(t *testing.T) {
			stats, err := statsFlow.GlobalStats(ctx)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, stats.TotalViews, int64(0))
			assert.NotEmpty(t, stats.UpdatedAt)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestSummaryFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newFlowEnv(t, testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("GenerateDailySummaries", func(t *testing.T) {
			_, link, err := env.fixtures.CreateSharedDocument()
			require.NoError(t, err)
			day := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

			_, err = env.fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.StartedAt = day.Add(9 * time.Hour)
				s.TotalDurationMS = 30000
				s.Country = utils.ToPtr("US")
			})
			require.NoError(t, err)
			_, err = env.fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.StartedAt = day.Add(14 * time.Hour)
				s.TotalDurationMS = 10000
				s.IsUnique = utils.ToPtr(false)
				s.Country = utils.ToPtr("US")
			})
			require.NoError(t, err)

			count, err := env.summary.GenerateDailySummaries(ctx, day.Add(12*time.Hour), nil)
			require.NoError(t, err)
			assert.Equal(t, 1, count)

			row, err := env.summaryRepo.ByDocumentAndDate(ctx, link.DocumentID, day)
			require.NoError(t, err)
			require.NotNil(t, row)
			assert.Equal(t, int64(2), row.TotalViews)
			assert.Equal(t, int64(1), row.UniqueViews)
			assert.Equal(t, int64(40000), row.TotalDurationMS)
			assert.Equal(t, int64(20000), row.AvgDurationMS)
			assert.JSONEq(t, `{"US":2}`, string(row.CountryCounts))
			assert.JSONEq(t, `{"desktop":2}`, string(row.DeviceCounts))
		})

		t.Run("GenerateForDocument", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			env := newFlowEnv(t, testDB)

			docA, linkA, err := env.fixtures.CreateSharedDocument()
			require.NoError(t, err)
			_, linkB, err := env.fixtures.CreateSharedDocument()
			require.NoError(t, err)
			day := time.Date(2025, 8, 3, 0, 0, 0, 0, time.UTC)

			_, err = env.fixtures.CreateTestSession(linkA, func(s *models.ViewSession) {
				s.StartedAt = day.Add(10 * time.Hour)
				s.TotalDurationMS = 15000
			})
			require.NoError(t, err)
			_, err = env.fixtures.CreateTestSession(linkB, func(s *models.ViewSession) {
				s.StartedAt = day.Add(11 * time.Hour)
			})
			require.NoError(t, err)

			row, err := env.summary.GenerateForDocument(ctx, day, docA.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, row)
			assert.Equal(t, docA.ID, row.DocumentID)
			assert.Equal(t, int64(1), row.TotalViews)
			assert.Equal(t, int64(15000), row.TotalDurationMS)

			// the other document was left alone
			other, err := env.summaryRepo.ByDocumentAndDate(ctx, linkB.DocumentID, day)
			require.NoError(t, err)
			assert.Nil(t, other)

			_, err = env.summary.GenerateForDocument(ctx, day, "00000000-0000-0000-0000-000000000000")
			assert.True(t, businessflow.IsDocumentNotFound(err))
		})

		t.Run("RegenerationIsIdempotent", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			env := newFlowEnv(t, testDB)

			_, link, err := env.fixtures.CreateSharedDocument()
			require.NoError(t, err)
			day := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)
			_, err = env.fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.StartedAt = day.Add(time.Hour)
				s.TotalDurationMS = 5000
			})
			require.NoError(t, err)

			for i := 0; i < 3; i++ {
				_, err := env.summary.GenerateDailySummaries(ctx, day, nil)
				require.NoError(t, err)
			}

			count, err := env.summaryRepo.Count(ctx, models.DailySummaryFilter{DocumentID: &link.DocumentID})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			row, err := env.summaryRepo.ByDocumentAndDate(ctx, link.DocumentID, day)
			require.NoError(t, err)
			require.NotNil(t, row)
			assert.Equal(t, int64(1), row.TotalViews)
		})

		t.Run("RebaselineGlobal", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			env := newFlowEnv(t, testDB)

			// drift the incremental counters past what raw rows support
			for i := 0; i < 5; i++ {
				require.NoError(t, env.globalRepo.ApplySessionStart(ctx, true))
			}

			_, link, err := env.fixtures.CreateSharedDocument()
			require.NoError(t, err)
			session, err := env.fixtures.CreateTestSession(link, func(s *models.ViewSession) {
				s.TotalDurationMS = 45000
			})
			require.NoError(t, err)
			_, err = env.fixtures.CreateTestPageView(session.ID, 1, 10, 0)
			require.NoError(t, err)
			_, err = env.fixtures.CreateTestEmailCapture(link, "lead@example.com")
			require.NoError(t, err)

			require.NoError(t, env.summary.RebaselineGlobal(ctx))

			agg, err := env.globalRepo.Get(ctx)
			require.NoError(t, err)
			require.NotNil(t, agg)
			assert.Equal(t, int64(1), agg.TotalViews, "rebaseline discards drift")
			assert.Equal(t, int64(1), agg.UniqueViews)
			assert.Equal(t, int64(45000), agg.TotalDurationMS)
			assert.Equal(t, int64(45000), agg.AvgDurationMS)
			assert.Equal(t, int64(1), agg.TotalPageViews)
			assert.Equal(t, int64(1), agg.EmailCaptures)
		})

		return nil
	})
	require.NoError(t, err)
}
