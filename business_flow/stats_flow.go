package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/docpulse/docpulse/app/dto"
	"github.com/docpulse/docpulse/models"
	"github.com/docpulse/docpulse/repository"
	"github.com/docpulse/docpulse/utils"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const (
	defaultPageSize  = 20
	maxPageSize      = 100
	exportBatchLimit = 10000
	dailyWindowDays  = 30
	topPagesLimit    = 10
)

// StatsFlow serves the owner-facing reads: per-document stats, the session
// listing with drill-down, the Excel export, and the platform-wide counters.
type StatsFlow interface {
	DocumentStats(ctx context.Context, token string) (*dto.DocumentStatsResponse, error)
	ListSessions(ctx context.Context, token string, req *dto.SessionListRequest) (*dto.SessionListResponse, error)
	SessionDetail(ctx context.Context, token string, sessionID string) (*dto.SessionDTO, error)
	ExportSessions(ctx context.Context, token string, req *dto.SessionListRequest) (string, []byte, error)
	GlobalStats(ctx context.Context) (*dto.GlobalStatsResponse, error)
}

type StatsFlowImpl struct {
	documentRepo     repository.DocumentRepository
	shareLinkRepo    repository.ShareLinkRepository
	sessionRepo      repository.ViewSessionRepository
	pageViewRepo     repository.PageViewRepository
	emailCaptureRepo repository.EmailCaptureRepository
	dailySummaryRepo repository.DailySummaryRepository
	globalRepo       repository.GlobalAggregateRepository
	aggregateMirror  *AggregateMirror
}

func NewStatsFlow(
	documentRepo repository.DocumentRepository,
	shareLinkRepo repository.ShareLinkRepository,
	sessionRepo repository.ViewSessionRepository,
	pageViewRepo repository.PageViewRepository,
	emailCaptureRepo repository.EmailCaptureRepository,
	dailySummaryRepo repository.DailySummaryRepository,
	globalRepo repository.GlobalAggregateRepository,
	aggregateMirror *AggregateMirror,
) StatsFlow {
	return &StatsFlowImpl{
		documentRepo:     documentRepo,
		shareLinkRepo:    shareLinkRepo,
		sessionRepo:      sessionRepo,
		pageViewRepo:     pageViewRepo,
		emailCaptureRepo: emailCaptureRepo,
		dailySummaryRepo: dailySummaryRepo,
		globalRepo:       globalRepo,
		aggregateMirror:  aggregateMirror,
	}
}

// DocumentStats assembles the compact per-document dashboard read. View
// counts come straight off the share link counters; durations are summed
// from the raw session rows still inside retention.
func (f *StatsFlowImpl) DocumentStats(ctx context.Context, token string) (*dto.DocumentStatsResponse, error) {
	link, doc, err := f.resolveLink(ctx, token)
	if err != nil {
		return nil, err
	}

	var totalDurationMS, avgDurationMS int64
	rollups, err := f.sessionRepo.RollupRange(ctx, time.Time{}, utils.UTCNowAdd(24*time.Hour), &link.DocumentID)
	if err != nil {
		return nil, NewBusinessError("STATS_ROLLUP_FAILED", "Failed to compute document stats", err)
	}
	if len(rollups) > 0 {
		totalDurationMS = rollups[0].TotalDurationMS
		if rollups[0].TotalViews > 0 {
			avgDurationMS = totalDurationMS / rollups[0].TotalViews
		}
	}

	emailCaptures, err := f.emailCaptureRepo.Count(ctx, models.EmailCaptureFilter{DocumentID: &link.DocumentID})
	if err != nil {
		return nil, NewBusinessError("STATS_EMAIL_COUNT_FAILED", "Failed to count email captures", err)
	}

	distinctIPs, err := f.sessionRepo.Count(ctx, models.ViewSessionFilter{DocumentID: &link.DocumentID, IsUnique: utils.ToPtr(true)})
	if err != nil {
		return nil, NewBusinessError("STATS_UNIQUE_COUNT_FAILED", "Failed to count unique viewers", err)
	}

	pageCounts, err := f.pageViewRepo.TopPages(ctx, link.DocumentID, topPagesLimit)
	if err != nil {
		return nil, NewBusinessError("STATS_TOP_PAGES_FAILED", "Failed to compute top pages", err)
	}
	topPages := make([]dto.PageStatDTO, 0, len(pageCounts))
	for _, pc := range pageCounts {
		topPages = append(topPages, dto.PageStatDTO{PageNumber: pc.PageNumber, Views: pc.Views})
	}

	daily, err := f.recentDaily(ctx, link.DocumentID)
	if err != nil {
		return nil, err
	}

	// Documents uploaded before page counting fall back to the largest
	// count the viewer ever reported
	totalPages := doc.NumPages
	if totalPages == 0 {
		totalPages, err = f.pageViewRepo.MaxTotalPages(ctx, link.DocumentID)
		if err != nil {
			return nil, NewBusinessError("STATS_PAGE_COUNT_FAILED", "Failed to resolve page count", err)
		}
	}

	return &dto.DocumentStatsResponse{
		DocumentUUID:    doc.UUID.String(),
		TotalPages:      totalPages,
		Views:           link.ViewCount,
		UniqueViews:     link.UniqueViewCount,
		TotalDurationMS: totalDurationMS,
		AvgDurationMS:   avgDurationMS,
		EmailCaptures:   emailCaptures,
		DistinctIPs:     distinctIPs,
		TopPages:        topPages,
		Daily:           daily,
	}, nil
}

// ListSessions returns the paginated session listing, newest first
func (f *StatsFlowImpl) ListSessions(ctx context.Context, token string, req *dto.SessionListRequest) (*dto.SessionListResponse, error) {
	link, _, err := f.resolveLink(ctx, token)
	if err != nil {
		return nil, err
	}

	page, pageSize, filter, err := f.buildSessionFilter(link, req)
	if err != nil {
		return nil, err
	}

	total, err := f.sessionRepo.Count(ctx, *filter)
	if err != nil {
		return nil, NewBusinessError("SESSION_COUNT_FAILED", "Failed to count sessions", err)
	}

	rows, err := f.sessionRepo.ByFilter(ctx, *filter, "started_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("SESSION_LIST_FAILED", "Failed to list sessions", err)
	}

	sessions := make([]dto.SessionDTO, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, ToSessionDTO(*row))
	}

	return &dto.SessionListResponse{
		Sessions: sessions,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// SessionDetail returns one session with its page-by-page trail
func (f *StatsFlowImpl) SessionDetail(ctx context.Context, token string, sessionID string) (*dto.SessionDTO, error) {
	link, _, err := f.resolveLink(ctx, token)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	session, err := f.sessionRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("SESSION_LOOKUP_FAILED", "Failed to lookup session", err)
	}
	if session == nil || session.ShareLinkID != link.ID {
		return nil, ErrSessionNotFound
	}

	pageViews, err := f.pageViewRepo.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, NewBusinessError("PAGE_VIEW_LIST_FAILED", "Failed to list page views", err)
	}

	out := ToSessionDTO(*session)
	out.PageViews = make([]dto.PageViewDTO, 0, len(pageViews))
	for _, pv := range pageViews {
		out.PageViews = append(out.PageViews, ToPageViewDTO(*pv))
	}
	return &out, nil
}

// ExportSessions writes the filtered session listing into an xlsx workbook
func (f *StatsFlowImpl) ExportSessions(ctx context.Context, token string, req *dto.SessionListRequest) (string, []byte, error) {
	link, doc, err := f.resolveLink(ctx, token)
	if err != nil {
		return "", nil, err
	}

	_, _, filter, err := f.buildSessionFilter(link, req)
	if err != nil {
		return "", nil, err
	}

	rows, err := f.sessionRepo.ByFilter(ctx, *filter, "started_at DESC", exportBatchLimit, 0)
	if err != nil {
		return "", nil, NewBusinessError("SESSION_LIST_FAILED", "Failed to list sessions for export", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := xl.GetSheetName(0)
	header := []string{"session_id", "viewer_email", "viewer_name", "country", "device", "browser", "os", "referer", "started_at", "last_active_at", "duration_ms", "pages_viewed", "max_page_reached", "is_unique", "is_active"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for ri, row := range rows {
		record := []string{
			row.UUID.String(),
			utils.ValueOr(row.ViewerEmail, ""),
			utils.ValueOr(row.ViewerName, ""),
			utils.ValueOr(row.Country, ""),
			row.Device,
			row.Browser,
			row.OS,
			utils.ValueOr(row.Referer, ""),
			row.StartedAt.UTC().Format(time.RFC3339),
			row.LastActiveAt.UTC().Format(time.RFC3339),
			strconv.FormatInt(row.TotalDurationMS, 10),
			strconv.Itoa(row.PagesViewed),
			strconv.Itoa(row.MaxPageReached),
			strconv.FormatBool(utils.IsTrue(row.IsUnique)),
			strconv.FormatBool(utils.IsTrue(row.IsActive)),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("sessions_%s_%s.xlsx", doc.UUID.String(), utils.DateString(utils.UTCNow()))
	return filename, buf.Bytes(), nil
}

// GlobalStats serves the platform-wide counters, preferring the Redis
// mirror and falling back to the authoritative database row
func (f *StatsFlowImpl) GlobalStats(ctx context.Context) (*dto.GlobalStatsResponse, error) {
	if agg := f.aggregateMirror.Read(ctx); agg != nil {
		return globalStatsResponse(agg, utils.UTCNow()), nil
	}

	agg, err := f.globalRepo.Get(ctx)
	if err != nil {
		return nil, NewBusinessError("GLOBAL_STATS_FAILED", "Failed to read global stats", err)
	}
	if agg == nil {
		agg = &models.GlobalAggregate{ID: models.GlobalAggregateID}
	}
	f.aggregateMirror.Rewrite(ctx, agg)
	return globalStatsResponse(agg, agg.UpdatedAt), nil
}

func globalStatsResponse(agg *models.GlobalAggregate, updatedAt time.Time) *dto.GlobalStatsResponse {
	return &dto.GlobalStatsResponse{
		TotalViews:      agg.TotalViews,
		UniqueViews:     agg.UniqueViews,
		TotalDurationMS: agg.TotalDurationMS,
		AvgDurationMS:   agg.AvgDurationMS,
		TotalPageViews:  agg.TotalPageViews,
		EmailCaptures:   agg.EmailCaptures,
		UpdatedAt:       updatedAt.UTC().Format(time.RFC3339),
	}
}

func (f *StatsFlowImpl) resolveLink(ctx context.Context, token string) (*models.ShareLink, *models.Document, error) {
	link, err := f.shareLinkRepo.ByToken(ctx, token)
	if err != nil {
		return nil, nil, NewBusinessError("SHARE_LINK_LOOKUP_FAILED", "Failed to lookup share link", err)
	}
	if link == nil {
		return nil, nil, ErrShareLinkNotFound
	}
	doc, err := f.documentRepo.ByID(ctx, link.DocumentID)
	if err != nil {
		return nil, nil, NewBusinessError("DOCUMENT_LOOKUP_FAILED", "Failed to lookup document", err)
	}
	if doc == nil {
		return nil, nil, ErrDocumentNotFound
	}
	return link, doc, nil
}

func (f *StatsFlowImpl) buildSessionFilter(link *models.ShareLink, req *dto.SessionListRequest) (int, int, *models.ViewSessionFilter, error) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return 0, 0, nil, ErrInvalidPage
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return 0, 0, nil, ErrInvalidPageSize
	}

	filter := &models.ViewSessionFilter{ShareLinkID: &link.ID}
	if req.Email != "" {
		filter.ViewerEmail = utils.ToPtr(utils.NormalizeEmail(req.Email))
	}
	if req.Device != "" {
		filter.Device = &req.Device
	}
	if req.Country != "" {
		filter.Country = &req.Country
	}

	if req.StartDate != "" {
		start, err := time.Parse(utils.DateLayout, req.StartDate)
		if err != nil {
			return 0, 0, nil, NewBusinessError("VALIDATION_ERROR", "Invalid start date", err)
		}
		filter.StartedAfter = utils.ToPtr(utils.DayStart(start))
	}
	if req.EndDate != "" {
		end, err := time.Parse(utils.DateLayout, req.EndDate)
		if err != nil {
			return 0, 0, nil, NewBusinessError("VALIDATION_ERROR", "Invalid end date", err)
		}
		filter.StartedBefore = utils.ToPtr(utils.DayStart(end).Add(24 * time.Hour))
	}
	if filter.StartedAfter != nil && filter.StartedBefore != nil && filter.StartedAfter.After(*filter.StartedBefore) {
		return 0, 0, nil, ErrStartDateAfterEndDate
	}

	return page, pageSize, filter, nil
}

func (f *StatsFlowImpl) recentDaily(ctx context.Context, documentID uint) ([]dto.DailySummaryDTO, error) {
	since := utils.DayStart(utils.UTCNowAdd(-dailyWindowDays * 24 * time.Hour))
	rows, err := f.dailySummaryRepo.ByFilter(ctx, models.DailySummaryFilter{
		DocumentID: &documentID,
		DateAfter:  &since,
	}, "summary_date ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("STATS_DAILY_FAILED", "Failed to list daily summaries", err)
	}
	out := make([]dto.DailySummaryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToDailySummaryDTO(*row))
	}
	return out, nil
}
