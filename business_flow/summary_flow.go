package businessflow

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/docpulse/docpulse/models"
	"github.com/docpulse/docpulse/repository"
	"github.com/docpulse/docpulse/utils"
	"github.com/google/uuid"
)

// SummaryFlow is the recompute half of the aggregation pipeline. It derives
// per-document daily rollups from raw session rows and re-baselines the
// global counters, correcting whatever drift the incremental path
// accumulated. Both operations are idempotent: re-running over the same data
// produces identical rows.
type SummaryFlow interface {
	// GenerateDailySummaries recomputes every document's summary for the
	// calendar day containing the given instant. Returns the number of
	// documents summarized.
	GenerateDailySummaries(ctx context.Context, day time.Time, documentID *uint) (int, error)
	// GenerateForDocument recomputes a single document's summary for the day
	// and returns the stored row, nil when the day had no activity
	GenerateForDocument(ctx context.Context, day time.Time, documentUUID string) (*models.DailySummary, error)
	// RebaselineGlobal overwrites the global aggregate from raw rows
	RebaselineGlobal(ctx context.Context) error
}

type SummaryFlowImpl struct {
	sessionRepo      repository.ViewSessionRepository
	pageViewRepo     repository.PageViewRepository
	emailCaptureRepo repository.EmailCaptureRepository
	dailySummaryRepo repository.DailySummaryRepository
	globalRepo       repository.GlobalAggregateRepository
	auditRepo        repository.AuditLogRepository
	documentRepo     repository.DocumentRepository
	aggregateMirror  *AggregateMirror
}

func NewSummaryFlow(
	sessionRepo repository.ViewSessionRepository,
	pageViewRepo repository.PageViewRepository,
	emailCaptureRepo repository.EmailCaptureRepository,
	dailySummaryRepo repository.DailySummaryRepository,
	globalRepo repository.GlobalAggregateRepository,
	auditRepo repository.AuditLogRepository,
	documentRepo repository.DocumentRepository,
	aggregateMirror *AggregateMirror,
) SummaryFlow {
	return &SummaryFlowImpl{
		sessionRepo:      sessionRepo,
		pageViewRepo:     pageViewRepo,
		emailCaptureRepo: emailCaptureRepo,
		dailySummaryRepo: dailySummaryRepo,
		globalRepo:       globalRepo,
		auditRepo:        auditRepo,
		documentRepo:     documentRepo,
		aggregateMirror:  aggregateMirror,
	}
}

// dimensionCounts collects the small per-day frequency maps for one document
type dimensionCounts struct {
	countries map[string]int64
	devices   map[string]int64
	referers  map[string]int64
}

func newDimensionCounts() *dimensionCounts {
	return &dimensionCounts{
		countries: make(map[string]int64),
		devices:   make(map[string]int64),
		referers:  make(map[string]int64),
	}
}

func (f *SummaryFlowImpl) GenerateDailySummaries(ctx context.Context, day time.Time, documentID *uint) (int, error) {
	from := utils.DayStart(day.UTC())
	to := from.Add(24 * time.Hour)

	rollups, err := f.sessionRepo.RollupRange(ctx, from, to, documentID)
	if err != nil {
		return 0, NewBusinessError("SUMMARY_ROLLUP_FAILED", "Failed to roll up sessions", err)
	}

	captures, err := f.emailCaptureRepo.CountPerDocument(ctx, from, to)
	if err != nil {
		return 0, NewBusinessError("SUMMARY_CAPTURE_COUNT_FAILED", "Failed to count email captures", err)
	}

	sessions, err := f.sessionRepo.ListForRange(ctx, from, to, documentID)
	if err != nil {
		return 0, NewBusinessError("SUMMARY_DIMENSION_FAILED", "Failed to list session dimensions", err)
	}
	dims := make(map[uint]*dimensionCounts)
	for _, s := range sessions {
		dc, ok := dims[s.DocumentID]
		if !ok {
			dc = newDimensionCounts()
			dims[s.DocumentID] = dc
		}
		if s.Country != nil && *s.Country != "" {
			dc.countries[*s.Country]++
		}
		if s.Device != "" {
			dc.devices[s.Device]++
		}
		if s.Referer != nil && *s.Referer != "" {
			dc.referers[*s.Referer]++
		}
	}

	// A document can capture emails on a day with zero finished sessions;
	// it still gets a summary row.
	byDocument := make(map[uint]*repository.SessionRollup, len(rollups))
	for _, r := range rollups {
		byDocument[r.DocumentID] = r
	}
	for docID := range captures {
		if documentID != nil && docID != *documentID {
			continue
		}
		if _, ok := byDocument[docID]; !ok {
			byDocument[docID] = &repository.SessionRollup{DocumentID: docID}
		}
	}

	count := 0
	for docID, rollup := range byDocument {
		summary := &models.DailySummary{
			DocumentID:      docID,
			SummaryDate:     from,
			TotalViews:      rollup.TotalViews,
			UniqueViews:     rollup.UniqueViews,
			TotalDurationMS: rollup.TotalDurationMS,
			EmailCaptures:   captures[docID],
		}
		if rollup.TotalViews > 0 {
			summary.AvgDurationMS = rollup.TotalDurationMS / rollup.TotalViews
		}
		if dc, ok := dims[docID]; ok {
			summary.CountryCounts = marshalCounts(dc.countries)
			summary.DeviceCounts = marshalCounts(dc.devices)
			summary.RefererCounts = marshalCounts(dc.referers)
		}
		if err := f.dailySummaryRepo.Upsert(ctx, summary); err != nil {
			return count, NewBusinessError("SUMMARY_UPSERT_FAILED", "Failed to upsert daily summary", err)
		}
		count++
	}

	audit := &models.AuditLog{
		DocumentID: documentID,
		Action:     models.AuditActionSummaryGenerated,
		Success:    utils.ToPtr(true),
		Metadata:   mustMetadataJSON(map[string]string{"date": utils.DateString(from), "documents": strconv.Itoa(count)}),
	}
	if err := f.auditRepo.Save(ctx, audit); err != nil {
		log.Printf("audit log write failed for action %s: %v", audit.Action, err)
	}

	return count, nil
}

func (f *SummaryFlowImpl) GenerateForDocument(ctx context.Context, day time.Time, documentUUID string) (*models.DailySummary, error) {
	id, err := uuid.Parse(documentUUID)
	if err != nil {
		return nil, ErrDocumentNotFound
	}
	doc, err := f.documentRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("SUMMARY_DOCUMENT_LOOKUP_FAILED", "Failed to look up document", err)
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}

	if _, err := f.GenerateDailySummaries(ctx, day, &doc.ID); err != nil {
		return nil, err
	}

	return f.dailySummaryRepo.ByDocumentAndDate(ctx, doc.ID, utils.DayStart(day))
}

func (f *SummaryFlowImpl) RebaselineGlobal(ctx context.Context) error {
	totals, err := f.sessionRepo.GlobalTotals(ctx)
	if err != nil {
		return NewBusinessError("REBASELINE_TOTALS_FAILED", "Failed to recompute session totals", err)
	}

	pageViews, err := f.pageViewRepo.Count(ctx, models.PageViewFilter{})
	if err != nil {
		return NewBusinessError("REBASELINE_PAGE_VIEWS_FAILED", "Failed to count page views", err)
	}

	emailCaptures, err := f.emailCaptureRepo.Count(ctx, models.EmailCaptureFilter{})
	if err != nil {
		return NewBusinessError("REBASELINE_CAPTURES_FAILED", "Failed to count email captures", err)
	}

	if err := f.globalRepo.Rebaseline(ctx, totals, pageViews, emailCaptures); err != nil {
		return NewBusinessError("REBASELINE_WRITE_FAILED", "Failed to rewrite global aggregate", err)
	}

	agg, err := f.globalRepo.Get(ctx)
	if err == nil && agg != nil {
		f.aggregateMirror.Rewrite(ctx, agg)
	}

	return nil
}

func marshalCounts(m map[string]int64) json.RawMessage {
	if len(m) == 0 {
		return nil
	}
	bs, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return bs
}
