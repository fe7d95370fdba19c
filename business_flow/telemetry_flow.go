package businessflow

import (
	"context"
	"log"

	"github.com/docpulse/docpulse/app/dto"
	"github.com/docpulse/docpulse/models"
	"github.com/docpulse/docpulse/repository"
	"github.com/docpulse/docpulse/utils"
	"github.com/google/uuid"
)

// TelemetryFlow ingests the client emitter's event stream: page transitions,
// session termination, and activity heartbeats. Every operation is tolerant
// of duplicates and out-of-order delivery; the emitter retries blindly and
// the server must converge regardless.
type TelemetryFlow interface {
	RecordPageView(ctx context.Context, req *dto.PageViewEvent, metadata *ClientMetadata) error
	EndSession(ctx context.Context, req *dto.SessionEndEvent, metadata *ClientMetadata) error
	RecordActivity(ctx context.Context, req *dto.SessionActivityEvent, metadata *ClientMetadata) error
}

type TelemetryFlowImpl struct {
	documentRepo    repository.DocumentRepository
	shareLinkRepo   repository.ShareLinkRepository
	sessionRepo     repository.ViewSessionRepository
	pageViewRepo    repository.PageViewRepository
	globalRepo      repository.GlobalAggregateRepository
	auditRepo       repository.AuditLogRepository
	aggregateMirror *AggregateMirror
}

func NewTelemetryFlow(
	documentRepo repository.DocumentRepository,
	shareLinkRepo repository.ShareLinkRepository,
	sessionRepo repository.ViewSessionRepository,
	pageViewRepo repository.PageViewRepository,
	globalRepo repository.GlobalAggregateRepository,
	auditRepo repository.AuditLogRepository,
	aggregateMirror *AggregateMirror,
) TelemetryFlow {
	return &TelemetryFlowImpl{
		documentRepo:    documentRepo,
		shareLinkRepo:   shareLinkRepo,
		sessionRepo:     sessionRepo,
		pageViewRepo:    pageViewRepo,
		globalRepo:      globalRepo,
		auditRepo:       auditRepo,
		aggregateMirror: aggregateMirror,
	}
}

// RecordPageView appends a page view row and folds it into the session
// counters. The event's duration belongs to the page the viewer just left;
// a session's first event carries zero.
func (f *TelemetryFlowImpl) RecordPageView(ctx context.Context, req *dto.PageViewEvent, metadata *ClientMetadata) error {
	session, err := f.resolveSession(ctx, req.SessionID)
	if err != nil {
		return err
	}

	link, err := f.shareLinkRepo.ByToken(ctx, req.ShareID)
	if err != nil {
		return NewBusinessError("SHARE_LINK_LOOKUP_FAILED", "Failed to lookup share link", err)
	}
	if link == nil || link.ID != session.ShareLinkID {
		return ErrSessionShareMismatch
	}

	if req.Page > req.TotalPages {
		return ErrPageOutOfRange
	}

	now := utils.UTCNow()
	pv := &models.PageView{
		SessionID:   session.ID,
		PageNumber:  req.Page,
		TotalPages:  req.TotalPages,
		DurationMS:  req.DurationMS,
		ScrollDepth: req.ScrollDepth,
		ViewedAt:    now,
	}
	if err := f.pageViewRepo.Save(ctx, pv); err != nil {
		return NewBusinessError("PAGE_VIEW_SAVE_FAILED", "Failed to record page view", err)
	}

	if err := f.sessionRepo.ApplyPageView(ctx, session.ID, req.Page, req.DurationMS, now); err != nil {
		return NewBusinessError("SESSION_UPDATE_FAILED", "Failed to update session counters", err)
	}

	if err := f.globalRepo.ApplyPageView(ctx); err != nil {
		log.Printf("global aggregate page-view update failed: %v", err)
	}
	f.aggregateMirror.MirrorPageView(ctx)

	// Clients report the real page count before the document row learns it.
	// Adopt the larger figure so per-page stats have a denominator.
	if doc, derr := f.documentRepo.ByID(ctx, session.DocumentID); derr == nil && doc != nil && req.TotalPages > doc.NumPages {
		if uerr := f.documentRepo.UpdateNumPages(ctx, doc.ID, req.TotalPages); uerr != nil {
			log.Printf("document %d page count refresh failed: %v", doc.ID, uerr)
		}
	}

	return nil
}

// EndSession records the client's authoritative totals for a finished
// session. Last write wins: a retried or late end event simply overwrites
// with what the client last knew.
func (f *TelemetryFlowImpl) EndSession(ctx context.Context, req *dto.SessionEndEvent, metadata *ClientMetadata) error {
	session, err := f.resolveSession(ctx, req.SessionID)
	if err != nil {
		return err
	}

	link, err := f.shareLinkRepo.ByToken(ctx, req.ShareID)
	if err != nil {
		return NewBusinessError("SHARE_LINK_LOOKUP_FAILED", "Failed to lookup share link", err)
	}
	if link == nil || link.ID != session.ShareLinkID {
		return ErrSessionShareMismatch
	}

	// The emitter reports whole seconds at the wire boundary; everything
	// internal stays in milliseconds.
	finalDurationMS := req.DurationSeconds * 1000
	durationDelta := finalDurationMS - session.TotalDurationMS

	now := utils.UTCNow()
	var pagesViewed, maxPage *int
	if req.PagesViewed > 0 {
		pagesViewed = &req.PagesViewed
	}
	if req.MaxPageReached > 0 {
		maxPage = &req.MaxPageReached
	}
	if err := f.sessionRepo.Close(ctx, session.ID, &finalDurationMS, pagesViewed, maxPage, now); err != nil {
		return NewBusinessError("SESSION_CLOSE_FAILED", "Failed to close session", err)
	}

	if durationDelta != 0 {
		if err := f.globalRepo.ApplySessionEnd(ctx, durationDelta); err != nil {
			log.Printf("global aggregate session-end update failed: %v", err)
		}
		f.aggregateMirror.MirrorSessionEnd(ctx, durationDelta)
	}

	audit := &models.AuditLog{
		DocumentID:  &session.DocumentID,
		ShareLinkID: &session.ShareLinkID,
		SessionUUID: utils.ToPtr(session.UUID.String()),
		Action:      models.AuditActionSessionEnded,
		Success:     utils.ToPtr(true),
	}
	if metadata != nil {
		audit.IPHash = utils.ToPtr(metadata.IPHash())
		audit.UserAgent = utils.ToPtr(metadata.UserAgent)
	}
	audit.RequestID = requestIDFromContext(ctx)
	if err := f.auditRepo.Save(ctx, audit); err != nil {
		log.Printf("audit log write failed for action %s: %v", audit.Action, err)
	}

	return nil
}

// RecordActivity is the heartbeat: it only moves last_active_at forward so
// the idle reaper leaves the session alone.
func (f *TelemetryFlowImpl) RecordActivity(ctx context.Context, req *dto.SessionActivityEvent, metadata *ClientMetadata) error {
	session, err := f.resolveSession(ctx, req.SessionID)
	if err != nil {
		return err
	}

	if err := f.sessionRepo.Touch(ctx, session.ID, utils.UTCNow(), req.CurrentPage); err != nil {
		return NewBusinessError("SESSION_TOUCH_FAILED", "Failed to record session activity", err)
	}
	return nil
}

func (f *TelemetryFlowImpl) resolveSession(ctx context.Context, sessionID string) (*models.ViewSession, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	session, err := f.sessionRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("SESSION_LOOKUP_FAILED", "Failed to lookup session", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}
