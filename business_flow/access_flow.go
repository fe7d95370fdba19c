package businessflow

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/docpulse/docpulse/app/dto"
	"github.com/docpulse/docpulse/app/services"
	"github.com/docpulse/docpulse/models"
	"github.com/docpulse/docpulse/repository"
	"github.com/docpulse/docpulse/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AccessFlow handles the share link access handshake: policy checks in a
// fixed order, session creation, counter updates, and the signed document
// handle. Public flow, no authentication required.
type AccessFlow interface {
	Access(ctx context.Context, token string, req *dto.AccessRequest, metadata *ClientMetadata) (*dto.AccessResponse, error)
	// Manifest returns the viewer-facing metadata for a document whose
	// handle has already been validated
	Manifest(ctx context.Context, documentUUID string) (*dto.DocumentManifestResponse, error)
}

type AccessFlowImpl struct {
	db               *gorm.DB
	documentRepo     repository.DocumentRepository
	shareLinkRepo    repository.ShareLinkRepository
	sessionRepo      repository.ViewSessionRepository
	emailCaptureRepo repository.EmailCaptureRepository
	globalRepo       repository.GlobalAggregateRepository
	auditRepo        repository.AuditLogRepository
	handleService    services.HandleService
	aggregateMirror  *AggregateMirror
}

func NewAccessFlow(
	db *gorm.DB,
	documentRepo repository.DocumentRepository,
	shareLinkRepo repository.ShareLinkRepository,
	sessionRepo repository.ViewSessionRepository,
	emailCaptureRepo repository.EmailCaptureRepository,
	globalRepo repository.GlobalAggregateRepository,
	auditRepo repository.AuditLogRepository,
	handleService services.HandleService,
	aggregateMirror *AggregateMirror,
) AccessFlow {
	return &AccessFlowImpl{
		db:               db,
		documentRepo:     documentRepo,
		shareLinkRepo:    shareLinkRepo,
		sessionRepo:      sessionRepo,
		emailCaptureRepo: emailCaptureRepo,
		globalRepo:       globalRepo,
		auditRepo:        auditRepo,
		handleService:    handleService,
		aggregateMirror:  aggregateMirror,
	}
}

// Access validates the link policy and, on success, opens a view session.
// The denial checks run in a fixed order so a caller probing a dead link
// never learns whether it was password protected: existence, enabled,
// expiry, and view cap are all checked before any credential.
func (f *AccessFlowImpl) Access(ctx context.Context, token string, req *dto.AccessRequest, metadata *ClientMetadata) (*dto.AccessResponse, error) {
	link, err := f.shareLinkRepo.ByToken(ctx, token)
	if err != nil {
		return nil, NewBusinessError("SHARE_LINK_LOOKUP_FAILED", "Failed to lookup share link", err)
	}
	if link == nil {
		f.logAccessDenied(ctx, nil, nil, "link not found", metadata)
		return nil, ErrShareLinkNotFound
	}
	if !utils.IsTrue(link.IsActive) {
		f.logAccessDenied(ctx, link, nil, "link disabled", metadata)
		return nil, ErrShareLinkDisabled
	}
	if link.ExpiresAt != nil && utils.IsExpired(*link.ExpiresAt) {
		f.logAccessDenied(ctx, link, nil, "link expired", metadata)
		return nil, ErrShareLinkExpired
	}
	if link.ViewLimitReached() {
		f.logAccessDenied(ctx, link, nil, "view limit reached", metadata)
		return nil, ErrViewLimitReached
	}

	if link.HasPassword() {
		if err := bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(req.Password)); err != nil {
			f.logAccessDenied(ctx, link, nil, "incorrect password", metadata)
			return nil, ErrIncorrectPassword
		}
	}

	email := strings.TrimSpace(req.Email)
	if utils.IsTrue(link.EmailGated) && email == "" {
		f.logAccessDenied(ctx, link, nil, "email required", metadata)
		return nil, ErrEmailRequired
	}

	var viewerEmail *string
	if email != "" {
		viewerEmail = utils.ToPtr(utils.NormalizeEmail(email))
	}
	var viewerName *string
	if name := strings.TrimSpace(req.Name); name != "" {
		viewerName = &name
	}

	ipHash := metadata.IPHash()
	device := utils.ParseUserAgent(metadata.UserAgent)

	var session *models.ViewSession
	var unique bool

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		// Uniqueness is judged against sessions that already exist for this
		// link and fingerprint, before the new row is inserted.
		seen, err := f.sessionRepo.ExistsPrior(txCtx, link.ID, ipHash, viewerEmail)
		if err != nil {
			return err
		}
		unique = !seen

		now := utils.UTCNow()
		session = &models.ViewSession{
			UUID:              uuid.New(),
			ShareLinkID:       link.ID,
			DocumentID:        link.DocumentID,
			ViewerEmail:       viewerEmail,
			ViewerName:        viewerName,
			IPHash:            ipHash,
			Device:            device.Device,
			Browser:           device.Browser,
			OS:                device.OS,
			StartedAt:         now,
			LastActiveAt:      now,
			IsUnique:          utils.ToPtr(unique),
			IsActive:          utils.ToPtr(true),
			DataRetentionDate: now.Add(utils.SessionRetention),
		}
		if metadata.Referer != "" {
			session.Referer = utils.ToPtr(metadata.Referer)
		}
		if metadata.Country != "" {
			session.Country = utils.ToPtr(metadata.Country)
		}

		if err := f.sessionRepo.Save(txCtx, session); err != nil {
			return err
		}

		if err := f.shareLinkRepo.IncrementViewCounts(txCtx, link.ID, unique); err != nil {
			return err
		}

		if viewerEmail != nil {
			capture := &models.EmailCapture{
				ShareLinkID: link.ID,
				DocumentID:  link.DocumentID,
				Email:       *viewerEmail,
				Name:        viewerName,
				CapturedAt:  now,
			}
			if err := f.emailCaptureRepo.Save(txCtx, capture); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, NewBusinessError("ACCESS_SESSION_FAILED", "Failed to open view session", err)
	}

	// Global counters ride outside the transaction; they are reconciled by
	// the periodic rebaseline when an increment is lost.
	if err := f.globalRepo.ApplySessionStart(ctx, unique); err != nil {
		log.Printf("global aggregate session-start update failed: %v", err)
	}
	if viewerEmail != nil {
		if err := f.globalRepo.ApplyEmailCapture(ctx); err != nil {
			log.Printf("global aggregate email-capture update failed: %v", err)
		}
	}
	f.aggregateMirror.MirrorSessionStart(ctx, unique, viewerEmail != nil)

	linkID := link.ID
	f.logAudit(ctx, &models.AuditLog{
		DocumentID:  &link.DocumentID,
		ShareLinkID: &linkID,
		SessionUUID: utils.ToPtr(session.UUID.String()),
		Action:      models.AuditActionAccessGranted,
		Success:     utils.ToPtr(true),
	}, metadata)
	if viewerEmail != nil {
		f.logAudit(ctx, &models.AuditLog{
			DocumentID:  &link.DocumentID,
			ShareLinkID: &linkID,
			SessionUUID: utils.ToPtr(session.UUID.String()),
			Action:      models.AuditActionEmailCaptured,
			Success:     utils.ToPtr(true),
			Metadata:    mustMetadataJSON(map[string]string{"email": *viewerEmail}),
		}, metadata)
	}

	doc, err := f.documentRepo.ByID(ctx, link.DocumentID)
	if err != nil || doc == nil {
		return nil, NewBusinessError("DOCUMENT_LOOKUP_FAILED", "Failed to lookup document", err)
	}

	handle, expiresIn, err := f.handleService.IssueHandle(doc.UUID.String(), session.UUID.String())
	if err != nil {
		return nil, NewBusinessError("HANDLE_ISSUE_FAILED", "Failed to issue document handle", err)
	}

	return &dto.AccessResponse{
		SessionID:      session.UUID.String(),
		DocumentHandle: handle,
		DocumentUUID:   doc.UUID.String(),
		IsUnique:       unique,
		ExpiresIn:      expiresIn,
	}, nil
}

func (f *AccessFlowImpl) Manifest(ctx context.Context, documentUUID string) (*dto.DocumentManifestResponse, error) {
	id, err := uuid.Parse(documentUUID)
	if err != nil {
		return nil, ErrDocumentNotFound
	}
	doc, err := f.documentRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("DOCUMENT_LOOKUP_FAILED", "Failed to lookup document", err)
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return &dto.DocumentManifestResponse{
		DocumentUUID: doc.UUID.String(),
		Title:        doc.Title,
		NumPages:     doc.NumPages,
	}, nil
}

func (f *AccessFlowImpl) logAccessDenied(ctx context.Context, link *models.ShareLink, sessionUUID *string, reason string, metadata *ClientMetadata) {
	audit := &models.AuditLog{
		Action:       models.AuditActionAccessDenied,
		SessionUUID:  sessionUUID,
		Success:      utils.ToPtr(false),
		ErrorMessage: &reason,
	}
	if link != nil {
		audit.DocumentID = &link.DocumentID
		audit.ShareLinkID = &link.ID
	}
	f.logAudit(ctx, audit, metadata)
}

func (f *AccessFlowImpl) logAudit(ctx context.Context, audit *models.AuditLog, metadata *ClientMetadata) {
	if metadata != nil {
		audit.IPHash = utils.ToPtr(metadata.IPHash())
		audit.UserAgent = utils.ToPtr(metadata.UserAgent)
	}
	audit.RequestID = requestIDFromContext(ctx)
	if err := f.auditRepo.Save(ctx, audit); err != nil {
		log.Printf("audit log write failed for action %s: %v", audit.Action, err)
	}
}

func mustMetadataJSON(m map[string]string) json.RawMessage {
	bs, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return bs
}

