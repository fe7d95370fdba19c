package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docpulse/docpulse/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ViewSessionRepositoryImpl implements ViewSessionRepository
type ViewSessionRepositoryImpl struct {
	*BaseRepository[models.ViewSession, models.ViewSessionFilter]
}

func NewViewSessionRepository(db *gorm.DB) ViewSessionRepository {
	return &ViewSessionRepositoryImpl{BaseRepository: NewBaseRepository[models.ViewSession, models.ViewSessionFilter](db)}
}

func (r *ViewSessionRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.ViewSession, error) {
	db := r.getDB(ctx)
	var row models.ViewSession
	if err := db.Where("uuid = ?", id).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *ViewSessionRepositoryImpl) ExistsPrior(ctx context.Context, shareLinkID uint, ipHash string, email *string) (bool, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.ViewSession{}).
		Where("share_link_id = ? AND ip_hash = ?", shareLinkID, ipHash)
	if email != nil && *email != "" {
		query = query.Where("viewer_email = ?", *email)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check for prior session: %w", err)
	}
	return count > 0, nil
}

func (r *ViewSessionRepositoryImpl) Touch(ctx context.Context, sessionID uint, at time.Time, currentPage *int) error {
	db := r.getDB(ctx)
	updates := map[string]any{
		"last_active_at": at,
		"is_active":      true,
		"updated_at":     at,
	}
	if currentPage != nil {
		updates["current_page"] = *currentPage
	}
	err := db.Model(&models.ViewSession{}).Where("id = ?", sessionID).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to touch session %d: %w", sessionID, err)
	}
	return nil
}

// ApplyPageView folds one page transition into the session row in a single
// UPDATE: counters advance, max_page_reached ratchets, and the heartbeat
// timestamp moves, so concurrent events never lose increments.
func (r *ViewSessionRepositoryImpl) ApplyPageView(ctx context.Context, sessionID uint, page int, durationMS int64, at time.Time) error {
	db := r.getDB(ctx)
	err := db.Model(&models.ViewSession{}).Where("id = ?", sessionID).
		Updates(map[string]any{
			"pages_viewed":      gorm.Expr("pages_viewed + 1"),
			"max_page_reached":  gorm.Expr("GREATEST(max_page_reached, ?)", page),
			"current_page":      page,
			"total_duration_ms": gorm.Expr("total_duration_ms + ?", durationMS),
			"last_active_at":    at,
			"is_active":         true,
			"updated_at":        at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to apply page view to session %d: %w", sessionID, err)
	}
	return nil
}

// Close flips is_active and, only on the session-end path, overwrites the
// client-reported totals. A nil duration leaves total_duration_ms alone so the
// reaper can never fabricate durations.
func (r *ViewSessionRepositoryImpl) Close(ctx context.Context, sessionID uint, totalDurationMS *int64, pagesViewed, maxPageReached *int, at time.Time) error {
	db := r.getDB(ctx)
	updates := map[string]any{
		"is_active":  false,
		"updated_at": at,
	}
	if totalDurationMS != nil {
		updates["total_duration_ms"] = *totalDurationMS
	}
	if pagesViewed != nil {
		updates["pages_viewed"] = *pagesViewed
	}
	if maxPageReached != nil {
		updates["max_page_reached"] = *maxPageReached
	}
	err := db.Model(&models.ViewSession{}).Where("id = ?", sessionID).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to close session %d: %w", sessionID, err)
	}
	return nil
}

func (r *ViewSessionRepositoryImpl) ReapIdle(ctx context.Context, cutoff time.Time, at time.Time) (int64, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.ViewSession{}).
		Where("is_active = ? AND last_active_at < ?", true, cutoff).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": at,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reap idle sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *ViewSessionRepositoryImpl) DeleteExpired(ctx context.Context, now time.Time, fallbackCutoff time.Time) (int64, error) {
	db := r.getDB(ctx)
	res := db.Where("data_retention_date < ? OR started_at < ?", now, fallbackCutoff).
		Delete(&models.ViewSession{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *ViewSessionRepositoryImpl) RollupRange(ctx context.Context, from, to time.Time, documentID *uint) ([]*SessionRollup, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.ViewSession{}).
		Select("document_id",
			"COUNT(*) AS total_views",
			"COUNT(*) FILTER (WHERE is_unique) AS unique_views",
			"COALESCE(SUM(total_duration_ms), 0) AS total_duration_ms").
		Where("started_at >= ? AND started_at < ?", from, to).
		Group("document_id")
	if documentID != nil {
		query = query.Where("document_id = ?", *documentID)
	}
	var rows []*SessionRollup
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to roll up sessions: %w", err)
	}
	return rows, nil
}

func (r *ViewSessionRepositoryImpl) ListForRange(ctx context.Context, from, to time.Time, documentID *uint) ([]*models.ViewSession, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.ViewSession{}).
		Select("id", "document_id", "country", "device", "referer", "is_unique").
		Where("started_at >= ? AND started_at < ?", from, to)
	if documentID != nil {
		query = query.Where("document_id = ?", *documentID)
	}
	var rows []*models.ViewSession
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions for range: %w", err)
	}
	return rows, nil
}

func (r *ViewSessionRepositoryImpl) GlobalTotals(ctx context.Context) (*SessionRollup, error) {
	db := r.getDB(ctx)
	var row SessionRollup
	err := db.Model(&models.ViewSession{}).
		Select("COUNT(*) AS total_views",
			"COUNT(*) FILTER (WHERE is_unique) AS unique_views",
			"COALESCE(SUM(total_duration_ms), 0) AS total_duration_ms").
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute global session totals: %w", err)
	}
	return &row, nil
}

func (r *ViewSessionRepositoryImpl) applyFilter(db *gorm.DB, f models.ViewSessionFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.ShareLinkID != nil {
		db = db.Where("share_link_id = ?", *f.ShareLinkID)
	}
	if f.DocumentID != nil {
		db = db.Where("document_id = ?", *f.DocumentID)
	}
	if f.ViewerEmail != nil {
		db = db.Where("viewer_email = ?", *f.ViewerEmail)
	}
	if f.IPHash != nil {
		db = db.Where("ip_hash = ?", *f.IPHash)
	}
	if f.Country != nil {
		db = db.Where("country = ?", *f.Country)
	}
	if f.Device != nil {
		db = db.Where("device = ?", *f.Device)
	}
	if f.IsUnique != nil {
		db = db.Where("is_unique = ?", *f.IsUnique)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	if f.StartedAfter != nil {
		db = db.Where("started_at >= ?", *f.StartedAfter)
	}
	if f.StartedBefore != nil {
		db = db.Where("started_at < ?", *f.StartedBefore)
	}
	return db
}

func (r *ViewSessionRepositoryImpl) ByFilter(ctx context.Context, filter models.ViewSessionFilter, orderBy string, limit, offset int) ([]*models.ViewSession, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ViewSession{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ViewSession
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ViewSessionRepositoryImpl) Count(ctx context.Context, filter models.ViewSessionFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ViewSession{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ViewSessionRepositoryImpl) Exists(ctx context.Context, filter models.ViewSessionFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
