package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/docpulse/docpulse/models"
	"gorm.io/gorm"
)

// ShareLinkRepositoryImpl implements ShareLinkRepository
type ShareLinkRepositoryImpl struct {
	*BaseRepository[models.ShareLink, models.ShareLinkFilter]
}

func NewShareLinkRepository(db *gorm.DB) ShareLinkRepository {
	return &ShareLinkRepositoryImpl{BaseRepository: NewBaseRepository[models.ShareLink, models.ShareLinkFilter](db)}
}

func (r *ShareLinkRepositoryImpl) ByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	filter := models.ShareLinkFilter{Token: &token}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// IncrementViewCounts is a single conditional UPDATE: view_count always bumps,
// unique_view_count bumps only for unique sessions, so the
// unique_view_count <= view_count invariant holds under any interleaving.
func (r *ShareLinkRepositoryImpl) IncrementViewCounts(ctx context.Context, shareLinkID uint, unique bool) error {
	db := r.getDB(ctx)
	uniqueDelta := 0
	if unique {
		uniqueDelta = 1
	}
	res := db.Model(&models.ShareLink{}).
		Where("id = ?", shareLinkID).
		Updates(map[string]any{
			"view_count":        gorm.Expr("view_count + 1"),
			"unique_view_count": gorm.Expr("unique_view_count + ?", uniqueDelta),
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to increment share link counters: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("share link %d not found for counter increment", shareLinkID)
	}
	return nil
}

func (r *ShareLinkRepositoryImpl) applyFilter(db *gorm.DB, f models.ShareLinkFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Token != nil {
		db = db.Where("token = ?", *f.Token)
	}
	if f.DocumentID != nil {
		db = db.Where("document_id = ?", *f.DocumentID)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *ShareLinkRepositoryImpl) ByFilter(ctx context.Context, filter models.ShareLinkFilter, orderBy string, limit, offset int) ([]*models.ShareLink, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ShareLink{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ShareLink
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ShareLinkRepositoryImpl) Count(ctx context.Context, filter models.ShareLinkFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ShareLink{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ShareLinkRepositoryImpl) Exists(ctx context.Context, filter models.ShareLinkFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
