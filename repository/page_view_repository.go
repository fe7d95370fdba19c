package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docpulse/docpulse/models"
	"gorm.io/gorm"
)

// PageViewRepositoryImpl implements PageViewRepository
type PageViewRepositoryImpl struct {
	*BaseRepository[models.PageView, models.PageViewFilter]
}

func NewPageViewRepository(db *gorm.DB) PageViewRepository {
	return &PageViewRepositoryImpl{BaseRepository: NewBaseRepository[models.PageView, models.PageViewFilter](db)}
}

func (r *PageViewRepositoryImpl) ListBySession(ctx context.Context, sessionID uint) ([]*models.PageView, error) {
	db := r.getDB(ctx)
	var rows []*models.PageView
	err := db.Where("session_id = ?", sessionID).
		Order("viewed_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list page views for session %d: %w", sessionID, err)
	}
	return rows, nil
}

func (r *PageViewRepositoryImpl) MaxTotalPages(ctx context.Context, documentID uint) (int, error) {
	db := r.getDB(ctx)
	var max sql.NullInt64
	err := db.Model(&models.PageView{}).
		Joins("JOIN view_sessions ON view_sessions.id = page_views.session_id").
		Where("view_sessions.document_id = ?", documentID).
		Select("MAX(page_views.total_pages)").
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute max total pages: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64), nil
}

func (r *PageViewRepositoryImpl) TopPages(ctx context.Context, documentID uint, limit int) ([]*PageCount, error) {
	db := r.getDB(ctx)
	if limit <= 0 {
		limit = 10
	}
	var rows []*PageCount
	err := db.Model(&models.PageView{}).
		Joins("JOIN view_sessions ON view_sessions.id = page_views.session_id").
		Where("view_sessions.document_id = ?", documentID).
		Select("page_views.page_number AS page_number", "COUNT(*) AS views").
		Group("page_views.page_number").
		Order("views DESC, page_number ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute top pages: %w", err)
	}
	return rows, nil
}

func (r *PageViewRepositoryImpl) applyFilter(db *gorm.DB, f models.PageViewFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.SessionID != nil {
		db = db.Where("session_id = ?", *f.SessionID)
	}
	if f.PageNumber != nil {
		db = db.Where("page_number = ?", *f.PageNumber)
	}
	if f.ViewedAfter != nil {
		db = db.Where("viewed_at >= ?", *f.ViewedAfter)
	}
	if f.ViewedBefore != nil {
		db = db.Where("viewed_at < ?", *f.ViewedBefore)
	}
	return db
}

func (r *PageViewRepositoryImpl) ByFilter(ctx context.Context, filter models.PageViewFilter, orderBy string, limit, offset int) ([]*models.PageView, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PageView{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.PageView
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PageViewRepositoryImpl) Count(ctx context.Context, filter models.PageViewFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PageView{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PageViewRepositoryImpl) Exists(ctx context.Context, filter models.PageViewFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
