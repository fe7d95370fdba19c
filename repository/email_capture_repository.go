package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/docpulse/docpulse/models"
	"gorm.io/gorm"
)

// EmailCaptureRepositoryImpl implements EmailCaptureRepository
type EmailCaptureRepositoryImpl struct {
	*BaseRepository[models.EmailCapture, models.EmailCaptureFilter]
}

func NewEmailCaptureRepository(db *gorm.DB) EmailCaptureRepository {
	return &EmailCaptureRepositoryImpl{BaseRepository: NewBaseRepository[models.EmailCapture, models.EmailCaptureFilter](db)}
}

func (r *EmailCaptureRepositoryImpl) CountPerDocument(ctx context.Context, from, to time.Time) (map[uint]int64, error) {
	db := r.getDB(ctx)
	type row struct {
		DocumentID uint
		Captures   int64
	}
	var rows []row
	err := db.Model(&models.EmailCapture{}).
		Select("document_id", "COUNT(*) AS captures").
		Where("captured_at >= ? AND captured_at < ?", from, to).
		Group("document_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count email captures per document: %w", err)
	}
	out := make(map[uint]int64, len(rows))
	for _, r := range rows {
		out[r.DocumentID] = r.Captures
	}
	return out, nil
}

func (r *EmailCaptureRepositoryImpl) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	db := r.getDB(ctx)
	res := db.Where("captured_at < ?", cutoff).Delete(&models.EmailCapture{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete old email captures: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *EmailCaptureRepositoryImpl) applyFilter(db *gorm.DB, f models.EmailCaptureFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.ShareLinkID != nil {
		db = db.Where("share_link_id = ?", *f.ShareLinkID)
	}
	if f.DocumentID != nil {
		db = db.Where("document_id = ?", *f.DocumentID)
	}
	if f.Email != nil {
		db = db.Where("email = ?", *f.Email)
	}
	if f.CapturedAfter != nil {
		db = db.Where("captured_at >= ?", *f.CapturedAfter)
	}
	if f.CapturedBefore != nil {
		db = db.Where("captured_at < ?", *f.CapturedBefore)
	}
	return db
}

func (r *EmailCaptureRepositoryImpl) ByFilter(ctx context.Context, filter models.EmailCaptureFilter, orderBy string, limit, offset int) ([]*models.EmailCapture, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.EmailCapture{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.EmailCapture
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *EmailCaptureRepositoryImpl) Count(ctx context.Context, filter models.EmailCaptureFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.EmailCapture{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *EmailCaptureRepositoryImpl) Exists(ctx context.Context, filter models.EmailCaptureFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
