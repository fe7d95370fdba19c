package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docpulse/docpulse/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DailySummaryRepositoryImpl implements DailySummaryRepository
type DailySummaryRepositoryImpl struct {
	*BaseRepository[models.DailySummary, models.DailySummaryFilter]
}

func NewDailySummaryRepository(db *gorm.DB) DailySummaryRepository {
	return &DailySummaryRepositoryImpl{BaseRepository: NewBaseRepository[models.DailySummary, models.DailySummaryFilter](db)}
}

// Upsert overwrites the (document_id, summary_date) row with freshly
// recomputed values. Unlike an additive counter upsert, assignments here are
// absolute, which is what makes regeneration idempotent.
func (r *DailySummaryRepositoryImpl) Upsert(ctx context.Context, summary *models.DailySummary) error {
	db := r.getDB(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "document_id"},
			{Name: "summary_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_views",
			"unique_views",
			"total_duration_ms",
			"avg_duration_ms",
			"email_captures",
			"country_counts",
			"device_counts",
			"referer_counts",
			"updated_at",
		}),
	}).Create(summary).Error
	if err != nil {
		return fmt.Errorf("failed to upsert daily summary: %w", err)
	}
	return nil
}

func (r *DailySummaryRepositoryImpl) ByDocumentAndDate(ctx context.Context, documentID uint, date time.Time) (*models.DailySummary, error) {
	db := r.getDB(ctx)
	var row models.DailySummary
	err := db.Where("document_id = ? AND summary_date = ?", documentID, date).Last(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *DailySummaryRepositoryImpl) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	db := r.getDB(ctx)
	res := db.Where("summary_date < ?", cutoff).Delete(&models.DailySummary{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete old daily summaries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *DailySummaryRepositoryImpl) applyFilter(db *gorm.DB, f models.DailySummaryFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.DocumentID != nil {
		db = db.Where("document_id = ?", *f.DocumentID)
	}
	if f.DateAfter != nil {
		db = db.Where("summary_date >= ?", *f.DateAfter)
	}
	if f.DateBefore != nil {
		db = db.Where("summary_date < ?", *f.DateBefore)
	}
	return db
}

func (r *DailySummaryRepositoryImpl) ByFilter(ctx context.Context, filter models.DailySummaryFilter, orderBy string, limit, offset int) ([]*models.DailySummary, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.DailySummary{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.DailySummary
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *DailySummaryRepositoryImpl) Count(ctx context.Context, filter models.DailySummaryFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.DailySummary{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DailySummaryRepositoryImpl) Exists(ctx context.Context, filter models.DailySummaryFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
