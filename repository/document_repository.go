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

// DocumentRepositoryImpl implements DocumentRepository
type DocumentRepositoryImpl struct {
	*BaseRepository[models.Document, models.DocumentFilter]
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &DocumentRepositoryImpl{BaseRepository: NewBaseRepository[models.Document, models.DocumentFilter](db)}
}

func (r *DocumentRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	db := r.getDB(ctx)
	var row models.Document
	if err := db.Where("uuid = ?", id).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *DocumentRepositoryImpl) UpdateNumPages(ctx context.Context, documentID uint, numPages int) error {
	db := r.getDB(ctx)
	err := db.Model(&models.Document{}).
		Where("id = ? AND num_pages < ?", documentID, numPages).
		Updates(map[string]any{
			"num_pages":  numPages,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update document page count: %w", err)
	}
	return nil
}

func (r *DocumentRepositoryImpl) ListOrphanedBefore(ctx context.Context, cutoff time.Time) ([]*models.Document, error) {
	db := r.getDB(ctx)
	var rows []*models.Document
	err := db.Where("owner_id IS NULL AND created_at < ?", cutoff).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orphaned documents: %w", err)
	}
	return rows, nil
}

func (r *DocumentRepositoryImpl) DeleteByID(ctx context.Context, documentID uint) error {
	db := r.getDB(ctx)
	if err := db.Delete(&models.Document{}, documentID).Error; err != nil {
		return fmt.Errorf("failed to delete document %d: %w", documentID, err)
	}
	return nil
}

func (r *DocumentRepositoryImpl) applyFilter(db *gorm.DB, f models.DocumentFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.OwnerID != nil {
		db = db.Where("owner_id = ?", *f.OwnerID)
	}
	if f.Orphaned != nil {
		if *f.Orphaned {
			db = db.Where("owner_id IS NULL")
		} else {
			db = db.Where("owner_id IS NOT NULL")
		}
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *DocumentRepositoryImpl) ByFilter(ctx context.Context, filter models.DocumentFilter, orderBy string, limit, offset int) ([]*models.Document, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Document{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Document
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *DocumentRepositoryImpl) Count(ctx context.Context, filter models.DocumentFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Document{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DocumentRepositoryImpl) Exists(ctx context.Context, filter models.DocumentFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
