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

// GlobalAggregateRepositoryImpl implements GlobalAggregateRepository.
// Every mutation is a single conditional UPDATE against the singleton row;
// the running average is recomputed inside the same statement so concurrent
// writers can never lose updates.
type GlobalAggregateRepositoryImpl struct {
	db *gorm.DB
}

func NewGlobalAggregateRepository(db *gorm.DB) GlobalAggregateRepository {
	return &GlobalAggregateRepositoryImpl{db: db}
}

func (r *GlobalAggregateRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

func (r *GlobalAggregateRepositoryImpl) Get(ctx context.Context) (*models.GlobalAggregate, error) {
	db := r.getDB(ctx)
	var row models.GlobalAggregate
	if err := db.First(&row, models.GlobalAggregateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load global aggregate: %w", err)
	}
	return &row, nil
}

func (r *GlobalAggregateRepositoryImpl) EnsureRow(ctx context.Context) error {
	db := r.getDB(ctx)
	row := &models.GlobalAggregate{ID: models.GlobalAggregateID}
	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to ensure global aggregate row: %w", err)
	}
	return nil
}

func (r *GlobalAggregateRepositoryImpl) ApplySessionStart(ctx context.Context, unique bool) error {
	db := r.getDB(ctx)
	uniqueDelta := 0
	if unique {
		uniqueDelta = 1
	}
	err := db.Model(&models.GlobalAggregate{}).
		Where("id = ?", models.GlobalAggregateID).
		Updates(map[string]any{
			"total_views":     gorm.Expr("total_views + 1"),
			"unique_views":    gorm.Expr("unique_views + ?", uniqueDelta),
			"avg_duration_ms": gorm.Expr("total_duration_ms / GREATEST(total_views + 1, 1)"),
			"updated_at":      time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to apply session start to global aggregate: %w", err)
	}
	return nil
}

func (r *GlobalAggregateRepositoryImpl) ApplySessionEnd(ctx context.Context, durationDeltaMS int64) error {
	db := r.getDB(ctx)
	err := db.Model(&models.GlobalAggregate{}).
		Where("id = ?", models.GlobalAggregateID).
		Updates(map[string]any{
			"total_duration_ms": gorm.Expr("total_duration_ms + ?", durationDeltaMS),
			"avg_duration_ms":   gorm.Expr("(total_duration_ms + ?) / GREATEST(total_views, 1)", durationDeltaMS),
			"updated_at":        time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to apply session end to global aggregate: %w", err)
	}
	return nil
}

func (r *GlobalAggregateRepositoryImpl) ApplyPageView(ctx context.Context) error {
	db := r.getDB(ctx)
	err := db.Model(&models.GlobalAggregate{}).
		Where("id = ?", models.GlobalAggregateID).
		Updates(map[string]any{
			"total_page_views": gorm.Expr("total_page_views + 1"),
			"updated_at":       time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to apply page view to global aggregate: %w", err)
	}
	return nil
}

func (r *GlobalAggregateRepositoryImpl) ApplyEmailCapture(ctx context.Context) error {
	db := r.getDB(ctx)
	err := db.Model(&models.GlobalAggregate{}).
		Where("id = ?", models.GlobalAggregateID).
		Updates(map[string]any{
			"email_captures": gorm.Expr("email_captures + 1"),
			"updated_at":     time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to apply email capture to global aggregate: %w", err)
	}
	return nil
}

// Rebaseline overwrites the approximate counters with totals recomputed from
// raw rows, removing whatever drift retry duplicates introduced.
func (r *GlobalAggregateRepositoryImpl) Rebaseline(ctx context.Context, totals *SessionRollup, pageViews, emailCaptures int64) error {
	db := r.getDB(ctx)
	avg := int64(0)
	if totals.TotalViews > 0 {
		avg = totals.TotalDurationMS / totals.TotalViews
	}
	err := db.Model(&models.GlobalAggregate{}).
		Where("id = ?", models.GlobalAggregateID).
		Updates(map[string]any{
			"total_views":       totals.TotalViews,
			"unique_views":      totals.UniqueViews,
			"total_duration_ms": totals.TotalDurationMS,
			"avg_duration_ms":   avg,
			"total_page_views":  pageViews,
			"email_captures":    emailCaptures,
			"updated_at":        time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to rebaseline global aggregate: %w", err)
	}
	return nil
}
