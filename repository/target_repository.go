package repository

import (
	"context"
	"fmt"

	"github.com/marcel-gle/gb-qr-tracker/models"
	"gorm.io/gorm"
)

// TargetRepositoryImpl implements TargetRepository
type TargetRepositoryImpl struct {
	*BaseRepository[models.Target, models.TargetFilter]
}

func NewTargetRepository(db *gorm.DB) TargetRepository {
	return &TargetRepositoryImpl{BaseRepository: NewBaseRepository[models.Target, models.TargetFilter](db)}
}

func (r *TargetRepositoryImpl) applyFilter(db *gorm.DB, f models.TargetFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.BusinessID != nil {
		db = db.Where("business_id = ?", *f.BusinessID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.DedupeKey != nil {
		db = db.Where("dedupe_key = ?", *f.DedupeKey)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *TargetRepositoryImpl) ByFilter(ctx context.Context, filter models.TargetFilter, orderBy string, limit, offset int) ([]*models.Target, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Target{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Target
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *TargetRepositoryImpl) Count(ctx context.Context, filter models.TargetFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Target{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *TargetRepositoryImpl) Exists(ctx context.Context, filter models.TargetFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *TargetRepositoryImpl) DeleteByCampaign(ctx context.Context, campaignID string) (int64, error) {
	db := r.getDB(ctx)
	res := db.Where("campaign_id = ?", campaignID).Delete(&models.Target{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete targets of campaign %s: %w", campaignID, res.Error)
	}
	return res.RowsAffected, nil
}
