package repository

import (
	"fmt"

	"context"

	"github.com/marcel-gle/gb-qr-tracker/models"
	"gorm.io/gorm"
)

// CampaignRepositoryImpl implements CampaignRepository
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db)}
}

func (r *CampaignRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Code != nil {
		db = db.Where("code = ?", *f.Code)
	}
	if f.OwnerID != nil {
		db = db.Where("owner_id = ?", *f.OwnerID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Campaign{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Campaign
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CampaignRepositoryImpl) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Campaign{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CampaignRepositoryImpl) Exists(ctx context.Context, filter models.CampaignFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *CampaignRepositoryImpl) ByCode(ctx context.Context, code string) (*models.Campaign, error) {
	filter := models.CampaignFilter{Code: &code}
	rows, err := r.ByFilter(ctx, filter, "created_at ASC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *CampaignRepositoryImpl) SetCode(ctx context.Context, campaignID, code string) error {
	db := r.getDB(ctx)
	err := db.Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Update("code", code).Error
	if err != nil {
		return fmt.Errorf("failed to set campaign code: %w", err)
	}
	return nil
}

// IncrementTotals bumps the rollup counters atomically so concurrent imports
// into the same campaign never lose updates.
func (r *CampaignRepositoryImpl) IncrementTotals(ctx context.Context, campaignID string, targets, links int64) error {
	if targets == 0 && links == 0 {
		return nil
	}
	db := r.getDB(ctx)
	updates := map[string]any{}
	if targets != 0 {
		updates["totals_targets"] = gorm.Expr("totals_targets + ?", targets)
	}
	if links != 0 {
		updates["totals_links"] = gorm.Expr("totals_links + ?", links)
	}
	err := db.Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to increment campaign totals: %w", err)
	}
	return nil
}

func (r *CampaignRepositoryImpl) Delete(ctx context.Context, campaignID string) error {
	db := r.getDB(ctx)
	err := db.Where("id = ?", campaignID).Delete(&models.Campaign{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete campaign %s: %w", campaignID, err)
	}
	return nil
}
