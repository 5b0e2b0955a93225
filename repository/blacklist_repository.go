package repository

import (
	"context"
	"fmt"

	"github.com/marcel-gle/gb-qr-tracker/models"
	"gorm.io/gorm"
)

// BlacklistRepositoryImpl implements BlacklistRepository
type BlacklistRepositoryImpl struct {
	DB *gorm.DB
}

func NewBlacklistRepository(db *gorm.DB) BlacklistRepository {
	return &BlacklistRepositoryImpl{DB: db}
}

func (r *BlacklistRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.DB
}

func (r *BlacklistRepositoryImpl) ListByOwner(ctx context.Context, ownerID string) ([]*models.BlacklistEntry, error) {
	db := r.getDB(ctx)
	var rows []*models.BlacklistEntry
	err := db.Model(&models.BlacklistEntry{}).
		Where("owner_id = ?", ownerID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list blacklist entries for owner %s: %w", ownerID, err)
	}
	return rows, nil
}

func (r *BlacklistRepositoryImpl) Save(ctx context.Context, entry *models.BlacklistEntry) error {
	db := r.getDB(ctx)
	if err := db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to save blacklist entry: %w", err)
	}
	return nil
}
