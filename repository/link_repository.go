package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marcel-gle/gb-qr-tracker/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrLinkExists is returned by Create when the requested link ID is already
// taken. Links are create-only so the caller must pick a different ID.
var ErrLinkExists = errors.New("link already exists")

// LinkRepositoryImpl implements LinkRepository
type LinkRepositoryImpl struct {
	*BaseRepository[models.Link, models.LinkFilter]
}

func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &LinkRepositoryImpl{BaseRepository: NewBaseRepository[models.Link, models.LinkFilter](db)}
}

func (r *LinkRepositoryImpl) applyFilter(db *gorm.DB, f models.LinkFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.IDPrefix != nil {
		db = db.Where("id LIKE ? ESCAPE '\\'", escapeLike(*f.IDPrefix)+"%")
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.BusinessID != nil {
		db = db.Where("business_id = ?", *f.BusinessID)
	}
	if f.OwnerID != nil {
		db = db.Where("owner_id = ?", *f.OwnerID)
	}
	if f.Active != nil {
		db = db.Where("active = ?", *f.Active)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *LinkRepositoryImpl) ByFilter(ctx context.Context, filter models.LinkFilter, orderBy string, limit, offset int) ([]*models.Link, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Link{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Link
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *LinkRepositoryImpl) Count(ctx context.Context, filter models.LinkFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Link{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *LinkRepositoryImpl) Exists(ctx context.Context, filter models.LinkFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// Create inserts the link with an insert-or-ignore so a taken ID surfaces as
// ErrLinkExists instead of a driver error that would poison the surrounding
// transaction.
func (r *LinkRepositoryImpl) Create(ctx context.Context, link *models.Link) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(link)
	if res.Error != nil {
		err = fmt.Errorf("failed to create link %s: %w", link.ID, res.Error)
		return err
	}
	if res.RowsAffected == 0 {
		err = fmt.Errorf("link %s: %w", link.ID, ErrLinkExists)
		return err
	}
	return nil
}

// ListIDsWithPrefix returns only the IDs, not full rows; an import run scans
// each base slug once and the result can run to thousands of entries.
func (r *LinkRepositoryImpl) ListIDsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	db := r.getDB(ctx)
	var ids []string
	err := db.Model(&models.Link{}).
		Where("id LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list link IDs with prefix %s: %w", prefix, err)
	}
	return ids, nil
}

func (r *LinkRepositoryImpl) DeleteByCampaign(ctx context.Context, campaignID string) (int64, error) {
	db := r.getDB(ctx)
	res := db.Where("campaign_id = ?", campaignID).Delete(&models.Link{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete links of campaign %s: %w", campaignID, res.Error)
	}
	return res.RowsAffected, nil
}

// escapeLike escapes LIKE metacharacters so slugs containing "_" match
// literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
