package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/marcel-gle/gb-qr-tracker/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BusinessRepositoryImpl implements BusinessRepository
type BusinessRepositoryImpl struct {
	*BaseRepository[models.Business, models.BusinessFilter]
}

func NewBusinessRepository(db *gorm.DB) BusinessRepository {
	return &BusinessRepositoryImpl{BaseRepository: NewBaseRepository[models.Business, models.BusinessFilter](db)}
}

func (r *BusinessRepositoryImpl) applyFilter(db *gorm.DB, f models.BusinessFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.BusinessName != nil {
		db = db.Where("business_name = ?", *f.BusinessName)
	}
	if f.Postcode != nil {
		db = db.Where("postcode = ?", *f.Postcode)
	}
	if f.City != nil {
		db = db.Where("city = ?", *f.City)
	}
	if f.Email != nil {
		db = db.Where("email = ?", *f.Email)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *BusinessRepositoryImpl) ByFilter(ctx context.Context, filter models.BusinessFilter, orderBy string, limit, offset int) ([]*models.Business, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Business{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Business
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BusinessRepositoryImpl) Count(ctx context.Context, filter models.BusinessFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Business{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *BusinessRepositoryImpl) Exists(ctx context.Context, filter models.BusinessFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// UpsertMerge writes the business so that repeated imports converge: absent
// rows are created, present rows get the incoming non-key fields merged in
// and the owner set grows by union. The owner union is computed in Go so the
// statement stays portable across Postgres and the sqlite test driver.
func (r *BusinessRepositoryImpl) UpsertMerge(ctx context.Context, business *models.Business) error {
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

	var existing models.Business
	err = db.Where("id = ?", business.ID).First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to load business %s: %w", business.ID, err)
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		res := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(business)
		if res.Error != nil {
			err = fmt.Errorf("failed to create business %s: %w", business.ID, res.Error)
			return err
		}
		if res.RowsAffected > 0 {
			err = nil
			return nil
		}
		// A concurrent import created the row between lookup and insert.
		// Reload it and merge below so this run's fields and owner are not
		// dropped.
		err = db.Where("id = ?", business.ID).First(&existing).Error
		if err != nil {
			return fmt.Errorf("failed to reload business %s: %w", business.ID, err)
		}
	}

	business.OwnerIDs = unionOwners(existing.OwnerIDs, business.OwnerIDs)

	updates := map[string]any{
		"owner_ids":  business.OwnerIDs,
		"updated_at": business.UpdatedAt,
	}
	mergePtr(updates, "business_name", business.BusinessName)
	mergePtr(updates, "street", business.Street)
	mergePtr(updates, "house_number", business.HouseNumber)
	mergePtr(updates, "postcode", business.Postcode)
	mergePtr(updates, "city", business.City)
	mergePtr(updates, "name", business.Name)
	mergePtr(updates, "phone", business.Phone)
	mergePtr(updates, "email", business.Email)
	mergePtr(updates, "salutation", business.Salutation)
	mergePtr(updates, "address", business.Address)
	if business.Coordinate != nil {
		updates["coordinate"] = business.Coordinate
	}

	err = db.Model(&models.Business{}).Where("id = ?", business.ID).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to merge business %s: %w", business.ID, err)
	}
	return nil
}

// mergePtr adds the column only when the incoming row actually has a value,
// so sparse rows never blank out fields written by earlier imports.
func mergePtr(updates map[string]any, column string, v *string) {
	if v != nil && *v != "" {
		updates[column] = *v
	}
}

func unionOwners(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, lst := range [][]string{existing, incoming} {
		for _, o := range lst {
			if o == "" {
				continue
			}
			if _, ok := seen[o]; ok {
				continue
			}
			seen[o] = struct{}{}
			out = append(out, o)
		}
	}
	return out
}
