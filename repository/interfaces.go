// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/marcel-gle/gb-qr-tracker/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id string) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByCode(ctx context.Context, code string) (*models.Campaign, error)
	SetCode(ctx context.Context, campaignID, code string) error
	IncrementTotals(ctx context.Context, campaignID string, targets, links int64) error
	Delete(ctx context.Context, campaignID string) error
}

// BusinessRepository defines operations for businesses
type BusinessRepository interface {
	Repository[models.Business, models.BusinessFilter]
	// UpsertMerge creates the business or merges the given fields into the
	// existing row, growing the owner set without dropping prior owners.
	UpsertMerge(ctx context.Context, business *models.Business) error
}

// TargetRepository defines operations for targets
type TargetRepository interface {
	Repository[models.Target, models.TargetFilter]
	DeleteByCampaign(ctx context.Context, campaignID string) (int64, error)
}

// LinkRepository defines operations for links
type LinkRepository interface {
	Repository[models.Link, models.LinkFilter]
	// Create inserts a link and reports ErrLinkExists when the ID is taken.
	// Existing links are never overwritten.
	Create(ctx context.Context, link *models.Link) error
	ListIDsWithPrefix(ctx context.Context, prefix string) ([]string, error)
	DeleteByCampaign(ctx context.Context, campaignID string) (int64, error)
}

// BlacklistRepository defines operations for per-owner blacklist entries
type BlacklistRepository interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*models.BlacklistEntry, error)
	Save(ctx context.Context, entry *models.BlacklistEntry) error
}
