package businessflow

import (
	"context"
	"fmt"

	"github.com/marcel-gle/gb-qr-tracker/repository"
)

// BlacklistFilter is the in-memory suppression set for one owner, loaded once
// per run.
type BlacklistFilter struct {
	ownerID string
	ids     map[string]struct{}
}

// LoadBlacklist reads every blacklist entry of the owner into memory. Entries
// may carry either a plain business id or a legacy reference path.
func LoadBlacklist(ctx context.Context, repo repository.BlacklistRepository, ownerID string) (*BlacklistFilter, error) {
	entries, err := repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load blacklist for owner %s: %w", ownerID, err)
	}
	ids := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if id := e.ResolvedBusinessID(); id != "" {
			ids[id] = struct{}{}
		}
	}
	return &BlacklistFilter{ownerID: ownerID, ids: ids}, nil
}

// IsBlacklisted reports whether the owner suppressed this business.
func (f *BlacklistFilter) IsBlacklisted(businessID string) bool {
	_, ok := f.ids[businessID]
	return ok
}

// Size returns the number of suppressed business ids.
func (f *BlacklistFilter) Size() int {
	return len(f.ids)
}
