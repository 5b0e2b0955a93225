package businessflow

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/marcel-gle/gb-qr-tracker/models"
	"github.com/marcel-gle/gb-qr-tracker/repository"
	"github.com/marcel-gle/gb-qr-tracker/utils"
)

// CampaignFlow resolves the campaign an import run writes into and tears it
// down again on fatal failure.
type CampaignFlow interface {
	// GetOrCreate reports via created whether this run created the campaign,
	// which scopes fatal cleanup to artifacts this run owns.
	GetOrCreate(ctx context.Context, ownerID, campaignID, name, code string) (campaign *models.Campaign, created bool, err error)
	IncrementTotals(ctx context.Context, campaignID string, targets, links int64) error
	Cleanup(ctx context.Context, campaignID string) (deletedTargets, deletedLinks int64, err error)
}

type CampaignFlowImpl struct {
	campaigns repository.CampaignRepository
	targets   repository.TargetRepository
	links     repository.LinkRepository
}

func NewCampaignFlow(
	campaigns repository.CampaignRepository,
	targets repository.TargetRepository,
	links repository.LinkRepository,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaigns: campaigns,
		targets:   targets,
		links:     links,
	}
}

// NormalizeCampaignCode brings a human-entered code into canonical uppercase
// slug form, e.g. "adm 01" becomes "ADM-01".
func NormalizeCampaignCode(code string) string {
	return strings.ToUpper(SanitizeID(code))
}

// GetOrCreate fetches or creates the campaign at campaignID. A code already
// bound to a different campaign is a fatal conflict; the caller must treat it
// as run-terminating and nothing is written. The uniqueness check is
// read-then-write, backed by a unique index on the code column as a second
// line of defense.
func (f *CampaignFlowImpl) GetOrCreate(ctx context.Context, ownerID, campaignID, name, code string) (*models.Campaign, bool, error) {
	if campaignID == "" {
		return nil, false, ErrCampaignIDRequired
	}
	code = NormalizeCampaignCode(code)

	if code != "" {
		existing, err := f.campaigns.ByCode(ctx, code)
		if err != nil {
			return nil, false, fmt.Errorf("failed to look up campaign code %s: %w", code, err)
		}
		if existing != nil && existing.ID != campaignID {
			return nil, false, NewBusinessErrorf("DUPLICATE_CAMPAIGN_CODE",
				"code %s already bound to campaign %s", ErrDuplicateCampaignCode, code, existing.ID)
		}
	}

	campaign, err := f.campaigns.ByID(ctx, campaignID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load campaign %s: %w", campaignID, err)
	}

	if campaign == nil {
		if name == "" {
			name = "Untitled Campaign"
			if code != "" {
				name = code
			}
		}
		campaign = &models.Campaign{
			ID:      campaignID,
			Name:    name,
			OwnerID: ownerID,
			Status:  models.CampaignStatusDraft,
		}
		if code != "" {
			campaign.Code = utils.ToPtr(code)
		}
		if err := f.campaigns.Save(ctx, campaign); err != nil {
			return nil, false, fmt.Errorf("failed to create campaign %s: %w", campaignID, err)
		}
		log.Printf("[campaign] created campaign %s (code=%s)", campaignID, code)
		return campaign, true, nil
	}

	if code != "" {
		switch {
		case campaign.Code == nil || *campaign.Code == "":
			if err := f.campaigns.SetCode(ctx, campaignID, code); err != nil {
				return nil, false, err
			}
			campaign.Code = utils.ToPtr(code)
		case *campaign.Code != code:
			return nil, false, NewBusinessErrorf("DUPLICATE_CAMPAIGN_CODE",
				"campaign %s already carries code %s", ErrDuplicateCampaignCode, campaignID, *campaign.Code)
		}
	}
	log.Printf("[campaign] using existing campaign %s", campaignID)
	return campaign, false, nil
}

// IncrementTotals bumps the campaign's rollup counters atomically, never
// read-modify-write, so concurrent imports into one campaign cannot lose
// counts.
func (f *CampaignFlowImpl) IncrementTotals(ctx context.Context, campaignID string, targets, links int64) error {
	return f.campaigns.IncrementTotals(ctx, campaignID, targets, links)
}

// Cleanup deletes everything written under the campaign so a retried import
// starts clean: links first, then targets, then the campaign itself.
func (f *CampaignFlowImpl) Cleanup(ctx context.Context, campaignID string) (int64, int64, error) {
	deletedLinks, err := f.links.DeleteByCampaign(ctx, campaignID)
	if err != nil {
		return 0, 0, err
	}
	deletedTargets, err := f.targets.DeleteByCampaign(ctx, campaignID)
	if err != nil {
		return deletedTargets, deletedLinks, err
	}
	if err := f.campaigns.Delete(ctx, campaignID); err != nil {
		return deletedTargets, deletedLinks, err
	}
	log.Printf("[cleanup] campaign %s removed (targets=%d links=%d)", campaignID, deletedTargets, deletedLinks)
	return deletedTargets, deletedLinks, nil
}
