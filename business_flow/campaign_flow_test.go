package businessflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcel-gle/gb-qr-tracker/models"
	"github.com/marcel-gle/gb-qr-tracker/repository"
	testingutil "github.com/marcel-gle/gb-qr-tracker/testing"
)

func newCampaignFlow(testDB *testingutil.TestDB) CampaignFlow {
	return NewCampaignFlow(
		repository.NewCampaignRepository(testDB.DB),
		repository.NewTargetRepository(testDB.DB),
		repository.NewLinkRepository(testDB.DB),
	)
}

func TestNormalizeCampaignCode(t *testing.T) {
	assert.Equal(t, "ADM-01", NormalizeCampaignCode("adm 01"))
	assert.Equal(t, "SUMMER-2026", NormalizeCampaignCode("Summer 2026"))
	assert.Equal(t, "", NormalizeCampaignCode("  "))
}

func TestCampaignFlowGetOrCreate(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newCampaignFlow(testDB)
		ctx := context.Background()

		t.Run("CreatesDraftCampaign", func(t *testing.T) {
			campaign, created, err := flow.GetOrCreate(ctx, "owner-1", "camp-1", "Summer Mailing", "summer 2026")
			require.NoError(t, err)
			assert.True(t, created)
			assert.Equal(t, "camp-1", campaign.ID)
			assert.Equal(t, "Summer Mailing", campaign.Name)
			assert.Equal(t, models.CampaignStatusDraft, campaign.Status)
			require.NotNil(t, campaign.Code)
			assert.Equal(t, "SUMMER-2026", *campaign.Code)
		})

		t.Run("ReturnsExistingCampaign", func(t *testing.T) {
			campaign, created, err := flow.GetOrCreate(ctx, "owner-1", "camp-1", "", "summer 2026")
			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, "camp-1", campaign.ID)
		})

		t.Run("CodeBoundToOtherCampaignConflicts", func(t *testing.T) {
			_, _, err := flow.GetOrCreate(ctx, "owner-1", "camp-2", "", "SUMMER-2026")
			require.Error(t, err)
			assert.True(t, IsDuplicateCampaignCode(err))

			// The conflicting run wrote nothing.
			campaigns := repository.NewCampaignRepository(testDB.DB)
			got, lookupErr := campaigns.ByID(ctx, "camp-2")
			require.NoError(t, lookupErr)
			assert.Nil(t, got)
		})

		t.Run("BindsCodeToCodelessCampaign", func(t *testing.T) {
			_, created, err := flow.GetOrCreate(ctx, "owner-1", "camp-3", "", "")
			require.NoError(t, err)
			assert.True(t, created)

			campaign, created, err := flow.GetOrCreate(ctx, "owner-1", "camp-3", "", "winter 2026")
			require.NoError(t, err)
			assert.False(t, created)
			require.NotNil(t, campaign.Code)
			assert.Equal(t, "WINTER-2026", *campaign.Code)
		})

		t.Run("DifferentCodeOnSameCampaignConflicts", func(t *testing.T) {
			_, _, err := flow.GetOrCreate(ctx, "owner-1", "camp-3", "", "spring 2027")
			require.Error(t, err)
			assert.True(t, IsDuplicateCampaignCode(err))
		})

		t.Run("CampaignIDRequired", func(t *testing.T) {
			_, _, err := flow.GetOrCreate(ctx, "owner-1", "", "", "")
			assert.ErrorIs(t, err, ErrCampaignIDRequired)
		})

		t.Run("NameFallsBackToCode", func(t *testing.T) {
			campaign, _, err := flow.GetOrCreate(ctx, "owner-1", "camp-4", "", "adm 01")
			require.NoError(t, err)
			assert.Equal(t, "ADM-01", campaign.Name)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCampaignFlowCleanup(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newCampaignFlow(testDB)
		campaigns := repository.NewCampaignRepository(testDB.DB)
		targets := repository.NewTargetRepository(testDB.DB)
		links := repository.NewLinkRepository(testDB.DB)
		ctx := context.Background()

		_, _, err := flow.GetOrCreate(ctx, "owner-1", "camp-1", "Cleanup Test", "")
		require.NoError(t, err)

		require.NoError(t, links.Create(ctx, testLinkForFlow("mueller", "camp-1")))
		require.NoError(t, links.Create(ctx, testLinkForFlow("schmidt", "camp-1")))
		require.NoError(t, targets.Save(ctx, &models.Target{
			CampaignID: "camp-1",
			BusinessID: "mueller-80331",
			Status:     models.TargetStatusLinked,
			ImportRow:  models.RowData{},
		}))

		deletedTargets, deletedLinks, err := flow.Cleanup(ctx, "camp-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), deletedTargets)
		assert.Equal(t, int64(2), deletedLinks)

		got, err := campaigns.ByID(ctx, "camp-1")
		require.NoError(t, err)
		assert.Nil(t, got)

		return nil
	})
	require.NoError(t, err)
}

func testLinkForFlow(id, campaignID string) *models.Link {
	return &models.Link{
		ID:          id,
		CampaignID:  campaignID,
		BusinessID:  "mueller-80331",
		TargetID:    "target-1",
		OwnerID:     "owner-1",
		Destination: "https://mueller.example.de",
		Active:      true,
		SnapshotMailing: models.SnapshotMailing{
			BusinessName: "Müller GmbH",
			Country:      "DE",
		},
	}
}
