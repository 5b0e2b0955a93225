package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/marcel-gle/gb-qr-tracker/models"
	"github.com/marcel-gle/gb-qr-tracker/repository"
	testingutil "github.com/marcel-gle/gb-qr-tracker/testing"
	"github.com/marcel-gle/gb-qr-tracker/utils"
)

func testLink(id, campaignID string) *models.Link {
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
			AddressLines: []string{"Hauptstraße 12"},
			Postcode:     "80331",
			City:         "München",
			Country:      "DE",
		},
	}
}

func TestCampaignRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewCampaignRepository(testDB.DB)
		ctx := context.Background()

		campaign := &models.Campaign{
			ID:      "camp-1",
			Name:    "Summer Mailing",
			Code:    utils.ToPtr("SUMMER-2026"),
			OwnerID: "owner-1",
		}
		require.NoError(t, repo.Save(ctx, campaign))

		t.Run("ByID", func(t *testing.T) {
			got, err := repo.ByID(ctx, "camp-1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "Summer Mailing", got.Name)
			assert.Equal(t, models.CampaignStatusDraft, got.Status)
		})

		t.Run("ByIDNotFound", func(t *testing.T) {
			got, err := repo.ByID(ctx, "missing")
			assert.NoError(t, err)
			assert.Nil(t, got)
		})

		t.Run("ByCode", func(t *testing.T) {
			got, err := repo.ByCode(ctx, "SUMMER-2026")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "camp-1", got.ID)

			got, err = repo.ByCode(ctx, "WINTER-2026")
			require.NoError(t, err)
			assert.Nil(t, got)
		})

		t.Run("SetCode", func(t *testing.T) {
			other := &models.Campaign{ID: "camp-2", Name: "Second", OwnerID: "owner-1"}
			require.NoError(t, repo.Save(ctx, other))
			require.NoError(t, repo.SetCode(ctx, "camp-2", "WINTER-2026"))

			got, err := repo.ByCode(ctx, "WINTER-2026")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "camp-2", got.ID)
		})

		t.Run("IncrementTotals", func(t *testing.T) {
			require.NoError(t, repo.IncrementTotals(ctx, "camp-1", 10, 7))
			require.NoError(t, repo.IncrementTotals(ctx, "camp-1", 5, 0))

			got, err := repo.ByID(ctx, "camp-1")
			require.NoError(t, err)
			assert.Equal(t, int64(15), got.TotalsTargets)
			assert.Equal(t, int64(7), got.TotalsLinks)
		})

		t.Run("Delete", func(t *testing.T) {
			require.NoError(t, repo.Delete(ctx, "camp-2"))
			got, err := repo.ByID(ctx, "camp-2")
			require.NoError(t, err)
			assert.Nil(t, got)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestBusinessRepositoryUpsertMerge(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewBusinessRepository(testDB.DB)
		ctx := context.Background()

		t.Run("CreatesWhenAbsent", func(t *testing.T) {
			require.NoError(t, repo.UpsertMerge(ctx, &models.Business{
				ID:           "mueller-80331",
				BusinessName: utils.ToPtr("Müller GmbH"),
				Postcode:     utils.ToPtr("80331"),
				OwnerIDs:     []string{"owner-1"},
			}))

			got, err := repo.ByID(ctx, "mueller-80331")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, []string{"owner-1"}, []string(got.OwnerIDs))
		})

		t.Run("UnionsOwners", func(t *testing.T) {
			require.NoError(t, repo.UpsertMerge(ctx, &models.Business{
				ID:       "mueller-80331",
				OwnerIDs: []string{"owner-2", "owner-1"},
			}))

			got, err := repo.ByID(ctx, "mueller-80331")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"owner-1", "owner-2"}, []string(got.OwnerIDs))
		})

		t.Run("MergesNonEmptyFieldsOnly", func(t *testing.T) {
			require.NoError(t, repo.UpsertMerge(ctx, &models.Business{
				ID:       "mueller-80331",
				City:     utils.ToPtr("München"),
				OwnerIDs: []string{"owner-1"},
			}))

			got, err := repo.ByID(ctx, "mueller-80331")
			require.NoError(t, err)
			// The sparse row added city without blanking earlier fields.
			require.NotNil(t, got.City)
			assert.Equal(t, "München", *got.City)
			require.NotNil(t, got.BusinessName)
			assert.Equal(t, "Müller GmbH", *got.BusinessName)
			require.NotNil(t, got.Postcode)
			assert.Equal(t, "80331", *got.Postcode)
		})

		t.Run("Idempotent", func(t *testing.T) {
			for i := 0; i < 3; i++ {
				require.NoError(t, repo.UpsertMerge(ctx, &models.Business{
					ID:       "mueller-80331",
					OwnerIDs: []string{"owner-1"},
				}))
			}
			count, err := repo.Count(ctx, models.BusinessFilter{})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		t.Run("StoresCoordinate", func(t *testing.T) {
			require.NoError(t, repo.UpsertMerge(ctx, &models.Business{
				ID:         "mueller-80331",
				OwnerIDs:   []string{"owner-1"},
				Coordinate: &models.Coordinate{Lat: 48.137, Lon: 11.575, Source: "mapbox"},
			}))

			got, err := repo.ByID(ctx, "mueller-80331")
			require.NoError(t, err)
			require.NotNil(t, got.Coordinate)
			assert.Equal(t, 48.137, got.Coordinate.Lat)
			assert.Equal(t, "mapbox", got.Coordinate.Source)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestBusinessRepositoryUpsertMergeCreateRace(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := context.Background()

		// A competing import creates the row between the lookup and the
		// insert. The callback injects that row right before the insert runs,
		// so the insert-or-ignore reports zero rows affected.
		raced := false
		require.NoError(t, testDB.DB.Callback().Create().Before("gorm:create").Register("competing_import", func(tx *gorm.DB) {
			if raced || tx.Statement.Table != "businesses" {
				return
			}
			raced = true
			tx.Session(&gorm.Session{NewDB: true}).Exec(
				"INSERT INTO businesses (id, business_name, owner_ids, hit_count, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)",
				"mueller-80331", "Müller GmbH", "{owner-a}", utils.UTCNow(), utils.UTCNow(),
			)
		}))

		repo := repository.NewBusinessRepository(testDB.DB)
		require.NoError(t, repo.UpsertMerge(ctx, &models.Business{
			ID:       "mueller-80331",
			City:     utils.ToPtr("München"),
			OwnerIDs: []string{"owner-b"},
		}))
		require.True(t, raced)

		// Neither the competing row's fields nor this run's are lost.
		got, err := repo.ByID(ctx, "mueller-80331")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.HasOwner("owner-a"))
		assert.True(t, got.HasOwner("owner-b"))
		require.NotNil(t, got.BusinessName)
		assert.Equal(t, "Müller GmbH", *got.BusinessName)
		require.NotNil(t, got.City)
		assert.Equal(t, "München", *got.City)
		return nil
	})
	require.NoError(t, err)
}

func TestLinkRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewLinkRepository(testDB.DB)
		ctx := context.Background()

		t.Run("CreateAndConflict", func(t *testing.T) {
			require.NoError(t, repo.Create(ctx, testLink("mueller", "camp-1")))

			err := repo.Create(ctx, testLink("mueller", "camp-1"))
			assert.ErrorIs(t, err, repository.ErrLinkExists)

			// The original row survived the conflicting create.
			got, err := repo.ByID(ctx, "mueller")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "camp-1", got.CampaignID)
		})

		t.Run("ListIDsWithPrefix", func(t *testing.T) {
			require.NoError(t, repo.Create(ctx, testLink("mueller-1", "camp-1")))
			require.NoError(t, repo.Create(ctx, testLink("mueller-2", "camp-2")))
			require.NoError(t, repo.Create(ctx, testLink("muellerhof", "camp-1")))
			require.NoError(t, repo.Create(ctx, testLink("schmidt", "camp-1")))

			ids, err := repo.ListIDsWithPrefix(ctx, "mueller")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"mueller", "mueller-1", "mueller-2", "muellerhof"}, ids)
		})

		t.Run("UnderscoreMatchesLiterally", func(t *testing.T) {
			require.NoError(t, repo.Create(ctx, testLink("qr_shop", "camp-1")))
			require.NoError(t, repo.Create(ctx, testLink("qrXshop", "camp-1")))

			// "_" must not act as a single-character wildcard.
			ids, err := repo.ListIDsWithPrefix(ctx, "qr_")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"qr_shop"}, ids)
		})

		t.Run("DeleteByCampaign", func(t *testing.T) {
			deleted, err := repo.DeleteByCampaign(ctx, "camp-2")
			require.NoError(t, err)
			assert.Equal(t, int64(1), deleted)

			got, err := repo.ByID(ctx, "mueller-2")
			require.NoError(t, err)
			assert.Nil(t, got)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestTargetRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewTargetRepository(testDB.DB)
		ctx := context.Background()

		linked := models.TargetStatusLinked
		require.NoError(t, repo.Save(ctx, &models.Target{
			CampaignID: "camp-1",
			BusinessID: "mueller-80331",
			Status:     linked,
			LinkID:     utils.ToPtr("mueller"),
			ImportRow:  models.RowData{"Namenszeile": "Müller GmbH"},
			DedupeKey:  "mueller-gmbh|hauptstrasse-12|80331|muenchen",
		}))
		require.NoError(t, repo.Save(ctx, &models.Target{
			CampaignID: "camp-1",
			BusinessID: "schmidt-10115",
			Status:     models.TargetStatusExcluded,
			ImportRow:  models.RowData{"Namenszeile": "Schmidt KG"},
		}))

		t.Run("IDGenerated", func(t *testing.T) {
			targets, err := repo.ByFilter(ctx, models.TargetFilter{}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, targets, 2)
			for _, target := range targets {
				assert.NotEmpty(t, target.ID)
			}
		})

		t.Run("FilterByStatus", func(t *testing.T) {
			count, err := repo.Count(ctx, models.TargetFilter{Status: &linked})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		t.Run("ImportRowRoundTrip", func(t *testing.T) {
			targets, err := repo.ByFilter(ctx, models.TargetFilter{Status: &linked}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, targets, 1)
			assert.Equal(t, "Müller GmbH", targets[0].ImportRow["Namenszeile"])
		})

		t.Run("DeleteByCampaign", func(t *testing.T) {
			deleted, err := repo.DeleteByCampaign(ctx, "camp-1")
			require.NoError(t, err)
			assert.Equal(t, int64(2), deleted)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestBlacklistRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewBlacklistRepository(testDB.DB)
		ctx := context.Background()

		require.NoError(t, repo.Save(ctx, &models.BlacklistEntry{
			OwnerID:    "owner-1",
			BusinessID: utils.ToPtr("mueller-80331"),
		}))
		require.NoError(t, repo.Save(ctx, &models.BlacklistEntry{
			OwnerID: "owner-1",
			Ref:     utils.ToPtr("businesses/schmidt-10115"),
		}))
		require.NoError(t, repo.Save(ctx, &models.BlacklistEntry{
			OwnerID:    "owner-2",
			BusinessID: utils.ToPtr("weber-50667"),
		}))

		t.Run("ListByOwner", func(t *testing.T) {
			entries, err := repo.ListByOwner(ctx, "owner-1")
			require.NoError(t, err)
			assert.Len(t, entries, 2)
		})

		t.Run("ResolvedBusinessID", func(t *testing.T) {
			entries, err := repo.ListByOwner(ctx, "owner-1")
			require.NoError(t, err)

			resolved := make([]string, 0, len(entries))
			for _, e := range entries {
				resolved = append(resolved, e.ResolvedBusinessID())
			}
			assert.ElementsMatch(t, []string{"mueller-80331", "schmidt-10115"}, resolved)
		})

		t.Run("OtherOwnerIsolated", func(t *testing.T) {
			entries, err := repo.ListByOwner(ctx, "owner-2")
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "weber-50667", entries[0].ResolvedBusinessID())
		})

		return nil
	})
	require.NoError(t, err)
}
