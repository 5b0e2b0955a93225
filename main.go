// Package main provides the command line entry point for the QR tracker import pipeline
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/marcel-gle/gb-qr-tracker/app/services"
	businessflow "github.com/marcel-gle/gb-qr-tracker/business_flow"
	"github.com/marcel-gle/gb-qr-tracker/config"
	"github.com/marcel-gle/gb-qr-tracker/models"
	"github.com/marcel-gle/gb-qr-tracker/repository"
)

func main() {
	var (
		inputFile    = flag.String("business-file", "", "CSV or XLSX to import")
		ownerID      = flag.String("owner-id", "", "UID of the user who owns this import")
		baseURL      = flag.String("base-url", "", "base URL for tracking links, e.g. https://qr.example.com")
		dest         = flag.String("dest", "", "default destination URL for rows without one")
		campaignID   = flag.String("campaign-id", "", "campaign document id to import into")
		campaignCode = flag.String("campaign-code", "", "human code to reuse or create a campaign, e.g. ADM-01")
		campaignName = flag.String("campaign-name", "", "campaign display name")
		limit        = flag.Int("limit", 0, "only process the first N rows (0 = all)")
		skipExisting = flag.Bool("skip-existing", false, "skip creating links whose ids already exist")
		geocode      = flag.Bool("geocode", false, "enable Mapbox geocoding (deduped per unique address)")
		deriveID     = flag.Bool("derive-id", false, "derive link id bases from business identity (email domain)")
		reportPath   = flag.String("report", "", "path for the JSON report (default: alongside the input file)")
	)
	flag.Parse()

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if *baseURL == "" {
		*baseURL = cfg.Import.BaseURL
	}
	if *dest == "" {
		*dest = cfg.Import.DefaultDestination
	}
	if *inputFile == "" || *ownerID == "" || *baseURL == "" || *campaignID == "" {
		flag.Usage()
		log.Fatal("required: -business-file, -owner-id, -base-url (or BASE_URL), -campaign-id")
	}

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	var geocoder services.Geocoder
	if *geocode || cfg.Geocode.Enabled {
		geocoder = services.NewMapboxClient(cfg.Geocode.BaseURL, cfg.Geocode.MapboxToken, cfg.Geocode.CountryHint, cfg.Geocode.Timeout)
	}

	campaignRepo := repository.NewCampaignRepository(db)
	businessRepo := repository.NewBusinessRepository(db)
	targetRepo := repository.NewTargetRepository(db)
	linkRepo := repository.NewLinkRepository(db)
	blacklistRepo := repository.NewBlacklistRepository(db)

	campaignFlow := businessflow.NewCampaignFlow(campaignRepo, targetRepo, linkRepo)
	importFlow := businessflow.NewImportFlow(db, campaignFlow, businessRepo, targetRepo, linkRepo, blacklistRepo, geocoder)

	job := &businessflow.ImportJob{
		InputFile:            *inputFile,
		OwnerID:              *ownerID,
		BaseURL:              *baseURL,
		CampaignID:           *campaignID,
		CampaignCode:         *campaignCode,
		CampaignName:         *campaignName,
		DestinationDefault:   *dest,
		Limit:                *limit,
		SkipExisting:         *skipExisting || cfg.Import.SkipExisting,
		DeriveIDFromIdentity: *deriveID || cfg.Import.DeriveIDFromIdentity,
		Geocode:              *geocode || cfg.Geocode.Enabled,
	}

	if *reportPath == "" {
		ext := filepath.Ext(*inputFile)
		*reportPath = strings.TrimSuffix(*inputFile, ext) + "_report.json"
	}

	ctx := context.Background()
	report, err := importFlow.Run(ctx, job)
	if err != nil {
		writeErrorReport(*reportPath, *campaignID, err)
		log.Fatalf("import failed: %v", err)
	}

	if err := report.WriteJSON(*reportPath); err != nil {
		log.Fatalf("failed to write report: %v", err)
	}
	log.Printf("report written to %s", *reportPath)
	log.Printf("output file: %s", report.OutputFile)
}

func writeErrorReport(path, campaignID string, runErr error) {
	errReport := &businessflow.ErrorReport{
		Error:      runErr.Error(),
		CampaignID: campaignID,
	}
	var be *businessflow.BusinessError
	if errors.As(runErr, &be) && businessflow.IsDuplicateCampaignCode(runErr) {
		errReport.Error = be.Message
	}
	var fe *businessflow.FatalError
	if errors.As(runErr, &fe) {
		errReport.CleanupTargets = fe.DeletedTargets
		errReport.CleanupLinks = fe.DeletedLinks
	}
	if err := errReport.WriteJSON(path); err != nil {
		log.Printf("failed to write error report: %v", err)
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Campaign{},
		&models.Business{},
		&models.Target{},
		&models.Link{},
		&models.BlacklistEntry{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
