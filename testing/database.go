// Package testing provides test utilities and database setup for the import pipeline tests
package testing

import (
	"fmt"
	"log"
	"sync/atomic"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/marcel-gle/gb-qr-tracker/models"
)

// TestDB represents an in-memory test database instance
type TestDB struct {
	DB *gorm.DB
}

var testDBSeq atomic.Int64

// SetupTestDB opens a fresh in-memory sqlite database and runs migrations.
// Every call returns an isolated database. The databases are named so the
// connection pool shares one store; a single open connection keeps sqlite's
// writer locking out of the way.
func SetupTestDB() (*TestDB, error) {
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open test database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access test database pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.Campaign{},
		&models.Business{},
		&models.Target{},
		&models.Link{},
		&models.BlacklistEntry{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate test database: %w", err)
	}

	return &TestDB{DB: db}, nil
}

// Cleanup closes the underlying connection, dropping the in-memory database.
func (t *TestDB) Cleanup() error {
	sqlDB, err := t.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// TestWithDB runs testFunc against a fresh database and tears it down after.
func TestWithDB(testFunc func(*TestDB) error) error {
	testDB, err := SetupTestDB()
	if err != nil {
		return fmt.Errorf("failed to setup test database: %w", err)
	}
	defer func() {
		if cleanupErr := testDB.Cleanup(); cleanupErr != nil {
			log.Printf("Warning: failed to cleanup test database: %v", cleanupErr)
		}
	}()

	return testFunc(testDB)
}
