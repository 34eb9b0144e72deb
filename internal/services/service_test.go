package services

import (
	"testing"
	"time"

	"github.com/artgrid/backend/internal/config"
	"github.com/artgrid/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database. A single connection keeps
// every goroutine on the same database and serializes concurrent writers.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.Migrate(db))
	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Env:                     "test",
		APIUrl:                  "http://api.test",
		FrontendURL:             "http://app.test",
		JWTSecret:               "test-secret",
		JWTAccessTokenDuration:  time.Hour,
		JWTRefreshTokenDuration: 24 * time.Hour,
		AssetPriceCents:         500,
		AssetPriceCurrency:      "USD",
		CloudinaryCloudName:     "test-cloud",
		CloudinaryAPIKey:        "test-key",
		CloudinaryAPISecret:     "test-secret",
		CloudinaryFolder:        "artgrid-assets",
		BcryptCost:              4,
	}
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username: username,
		Email:    username + "@test.local",
		Password: "not-a-real-hash",
		Name:     "Test " + username,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestCategory(t *testing.T, db *gorm.DB, name string) *models.Category {
	t.Helper()

	category := &models.Category{ID: uuid.New(), Name: name}
	require.NoError(t, db.Create(category).Error)
	return category
}

func createTestAsset(t *testing.T, db *gorm.DB, owner *models.User, category *models.Category, state models.ApprovalState) *models.Asset {
	t.Helper()

	asset := &models.Asset{
		Title:         "Test Asset",
		Description:   "A test asset",
		FileURL:       "https://cdn.test/assets/full.png",
		ThumbnailURL:  "https://cdn.test/assets/thumb.png",
		CategoryID:    category.ID,
		OwnerID:       owner.ID,
		ApprovalState: state,
	}
	require.NoError(t, db.Create(asset).Error)
	return asset
}
