package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/artgrid/backend/internal/config"
	"github.com/artgrid/backend/internal/models"
	"github.com/artgrid/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type galleryFixture struct {
	db       *gorm.DB
	router   *gin.Engine
	nature   *models.Category
	sunrise  *models.Asset
	abstract *models.Category
}

func newGalleryFixture(t *testing.T) *galleryFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.Migrate(db))

	cfg := &config.Config{Env: "test", AssetPriceCents: 500, AssetPriceCurrency: "USD"}

	owner := &models.User{Username: "seller", Email: "seller@test.local", Password: "x", Name: "Seller", IsActive: true}
	require.NoError(t, db.Create(owner).Error)
	nature := &models.Category{ID: uuid.New(), Name: "Nature"}
	require.NoError(t, db.Create(nature).Error)
	abstract := &models.Category{ID: uuid.New(), Name: "Abstract"}
	require.NoError(t, db.Create(abstract).Error)
	sunrise := &models.Asset{
		Title:         "Sunrise",
		FileURL:       "https://cdn.test/sunrise.png",
		ThumbnailURL:  "https://cdn.test/sunrise-thumb.png",
		CategoryID:    nature.ID,
		OwnerID:       owner.ID,
		ApprovalState: models.ApprovalStateApproved,
	}
	require.NoError(t, db.Create(sunrise).Error)

	assetService := services.NewAssetService(db, cfg)
	categoryService := services.NewCategoryService(db)
	purchaseService := services.NewPurchaseService(db, nil, cfg, nil)
	handler := NewGalleryHandler(assetService, categoryService, purchaseService)

	router := gin.New()
	router.GET("/api/v1/gallery", handler.GetGallery)

	return &galleryFixture{db: db, router: router, nature: nature, sunrise: sunrise, abstract: abstract}
}

func TestGetGalleryCategoryFilter(t *testing.T) {
	t.Run("known category narrows the listing", func(t *testing.T) {
		f := newGalleryFixture(t)

		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/gallery?category="+f.nature.ID.String(), nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Assets []models.Asset `json:"assets"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Assets, 1)
		assert.Equal(t, f.sunrise.ID, resp.Assets[0].ID)
	})

	t.Run("empty category still returns all categories", func(t *testing.T) {
		f := newGalleryFixture(t)

		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/gallery?category="+f.abstract.ID.String(), nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Assets     []models.Asset    `json:"assets"`
			Categories []models.Category `json:"categories"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Empty(t, resp.Assets)
		assert.Len(t, resp.Categories, 2)
	})

	t.Run("unknown category is a 404", func(t *testing.T) {
		f := newGalleryFixture(t)

		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/gallery?category="+uuid.NewString(), nil))

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "Category not found")
	})

	t.Run("malformed category is a 400", func(t *testing.T) {
		f := newGalleryFixture(t)

		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/gallery?category=not-a-uuid", nil))

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid category ID")
	})
}
