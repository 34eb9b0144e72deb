package handlers

import (
	"errors"
	"net/http"

	"github.com/artgrid/backend/internal/models"
	"github.com/artgrid/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// GalleryHandler serves the public marketplace surface: approved assets
// and the category list. Pending and rejected assets never appear here.
type GalleryHandler struct {
	assetService    *services.AssetService
	categoryService *services.CategoryService
	purchaseService *services.PurchaseService
}

func NewGalleryHandler(assetService *services.AssetService, categoryService *services.CategoryService, purchaseService *services.PurchaseService) *GalleryHandler {
	return &GalleryHandler{
		assetService:    assetService,
		categoryService: categoryService,
		purchaseService: purchaseService,
	}
}

// GetGallery returns the approved asset listing together with all
// categories, optionally filtered by ?category=<uuid>. The two queries are
// independent and run concurrently.
func (h *GalleryHandler) GetGallery(c *gin.Context) {
	var categoryID *uuid.UUID
	if raw := c.Query("category"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
			return
		}
		if _, err := h.categoryService.GetByID(id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
			return
		}
		categoryID = &id
	}

	var (
		assets     []*models.Asset
		categories []*models.Category
	)

	g, _ := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		assets, err = h.assetService.ListPublic(categoryID)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = h.categoryService.GetAll()
		return err
	})

	if err := g.Wait(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load gallery"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assets":     assets,
		"categories": categories,
	})
}

// GetAsset returns a single asset. Unapproved assets are only visible to
// their owner; for signed-in viewers the response carries a purchased flag.
func (h *GalleryHandler) GetAsset(c *gin.Context) {
	assetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	asset, err := h.assetService.GetByID(assetID)
	if err != nil {
		if errors.Is(err, services.ErrAssetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load asset"})
		return
	}

	var viewerID *uuid.UUID
	if v, exists := c.Get("userID"); exists {
		id := v.(uuid.UUID)
		viewerID = &id
	}

	if asset.ApprovalState != models.ApprovalStateApproved {
		if viewerID == nil || *viewerID != asset.OwnerID {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
			return
		}
	}

	purchased := false
	if viewerID != nil {
		purchased, err = h.purchaseService.HasPurchased(assetID, *viewerID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load asset"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"asset":     asset,
		"purchased": purchased,
	})
}

// GetCategories returns all categories
func (h *GalleryHandler) GetCategories(c *gin.Context) {
	categories, err := h.categoryService.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load categories"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}
