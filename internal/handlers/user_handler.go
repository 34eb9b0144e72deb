package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/artgrid/backend/internal/services"
	"github.com/artgrid/backend/pkg/validation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserHandler struct {
	userService     *services.UserService
	assetService    *services.AssetService
	purchaseService *services.PurchaseService
	uploadService   *services.UploadService
	invoiceService  *services.InvoiceService
}

func NewUserHandler(userService *services.UserService, assetService *services.AssetService, purchaseService *services.PurchaseService, uploadService *services.UploadService, invoiceService *services.InvoiceService) *UserHandler {
	return &UserHandler{
		userService:     userService,
		assetService:    assetService,
		purchaseService: purchaseService,
		uploadService:   uploadService,
		invoiceService:  invoiceService,
	}
}

// GetProfile retrieves the current user's profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, _ := c.Get("userID")

	user, err := h.userService.GetUserByID(userID.(uuid.UUID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"name":       user.Name,
		"image":      user.Image,
		"is_admin":   user.IsAdmin,
		"created_at": user.CreatedAt,
	})
}

// UpdateProfile updates the current user's profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, _ := c.Get("userID")

	var req struct {
		Name  string `json:"name"`
		Image string `json:"image"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = validation.SanitizeString(req.Name)
	}
	if req.Image != "" {
		if !validation.ValidateURL(req.Image) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image URL"})
			return
		}
		updates["image"] = req.Image
	}

	if err := h.userService.UpdateUserProfile(userID.(uuid.UUID), updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Profile updated"})
}

// SignUpload issues a short-lived signature for a direct client upload to
// the media provider. The server never sees the binary; it only signs the
// upload parameters.
func (h *UserHandler) SignUpload(c *gin.Context) {
	var req struct {
		Timestamp int64 `json:"timestamp"`
	}
	// Body is optional; a missing timestamp defaults to now
	_ = c.ShouldBindJSON(&req)

	cred, err := h.uploadService.SignUpload(req.Timestamp)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload signing is not configured"})
		return
	}

	c.JSON(http.StatusOK, cred)
}

// CreateAsset records the metadata of an asset whose binary was already
// uploaded to the media provider. The new asset starts pending moderation.
func (h *UserHandler) CreateAsset(c *gin.Context) {
	userID, _ := c.Get("userID")

	var req struct {
		Title        string `json:"title" binding:"required"`
		Description  string `json:"description"`
		FileURL      string `json:"file_url" binding:"required"`
		ThumbnailURL string `json:"thumbnail_url"`
		CategoryID   string `json:"category_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !validation.ValidateTitle(req.Title) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid title"})
		return
	}

	if !validation.ValidateURL(req.FileURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file URL"})
		return
	}

	if req.ThumbnailURL != "" && !validation.ValidateURL(req.ThumbnailURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid thumbnail URL"})
		return
	}

	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
		return
	}

	asset, err := h.assetService.Create(services.CreateAssetInput{
		Title:        validation.SanitizeString(req.Title),
		Description:  validation.SanitizeString(req.Description),
		FileURL:      req.FileURL,
		ThumbnailURL: req.ThumbnailURL,
		CategoryID:   categoryID,
		OwnerID:      userID.(uuid.UUID),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Asset submitted for review",
		"asset":   asset,
	})
}

// GetMyAssets lists the current user's own assets in every approval state
func (h *UserHandler) GetMyAssets(c *gin.Context) {
	userID, _ := c.Get("userID")

	assets, err := h.assetService.ListByOwner(userID.(uuid.UUID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load assets"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"assets": assets})
}

// InitiateCheckout creates a payment order for an asset and returns the
// approval link the client should redirect the payer to
func (h *UserHandler) InitiateCheckout(c *gin.Context) {
	userID, _ := c.Get("userID")

	assetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	result, err := h.purchaseService.InitiateCheckout(c.Request.Context(), assetID, userID.(uuid.UUID))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAssetNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
		case errors.Is(err, services.ErrAssetNotApproved):
			c.JSON(http.StatusConflict, gin.H{"error": "Asset is not available for purchase"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create payment order"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPurchases lists the current user's purchases
func (h *UserHandler) GetPurchases(c *gin.Context) {
	userID, _ := c.Get("userID")

	purchases, err := h.purchaseService.GetUserPurchases(userID.(uuid.UUID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load purchases"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}

// DownloadAsset serves the delivery page for a purchased asset. Owners can
// always download their own assets.
func (h *UserHandler) DownloadAsset(c *gin.Context) {
	userID, _ := c.Get("userID")

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

	if asset.OwnerID != userID.(uuid.UUID) {
		purchased, err := h.purchaseService.HasPurchased(assetID, userID.(uuid.UUID))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify purchase"})
			return
		}
		if !purchased {
			c.JSON(http.StatusForbidden, gin.H{"error": "Asset has not been purchased"})
			return
		}
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", h.invoiceService.RenderDownloadPage(asset))
}

// GetInvoice renders the HTML invoice for a purchase
func (h *UserHandler) GetInvoice(c *gin.Context) {
	userID, _ := c.Get("userID")

	purchaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid purchase ID"})
		return
	}

	purchase, err := h.purchaseService.GetPurchaseByID(purchaseID, userID.(uuid.UUID))
	if err != nil {
		if errors.Is(err, services.ErrPurchaseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Purchase not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load purchase"})
		return
	}

	html, err := h.invoiceService.RenderHTML(purchase)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render invoice"})
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

// GetInvoicePDF renders the PDF invoice for a purchase
func (h *UserHandler) GetInvoicePDF(c *gin.Context) {
	userID, _ := c.Get("userID")

	purchaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid purchase ID"})
		return
	}

	purchase, err := h.purchaseService.GetPurchaseByID(purchaseID, userID.(uuid.UUID))
	if err != nil {
		if errors.Is(err, services.ErrPurchaseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Purchase not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load purchase"})
		return
	}

	pdf, err := h.invoiceService.RenderPDF(purchase)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render invoice"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", purchaseID))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
