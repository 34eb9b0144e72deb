package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/artgrid/backend/internal/models"
	"github.com/artgrid/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AdminHandler struct {
	adminService *services.AdminService
	assetService *services.AssetService
	userService  *services.UserService
	auditService *services.AuditService
	emailService *services.EmailService
}

func NewAdminHandler(adminService *services.AdminService, assetService *services.AssetService, userService *services.UserService, auditService *services.AuditService, emailService *services.EmailService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		assetService: assetService,
		userService:  userService,
		auditService: auditService,
		emailService: emailService,
	}
}

// GetPendingAssets lists assets awaiting moderation, oldest first
func (h *AdminHandler) GetPendingAssets(c *gin.Context) {
	assets, err := h.assetService.ListPending()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load pending assets"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"assets": assets})
}

// SetAssetApproval approves or rejects an asset. The state is a plain
// overwrite; re-moderating an asset keeps no history of the previous
// decision. Every decision is written to the audit log and the owner is
// notified by email.
func (h *AdminHandler) SetAssetApproval(c *gin.Context) {
	adminID, _ := c.Get("userID")

	assetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID"})
		return
	}

	var req struct {
		State string `json:"state" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state := models.ApprovalState(req.State)
	if state != models.ApprovalStateApproved && state != models.ApprovalStateRejected {
		c.JSON(http.StatusBadRequest, gin.H{"error": "State must be 'approved' or 'rejected'"})
		return
	}

	asset, err := h.assetService.SetApprovalState(assetID, state)
	if err != nil {
		if errors.Is(err, services.ErrAssetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update asset"})
		return
	}

	action := "approve_asset"
	if state == models.ApprovalStateRejected {
		action = "reject_asset"
	}
	if err := h.auditService.LogAction(adminID.(uuid.UUID), action, "asset", assetID, map[string]interface{}{
		"title": asset.Title,
		"state": string(state),
	}, c.ClientIP(), c.Request.UserAgent()); err != nil {
		// The decision stands even if the audit write fails
		c.Error(err)
	}

	if asset.Owner.Email != "" {
		go h.emailService.SendAssetModerated(asset.Owner.Email, asset)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Asset " + string(state),
		"asset":   asset,
	})
}

// GetAuditLogs lists recent admin actions with pagination and optional
// admin_id / action filters
func (h *AdminHandler) GetAuditLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var adminID *uuid.UUID
	if raw := c.Query("admin_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid admin ID"})
			return
		}
		adminID = &id
	}

	logs, total, err := h.auditService.GetRecentActions(page, limit, adminID, c.Query("action"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// GetUsers lists all users with pagination
func (h *AdminHandler) GetUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	users, total, err := h.userService.GetAllUsers((page-1)*limit, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// SetUserActive activates or deactivates a user account
func (h *AdminHandler) SetUserActive(c *gin.Context) {
	adminID, _ := c.Get("userID")

	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.userService.UpdateUserActive(userID, *req.IsActive); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}

	action := "deactivate_user"
	if *req.IsActive {
		action = "activate_user"
	}
	_ = h.auditService.LogAction(adminID.(uuid.UUID), action, "user", userID, nil, c.ClientIP(), c.Request.UserAgent())

	c.JSON(http.StatusOK, gin.H{"message": "User updated"})
}

// GetStats returns marketplace headline numbers
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.adminService.GetMarketplaceStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
