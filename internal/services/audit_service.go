package services

import (
	"encoding/json"
	"time"

	"github.com/artgrid/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// LogAction logs an admin action to the audit log
func (s *AuditService) LogAction(adminID uuid.UUID, action, targetType string, targetID uuid.UUID, details map[string]interface{}, ipAddress, userAgent string) error {
	detailsJSON := ""
	if details != nil {
		if jsonBytes, err := json.Marshal(details); err == nil {
			detailsJSON = string(jsonBytes)
		}
	}

	log := &models.AuditLog{
		AdminID:    adminID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    detailsJSON,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
	}

	return s.db.Create(log).Error
}

// GetRecentActions retrieves recent admin actions with pagination
func (s *AuditService) GetRecentActions(page, limit int, adminID *uuid.UUID, action string) ([]*models.AuditLog, int64, error) {
	var logs []*models.AuditLog
	var total int64

	query := s.db.Model(&models.AuditLog{}).Preload("Admin")

	if adminID != nil {
		query = query.Where("admin_id = ?", *adminID)
	}

	if action != "" {
		query = query.Where("action = ?", action)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// GetActionCount returns the count of the given actions in a time window
func (s *AuditService) GetActionCount(adminID uuid.UUID, actions []string, since time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&models.AuditLog{}).
		Where("admin_id = ? AND action IN ? AND created_at > ?", adminID, actions, since).
		Count(&count).Error
	return count, err
}
