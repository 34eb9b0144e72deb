package services

import (
	"log"

	"github.com/artgrid/backend/internal/config"
	"github.com/artgrid/backend/internal/models"
	"github.com/artgrid/backend/pkg/crypto"
	"gorm.io/gorm"
)

type AdminService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewAdminService(db *gorm.DB, cfg *config.Config) *AdminService {
	return &AdminService{db: db, cfg: cfg}
}

// CreateDefaultAdmin creates the default admin user if it doesn't exist
func (s *AdminService) CreateDefaultAdmin() error {
	// Check if admin already exists
	var count int64
	if err := s.db.Model(&models.User{}).Where("username = ?", s.cfg.AdminUsername).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil // Admin already exists
	}

	// Without a configured password, generate one and print it once at
	// boot; it is never stored in plaintext.
	password := s.cfg.AdminPassword
	if password == "" {
		password = crypto.GenerateRandomPassword(16)
		log.Printf("Generated admin password for %q: %s", s.cfg.AdminUsername, password)
	}

	hashedPassword, err := crypto.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return err
	}

	// Create admin user
	admin := &models.User{
		Username: s.cfg.AdminUsername,
		Email:    s.cfg.AdminEmail,
		Password: hashedPassword,
		Name:     "Administrator",
		IsAdmin:  true,
		IsActive: true,
	}

	return s.db.Create(admin).Error
}

// GetMarketplaceStats returns headline counts for the admin dashboard
func (s *AdminService) GetMarketplaceStats() (map[string]int64, error) {
	stats := make(map[string]int64)

	counts := []struct {
		key   string
		query *gorm.DB
	}{
		{"users", s.db.Model(&models.User{})},
		{"assets", s.db.Model(&models.Asset{})},
		{"pending_assets", s.db.Model(&models.Asset{}).Where("approval_state = ?", models.ApprovalStatePending)},
		{"purchases", s.db.Model(&models.Purchase{})},
	}

	for _, c := range counts {
		var n int64
		if err := c.query.Count(&n).Error; err != nil {
			return nil, err
		}
		stats[c.key] = n
	}

	var revenue int64
	if err := s.db.Model(&models.Payment{}).
		Where("status = ?", models.PaymentStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&revenue).Error; err != nil {
		return nil, err
	}
	stats["revenue_cents"] = revenue

	return stats, nil
}
