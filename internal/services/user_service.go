package services

import (
	"errors"

	"github.com/artgrid/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("user not found")
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUserProfile updates user profile information
func (s *UserService) UpdateUserProfile(userID uuid.UUID, updates map[string]interface{}) error {
	// Only allow updating certain fields
	allowedFields := map[string]bool{
		"name":  true,
		"image": true,
	}

	// Filter updates to only allowed fields
	filteredUpdates := make(map[string]interface{})
	for key, value := range updates {
		if allowedFields[key] {
			filteredUpdates[key] = value
		}
	}

	if len(filteredUpdates) == 0 {
		return errors.New("no valid fields to update")
	}

	result := s.db.Model(&models.User{}).Where("id = ?", userID).Updates(filteredUpdates)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return errors.New("user not found")
	}

	return nil
}

// UpdateUserActive sets is_active
func (s *UserService) UpdateUserActive(userID uuid.UUID, isActive bool) error {
	result := s.db.Model(&models.User{}).Where("id = ?", userID).Update("is_active", isActive)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("user not found")
	}
	return nil
}

// GetAllUsers retrieves all users with pagination
func (s *UserService) GetAllUsers(offset, limit int) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	// Count total users
	if err := s.db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Get paginated users
	if err := s.db.Offset(offset).Limit(limit).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}
