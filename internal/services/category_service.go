package services

import (
	"errors"

	"github.com/artgrid/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CategoryService struct {
	db *gorm.DB
}

func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{db: db}
}

// GetAll retrieves all categories ordered by name
func (s *CategoryService) GetAll() ([]*models.Category, error) {
	var categories []*models.Category
	err := s.db.Order("name ASC").Find(&categories).Error
	return categories, err
}

// GetByID retrieves a category by ID
func (s *CategoryService) GetByID(id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := s.db.First(&category, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("category not found")
		}
		return nil, err
	}
	return &category, nil
}

// SeedDefaults inserts the default categories if none exist yet
func (s *CategoryService) SeedDefaults() error {
	var count int64
	if err := s.db.Model(&models.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []string{"Nature", "Architecture", "People", "Animals", "Abstract", "Technology"}
	for _, name := range defaults {
		if err := s.db.Create(&models.Category{Name: name}).Error; err != nil {
			return err
		}
	}
	return nil
}
