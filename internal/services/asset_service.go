package services

import (
	"errors"
	"fmt"

	"github.com/artgrid/backend/internal/config"
	"github.com/artgrid/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssetService owns the asset catalog and the moderation workflow.
type AssetService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewAssetService(db *gorm.DB, cfg *config.Config) *AssetService {
	return &AssetService{db: db, cfg: cfg}
}

// CreateAssetInput carries validated upload metadata. The binary itself was
// already uploaded directly from the client to the storage provider.
type CreateAssetInput struct {
	Title        string
	Description  string
	FileURL      string
	ThumbnailURL string
	CategoryID   uuid.UUID
	OwnerID      uuid.UUID
}

// Create stores a new asset record. Every new asset starts out pending
// moderation.
func (s *AssetService) Create(in CreateAssetInput) (*models.Asset, error) {
	var category models.Category
	if err := s.db.First(&category, "id = ?", in.CategoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("category not found")
		}
		return nil, err
	}

	if in.ThumbnailURL == "" {
		in.ThumbnailURL = in.FileURL
	}

	asset := &models.Asset{
		Title:         in.Title,
		Description:   in.Description,
		FileURL:       in.FileURL,
		ThumbnailURL:  in.ThumbnailURL,
		CategoryID:    in.CategoryID,
		OwnerID:       in.OwnerID,
		ApprovalState: models.ApprovalStatePending,
	}

	if err := s.db.Create(asset).Error; err != nil {
		return nil, err
	}
	return asset, nil
}

// GetByID retrieves an asset with its category and owner.
func (s *AssetService) GetByID(assetID uuid.UUID) (*models.Asset, error) {
	var asset models.Asset
	if err := s.db.Preload("Category").Preload("Owner").First(&asset, "id = ?", assetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// ListPublic returns approved assets for the public gallery, optionally
// filtered by category.
func (s *AssetService) ListPublic(categoryID *uuid.UUID) ([]*models.Asset, error) {
	query := s.db.Preload("Category").Preload("Owner").
		Where("approval_state = ?", models.ApprovalStateApproved)

	if categoryID != nil {
		query = query.Where("category_id = ?", *categoryID)
	}

	var assets []*models.Asset
	if err := query.Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

// ListByOwner returns every asset a user has uploaded, regardless of
// moderation state, oldest first.
func (s *AssetService) ListByOwner(ownerID uuid.UUID) ([]*models.Asset, error) {
	var assets []*models.Asset
	err := s.db.Preload("Category").
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&assets).Error
	return assets, err
}

// ListPending returns assets awaiting moderation, oldest first.
func (s *AssetService) ListPending() ([]*models.Asset, error) {
	var assets []*models.Asset
	err := s.db.Preload("Category").Preload("Owner").
		Where("approval_state = ?", models.ApprovalStatePending).
		Order("created_at ASC").
		Find(&assets).Error
	return assets, err
}

// SetApprovalState overwrites the asset's moderation state. The transition
// is a pure overwrite: any state can be set from any state, and no history
// beyond the audit log is retained.
func (s *AssetService) SetApprovalState(assetID uuid.UUID, state models.ApprovalState) (*models.Asset, error) {
	if !models.ValidApprovalState(state) {
		return nil, fmt.Errorf("invalid approval state: %s", state)
	}

	result := s.db.Model(&models.Asset{}).Where("id = ?", assetID).Update("approval_state", state)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrAssetNotFound
	}

	return s.GetByID(assetID)
}
