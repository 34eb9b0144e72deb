package services

import (
	"testing"

	"github.com/artgrid/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAsset(t *testing.T) {
	db := newTestDB(t)
	svc := NewAssetService(db, newTestConfig())
	owner := createTestUser(t, db, "seller")
	category := createTestCategory(t, db, "Nature")

	t.Run("new assets start pending", func(t *testing.T) {
		asset, err := svc.Create(CreateAssetInput{
			Title:      "Sunrise",
			FileURL:    "https://cdn.test/sunrise.png",
			CategoryID: category.ID,
			OwnerID:    owner.ID,
		})
		require.NoError(t, err)

		assert.Equal(t, models.ApprovalStatePending, asset.ApprovalState)
		assert.NotEqual(t, uuid.Nil, asset.ID)
		// Thumbnail falls back to the file itself
		assert.Equal(t, asset.FileURL, asset.ThumbnailURL)
	})

	t.Run("unknown category is rejected", func(t *testing.T) {
		_, err := svc.Create(CreateAssetInput{
			Title:      "Orphan",
			FileURL:    "https://cdn.test/orphan.png",
			CategoryID: uuid.New(),
			OwnerID:    owner.ID,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "category not found")
	})
}

func TestListPublic(t *testing.T) {
	db := newTestDB(t)
	svc := NewAssetService(db, newTestConfig())
	owner := createTestUser(t, db, "seller")
	nature := createTestCategory(t, db, "Nature")
	people := createTestCategory(t, db, "People")

	approved := createTestAsset(t, db, owner, nature, models.ApprovalStateApproved)
	createTestAsset(t, db, owner, nature, models.ApprovalStatePending)
	createTestAsset(t, db, owner, nature, models.ApprovalStateRejected)
	otherCategory := createTestAsset(t, db, owner, people, models.ApprovalStateApproved)

	t.Run("only approved assets", func(t *testing.T) {
		assets, err := svc.ListPublic(nil)
		require.NoError(t, err)
		require.Len(t, assets, 2)
		for _, a := range assets {
			assert.Equal(t, models.ApprovalStateApproved, a.ApprovalState)
		}
	})

	t.Run("category filter", func(t *testing.T) {
		assets, err := svc.ListPublic(&people.ID)
		require.NoError(t, err)
		require.Len(t, assets, 1)
		assert.Equal(t, otherCategory.ID, assets[0].ID)
	})

	t.Run("preloads category and owner", func(t *testing.T) {
		assets, err := svc.ListPublic(&nature.ID)
		require.NoError(t, err)
		require.Len(t, assets, 1)
		assert.Equal(t, approved.ID, assets[0].ID)
		assert.Equal(t, "Nature", assets[0].Category.Name)
		assert.Equal(t, owner.Username, assets[0].Owner.Username)
	})
}

func TestSetApprovalState(t *testing.T) {
	db := newTestDB(t)
	svc := NewAssetService(db, newTestConfig())
	owner := createTestUser(t, db, "seller")
	category := createTestCategory(t, db, "Nature")

	t.Run("approve then reject overwrites without history", func(t *testing.T) {
		asset := createTestAsset(t, db, owner, category, models.ApprovalStatePending)

		updated, err := svc.SetApprovalState(asset.ID, models.ApprovalStateApproved)
		require.NoError(t, err)
		assert.Equal(t, models.ApprovalStateApproved, updated.ApprovalState)

		updated, err = svc.SetApprovalState(asset.ID, models.ApprovalStateRejected)
		require.NoError(t, err)
		assert.Equal(t, models.ApprovalStateRejected, updated.ApprovalState)

		// One row, current state only
		var count int64
		require.NoError(t, db.Model(&models.Asset{}).Where("id = ?", asset.ID).Count(&count).Error)
		assert.EqualValues(t, 1, count)
	})

	t.Run("invalid state", func(t *testing.T) {
		asset := createTestAsset(t, db, owner, category, models.ApprovalStatePending)

		_, err := svc.SetApprovalState(asset.ID, models.ApprovalState("published"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid approval state")
	})

	t.Run("unknown asset", func(t *testing.T) {
		_, err := svc.SetApprovalState(uuid.New(), models.ApprovalStateApproved)
		assert.ErrorIs(t, err, ErrAssetNotFound)
	})
}

func TestListPending(t *testing.T) {
	db := newTestDB(t)
	svc := NewAssetService(db, newTestConfig())
	owner := createTestUser(t, db, "seller")
	category := createTestCategory(t, db, "Nature")

	first := createTestAsset(t, db, owner, category, models.ApprovalStatePending)
	second := createTestAsset(t, db, owner, category, models.ApprovalStatePending)
	createTestAsset(t, db, owner, category, models.ApprovalStateApproved)

	assets, err := svc.ListPending()
	require.NoError(t, err)
	require.Len(t, assets, 2)

	// Oldest first: moderation is a queue
	assert.Equal(t, first.ID, assets[0].ID)
	assert.Equal(t, second.ID, assets[1].ID)
}
