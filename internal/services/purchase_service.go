package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/artgrid/backend/internal/config"
	"github.com/artgrid/backend/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	ErrAssetNotFound       = errors.New("asset not found")
	ErrAssetNotApproved    = errors.New("asset is not approved for sale")
	ErrPurchaseNotFound    = errors.New("purchase not found")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrCaptureFailed       = errors.New("capture call failed")
)

// PurchaseService orchestrates the purchase workflow: order creation at the
// gateway, capture after payer approval, and transactional recording of the
// Payment and Purchase rows.
//
// The (asset_id, user_id) uniqueness of Purchase is the single source of
// truth for "has this user bought this asset". The pre-insert existence
// check is only a fast path; the composite unique index settles races, and
// the resulting duplicate-key error is treated as the already-purchased
// signal rather than a failure.
type PurchaseService struct {
	db      *gorm.DB
	redis   *redis.Client
	cfg     *config.Config
	gateway PaymentGateway
}

func NewPurchaseService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, gateway PaymentGateway) *PurchaseService {
	return &PurchaseService{
		db:      db,
		redis:   redisClient,
		cfg:     cfg,
		gateway: gateway,
	}
}

// CheckoutResult is returned by InitiateCheckout. When AlreadyPurchased is
// set the other fields are empty and no order was created.
type CheckoutResult struct {
	AlreadyPurchased bool   `json:"already_purchased"`
	OrderID          string `json:"order_id,omitempty"`
	ApprovalLink     string `json:"approval_link,omitempty"`
}

// InitiateCheckout creates a gateway order for the fixed asset price and
// returns the approval redirect link. Purchasing an asset twice is an
// idempotent no-op, not an error. No local state is written at this step:
// an abandoned checkout leaves a stale order at the gateway and zero rows
// locally.
func (s *PurchaseService) InitiateCheckout(ctx context.Context, assetID, userID uuid.UUID) (*CheckoutResult, error) {
	var asset models.Asset
	if err := s.db.First(&asset, "id = ?", assetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}

	if asset.ApprovalState != models.ApprovalStateApproved {
		return nil, ErrAssetNotApproved
	}

	purchased, err := s.HasPurchased(assetID, userID)
	if err != nil {
		return nil, err
	}
	if purchased {
		return &CheckoutResult{AlreadyPurchased: true}, nil
	}

	returnURL := fmt.Sprintf("%s/api/v1/paypal/capture?assetId=%s", s.cfg.APIUrl, assetID)
	cancelURL := fmt.Sprintf("%s/gallery/%s?cancelled=true", s.cfg.FrontendURL, assetID)

	order, err := s.gateway.CreateOrder(ctx, CreateOrderInput{
		ReferenceID: assetID.String(),
		Description: fmt.Sprintf("Purchase of %s", asset.Title),
		CustomID:    fmt.Sprintf("%s|%s", userID, assetID),
		AmountCents: s.cfg.AssetPriceCents,
		Currency:    s.cfg.AssetPriceCurrency,
		ReturnURL:   returnURL,
		CancelURL:   cancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	return &CheckoutResult{OrderID: order.OrderID, ApprovalLink: order.ApprovalLink}, nil
}

// CaptureAndRecord captures a payer-approved order and records the purchase.
// A failed capture call or a non-COMPLETED capture status is terminal for
// this attempt and leaves zero local rows.
func (s *PurchaseService) CaptureAndRecord(ctx context.Context, orderToken string, assetID, userID uuid.UUID) (*RecordResult, error) {
	capture, err := s.gateway.CaptureOrder(ctx, orderToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	if capture.Status != "COMPLETED" {
		log.Printf("PayPal capture not completed for order %s: status=%s", orderToken, capture.Status)
		return nil, ErrPaymentNotCompleted
	}

	return s.RecordPurchase(ctx, assetID, orderToken, userID, s.cfg.AssetPriceCents, s.cfg.AssetPriceCurrency)
}

// ConfirmAndRecord verifies an order against the gateway and records the
// purchase if the gateway confirms it as captured. Webhook payloads carry
// caller-supplied JSON, so only the gateway's own view of the order decides
// whether rows are written.
func (s *PurchaseService) ConfirmAndRecord(ctx context.Context, orderToken string, assetID, userID uuid.UUID) (*RecordResult, error) {
	order, err := s.gateway.GetOrder(ctx, orderToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify order: %w", err)
	}

	if order.Status != "COMPLETED" {
		log.Printf("PayPal order %s is %s, not COMPLETED; refusing to record", orderToken, order.Status)
		return nil, ErrPaymentNotCompleted
	}

	return s.RecordPurchase(ctx, assetID, orderToken, userID, s.cfg.AssetPriceCents, s.cfg.AssetPriceCurrency)
}

// RecordResult is returned by RecordPurchase.
type RecordResult struct {
	PurchaseID    uuid.UUID
	AlreadyExists bool
}

// RecordPurchase writes the Payment and Purchase rows for a captured order
// in a single transaction. Invoking it twice for the same (asset, user)
// pair yields exactly one Purchase row: a pre-existing row, or a
// duplicate-key error from the unique index, both short-circuit as success.
func (s *PurchaseService) RecordPurchase(ctx context.Context, assetID uuid.UUID, orderToken string, userID uuid.UUID, priceCents int64, currency string) (*RecordResult, error) {
	// Fast path: re-check the invariant to defend against double callback
	// invocation (browser back-button, duplicate webhook delivery).
	var existing models.Purchase
	err := s.db.Where("asset_id = ? AND user_id = ?", assetID, userID).First(&existing).Error
	if err == nil {
		return &RecordResult{PurchaseID: existing.ID, AlreadyExists: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	payment := &models.Payment{
		Amount:     priceCents,
		Currency:   currency,
		Status:     models.PaymentStatusCompleted,
		Provider:   models.PaymentProviderPayPal,
		ProviderID: orderToken,
		UserID:     userID,
	}
	purchase := &models.Purchase{
		AssetID: assetID,
		UserID:  userID,
		Price:   priceCents,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(payment).Error; err != nil {
			return err
		}
		purchase.PaymentID = payment.ID
		return tx.Create(purchase).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent record for the same pair won the race. The
			// transaction rolled back both inserts; report success.
			if ferr := s.db.Where("asset_id = ? AND user_id = ?", assetID, userID).First(&existing).Error; ferr == nil {
				return &RecordResult{PurchaseID: existing.ID, AlreadyExists: true}, nil
			}
			return &RecordResult{AlreadyExists: true}, nil
		}
		return nil, fmt.Errorf("failed to record purchase: %w", err)
	}

	s.invalidateViews(ctx, assetID, userID)

	return &RecordResult{PurchaseID: purchase.ID}, nil
}

// invalidateViews drops any cached views of the asset detail and
// purchase-list pages. Best effort: a cold or unreachable cache only means
// a stale read, never a failed purchase.
func (s *PurchaseService) invalidateViews(ctx context.Context, assetID, userID uuid.UUID) {
	if s.redis == nil {
		return
	}
	keys := []string{
		fmt.Sprintf("view:asset:%s", assetID),
		fmt.Sprintf("view:purchases:%s", userID),
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		log.Printf("WARN: failed to invalidate cached views: %v", err)
	}
}

// HasPurchased reports whether the user holds a Purchase for the asset.
func (s *PurchaseService) HasPurchased(assetID, userID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.Model(&models.Purchase{}).
		Where("asset_id = ? AND user_id = ?", assetID, userID).
		Count(&count).Error
	return count > 0, err
}

// GetUserPurchases retrieves all purchases for a user with asset details,
// oldest first.
func (s *PurchaseService) GetUserPurchases(userID uuid.UUID) ([]*models.Purchase, error) {
	var purchases []*models.Purchase
	err := s.db.Preload("Asset").Preload("Asset.Category").Preload("Payment").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&purchases).Error
	return purchases, err
}

// GetPurchaseByID retrieves a single purchase owned by the user, with the
// relations the invoice needs.
func (s *PurchaseService) GetPurchaseByID(purchaseID, userID uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	err := s.db.Preload("Asset").Preload("Asset.Category").Preload("Payment").Preload("User").
		Where("id = ? AND user_id = ?", purchaseID, userID).
		First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	return &purchase, nil
}
