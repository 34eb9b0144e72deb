package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
)

// PaymentProviderPayPal is the only provider currently wired.
const PaymentProviderPayPal = "paypal"

// Payment is the durable record of the monetary transaction underlying a
// Purchase. Amount is in minor units (cents). ProviderID carries the
// gateway-assigned order token for correlation with the gateway's books.
type Payment struct {
	ID         uuid.UUID     `gorm:"type:uuid;primary_key" json:"id"`
	Amount     int64         `gorm:"not null" json:"amount"`
	Currency   string        `gorm:"size:3;not null" json:"currency"`
	Status     PaymentStatus `gorm:"size:20;not null" json:"status"`
	Provider   string        `gorm:"size:20;not null" json:"provider"`
	ProviderID string        `gorm:"size:255;not null" json:"provider_id"`
	UserID     uuid.UUID     `gorm:"type:uuid;not null" json:"user_id"`
	CreatedAt  time.Time     `json:"created_at"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Purchase records that a user has paid for an asset. Immutable after
// creation. The composite unique index is the authoritative enforcement of
// the one-purchase-per-user-per-asset invariant; the application-level
// existence check is only a fast path.
type Purchase struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	AssetID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_purchases_asset_user" json:"asset_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_purchases_asset_user" json:"user_id"`
	PaymentID uuid.UUID `gorm:"type:uuid;not null" json:"payment_id"`
	Price     int64     `gorm:"not null" json:"price"`
	CreatedAt time.Time `json:"created_at"`

	// Relations
	Asset   Asset   `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Payment Payment `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
}

func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
