package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ApprovalState string

const (
	ApprovalStatePending  ApprovalState = "pending"
	ApprovalStateApproved ApprovalState = "approved"
	ApprovalStateRejected ApprovalState = "rejected"
)

// ValidApprovalState reports whether s is one of the three moderation states.
func ValidApprovalState(s ApprovalState) bool {
	switch s {
	case ApprovalStatePending, ApprovalStateApproved, ApprovalStateRejected:
		return true
	}
	return false
}

// Asset is a user-uploaded digital file listed for sale, gated by moderation.
// The binary lives at the storage provider; only URLs are stored here.
type Asset struct {
	ID            uuid.UUID     `gorm:"type:uuid;primary_key" json:"id"`
	Title         string        `gorm:"size:255;not null" json:"title"`
	Description   string        `gorm:"type:text" json:"description,omitempty"`
	FileURL       string        `gorm:"size:1024;not null" json:"file_url"`
	ThumbnailURL  string        `gorm:"size:1024;not null" json:"thumbnail_url"`
	CategoryID    uuid.UUID     `gorm:"type:uuid;not null" json:"category_id"`
	OwnerID       uuid.UUID     `gorm:"type:uuid;not null;index" json:"owner_id"`
	ApprovalState ApprovalState `gorm:"size:16;not null;default:'pending'" json:"approval_state"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	// Relations
	Category Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Owner    User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
