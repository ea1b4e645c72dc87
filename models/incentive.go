package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IncentiveType string

const (
	IncentiveTypeWelcomeAirdrop IncentiveType = "welcome_airdrop"
	IncentiveTypeMilestoneBonus IncentiveType = "milestone_bonus"
	IncentiveTypeLoyaltyPoints  IncentiveType = "loyalty_points"
	IncentiveTypeDailyLogin     IncentiveType = "daily_login"
	IncentiveTypeReferralBonus  IncentiveType = "referral_bonus"
)

// Incentive is a reward ledger entry. Auto-granted incentives (milestone
// bonuses) are created with Claimed=true; the rest flip once via user action.
type Incentive struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"index;not null" json:"user_id"`

	Type        IncentiveType `gorm:"not null;index" json:"type"`
	Title       string        `gorm:"not null" json:"title"`
	Description string        `json:"description,omitempty"`

	Amount float64 `json:"amount"`
	Points int64   `json:"points"`

	Claimed   bool       `gorm:"default:false;index" json:"claimed"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`

	ExpiryDate *time.Time `json:"expiry_date,omitempty"`

	Timestamps
}

func (i *Incentive) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
