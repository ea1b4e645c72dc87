package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Referral tracks one referred signup and its first-deposit bonus state.
type Referral struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	ReferrerID string `gorm:"index;not null" json:"referrer_id"`
	ReferredID string `gorm:"uniqueIndex;not null" json:"referred_id"`

	ReferralCodeUsed string     `gorm:"not null" json:"referral_code_used"`
	FirstDepositID   *string    `gorm:"index" json:"first_deposit_id,omitempty"`
	FirstDepositUSD  float64    `json:"first_deposit_usd,omitempty"`
	BonusAwarded     bool       `json:"bonus_awarded" gorm:"default:false"`
	AwardedAt        *time.Time `json:"awarded_at,omitempty"`

	Timestamps
}

func (r *Referral) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// ReferralEarning is one credited referral commission: ancestor at
// Level (1..5) earned Amount from a descendant's deposit.
type ReferralEarning struct {
	ID            string  `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string  `gorm:"index;not null" json:"user_id"`
	FromUserID    string  `gorm:"index;not null" json:"from_user_id"`
	TransactionID string  `gorm:"index;not null" json:"transaction_id"`
	Level         int     `gorm:"not null" json:"level"`
	Rate          float64 `gorm:"not null" json:"rate"`
	Amount        float64 `gorm:"not null" json:"amount"`

	Timestamps
}

func (e *ReferralEarning) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
