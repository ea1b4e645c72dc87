package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StakingStatus string

const (
	StakingStatusActive    StakingStatus = "active"
	StakingStatusCompleted StakingStatus = "completed"
)

// StakingPosition is one stake of ETF tokens. Locked positions (LockDays > 0)
// reject unstaking before EndDate; flexible positions have no EndDate.
type StakingPosition struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"index;not null" json:"user_id"`

	Amount   float64 `gorm:"not null" json:"amount"`
	APY      float64 `gorm:"not null" json:"apy"`
	LockDays int     `json:"lock_days" gorm:"default:0"`

	StartDate time.Time  `gorm:"not null" json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	// RewardsPaid is the portion of accrued rewards already materialized
	// into the portfolio by the daily payout job.
	RewardsPaid float64 `json:"rewards_paid" gorm:"default:0"`

	Status      StakingStatus `gorm:"not null;default:'active';index" json:"status"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`

	Timestamps
}

func (p *StakingPosition) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
