package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Portfolio holds per-user balances (one row per user, never deleted while
// the user exists). TotalDepositedUSD only ever grows, and only through
// completed deposit transactions.
type Portfolio struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"`

	ETFTokenBalance float64 `json:"etf_token_balance" gorm:"default:0"`
	ETHBalance      float64 `json:"eth_balance" gorm:"default:0"`
	BTCBalance      float64 `json:"btc_balance" gorm:"default:0"`

	TotalDepositedUSD float64 `json:"total_deposited_usd" gorm:"default:0"`
	TotalWithdrawnUSD float64 `json:"total_withdrawn_usd" gorm:"default:0"`
	TotalValueUSD     float64 `json:"total_value_usd" gorm:"default:0"`

	ReferralEarnings float64 `json:"referral_earnings" gorm:"default:0"`
	LoyaltyPoints    int64   `json:"loyalty_points" gorm:"default:0"`

	StakedAmount   float64 `json:"staked_amount" gorm:"default:0"`
	StakingRewards float64 `json:"staking_rewards" gorm:"default:0"`

	Timestamps
}

func (p *Portfolio) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
