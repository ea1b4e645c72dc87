package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AlertCondition string

const (
	AlertConditionAbove AlertCondition = "above"
	AlertConditionBelow AlertCondition = "below"
)

// PriceAlert fires at most once: the cron checker flips IsActive to false
// and stamps TriggeredAt inside the same update, so a triggered alert never
// re-enters the candidate set.
type PriceAlert struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"index;not null" json:"user_id"`

	Symbol      string          `gorm:"not null;index" json:"symbol"`
	TargetPrice decimal.Decimal `gorm:"type:decimal(24,8);not null" json:"target_price"`
	Condition   AlertCondition  `gorm:"not null" json:"condition"`

	IsActive    bool       `gorm:"default:true;index" json:"is_active"`
	TriggeredAt *time.Time `json:"triggered_at,omitempty"`

	Timestamps
}

func (a *PriceAlert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// PriceTick is the latest observed market price per symbol, written by the
// price feed worker and read as fallback when the cache has no entry.
type PriceTick struct {
	ID       string          `gorm:"primaryKey;type:uuid" json:"id"`
	Symbol   string          `gorm:"uniqueIndex;not null" json:"symbol"`
	PriceUSD decimal.Decimal `gorm:"type:decimal(24,8);not null" json:"price_usd"`
	FetchedAt time.Time      `gorm:"not null" json:"fetched_at"`

	Timestamps
}

func (t *PriceTick) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
