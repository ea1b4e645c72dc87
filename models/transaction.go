package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeBonus      TransactionType = "bonus"
	TransactionTypeReward     TransactionType = "reward"
	TransactionTypeStake      TransactionType = "stake"
	TransactionTypeUnstake    TransactionType = "unstake"
)

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
)

const (
	CryptoETH = "ETH"
	CryptoBTC = "BTC"
	CryptoETF = "ETF"
)

// Transaction is the append-only ledger of deposits, withdrawals, bonuses
// and rewards. TxHash carries the external chain transaction hash for
// deposits; its unique index is the idempotency barrier against
// double-processing (duplicate submissions fail on insert, not on a
// read-then-write check).
type Transaction struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"index;not null" json:"user_id"`

	Type       TransactionType   `gorm:"not null;index" json:"type"`
	Status     TransactionStatus `gorm:"not null;default:'pending'" json:"status"`
	CryptoType string            `gorm:"not null" json:"crypto_type"`

	Amount    float64 `gorm:"not null" json:"amount"`
	AmountUSD float64 `json:"amount_usd"`

	TxHash        *string `gorm:"uniqueIndex" json:"tx_hash,omitempty"`
	WalletAddress string  `json:"wallet_address,omitempty"`
	Description   string  `json:"description,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Timestamps
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
