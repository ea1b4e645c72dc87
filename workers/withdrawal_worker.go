package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"etf-invest-system/integrations"
	"etf-invest-system/models"

	"gorm.io/gorm"
)

// WithdrawalBroadcaster drains booked withdrawals: each processing row gets
// broadcast to the chain via the WalletProvider and flipped to completed.
// Broadcast failures leave the row in processing; the next poll retries it.
type WithdrawalBroadcaster struct {
	DB     *gorm.DB
	Wallet integrations.WalletProvider
}

func NewWithdrawalBroadcaster(db *gorm.DB, wallet integrations.WalletProvider) *WithdrawalBroadcaster {
	return &WithdrawalBroadcaster{DB: db, Wallet: wallet}
}

// PollPendingWithdrawals runs the broadcast loop until ctx is cancelled.
func PollPendingWithdrawals(ctx context.Context, b *WithdrawalBroadcaster, pollInterval time.Duration) {
	log.Println("🔁 Starting withdrawal broadcast polling…")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️ Withdrawal broadcast polling stopped")
			return
		case <-ticker.C:
			if err := b.BroadcastPending(ctx); err != nil {
				log.Printf("❌ Withdrawal broadcast pass failed: %v", err)
			}
		}
	}
}

// BroadcastPending processes every processing-status withdrawal once.
func (b *WithdrawalBroadcaster) BroadcastPending(ctx context.Context) error {
	var pending []models.Transaction
	if err := b.DB.Where("type = ? AND status = ?",
		models.TransactionTypeWithdrawal, models.TransactionStatusProcessing).
		Order("created_at ASC").
		Find(&pending).Error; err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	var done int
	for _, txn := range pending {
		hash, err := b.Wallet.BroadcastWithdrawal(ctx, txn.CryptoType, txn.WalletAddress, txn.Amount)
		if err != nil {
			// stays in processing — retried on the next poll
			log.Printf("⚠️ Broadcast failed for withdrawal %s: %v", txn.ID, err)
			continue
		}

		err = b.DB.Transaction(func(tx *gorm.DB) error {
			now := time.Now()
			txn.TxHash = &hash
			txn.Status = models.TransactionStatusCompleted
			txn.CompletedAt = &now
			if err := tx.Save(&txn).Error; err != nil {
				return err
			}
			return tx.Create(&models.AuditLog{
				UserID:  txn.UserID,
				Event:   models.AuditEventWithdrawalCompleted,
				Subject: txn.ID,
				Detail:  fmt.Sprintf("broadcast as %s", hash),
			}).Error
		})
		if err != nil {
			log.Printf("❌ Failed to finalize withdrawal %s: %v", txn.ID, err)
			continue
		}
		done++
	}

	if done > 0 {
		log.Printf("✅ Broadcast %d withdrawal(s)", done)
	}
	return nil
}
