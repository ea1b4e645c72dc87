package services

import (
	"errors"
	"log"
	"strconv"
	"time"

	"etf-invest-system/integrations"
	"etf-invest-system/models"
	"etf-invest-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DepositService struct {
	DB     *gorm.DB
	Wallet integrations.WalletProvider
	Prices PriceSource
}

func NewDepositService(db *gorm.DB, wallet integrations.WalletProvider, prices PriceSource) *DepositService {
	return &DepositService{DB: db, Wallet: wallet, Prices: prices}
}

// ProcessDeposit credits a verified on-chain deposit. Everything that must
// happen together — ledger row, balance credit, milestone grants, referral
// payouts, first-deposit marking — runs in one transaction. The unique
// index on tx_hash is the double-processing barrier: a concurrent duplicate
// submission loses the insert race and gets a 409, with no pre-read window.
func (s *DepositService) ProcessDeposit(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		CryptoType    string  `json:"crypto_type"`
		Amount        float64 `json:"amount"`
		TxHash        string  `json:"tx_hash"`
		WalletAddress string  `json:"wallet_address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Amount must be positive"})
	}
	if req.CryptoType != models.CryptoETH && req.CryptoType != models.CryptoBTC {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unsupported crypto type"})
	}
	if req.TxHash == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Transaction hash is required"})
	}
	if req.WalletAddress != "" {
		if err := utils.ValidateWalletAddress(req.CryptoType, req.WalletAddress); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	confirmed, err := s.Wallet.VerifyDeposit(c.Context(), req.CryptoType, req.TxHash, req.Amount)
	if err != nil {
		log.Printf("❌ Deposit verification error: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Deposit verification unavailable"})
	}
	if !confirmed {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Transaction not confirmed on chain"})
	}

	price, err := s.Prices.LatestPrice(c.Context(), req.CryptoType)
	if err != nil {
		log.Printf("❌ Price lookup failed for %s: %v", req.CryptoType, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Price feed unavailable"})
	}
	amountUSD, _ := price.Mul(decimal.NewFromFloat(req.Amount)).Float64()

	var txn models.Transaction
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		txn = models.Transaction{
			UserID:        userID,
			Type:          models.TransactionTypeDeposit,
			Status:        models.TransactionStatusCompleted,
			CryptoType:    req.CryptoType,
			Amount:        req.Amount,
			AmountUSD:     amountUSD,
			TxHash:        &req.TxHash,
			WalletAddress: req.WalletAddress,
			CompletedAt:   &now,
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}

		var user models.User
		if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
			return err
		}
		var port models.Portfolio
		if err := tx.Where("user_id = ?", userID).First(&port).Error; err != nil {
			return err
		}

		switch req.CryptoType {
		case models.CryptoETH:
			port.ETHBalance += req.Amount
		case models.CryptoBTC:
			port.BTCBalance += req.Amount
		}

		previousTotal := port.TotalDepositedUSD
		port.TotalDepositedUSD += amountUSD

		if _, err := applyMilestones(tx, &port, previousTotal, port.TotalDepositedUSD); err != nil {
			return err
		}
		if err := tx.Save(&port).Error; err != nil {
			return err
		}

		if _, err := distributeReferralBonuses(tx, &user, txn.ID, amountUSD); err != nil {
			return err
		}
		return markFirstDeposit(tx, userID, txn.ID, amountUSD)
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Transaction already processed"})
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User or portfolio not found"})
		}
		log.Printf("DB Error processing deposit: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process deposit"})
	}

	log.Printf("💰 Deposit completed: user=%s %f %s ($%.2f) tx=%s", userID, req.Amount, req.CryptoType, amountUSD, req.TxHash)
	return c.Status(fiber.StatusCreated).JSON(txn)
}

// GetTransactions lists the user's ledger, newest first.
func (s *DepositService) GetTransactions(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	limit := 50
	if l, err := strconv.Atoi(c.Query("limit", "50")); err == nil && l > 0 && l <= 200 {
		limit = l
	}

	query := s.DB.Where("user_id = ?", userID)
	if t := c.Query("type"); t != "" {
		query = query.Where("type = ?", t)
	}

	var txns []models.Transaction
	if err := query.Order("created_at DESC").Limit(limit).Find(&txns).Error; err != nil {
		log.Printf("DB Error fetching transactions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch transactions"})
	}
	return c.JSON(txns)
}
