package services

import (
	"errors"
	"fmt"
	"log"

	"etf-invest-system/models"
	"etf-invest-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// KYCRequiredAboveUSD forces identity verification before large withdrawals.
const KYCRequiredAboveUSD = 1000

type WithdrawalService struct {
	DB     *gorm.DB
	Prices PriceSource
}

func NewWithdrawalService(db *gorm.DB, prices PriceSource) *WithdrawalService {
	return &WithdrawalService{DB: db, Prices: prices}
}

// RequestWithdrawal validates and books a withdrawal. The balance deduction
// and the processing-status ledger row commit together; the chain broadcast
// happens asynchronously (workers.PollPendingWithdrawals) and flips the row
// to completed. All policy checks live here, server-side — client-side
// checks are display hints only.
func (s *WithdrawalService) RequestWithdrawal(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		CryptoType    string  `json:"crypto_type"`
		Amount        float64 `json:"amount"`
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
	if err := utils.ValidateWalletAddress(req.CryptoType, req.WalletAddress); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	price, err := s.Prices.LatestPrice(c.Context(), req.CryptoType)
	if err != nil {
		log.Printf("❌ Price lookup failed for %s: %v", req.CryptoType, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Price feed unavailable"})
	}
	amountUSD, _ := price.Mul(decimal.NewFromFloat(req.Amount)).Float64()

	var txn models.Transaction
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
			return err
		}
		if amountUSD > KYCRequiredAboveUSD && user.KYCStatus != models.KYCStatusVerified {
			return errKYCRequired
		}

		var port models.Portfolio
		if err := tx.Where("user_id = ?", userID).First(&port).Error; err != nil {
			return err
		}

		switch req.CryptoType {
		case models.CryptoETH:
			if port.ETHBalance < req.Amount {
				return errInsufficientBalance
			}
			port.ETHBalance -= req.Amount
		case models.CryptoBTC:
			if port.BTCBalance < req.Amount {
				return errInsufficientBalance
			}
			port.BTCBalance -= req.Amount
		}
		port.TotalWithdrawnUSD += amountUSD
		if err := tx.Save(&port).Error; err != nil {
			return err
		}

		txn = models.Transaction{
			UserID:        userID,
			Type:          models.TransactionTypeWithdrawal,
			Status:        models.TransactionStatusProcessing,
			CryptoType:    req.CryptoType,
			Amount:        req.Amount,
			AmountUSD:     amountUSD,
			WalletAddress: req.WalletAddress,
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}

		return tx.Create(&models.AuditLog{
			UserID:  userID,
			Event:   models.AuditEventWithdrawalRequested,
			Subject: txn.ID,
			Detail:  fmt.Sprintf("%f %s ($%.2f) to %s", req.Amount, req.CryptoType, amountUSD, req.WalletAddress),
		}).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, errInsufficientBalance):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Insufficient balance"})
		case errors.Is(err, errKYCRequired):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "KYC verification required for withdrawals over $1000"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User or portfolio not found"})
		}
		log.Printf("DB Error booking withdrawal: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to request withdrawal"})
	}

	log.Printf("🏧 Withdrawal booked: user=%s %f %s ($%.2f) → %s", userID, req.Amount, req.CryptoType, amountUSD, req.WalletAddress)
	return c.Status(fiber.StatusCreated).JSON(txn)
}

var (
	errInsufficientBalance = errors.New("insufficient balance")
	errKYCRequired         = errors.New("kyc required")
)
