package services

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"log"
	"strings"

	"etf-invest-system/integrations"
	"etf-invest-system/models"
	"etf-invest-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WelcomeAirdropTokens is granted as an unclaimed incentive at signup.
const WelcomeAirdropTokens = 5

type UserService struct {
	DB       *gorm.DB
	Verifier integrations.IdentityVerifier
}

func NewUserService(db *gorm.DB, verifier integrations.IdentityVerifier) *UserService {
	return &UserService{DB: db, Verifier: verifier}
}

// Signup registers a new account: user row, empty portfolio, welcome
// airdrop, and (when a referral code is supplied) the referral linkage.
// The referral path is fixed here and never rewritten.
func (s *UserService) Signup(c *fiber.Ctx) error {
	var req struct {
		Email        string `json:"email"`
		Username     string `json:"username"`
		ReferralCode string `json:"referral_code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Valid email is required"})
	}
	if len(req.Username) < 3 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Username must be at least 3 characters"})
	}

	var referrer *models.User
	if req.ReferralCode != "" {
		var ref models.User
		if err := s.DB.Where("referral_code = ?", req.ReferralCode).First(&ref).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown referral code"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		referrer = &ref
	}

	user := models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Username:     req.Username,
		ReferralCode: utils.GenerateReferralCode(req.Username),
		KYCStatus:    models.KYCStatusNone,
	}
	if referrer != nil {
		user.ReferredByID = &referrer.ID
		user.ReferralPath = referrer.ReferralPath + "." + user.ID
	} else {
		user.ReferralPath = user.ID
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.Portfolio{UserID: user.ID}).Error; err != nil {
			return err
		}
		airdrop := models.Incentive{
			UserID:      user.ID,
			Type:        models.IncentiveTypeWelcomeAirdrop,
			Title:       "Welcome airdrop",
			Description: fmt.Sprintf("%d ETF tokens for joining", WelcomeAirdropTokens),
			Amount:      WelcomeAirdropTokens,
			Points:      50,
		}
		if err := tx.Create(&airdrop).Error; err != nil {
			return err
		}
		if referrer != nil {
			referral := models.Referral{
				ReferrerID:       referrer.ID,
				ReferredID:       user.ID,
				ReferralCodeUsed: req.ReferralCode,
			}
			if err := tx.Create(&referral).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email or username already registered"})
		}
		log.Printf("DB Error creating user: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create account"})
	}

	log.Printf("👤 New account: %s (%s), referred_by=%v", user.Username, user.ID, user.ReferredByID)
	return c.Status(fiber.StatusCreated).JSON(user)
}

// GetMe returns the authenticated user's profile.
func (s *UserService) GetMe(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var user models.User
	if err := s.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(user)
}

// GetStatistics aggregates the account's activity counters.
func (s *UserService) GetStatistics(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var port models.Portfolio
	if err := s.DB.Where("user_id = ?", userID).First(&port).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Portfolio not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var txCount, depositCount, incentiveCount, referralCount int64
	s.DB.Model(&models.Transaction{}).Where("user_id = ?", userID).Count(&txCount)
	s.DB.Model(&models.Transaction{}).
		Where("user_id = ? AND type = ? AND status = ?", userID, models.TransactionTypeDeposit, models.TransactionStatusCompleted).
		Count(&depositCount)
	s.DB.Model(&models.Incentive{}).Where("user_id = ?", userID).Count(&incentiveCount)
	s.DB.Model(&models.Referral{}).Where("referrer_id = ?", userID).Count(&referralCount)

	return c.JSON(fiber.Map{
		"portfolio":        port,
		"transactions":     txCount,
		"deposits":         depositCount,
		"incentives":       incentiveCount,
		"direct_referrals": referralCount,
	})
}

// SubmitKYC accepts an identity document, stores it, and runs the configured
// verifier. The decision is server-authoritative: clients only mirror
// kyc_status, they never set it.
func (s *UserService) SubmitKYC(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var user models.User
	if err := s.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if user.KYCStatus == models.KYCStatusVerified {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "KYC already verified"})
	}

	fileHeader, err := c.FormFile("document")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Identity document is required"})
	}

	key := fmt.Sprintf("kyc/%s/%s", userID, fileHeader.Filename)
	var docURL string
	if utils.R2Enabled() {
		docURL, err = utils.UploadDocumentToR2(fileHeader, key)
	} else {
		docURL, err = utils.SaveDocumentLocally(fileHeader, key)
	}
	if err != nil {
		log.Printf("❌ KYC document upload failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to store document"})
	}

	user.KYCStatus = models.KYCStatusPending
	user.KYCDocumentURL = docURL
	if err := s.DB.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update KYC status"})
	}

	result, err := s.Verifier.Verify(c.Context(), userID, docURL)
	if err != nil {
		// stays pending; a manual review or retry resolves it
		log.Printf("⚠️ KYC verifier error for %s: %v", userID, err)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": user.KYCStatus})
	}

	if result.Approved {
		user.KYCStatus = models.KYCStatusVerified
	} else {
		user.KYCStatus = models.KYCStatusRejected
	}
	user.KYCRiskScore = result.RiskScore

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&user).Error; err != nil {
			return err
		}
		return tx.Create(&models.AuditLog{
			UserID:  userID,
			Event:   models.AuditEventKYCDecision,
			Subject: string(user.KYCStatus),
			Detail:  fmt.Sprintf("risk_score=%d reason=%s", result.RiskScore, result.Reason),
		}).Error
	})
	if err != nil {
		log.Printf("DB Error saving KYC decision: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record KYC decision"})
	}

	return c.JSON(fiber.Map{"status": user.KYCStatus, "risk_score": user.KYCRiskScore})
}

// EnableTwoFactor generates a TOTP secret and flags the account. The secret
// is only an enrolment stub; a production authenticator integration replaces
// this handler behind the same route.
func (s *UserService) EnableTwoFactor(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var user models.User
	if err := s.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if user.TwoFactorEnabled {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Two-factor already enabled"})
	}

	secret := generateTOTPSecret()
	user.TwoFactorEnabled = true
	user.TwoFactorSecret = &secret
	if err := s.DB.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to enable two-factor"})
	}

	return c.JSON(fiber.Map{
		"enabled": true,
		"secret":  secret,
		"otpauth": fmt.Sprintf("otpauth://totp/ETFInvest:%s?secret=%s&issuer=ETFInvest", user.Email, secret),
	})
}

// DisableTwoFactor clears the 2FA enrolment.
func (s *UserService) DisableTwoFactor(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	result := s.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"two_factor_enabled": false, "two_factor_secret": nil})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to disable two-factor"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	return c.JSON(fiber.Map{"enabled": false})
}

func generateTOTPSecret() string {
	buf := make([]byte, 20)
	_, _ = rand.Read(buf)
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
}

// isDuplicateKeyError matches unique-constraint violations across the
// postgres and sqlite drivers.
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
