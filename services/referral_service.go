package services

import (
	"errors"
	"fmt"
	"log"

	"etf-invest-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ReferralService struct {
	DB *gorm.DB
}

func NewReferralService(db *gorm.DB) *ReferralService {
	return &ReferralService{DB: db}
}

// distributeReferralBonuses credits each ancestor of the depositor (up to
// MaxReferralDepth levels) v*rate(d) of the deposit's USD value, inside the
// caller's deposit transaction. Each ancestor's aggregate referral earnings
// stay capped at ReferralEarningsCapRatio of that ancestor's own lifetime
// deposits; the credit is clipped to whatever headroom remains.
func distributeReferralBonuses(tx *gorm.DB, depositor *models.User, txnID string, amountUSD float64) ([]models.ReferralEarning, error) {
	var credited []models.ReferralEarning

	for _, ancestor := range AncestorsOf(depositor.ReferralPath) {
		rate := ReferralRate(ancestor.Distance)
		if rate == 0 {
			continue
		}

		var port models.Portfolio
		if err := tx.Where("user_id = ?", ancestor.UserID).First(&port).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("⚠️ Referral payout skipped: no portfolio for ancestor %s", ancestor.UserID)
				continue
			}
			return nil, err
		}

		bonus := amountUSD * rate
		maxEarnings := port.TotalDepositedUSD * ReferralEarningsCapRatio
		if headroom := maxEarnings - port.ReferralEarnings; bonus > headroom {
			bonus = headroom
		}
		if bonus <= 0 {
			continue
		}

		earning := models.ReferralEarning{
			UserID:        ancestor.UserID,
			FromUserID:    depositor.ID,
			TransactionID: txnID,
			Level:         ancestor.Distance,
			Rate:          rate,
			Amount:        bonus,
		}
		if err := tx.Create(&earning).Error; err != nil {
			return nil, err
		}

		inc := models.Incentive{
			UserID:      ancestor.UserID,
			Type:        models.IncentiveTypeReferralBonus,
			Title:       fmt.Sprintf("Level %d referral bonus", ancestor.Distance),
			Description: fmt.Sprintf("Earned from a level %d referral deposit", ancestor.Distance),
			Amount:      bonus,
			Claimed:     true, // credited directly
		}
		if err := tx.Create(&inc).Error; err != nil {
			return nil, err
		}

		port.ReferralEarnings += bonus
		if err := tx.Save(&port).Error; err != nil {
			return nil, err
		}
		credited = append(credited, earning)
	}
	return credited, nil
}

// markFirstDeposit records the referred user's first qualifying deposit on
// their Referral row. Idempotent: subsequent deposits leave the row alone.
func markFirstDeposit(tx *gorm.DB, userID, txnID string, amountUSD float64) error {
	var ref models.Referral
	err := tx.Where("referred_id = ?", userID).First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil // not a referred user
	}
	if err != nil {
		return err
	}
	if ref.FirstDepositID != nil {
		return nil
	}
	ref.FirstDepositID = &txnID
	ref.FirstDepositUSD = amountUSD
	ref.BonusAwarded = true
	now := tx.NowFunc()
	ref.AwardedAt = &now
	return tx.Save(&ref).Error
}

// --- Handlers ---

// downlineEntry is one row of the downline listing.
type downlineEntry struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	Path         string `json:"path"`
	Level        int    `json:"level"`
	ReferralCode string `json:"referral_code"`
}

// GetDownline returns every descendant of the authenticated user within
// MaxReferralDepth levels, path-tagged for client-side tree rendering.
func (s *ReferralService) GetDownline(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	entries, err := s.downlineOf(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		log.Printf("DB Error fetching downline: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch downline"})
	}
	return c.JSON(fiber.Map{"referrals": entries, "count": len(entries)})
}

// GetReferralTree returns the reconstructed downline tree for display.
func (s *ReferralService) GetReferralTree(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var me models.User
	if err := s.DB.Where("id = ?", userID).First(&me).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	entries, err := s.downlineOf(userID)
	if err != nil {
		log.Printf("DB Error fetching downline: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch downline"})
	}

	flat := make([]PathEntry, 0, len(entries)+1)
	flat = append(flat, PathEntry{UserID: me.ID, Path: me.ReferralPath})
	for _, e := range entries {
		flat = append(flat, PathEntry{UserID: e.UserID, Path: e.Path})
	}
	return c.JSON(BuildReferralTree(me.ID, flat))
}

// GetReferralStats aggregates per-level counts and total earnings.
func (s *ReferralService) GetReferralStats(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	entries, err := s.downlineOf(userID)
	if err != nil {
		log.Printf("DB Error fetching downline: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch referral stats"})
	}

	byLevel := make(map[int]int)
	for _, e := range entries {
		byLevel[e.Level]++
	}

	var totalEarned float64
	s.DB.Model(&models.ReferralEarning{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&totalEarned)

	return c.JSON(fiber.Map{
		"total_referrals": len(entries),
		"by_level":        byLevel,
		"total_earned":    totalEarned,
		"bonus_rates":     ReferralBonusRates,
	})
}

func (s *ReferralService) downlineOf(userID string) ([]downlineEntry, error) {
	var me models.User
	if err := s.DB.Where("id = ?", userID).First(&me).Error; err != nil {
		return nil, err
	}

	var descendants []models.User
	if err := s.DB.Where("referral_path LIKE ?", me.ReferralPath+".%").
		Order("referral_path ASC").
		Find(&descendants).Error; err != nil {
		return nil, err
	}

	rootDepth := len(splitPath(me.ReferralPath))
	entries := make([]downlineEntry, 0, len(descendants))
	for _, d := range descendants {
		level := len(splitPath(d.ReferralPath)) - rootDepth
		if level < 1 || level > MaxReferralDepth {
			continue
		}
		entries = append(entries, downlineEntry{
			UserID:       d.ID,
			Username:     d.Username,
			Path:         d.ReferralPath,
			Level:        level,
			ReferralCode: d.ReferralCode,
		})
	}
	return entries, nil
}
