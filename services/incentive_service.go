package services

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"etf-invest-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IncentiveService struct {
	DB *gorm.DB
}

func NewIncentiveService(db *gorm.DB) *IncentiveService {
	return &IncentiveService{DB: db}
}

// GetUserIncentives fetches incentives for the authenticated user with
// optional claimed/type/limit filters.
func (s *IncentiveService) GetUserIncentives(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var limit *int
	if limitStr := c.Query("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid limit parameter"})
		}
		limit = &l
	}

	query := s.DB.Where("user_id = ?", userID)

	switch strings.ToLower(c.Query("claimed")) {
	case "true":
		query = query.Where("claimed = ?", true)
	case "false":
		query = query.Where("claimed = ?", false)
		// default: no claimed filter
	}
	if t := c.Query("type"); t != "" {
		query = query.Where("type = ?", t)
	}

	dbQuery := query.Order("created_at DESC")
	if limit != nil {
		dbQuery = dbQuery.Limit(*limit)
	}

	var incentives []models.Incentive
	if err := dbQuery.Find(&incentives).Error; err != nil {
		log.Printf("DB Error fetching incentives: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch incentives"})
	}
	return c.JSON(incentives)
}

// GetIncentiveCounts returns totals the client can poll for badge counters.
func (s *IncentiveService) GetIncentiveCounts(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	now := time.Now()

	baseQuery := s.DB.Model(&models.Incentive{}).
		Where("user_id = ?", userID).
		Where("(expiry_date IS NULL OR expiry_date >= ?)", now)

	var totalCount int64
	if err := baseQuery.Count(&totalCount).Error; err != nil {
		log.Printf("DB Error counting incentives: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error counting incentives"})
	}

	var unclaimedCount int64
	if err := baseQuery.Where("claimed = ?", false).Count(&unclaimedCount).Error; err != nil {
		log.Printf("DB Error counting unclaimed incentives: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error counting unclaimed incentives"})
	}

	return c.JSON(fiber.Map{
		"total_count":     totalCount,
		"unclaimed_count": unclaimedCount,
	})
}

// ClaimIncentive flips the claimed flag once and credits the attached amount
// and points to the portfolio in the same transaction.
func (s *IncentiveService) ClaimIncentive(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	incentiveID := c.Params("id")

	if _, err := uuid.Parse(incentiveID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid incentive ID"})
	}

	var inc models.Incentive
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", incentiveID, userID).First(&inc).Error; err != nil {
			return err
		}
		if inc.Claimed {
			return errAlreadyClaimed
		}
		if inc.ExpiryDate != nil && inc.ExpiryDate.Before(time.Now()) {
			return errIncentiveExpired
		}

		now := time.Now()
		inc.Claimed = true
		inc.ClaimedAt = &now
		if err := tx.Save(&inc).Error; err != nil {
			return err
		}

		if inc.Amount == 0 && inc.Points == 0 {
			return nil
		}
		var port models.Portfolio
		if err := tx.Where("user_id = ?", userID).First(&port).Error; err != nil {
			return err
		}
		port.ETFTokenBalance += inc.Amount
		port.LoyaltyPoints += inc.Points
		return tx.Save(&port).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Incentive not found or not owned by user"})
		case errors.Is(err, errAlreadyClaimed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Incentive already claimed"})
		case errors.Is(err, errIncentiveExpired):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Incentive has expired"})
		}
		log.Printf("DB Error claiming incentive: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to claim incentive"})
	}

	return c.JSON(fiber.Map{"message": "Incentive claimed successfully", "incentive": inc})
}

// CheckDailyLoginBonus grants the once-per-UTC-day login bonus. Consecutive
// days grow the streak (and the points) up to a weekly plateau.
func (s *IncentiveService) CheckDailyLoginBonus(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var inc *models.Incentive
	var streak int
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
			return err
		}

		today := time.Now().UTC().Truncate(24 * time.Hour)
		if user.LastLoginBonusAt != nil && !user.LastLoginBonusAt.UTC().Truncate(24*time.Hour).Before(today) {
			streak = user.LoginStreak
			return errAlreadyClaimed
		}

		streak = 1
		if user.LastLoginBonusAt != nil && user.LastLoginBonusAt.UTC().Truncate(24*time.Hour).Equal(today.AddDate(0, 0, -1)) {
			streak = user.LoginStreak + 1
		}

		points := dailyLoginPoints(streak)
		now := time.Now()
		created := models.Incentive{
			UserID:      userID,
			Type:        models.IncentiveTypeDailyLogin,
			Title:       fmt.Sprintf("Daily login bonus (day %d)", streak),
			Points:      points,
			Claimed:     true,
			ClaimedAt:   &now,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		inc = &created

		user.LastLoginBonusAt = &now
		user.LoginStreak = streak
		if err := tx.Save(&user).Error; err != nil {
			return err
		}

		var port models.Portfolio
		if err := tx.Where("user_id = ?", userID).First(&port).Error; err != nil {
			return err
		}
		port.LoyaltyPoints += points
		return tx.Save(&port).Error
	})
	if err != nil {
		if errors.Is(err, errAlreadyClaimed) {
			return c.JSON(fiber.Map{"granted": false, "streak": streak, "message": "Login bonus already collected today"})
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		log.Printf("DB Error granting daily login bonus: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to grant login bonus"})
	}

	return c.JSON(fiber.Map{"granted": true, "streak": streak, "incentive": inc})
}

// dailyLoginPoints grows with the streak: 10 base + 5 per extra consecutive
// day, plateauing at a week.
func dailyLoginPoints(streak int) int64 {
	if streak < 1 {
		streak = 1
	}
	if streak > 7 {
		streak = 7
	}
	return int64(10 + (streak-1)*5)
}

var (
	errAlreadyClaimed   = errors.New("already claimed")
	errIncentiveExpired = errors.New("incentive expired")
)
