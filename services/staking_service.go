package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"etf-invest-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// StakingPlan is an offered staking product.
type StakingPlan struct {
	Name     string  `json:"name"`
	APY      float64 `json:"apy"`
	LockDays int     `json:"lock_days"`
}

var StakingPlans = []StakingPlan{
	{Name: "flexible", APY: 5, LockDays: 0},
	{Name: "locked-30", APY: 8, LockDays: 30},
	{Name: "locked-90", APY: 12, LockDays: 90},
}

// AccruedReward is the linear daily accrual: amount * (apy/100) * days/365.
// No compounding.
func AccruedReward(amount, apy, daysStaked float64) float64 {
	if amount <= 0 || apy <= 0 || daysStaked <= 0 {
		return 0
	}
	return amount * (apy / 100) * daysStaked / 365
}

type StakingService struct {
	DB *gorm.DB
}

func NewStakingService(db *gorm.DB) *StakingService {
	return &StakingService{DB: db}
}

// GetPlans lists the available staking products.
func (s *StakingService) GetPlans(c *fiber.Ctx) error {
	return c.JSON(StakingPlans)
}

// Stake moves ETF tokens from the available balance into a new position.
func (s *StakingService) Stake(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Amount float64 `json:"amount"`
		Plan   string  `json:"plan"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Amount must be positive"})
	}

	var plan *StakingPlan
	for i := range StakingPlans {
		if StakingPlans[i].Name == req.Plan {
			plan = &StakingPlans[i]
			break
		}
	}
	if plan == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown staking plan"})
	}

	var pos models.StakingPosition
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var port models.Portfolio
		if err := tx.Where("user_id = ?", userID).First(&port).Error; err != nil {
			return err
		}
		if port.ETFTokenBalance < req.Amount {
			return errInsufficientBalance
		}

		port.ETFTokenBalance -= req.Amount
		port.StakedAmount += req.Amount
		if err := tx.Save(&port).Error; err != nil {
			return err
		}

		now := time.Now()
		pos = models.StakingPosition{
			UserID:    userID,
			Amount:    req.Amount,
			APY:       plan.APY,
			LockDays:  plan.LockDays,
			StartDate: now,
			Status:    models.StakingStatusActive,
		}
		if plan.LockDays > 0 {
			end := now.AddDate(0, 0, plan.LockDays)
			pos.EndDate = &end
		}
		if err := tx.Create(&pos).Error; err != nil {
			return err
		}

		return tx.Create(&models.Transaction{
			UserID:      userID,
			Type:        models.TransactionTypeStake,
			Status:      models.TransactionStatusCompleted,
			CryptoType:  models.CryptoETF,
			Amount:      req.Amount,
			Description: fmt.Sprintf("Staked on %s plan (%.0f%% APY)", plan.Name, plan.APY),
		}).Error
	})
	if err != nil {
		if errors.Is(err, errInsufficientBalance) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Insufficient ETF token balance"})
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Portfolio not found"})
		}
		log.Printf("DB Error staking: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to stake"})
	}

	log.Printf("📈 Staked: user=%s %.4f ETF on %s", userID, req.Amount, plan.Name)
	return c.Status(fiber.StatusCreated).JSON(pos)
}

// Unstake closes a position. Locked positions are rejected before their end
// date — here, authoritatively, not just in the UI. Principal plus any
// not-yet-paid accrued rewards return to the portfolio.
func (s *StakingService) Unstake(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	posID := c.Params("id")

	var pos models.StakingPosition
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", posID, userID).First(&pos).Error; err != nil {
			return err
		}
		if pos.Status != models.StakingStatusActive {
			return errPositionClosed
		}
		now := time.Now()
		if pos.LockDays > 0 && pos.EndDate != nil && now.Before(*pos.EndDate) {
			return errPositionLocked
		}

		days := now.Sub(pos.StartDate).Hours() / 24
		unpaid := AccruedReward(pos.Amount, pos.APY, days) - pos.RewardsPaid
		if unpaid < 0 {
			unpaid = 0
		}

		var port models.Portfolio
		if err := tx.Where("user_id = ?", userID).First(&port).Error; err != nil {
			return err
		}
		port.StakedAmount -= pos.Amount
		port.ETFTokenBalance += pos.Amount + unpaid
		port.StakingRewards += unpaid
		if err := tx.Save(&port).Error; err != nil {
			return err
		}

		pos.Status = models.StakingStatusCompleted
		pos.CompletedAt = &now
		pos.RewardsPaid += unpaid
		if err := tx.Save(&pos).Error; err != nil {
			return err
		}

		return tx.Create(&models.Transaction{
			UserID:      userID,
			Type:        models.TransactionTypeUnstake,
			Status:      models.TransactionStatusCompleted,
			CryptoType:  models.CryptoETF,
			Amount:      pos.Amount,
			Description: fmt.Sprintf("Unstaked with %.6f rewards", unpaid),
		}).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Staking position not found"})
		case errors.Is(err, errPositionClosed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Position already completed"})
		case errors.Is(err, errPositionLocked):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("Position locked until %s", pos.EndDate.Format("2006-01-02"))})
		}
		log.Printf("DB Error unstaking: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to unstake"})
	}

	log.Printf("📉 Unstaked: user=%s position=%s", userID, posID)
	return c.JSON(pos)
}

// positionView augments a position with the display-side accrual estimate.
type positionView struct {
	models.StakingPosition
	DaysStaked    float64 `json:"days_staked"`
	AccruedReward float64 `json:"accrued_reward"`
}

// GetPositions lists the user's positions with live accrual estimates. The
// estimate is recomputed per read; the authoritative paid amount is
// RewardsPaid, materialized by the daily payout job.
func (s *StakingService) GetPositions(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var positions []models.StakingPosition
	if err := s.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&positions).Error; err != nil {
		log.Printf("DB Error fetching staking positions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch positions"})
	}

	now := time.Now()
	views := make([]positionView, len(positions))
	for i, p := range positions {
		days := now.Sub(p.StartDate).Hours() / 24
		if p.Status == models.StakingStatusCompleted && p.CompletedAt != nil {
			days = p.CompletedAt.Sub(p.StartDate).Hours() / 24
		}
		views[i] = positionView{
			StakingPosition: p,
			DaysStaked:      days,
			AccruedReward:   AccruedReward(p.Amount, p.APY, days),
		}
	}
	return c.JSON(views)
}

// PayoutAccruedRewards materializes the accrual delta of every active
// position into portfolio balances. Run daily by the scheduler.
func (s *StakingService) PayoutAccruedRewards() error {
	var positions []models.StakingPosition
	if err := s.DB.Where("status = ?", models.StakingStatusActive).Find(&positions).Error; err != nil {
		return err
	}

	now := time.Now()
	var paidCount int
	for _, pos := range positions {
		days := now.Sub(pos.StartDate).Hours() / 24
		delta := AccruedReward(pos.Amount, pos.APY, days) - pos.RewardsPaid
		if delta <= 0 {
			continue
		}

		pos := pos
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			var port models.Portfolio
			if err := tx.Where("user_id = ?", pos.UserID).First(&port).Error; err != nil {
				return err
			}
			port.StakingRewards += delta
			port.ETFTokenBalance += delta
			if err := tx.Save(&port).Error; err != nil {
				return err
			}
			pos.RewardsPaid += delta
			return tx.Save(&pos).Error
		})
		if err != nil {
			log.Printf("⚠️ Staking payout failed for position %s: %v", pos.ID, err)
			continue
		}
		paidCount++
	}

	if paidCount > 0 {
		log.Printf("💹 Staking payout: %d position(s) credited", paidCount)
	}
	return nil
}

var (
	errPositionClosed = errors.New("position already completed")
	errPositionLocked = errors.New("position locked")
)
