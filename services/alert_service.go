package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"etf-invest-system/integrations"
	"etf-invest-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AlertService struct {
	DB       *gorm.DB
	Prices   PriceSource
	Notifier integrations.PushNotifier
}

func NewAlertService(db *gorm.DB, prices PriceSource, notifier integrations.PushNotifier) *AlertService {
	return &AlertService{DB: db, Prices: prices, Notifier: notifier}
}

// ShouldTrigger evaluates the alert transition rule. Both conditions are
// boundary-inclusive: an "above 50000" alert fires at exactly 50000.
func ShouldTrigger(condition models.AlertCondition, target, price decimal.Decimal) bool {
	switch condition {
	case models.AlertConditionAbove:
		return price.GreaterThanOrEqual(target)
	case models.AlertConditionBelow:
		return price.LessThanOrEqual(target)
	}
	return false
}

// CreateAlert registers a price alert for the authenticated user.
func (s *AlertService) CreateAlert(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Symbol      string          `json:"symbol"`
		TargetPrice decimal.Decimal `json:"target_price"`
		Condition   string          `json:"condition"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Symbol != models.CryptoETH && req.Symbol != models.CryptoBTC && req.Symbol != models.CryptoETF {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unsupported symbol"})
	}
	if req.TargetPrice.LessThanOrEqual(decimal.Zero) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Target price must be positive"})
	}
	cond := models.AlertCondition(req.Condition)
	if cond != models.AlertConditionAbove && cond != models.AlertConditionBelow {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Condition must be 'above' or 'below'"})
	}

	alert := models.PriceAlert{
		UserID:      userID,
		Symbol:      req.Symbol,
		TargetPrice: req.TargetPrice,
		Condition:   cond,
		IsActive:    true,
	}
	if err := s.DB.Create(&alert).Error; err != nil {
		log.Printf("DB Error creating alert: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create alert"})
	}
	return c.Status(fiber.StatusCreated).JSON(alert)
}

// GetAlerts lists the user's alerts, active first.
func (s *AlertService) GetAlerts(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var alerts []models.PriceAlert
	if err := s.DB.Where("user_id = ?", userID).
		Order("is_active DESC, created_at DESC").
		Find(&alerts).Error; err != nil {
		log.Printf("DB Error fetching alerts: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch alerts"})
	}
	return c.JSON(alerts)
}

// DeleteAlert removes an alert owned by the user.
func (s *AlertService) DeleteAlert(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	alertID := c.Params("id")

	if _, err := uuid.Parse(alertID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid alert ID"})
	}

	result := s.DB.Where("id = ? AND user_id = ?", alertID, userID).Delete(&models.PriceAlert{})
	if result.Error != nil {
		log.Printf("DB Error deleting alert: %v", result.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete alert"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Alert not found"})
	}
	return c.JSON(fiber.Map{"message": "Alert deleted successfully"})
}

// CheckAlerts is the cron entrypoint (once per minute). Active alerts are
// batched by symbol so each symbol costs one price lookup. On trigger, the
// state flip and the audit row commit together; the push notification is
// fired afterwards, best-effort — its failure never rolls anything back.
func (s *AlertService) CheckAlerts(ctx context.Context) error {
	var alerts []models.PriceAlert
	if err := s.DB.Where("is_active = ?", true).Find(&alerts).Error; err != nil {
		return err
	}
	if len(alerts) == 0 {
		return nil
	}

	bySymbol := make(map[string][]models.PriceAlert)
	for _, a := range alerts {
		bySymbol[a.Symbol] = append(bySymbol[a.Symbol], a)
	}

	var triggered int
	for symbol, group := range bySymbol {
		price, err := s.Prices.LatestPrice(ctx, symbol)
		if err != nil {
			log.Printf("⚠️ [ALERTS] Price lookup failed for %s: %v", symbol, err)
			continue
		}

		for _, alert := range group {
			if !ShouldTrigger(alert.Condition, alert.TargetPrice, price) {
				continue
			}
			if err := s.triggerAlert(&alert, price); err != nil {
				log.Printf("❌ [ALERTS] Failed to trigger alert %s: %v", alert.ID, err)
				continue
			}
			triggered++

			// fire-and-forget: delivery is outside the consistency boundary
			if err := s.Notifier.Notify(ctx, alert.UserID,
				fmt.Sprintf("%s price alert", alert.Symbol),
				fmt.Sprintf("%s is now %s your target of %s (current: %s)",
					alert.Symbol, alert.Condition, alert.TargetPrice.String(), price.String()),
			); err != nil {
				log.Printf("⚠️ [ALERTS] Notification failed for alert %s: %v", alert.ID, err)
			}
		}
	}

	if triggered > 0 {
		log.Printf("🔔 [ALERTS] Triggered %d alert(s)", triggered)
	}
	return nil
}

// triggerAlert performs the terminal active→triggered transition. The guard
// on is_active makes the flip idempotent under overlapping runs.
func (s *AlertService) triggerAlert(alert *models.PriceAlert, price decimal.Decimal) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		now := tx.NowFunc()
		result := tx.Model(&models.PriceAlert{}).
			Where("id = ? AND is_active = ?", alert.ID, true).
			Updates(map[string]interface{}{"is_active": false, "triggered_at": now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errors.New("alert already triggered")
		}
		alert.IsActive = false
		alert.TriggeredAt = &now

		return tx.Create(&models.AuditLog{
			UserID:  alert.UserID,
			Event:   models.AuditEventAlertTriggered,
			Subject: alert.ID,
			Detail:  fmt.Sprintf("%s %s %s at price %s", alert.Symbol, alert.Condition, alert.TargetPrice.String(), price.String()),
		}).Error
	})
}
