package services

import (
	"context"
	"errors"
	"log"

	"etf-invest-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PortfolioService struct {
	DB     *gorm.DB
	Prices PriceSource
}

func NewPortfolioService(db *gorm.DB, prices PriceSource) *PortfolioService {
	return &PortfolioService{DB: db, Prices: prices}
}

// GetPortfolio returns the user's balances with a freshly computed USD
// valuation. The valuation is recomputed (and persisted) on every read so
// the stored TotalValueUSD tracks the latest prices.
func (s *PortfolioService) GetPortfolio(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var port models.Portfolio
	if err := s.DB.Where("user_id = ?", userID).First(&port).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Portfolio not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if err := s.RefreshValue(c.Context(), &port); err != nil {
		// valuation is best-effort on reads; stale value beats a failed request
		log.Printf("⚠️ Portfolio valuation failed for %s: %v", userID, err)
	}
	return c.JSON(port)
}

// RefreshValue recomputes TotalValueUSD from current prices and persists it.
func (s *PortfolioService) RefreshValue(ctx context.Context, port *models.Portfolio) error {
	total := decimal.Zero
	for symbol, balance := range map[string]float64{
		models.CryptoETF: port.ETFTokenBalance + port.StakedAmount,
		models.CryptoETH: port.ETHBalance,
		models.CryptoBTC: port.BTCBalance,
	} {
		if balance == 0 {
			continue
		}
		price, err := s.Prices.LatestPrice(ctx, symbol)
		if err != nil {
			return err
		}
		total = total.Add(price.Mul(decimal.NewFromFloat(balance)))
	}

	value, _ := total.Float64()
	port.TotalValueUSD = value
	return s.DB.Model(&models.Portfolio{}).
		Where("id = ?", port.ID).
		Update("total_value_usd", value).Error
}
