package services

import (
	"context"
	"fmt"

	"etf-invest-system/models"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PriceSource resolves the latest USD price for a symbol.
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

func priceCacheKey(symbol string) string {
	return "price:latest:" + symbol
}

// RedisPriceSource reads the price cache maintained by the price feed
// worker, falling back to the price_ticks table on a cache miss.
type RedisPriceSource struct {
	RDB *redis.Client
	DB  *gorm.DB
}

func NewRedisPriceSource(rdb *redis.Client, db *gorm.DB) *RedisPriceSource {
	return &RedisPriceSource{RDB: rdb, DB: db}
}

func (s *RedisPriceSource) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	val, err := s.RDB.Get(ctx, priceCacheKey(symbol)).Result()
	if err == nil {
		price, perr := decimal.NewFromString(val)
		if perr == nil {
			return price, nil
		}
	} else if err != redis.Nil {
		// cache unreachable — fall through to the DB
	}
	return (&DBPriceSource{DB: s.DB}).LatestPrice(ctx, symbol)
}

// DBPriceSource reads the latest persisted tick. Used directly when Redis is
// not configured.
type DBPriceSource struct {
	DB *gorm.DB
}

func (s *DBPriceSource) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var tick models.PriceTick
	if err := s.DB.WithContext(ctx).Where("symbol = ?", symbol).First(&tick).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, fmt.Errorf("no price available for %s", symbol)
		}
		return decimal.Zero, err
	}
	return tick.PriceUSD, nil
}
