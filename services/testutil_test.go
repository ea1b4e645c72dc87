package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"etf-invest-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestDB opens a throwaway in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Portfolio{},
		&models.Transaction{},
		&models.StakingPosition{},
		&models.Incentive{},
		&models.Referral{},
		&models.ReferralEarning{},
		&models.PriceAlert{},
		&models.PriceTick{},
		&models.AuditLog{},
		&models.ChatMessage{},
	))
	return db
}

// newTestApp builds a Fiber app with the user context the gateway middleware
// would normally inject.
func newTestApp(userID string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("user_roles", []string{"user"})
		return c.Next()
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	if len(raw) > 0 {
		// non-object responses (arrays) are fine to ignore here
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp.StatusCode, decoded
}

// seedUser creates a user plus portfolio. The referral path is derived from
// the optional referrer the way signup does it.
func seedUser(t *testing.T, db *gorm.DB, username string, referrer *models.User) *models.User {
	t.Helper()

	user := models.User{
		ID:           uuid.NewString(),
		Email:        username + "@example.com",
		Username:     username,
		ReferralCode: username + "-CODE",
	}
	if referrer != nil {
		user.ReferredByID = &referrer.ID
		user.ReferralPath = referrer.ReferralPath + "." + user.ID
	} else {
		user.ReferralPath = user.ID
	}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&models.Portfolio{UserID: user.ID}).Error)

	if referrer != nil {
		require.NoError(t, db.Create(&models.Referral{
			ReferrerID:       referrer.ID,
			ReferredID:       user.ID,
			ReferralCodeUsed: referrer.ReferralCode,
		}).Error)
	}
	return &user
}

func portfolioOf(t *testing.T, db *gorm.DB, userID string) *models.Portfolio {
	t.Helper()
	var port models.Portfolio
	require.NoError(t, db.Where("user_id = ?", userID).First(&port).Error)
	return &port
}

// stubPriceSource serves fixed prices without Redis or the DB.
type stubPriceSource map[string]decimal.Decimal

func (s stubPriceSource) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := s[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price available for %s", symbol)
	}
	return price, nil
}
