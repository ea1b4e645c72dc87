package services

import (
	"net/http"
	"testing"

	"etf-invest-system/integrations"
	"etf-invest-system/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type DepositServiceTestSuite struct {
	suite.Suite
	user *models.User
	svc  *DepositService
}

func (suite *DepositServiceTestSuite) SetupTest() {
	db := newTestDB(suite.T())
	suite.user = seedUser(suite.T(), db, "depositor", nil)
	suite.svc = NewDepositService(db, integrations.MockWalletProvider{}, stubPriceSource{
		models.CryptoETH: decimal.NewFromInt(2000),
		models.CryptoBTC: decimal.NewFromInt(50000),
		models.CryptoETF: decimal.NewFromInt(1),
	})
}

func (suite *DepositServiceTestSuite) postDeposit(body map[string]interface{}) (int, map[string]interface{}) {
	app := newTestApp(suite.user.ID)
	app.Post("/deposits", suite.svc.ProcessDeposit)
	return doJSON(suite.T(), app, http.MethodPost, "/deposits", body)
}

func (suite *DepositServiceTestSuite) TestDepositCreditsBalanceAndLedger() {
	status, resp := suite.postDeposit(map[string]interface{}{
		"crypto_type": "ETH",
		"amount":      0.1,
		"tx_hash":     "0xabc123",
	})
	suite.Equal(http.StatusCreated, status)
	suite.Equal("completed", resp["status"])

	port := portfolioOf(suite.T(), suite.svc.DB, suite.user.ID)
	suite.InDelta(0.1, port.ETHBalance, 1e-9)
	suite.InDelta(200, port.TotalDepositedUSD, 1e-9) // 0.1 ETH @ $2000
}

func (suite *DepositServiceTestSuite) TestDuplicateTxHashRejected() {
	body := map[string]interface{}{
		"crypto_type": "ETH",
		"amount":      0.1,
		"tx_hash":     "0xdupe",
	}
	status, _ := suite.postDeposit(body)
	suite.Equal(http.StatusCreated, status)

	status, resp := suite.postDeposit(body)
	suite.Equal(http.StatusConflict, status)
	suite.Contains(resp["error"], "already processed")

	// balance credited exactly once
	port := portfolioOf(suite.T(), suite.svc.DB, suite.user.ID)
	suite.InDelta(0.1, port.ETHBalance, 1e-9)
}

func (suite *DepositServiceTestSuite) TestDepositGrantsMilestone() {
	// $800 pre-existing, a 0.2 ETH deposit ($400) lands at $1200: exactly
	// one milestone, +100 loyalty points
	suite.Require().NoError(suite.svc.DB.Model(&models.Portfolio{}).
		Where("user_id = ?", suite.user.ID).
		Update("total_deposited_usd", 800).Error)

	status, _ := suite.postDeposit(map[string]interface{}{
		"crypto_type": "ETH",
		"amount":      0.2,
		"tx_hash":     "0xmilestone",
	})
	suite.Equal(http.StatusCreated, status)

	var incentives []models.Incentive
	suite.Require().NoError(suite.svc.DB.
		Where("user_id = ? AND type = ?", suite.user.ID, models.IncentiveTypeMilestoneBonus).
		Find(&incentives).Error)
	suite.Require().Len(incentives, 1)
	suite.Equal(float64(10), incentives[0].Amount)

	port := portfolioOf(suite.T(), suite.svc.DB, suite.user.ID)
	suite.Equal(int64(100), port.LoyaltyPoints)
	suite.InDelta(10, port.ETFTokenBalance, 1e-9)
	suite.InDelta(1200, port.TotalDepositedUSD, 1e-9)
}

func (suite *DepositServiceTestSuite) TestDepositPaysReferralChain() {
	referrer := seedUser(suite.T(), suite.svc.DB, "upline", nil)
	referred := seedUser(suite.T(), suite.svc.DB, "downline", referrer)
	suite.user = referred

	// headroom for the referrer's 50% cap
	suite.Require().NoError(suite.svc.DB.Model(&models.Portfolio{}).
		Where("user_id = ?", referrer.ID).
		Update("total_deposited_usd", 10000).Error)

	status, _ := suite.postDeposit(map[string]interface{}{
		"crypto_type": "BTC",
		"amount":      0.02, // $1000
		"tx_hash":     "0xreferral",
	})
	suite.Equal(http.StatusCreated, status)

	port := portfolioOf(suite.T(), suite.svc.DB, referrer.ID)
	suite.InDelta(100, port.ReferralEarnings, 1e-9) // 10% of $1000

	// first deposit marked on the referral row, once
	var ref models.Referral
	suite.Require().NoError(suite.svc.DB.Where("referred_id = ?", referred.ID).First(&ref).Error)
	suite.True(ref.BonusAwarded)
	suite.NotNil(ref.FirstDepositID)
	suite.InDelta(1000, ref.FirstDepositUSD, 1e-9)
}

func (suite *DepositServiceTestSuite) TestDepositValidation() {
	status, _ := suite.postDeposit(map[string]interface{}{
		"crypto_type": "ETH", "amount": -5, "tx_hash": "0xneg",
	})
	suite.Equal(http.StatusBadRequest, status)

	status, _ = suite.postDeposit(map[string]interface{}{
		"crypto_type": "DOGE", "amount": 1, "tx_hash": "0xdoge",
	})
	suite.Equal(http.StatusBadRequest, status)

	status, _ = suite.postDeposit(map[string]interface{}{
		"crypto_type": "ETH", "amount": 1,
	})
	suite.Equal(http.StatusBadRequest, status)
}

func TestDepositServiceTestSuite(t *testing.T) {
	suite.Run(t, new(DepositServiceTestSuite))
}
