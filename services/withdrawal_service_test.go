package services

import (
	"context"
	"net/http"
	"testing"

	"etf-invest-system/integrations"
	"etf-invest-system/models"
	"etf-invest-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testETHAddress = "0x52908400098527886E0F7030069857D2E4169EE7"

type WithdrawalServiceTestSuite struct {
	suite.Suite
	user *models.User
	svc  *WithdrawalService
}

func (suite *WithdrawalServiceTestSuite) SetupTest() {
	db := newTestDB(suite.T())
	suite.user = seedUser(suite.T(), db, "spender", nil)
	suite.Require().NoError(db.Model(&models.Portfolio{}).
		Where("user_id = ?", suite.user.ID).
		Update("eth_balance", 2.0).Error)

	prices := stubPriceSource{
		models.CryptoETH: decimal.NewFromInt(2000),
		models.CryptoBTC: decimal.NewFromInt(50000),
	}
	suite.svc = NewWithdrawalService(db, prices)
}

func (suite *WithdrawalServiceTestSuite) app() *fiber.App {
	app := newTestApp(suite.user.ID)
	app.Post("/withdrawals", suite.svc.RequestWithdrawal)
	return app
}

func (suite *WithdrawalServiceTestSuite) TestWithdrawalBooksProcessingRow() {
	// 0.4 ETH at $2000 = $800, under the KYC threshold
	status, resp := doJSON(suite.T(), suite.app(), http.MethodPost, "/withdrawals",
		map[string]interface{}{"crypto_type": models.CryptoETH, "amount": 0.4, "wallet_address": testETHAddress})
	suite.Equal(http.StatusCreated, status)
	suite.Equal(string(models.TransactionStatusProcessing), resp["status"])

	port := portfolioOf(suite.T(), suite.svc.DB, suite.user.ID)
	suite.InDelta(1.6, port.ETHBalance, 1e-9)
	suite.InDelta(800, port.TotalWithdrawnUSD, 1e-9)

	var audit models.AuditLog
	require.NoError(suite.T(), suite.svc.DB.
		Where("event = ? AND user_id = ?", models.AuditEventWithdrawalRequested, suite.user.ID).
		First(&audit).Error)
}

func (suite *WithdrawalServiceTestSuite) TestLargeWithdrawalRequiresKYC() {
	// 1 ETH at $2000 = $2000, over the threshold; user is unverified
	status, resp := doJSON(suite.T(), suite.app(), http.MethodPost, "/withdrawals",
		map[string]interface{}{"crypto_type": models.CryptoETH, "amount": 1, "wallet_address": testETHAddress})
	suite.Equal(http.StatusForbidden, status)
	suite.Contains(resp["error"], "KYC")

	// balance untouched
	port := portfolioOf(suite.T(), suite.svc.DB, suite.user.ID)
	suite.InDelta(2.0, port.ETHBalance, 1e-9)

	// verified users pass the same check
	require.NoError(suite.T(), suite.svc.DB.Model(&models.User{}).
		Where("id = ?", suite.user.ID).
		Update("kyc_status", models.KYCStatusVerified).Error)

	status, _ = doJSON(suite.T(), suite.app(), http.MethodPost, "/withdrawals",
		map[string]interface{}{"crypto_type": models.CryptoETH, "amount": 1, "wallet_address": testETHAddress})
	suite.Equal(http.StatusCreated, status)
}

func (suite *WithdrawalServiceTestSuite) TestInsufficientBalanceRejected() {
	status, resp := doJSON(suite.T(), suite.app(), http.MethodPost, "/withdrawals",
		map[string]interface{}{"crypto_type": models.CryptoBTC, "amount": 0.01, "wallet_address": "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"})
	suite.Equal(http.StatusBadRequest, status)
	suite.Contains(resp["error"], "Insufficient")
}

func (suite *WithdrawalServiceTestSuite) TestAddressValidation() {
	app := suite.app()

	status, _ := doJSON(suite.T(), app, http.MethodPost, "/withdrawals",
		map[string]interface{}{"crypto_type": models.CryptoETH, "amount": 0.1, "wallet_address": "not-an-address"})
	suite.Equal(http.StatusBadRequest, status)

	// BTC address on an ETH withdrawal is rejected too
	status, _ = doJSON(suite.T(), app, http.MethodPost, "/withdrawals",
		map[string]interface{}{"crypto_type": models.CryptoETH, "amount": 0.1, "wallet_address": "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"})
	suite.Equal(http.StatusBadRequest, status)
}

func (suite *WithdrawalServiceTestSuite) TestBroadcastCompletesProcessingRow() {
	status, resp := doJSON(suite.T(), suite.app(), http.MethodPost, "/withdrawals",
		map[string]interface{}{"crypto_type": models.CryptoETH, "amount": 0.4, "wallet_address": testETHAddress})
	suite.Require().Equal(http.StatusCreated, status)
	txnID := resp["id"].(string)

	broadcaster := workers.NewWithdrawalBroadcaster(suite.svc.DB, integrations.MockWalletProvider{})
	require.NoError(suite.T(), broadcaster.BroadcastPending(context.Background()))

	var txn models.Transaction
	require.NoError(suite.T(), suite.svc.DB.First(&txn, "id = ?", txnID).Error)
	suite.Equal(models.TransactionStatusCompleted, txn.Status)
	suite.NotNil(txn.TxHash)
}

func TestWithdrawalServiceTestSuite(t *testing.T) {
	suite.Run(t, new(WithdrawalServiceTestSuite))
}
