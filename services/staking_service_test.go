package services

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"etf-invest-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestAccruedRewardLinearFormula(t *testing.T) {
	// 1000 tokens at 12% APY for 30 days: 1000 * 0.12 * 30/365
	assert.InDelta(t, 1000*0.12*30/365, AccruedReward(1000, 12, 30), 1e-9)

	// a full year at 5% yields exactly 5%
	assert.InDelta(t, 50, AccruedReward(1000, 5, 365), 1e-9)

	// no compounding: two half-years equal one full year
	half := AccruedReward(1000, 5, 182.5)
	assert.InDelta(t, 50, half*2, 1e-9)

	assert.Zero(t, AccruedReward(0, 5, 30))
	assert.Zero(t, AccruedReward(1000, 5, 0))
	assert.Zero(t, AccruedReward(1000, 5, -3))
}

type StakingServiceTestSuite struct {
	suite.Suite
	user *models.User
	svc  *StakingService
}

func (suite *StakingServiceTestSuite) SetupTest() {
	db := newTestDB(suite.T())
	suite.user = seedUser(suite.T(), db, "staker", nil)
	suite.Require().NoError(db.Model(&models.Portfolio{}).
		Where("user_id = ?", suite.user.ID).
		Update("etf_token_balance", 1000).Error)
	suite.svc = NewStakingService(db)
}

func (suite *StakingServiceTestSuite) app() *fiber.App {
	app := newTestApp(suite.user.ID)
	app.Post("/staking/positions", suite.svc.Stake)
	app.Post("/staking/positions/:id/unstake", suite.svc.Unstake)
	app.Get("/staking/positions", suite.svc.GetPositions)
	return app
}

func (suite *StakingServiceTestSuite) TestStakeMovesBalance() {
	status, resp := doJSON(suite.T(), suite.app(), http.MethodPost, "/staking/positions",
		map[string]interface{}{"amount": 400, "plan": "flexible"})
	suite.Equal(http.StatusCreated, status)
	suite.Equal("active", resp["status"])

	port := portfolioOf(suite.T(), suite.svc.DB, suite.user.ID)
	suite.InDelta(600, port.ETFTokenBalance, 1e-9)
	suite.InDelta(400, port.StakedAmount, 1e-9)
}

func (suite *StakingServiceTestSuite) TestStakeRejectsOverdraw() {
	status, resp := doJSON(suite.T(), suite.app(), http.MethodPost, "/staking/positions",
		map[string]interface{}{"amount": 5000, "plan": "flexible"})
	suite.Equal(http.StatusBadRequest, status)
	suite.Contains(resp["error"], "Insufficient")
}

func (suite *StakingServiceTestSuite) TestUnstakeLockedPositionRejected() {
	app := suite.app()
	status, resp := doJSON(suite.T(), app, http.MethodPost, "/staking/positions",
		map[string]interface{}{"amount": 300, "plan": "locked-30"})
	suite.Equal(http.StatusCreated, status)
	posID := resp["id"].(string)

	status, resp = doJSON(suite.T(), app, http.MethodPost,
		fmt.Sprintf("/staking/positions/%s/unstake", posID), nil)
	suite.Equal(http.StatusBadRequest, status)
	suite.Contains(resp["error"], "locked until")

	// nothing moved
	port := portfolioOf(suite.T(), suite.svc.DB, suite.user.ID)
	suite.InDelta(300, port.StakedAmount, 1e-9)
}

func (suite *StakingServiceTestSuite) TestUnstakeAfterLockExpiry() {
	app := suite.app()
	status, resp := doJSON(suite.T(), app, http.MethodPost, "/staking/positions",
		map[string]interface{}{"amount": 300, "plan": "locked-30"})
	suite.Equal(http.StatusCreated, status)
	posID := resp["id"].(string)

	// age the position past its lock
	past := time.Now().AddDate(0, 0, -31)
	end := time.Now().AddDate(0, 0, -1)
	suite.Require().NoError(suite.svc.DB.Model(&models.StakingPosition{}).
		Where("id = ?", posID).
		Updates(map[string]interface{}{"start_date": past, "end_date": end}).Error)

	status, _ = doJSON(suite.T(), app, http.MethodPost,
		fmt.Sprintf("/staking/positions/%s/unstake", posID), nil)
	suite.Equal(http.StatusOK, status)

	port := portfolioOf(suite.T(), suite.svc.DB, suite.user.ID)
	suite.InDelta(0, port.StakedAmount, 1e-9)
	// principal back plus 31 days of 8% APY accrual
	expectedReward := AccruedReward(300, 8, 31)
	suite.InDelta(1000+expectedReward, port.ETFTokenBalance, 0.01)
	suite.InDelta(expectedReward, port.StakingRewards, 0.01)

	// double unstake is a conflict
	status, _ = doJSON(suite.T(), app, http.MethodPost,
		fmt.Sprintf("/staking/positions/%s/unstake", posID), nil)
	suite.Equal(http.StatusConflict, status)
}

func (suite *StakingServiceTestSuite) TestPayoutAccruedRewards() {
	app := suite.app()
	status, resp := doJSON(suite.T(), app, http.MethodPost, "/staking/positions",
		map[string]interface{}{"amount": 500, "plan": "flexible"})
	suite.Equal(http.StatusCreated, status)
	posID := resp["id"].(string)

	// pretend 10 days have passed
	past := time.Now().AddDate(0, 0, -10)
	suite.Require().NoError(suite.svc.DB.Model(&models.StakingPosition{}).
		Where("id = ?", posID).
		Update("start_date", past).Error)

	require.NoError(suite.T(), suite.svc.PayoutAccruedRewards())

	expected := AccruedReward(500, 5, 10)
	port := portfolioOf(suite.T(), suite.svc.DB, suite.user.ID)
	suite.InDelta(expected, port.StakingRewards, 0.01)

	// a second run without elapsed time pays (almost) nothing more
	require.NoError(suite.T(), suite.svc.PayoutAccruedRewards())
	port = portfolioOf(suite.T(), suite.svc.DB, suite.user.ID)
	suite.InDelta(expected, port.StakingRewards, 0.01)
}

func TestStakingServiceTestSuite(t *testing.T) {
	suite.Run(t, new(StakingServiceTestSuite))
}
