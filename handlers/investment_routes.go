// handlers/investment_routes.go
package handlers

import (
	"etf-invest-system/middleware"
	"etf-invest-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupInvestmentRoutes(app *fiber.App,
	depositService *services.DepositService,
	withdrawalService *services.WithdrawalService,
	stakingService *services.StakingService,
) {
	// 🔓 Public — plan catalog only
	app.Get("/staking/plans", stakingService.GetPlans)

	// 🔐 Secured
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/deposits", depositService.ProcessDeposit)
	secured.Get("/transactions", depositService.GetTransactions)

	secured.Post("/withdrawals", withdrawalService.RequestWithdrawal)

	secured.Post("/staking/positions", stakingService.Stake)
	secured.Get("/staking/positions", stakingService.GetPositions)
	secured.Post("/staking/positions/:id/unstake", stakingService.Unstake)
}
