// handlers/engagement_routes.go
package handlers

import (
	"etf-invest-system/middleware"
	"etf-invest-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupEngagementRoutes(app *fiber.App,
	incentiveService *services.IncentiveService,
	referralService *services.ReferralService,
	alertService *services.AlertService,
	chatService *services.ChatService,
) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Incentives & rewards
	secured.Get("/incentives", incentiveService.GetUserIncentives)
	secured.Get("/incentives/counts", incentiveService.GetIncentiveCounts)
	secured.Post("/incentives/:id/claim", incentiveService.ClaimIncentive)
	secured.Post("/incentives/daily-login", incentiveService.CheckDailyLoginBonus)

	// Referral program
	secured.Get("/referrals/downline", referralService.GetDownline)
	secured.Get("/referrals/tree", referralService.GetReferralTree)
	secured.Get("/referrals/stats", referralService.GetReferralStats)

	// Price alerts
	secured.Post("/alerts", alertService.CreateAlert)
	secured.Get("/alerts", alertService.GetAlerts)
	secured.Delete("/alerts/:id", alertService.DeleteAlert)

	// AI support chat
	secured.Post("/chat", chatService.PostMessage)
	secured.Get("/chat/:session_id", chatService.GetHistory)
}
