// handlers/user_routes.go
package handlers

import (
	"etf-invest-system/middleware"
	"etf-invest-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupUserRoutes(app *fiber.App, userService *services.UserService, portfolioService *services.PortfolioService) {
	// 🔓 Public — still behind Gateway auth
	app.Post("/users/signup", userService.Signup)

	// 🔐 Secured — require user context from Gateway
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/users/me", userService.GetMe)
	secured.Get("/users/me/statistics", userService.GetStatistics)
	secured.Post("/users/me/kyc", userService.SubmitKYC)
	secured.Post("/users/me/2fa/enable", userService.EnableTwoFactor)
	secured.Post("/users/me/2fa/disable", userService.DisableTwoFactor)

	secured.Get("/portfolio", portfolioService.GetPortfolio)
}
