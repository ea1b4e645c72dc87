package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"etf-invest-system/handlers"
	"etf-invest-system/integrations"
	"etf-invest-system/middleware"
	"etf-invest-system/models"
	"etf-invest-system/services"
	"etf-invest-system/utils"
	"etf-invest-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024, // 20MB — KYC document uploads
	})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}
	if err := utils.EnsureUploadDir(); err != nil {
		log.Fatal("failed to ensure upload dir:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
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
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// --- Redis price cache (optional; DB fallback when unset) ---
	var rdb *redis.Client
	var prices services.PriceSource
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatal("invalid REDIS_URL:", err)
		}
		rdb = redis.NewClient(opts)
		prices = services.NewRedisPriceSource(rdb, db)
	} else {
		log.Println("⚠️  REDIS_URL not set — prices served from the database only")
		prices = &services.DBPriceSource{DB: db}
	}

	// --- External capabilities: mocks by default, real SDKs drop in here ---
	var wallet integrations.WalletProvider = integrations.MockWalletProvider{}
	var verifier integrations.IdentityVerifier = integrations.MockIdentityVerifier{}
	var notifier integrations.PushNotifier = integrations.LogNotifier{}

	userService := services.NewUserService(db, verifier)
	portfolioService := services.NewPortfolioService(db, prices)
	depositService := services.NewDepositService(db, wallet, prices)
	withdrawalService := services.NewWithdrawalService(db, prices)
	stakingService := services.NewStakingService(db)
	incentiveService := services.NewIncentiveService(db)
	referralService := services.NewReferralService(db)
	alertService := services.NewAlertService(db, prices, notifier)
	chatService := services.NewChatService(db, os.Getenv("CHAT_WEBHOOK_URL"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	priceFeedURL := os.Getenv("PRICE_FEED_URL")
	if priceFeedURL == "" {
		log.Fatal("PRICE_FEED_URL environment variable not set")
	}
	priceFeedWorker := workers.NewPriceFeedWorker(db, rdb, priceFeedURL, 30*time.Second)
	go priceFeedWorker.Start(ctx)

	broadcaster := workers.NewWithdrawalBroadcaster(db, wallet)
	go workers.PollPendingWithdrawals(ctx, broadcaster, 15*time.Second)

	services.StartSchedulers(alertService, stakingService)

	handlers.SetupUserRoutes(app, userService, portfolioService)
	handlers.SetupInvestmentRoutes(app, depositService, withdrawalService, stakingService)
	handlers.SetupEngagementRoutes(app, incentiveService, referralService, alertService, chatService)

	app.Static("/uploads", "./uploads")

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Price feed worker running (every 30s)")
	log.Println("✅ Withdrawal broadcaster running (every 15s)")
	log.Println("✅ Alert checker scheduled (every 1m), staking payout daily")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
