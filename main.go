package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Mariosat15/Chatvot-sub008/handlers"
	"github.com/Mariosat15/Chatvot-sub008/middleware"
	"github.com/Mariosat15/Chatvot-sub008/models"
	"github.com/Mariosat15/Chatvot-sub008/services"
	"github.com/Mariosat15/Chatvot-sub008/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Mariosat15/Chatvot-sub008/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// Health check stays outside gateway auth so the orchestrator can probe it
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 🔐 GLOBAL: only Gateway requests allowed past this point
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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token",
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

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Competition{},
		&models.CompetitionParticipant{},
		&models.CompetitionWinner{},
		&models.Challenge{},
		&models.ChallengeParticipant{},
		&models.TradingPosition{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.UserProgress{},
		&models.BadgeType{},
		&models.UserBadge{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	walletService := services.NewWalletService(db)
	progressionService := services.NewProgressionService(db)
	badgeService := services.NewBadgeService(db)
	notifier := services.NewNotifierClientFromEnv()

	settlementService := services.NewSettlementService(db, walletService, notifier, progressionService)
	challengeService := services.NewChallengeService(db, walletService, notifier, progressionService)
	competitionService := services.NewCompetitionService(db, walletService, settlementService)

	if err := badgeService.SeedBadgeTypes(); err != nil {
		log.Fatal("failed to seed badge catalog:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Margin sweep: batched price marks + forced liquidations
	priceClient := workers.NewPriceClient()
	marginWorker := workers.NewMarginWorker(db, priceClient, notifier)
	go workers.PollMargins(ctx, marginWorker, 15*time.Second)

	sched, err := services.StartArenaScheduler(settlementService, challengeService)
	if err != nil {
		log.Fatal("failed to start scheduler:", err)
	}
	defer func() { _ = sched.Shutdown() }()

	handlers.SetupArenaRoutes(app, competitionService, challengeService, walletService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Margin sweep running (every 15s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
