package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/ScottJutras/chief-ai-backend/database"
	"github.com/ScottJutras/chief-ai-backend/internal/jobs"
	"github.com/ScottJutras/chief-ai-backend/internal/models"
	"github.com/ScottJutras/chief-ai-backend/internal/routes"
	"github.com/ScottJutras/chief-ai-backend/internal/services"
	"github.com/ScottJutras/chief-ai-backend/internal/storage"
)

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("⚠️  No .env file found - checking environment variables")
		}
	}

	// Initialize storage
	var store storage.Store

	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		database.Connect()

		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.UserProfile{},
			&models.Job{},
			&models.Transaction{},
			&models.TimeEntry{},
			&models.Task{},
			&models.PendingAction{},
			&models.IdempotencyRecord{},
			&models.MessageLock{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)
		log.Println("✅ Using PostgreSQL database storage")
	}
	storage.SetStore(store)

	// Initialize Twilio service
	twilioService, err := services.NewTwilioService()
	if err != nil {
		log.Printf("⚠️  Twilio service not initialized: %v", err)
		log.Println("⚠️  Replies will be logged instead of sent")
		twilioService = nil
	} else {
		services.SetTwilioService(twilioService)
		log.Println("✅ Twilio service initialized")
	}

	// Engine wiring. The lock lease outlives the safety timer so a
	// crashed handler frees the user shortly after.
	lockService := services.NewLockService(store, 30*time.Second)
	idemGuard := services.NewIdempotencyGuard(store, 24*time.Hour)
	normalizer := services.NewNormalizer(nil, nil)

	var fallback services.FallbackClassifier
	if fc := services.NewHTTPFallbackClassifier(); fc != nil {
		fallback = fc
		log.Println("✅ Fallback classifier configured")
	} else {
		log.Println("⚠️  No fallback classifier configured - cascade stops at the catalog")
	}
	classifier := services.NewClassifier(fallback)

	router := services.NewRouter(store,
		services.NewExpenseExecutor(store),
		services.NewRevenueExecutor(store),
		services.NewTimeclockExecutor(store),
		services.NewJobExecutor(store),
		services.NewTaskExecutor(store),
		services.NewMoveLogExecutor(store),
	)
	engine := services.NewEngine(store, lockService, idemGuard, normalizer, classifier, router)

	// Start the expired-state sweeper
	sweeper := jobs.NewSweeperJob(store, 10*time.Minute)
	sweeper.Start()

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "Chief AI Backend v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app, store, engine, twilioService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		sweeper.Stop()
		_ = app.Shutdown()
	}()

	log.Println("========================================")
	log.Printf("🚀 Chief AI Backend starting on port %s", port)
	log.Printf("📊 Storage: %s", storageType())
	log.Printf("📱 WhatsApp: %s", whatsappStatus(twilioService))
	log.Println("========================================")

	log.Fatal(app.Listen(":" + port))
}

func storageType() string {
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}

func whatsappStatus(ts *services.TwilioService) string {
	if ts == nil {
		return "Not configured"
	}
	return "Configured"
}
