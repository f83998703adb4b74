package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/ScottJutras/chief-ai-backend/internal/handlers"
	"github.com/ScottJutras/chief-ai-backend/internal/middleware"
	"github.com/ScottJutras/chief-ai-backend/internal/services"
	"github.com/ScottJutras/chief-ai-backend/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, store storage.Store, engine *services.Engine, twilioService *services.TwilioService) {

	whatsapp := handlers.NewWhatsAppHandler(engine, twilioService)
	admin := handlers.NewAdminHandler(store)
	health := handlers.NewHealthHandler("1.0.0")

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to Chief AI Backend!",
			"version": "1.0.0",
			"endpoints": fiber.Map{
				"health":        "/health",
				"webhook":       "/webhook/whatsapp",
				"test_whatsapp": "/test/whatsapp",
				"admin":         "/admin",
			},
		})
	})

	app.Get("/health", health.Check)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	// Signature validation is environment-aware: ngrok during local
	// development doesn't carry the production URL Twilio signed.
	if os.Getenv("ENVIRONMENT") == "development" || os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true" {
		webhooks.Post("/whatsapp", whatsapp.HandleWebhook)
		log.Println("⚠️  WhatsApp webhook validation DISABLED")
	} else {
		webhooks.Post("/whatsapp", middleware.ValidateTwilioSignature(), whatsapp.HandleWebhook)
	}

	// ========== TEST ROUTES (Development Only) ==========
	app.Post("/test/whatsapp", whatsapp.HandleTestWebhook)

	// ========== ADMIN ROUTES ==========
	adminGroup := app.Group("/admin", middleware.RequireAdmin())
	adminGroup.Get("/users/:phone/pending", admin.GetPendingActions)
	adminGroup.Delete("/users/:phone/pending", admin.ClearPendingActions)
	adminGroup.Get("/messages/:sid", admin.GetMessageRecord)
}
