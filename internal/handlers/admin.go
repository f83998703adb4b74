package handlers

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/ScottJutras/chief-ai-backend/internal/storage"
)

// AdminHandler exposes operator inspection of the conversation state:
// what a user has pending, and what happened to a given delivery.
type AdminHandler struct {
	store    storage.Store
	tenantID string
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(store storage.Store) *AdminHandler {
	tenantID := os.Getenv("CHIEF_TENANT_ID")
	if tenantID == "" {
		tenantID = "default"
	}
	return &AdminHandler{store: store, tenantID: tenantID}
}

// GetPendingActions lists a user's pending actions, parked included.
func (h *AdminHandler) GetPendingActions(c *fiber.Ctx) error {
	phone := c.Params("phone")
	pending, err := h.store.GetPendingActions(h.tenantID, phone)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch pending actions",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"pending": pending,
		"count":   len(pending),
	})
}

// ClearPendingActions force-clears everything a user has pending.
func (h *AdminHandler) ClearPendingActions(c *fiber.Ctx) error {
	phone := c.Params("phone")
	n, err := h.store.DeleteAllPendingActions(h.tenantID, phone)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to clear pending actions",
		})
	}
	log.Printf("🗑️ admin cleared %d pending action(s) for %s", n, phone)
	return c.JSON(fiber.Map{
		"success": true,
		"cleared": n,
	})
}

// GetMessageRecord shows how a provider message id was handled.
func (h *AdminHandler) GetMessageRecord(c *fiber.Ctx) error {
	sid := c.Params("sid")
	rec, err := h.store.GetIdempotencyRecord(sid)
	if err == storage.ErrNotFound {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No record for that message id",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch message record",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"record":  rec,
	})
}
