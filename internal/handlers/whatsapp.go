package handlers

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ScottJutras/chief-ai-backend/internal/services"
)

// TwilioWebhookPayload is the form body Twilio posts for an inbound
// WhatsApp message. Interactive replies arrive with the button or list
// fields set alongside (or instead of) Body.
type TwilioWebhookPayload struct {
	MessageSid                string `form:"MessageSid"`
	AccountSid                string `form:"AccountSid"`
	From                      string `form:"From"` // whatsapp:+15551234567
	To                        string `form:"To"`
	Body                      string `form:"Body"`
	ButtonPayload             string `form:"ButtonPayload"`
	ButtonText                string `form:"ButtonText"`
	ListId                    string `form:"ListId"`
	ListTitle                 string `form:"ListTitle"`
	NumMedia                  string `form:"NumMedia"`
	MediaUrl0                 string `form:"MediaUrl0"`
	MediaContentType0         string `form:"MediaContentType0"`
	OriginalRepliedMessageSid string `form:"OriginalRepliedMessageSid"`
	MessageStatus             string `form:"MessageStatus"` // set on status callbacks only
}

// WhatsAppHandler receives Twilio webhooks and hands them to the
// engine.
type WhatsAppHandler struct {
	engine   *services.Engine
	twilio   *services.TwilioService
	tenantID string
}

// NewWhatsAppHandler creates the webhook handler. twilio may be nil
// for local testing; replies are then only logged.
func NewWhatsAppHandler(engine *services.Engine, twilio *services.TwilioService) *WhatsAppHandler {
	tenantID := os.Getenv("CHIEF_TENANT_ID")
	if tenantID == "" {
		tenantID = "default"
	}
	return &WhatsAppHandler{engine: engine, twilio: twilio, tenantID: tenantID}
}

// HandleWebhook processes an inbound WhatsApp message. It always
// returns 200: Twilio retries non-2xx responses, and the idempotency
// guard is the layer that owns redelivery, not HTTP status codes.
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("⚠️ unparseable webhook body: %v", err)
		return c.SendStatus(fiber.StatusOK)
	}

	// Delivery status callbacks share the webhook URL; nothing to do.
	if payload.MessageStatus != "" || payload.From == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	log.Printf("📱 WhatsApp message from %s (sid %s)", payload.From, payload.MessageSid)

	env := &services.InboundEnvelope{
		From:              payload.From,
		TenantID:          h.tenantID,
		Body:              payload.Body,
		ButtonPayload:     payload.ButtonPayload,
		ButtonText:        payload.ButtonText,
		ListReplyID:       payload.ListId,
		ListReplyTitle:    payload.ListTitle,
		MediaURL:          payload.MediaUrl0,
		MediaContentType:  payload.MediaContentType0,
		ProviderMessageID: payload.MessageSid,
		ReplyToID:         payload.OriginalRepliedMessageSid,
	}

	reply := h.engine.Handle(c.Context(), env)

	if h.twilio != nil {
		to := env.From
		if len(to) > 9 && to[:9] == "whatsapp:" {
			to = to[9:]
		}
		if err := h.twilio.SendWhatsAppMessage(to, reply); err != nil {
			log.Printf("❌ failed to send reply to %s: %v", to, err)
		}
	} else {
		log.Printf("📤 reply (Twilio not configured): %s", reply.Render())
	}

	return c.SendStatus(fiber.StatusOK)
}

// TestWebhookPayload drives the engine from curl without Twilio.
type TestWebhookPayload struct {
	From      string `json:"from"`
	Message   string `json:"message"`
	MessageID string `json:"message_id,omitempty"`
	ReplyToID string `json:"reply_to_id,omitempty"`
}

// HandleTestWebhook processes a JSON test message and returns the
// reply inline.
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid test payload",
		})
	}

	messageID := payload.MessageID
	if messageID == "" {
		messageID = "test-" + uuid.NewString()
	}

	log.Printf("🧪 test message from %s: %s", payload.From, payload.Message)

	reply := h.engine.Handle(c.Context(), &services.InboundEnvelope{
		From:              payload.From,
		TenantID:          h.tenantID,
		Body:              payload.Message,
		ProviderMessageID: messageID,
		ReplyToID:         payload.ReplyToID,
	})

	return c.JSON(fiber.Map{
		"success":       true,
		"reply":         reply.Text,
		"quick_replies": reply.QuickReplies,
	})
}
