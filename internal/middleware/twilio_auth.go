package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ValidateTwilioSignature rejects webhook posts that don't carry a
// valid X-Twilio-Signature. The signature covers the public URL plus
// the form parameters sorted by key, HMAC'd with the auth token.
func ValidateTwilioSignature() fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get("X-Twilio-Signature")
		if got == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing signature",
			})
		}

		authToken := os.Getenv("TWILIO_AUTH_TOKEN")
		if authToken == "" {
			log.Println("❌ TWILIO_AUTH_TOKEN not set; cannot validate webhooks")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "server configuration error",
			})
		}

		params := make(map[string]string)
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			params[string(key)] = string(value)
		})

		want := signRequest(authToken, requestURL(c), params)
		if !hmac.Equal([]byte(got), []byte(want)) {
			log.Printf("⚠️ webhook signature mismatch from %s", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid signature",
			})
		}

		return c.Next()
	}
}

// requestURL reconstructs the URL Twilio signed. Behind a proxy the
// scheme and host the app sees differ from the public ones, so
// PUBLIC_BASE_URL wins when set.
func requestURL(c *fiber.Ctx) string {
	if base := os.Getenv("PUBLIC_BASE_URL"); base != "" {
		return strings.TrimSuffix(base, "/") + c.Path()
	}
	scheme := "https"
	if c.Protocol() == "http" {
		scheme = "http"
	}
	return scheme + "://" + c.Hostname() + c.Path()
}

// signRequest computes the expected signature: URL concatenated with
// each key+value pair in key order, HMAC-SHA256, base64.
func signRequest(authToken, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(url)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}

	mac := hmac.New(sha256.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
