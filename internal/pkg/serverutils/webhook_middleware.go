// FILE: internal/pkg/serverutils/webhook_middleware.go
package serverutils

import (
	"crypto/subtle"
	"os"

	"github.com/gofiber/fiber/v2"
)

// WebhookAuthMiddleware verifies the secret token Telegram echoes
// back on every webhook delivery. Requests without the right token
// are dropped before they reach the conversation core.
func WebhookAuthMiddleware(ctx *fiber.Ctx) error {
	secret := os.Getenv("TELEGRAM_WEBHOOK_SECRET")
	if secret == "" {
		// No secret configured (local development); allow through.
		return ctx.Next()
	}

	got := ctx.Get("X-Telegram-Bot-Api-Secret-Token")
	if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid webhook token"})
	}
	return ctx.Next()
}
