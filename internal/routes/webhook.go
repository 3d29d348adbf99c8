package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/PeaceOloruntoba/payment-wallet-app/internal/webhook"
)

// RegisterWebhookRoute wires the provider callback endpoint.
func RegisterWebhookRoute(r fiber.Router, h *webhook.Handler) {
	r.Post("/webhook", h.Receive)
}
