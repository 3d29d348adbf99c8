package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/PeaceOloruntoba/payment-wallet-app/internal/cards"
)

// RegisterCardRoutes wires virtual card endpoints.
func RegisterCardRoutes(r fiber.Router, h *cards.Handler) {
	r.Post("/cards", h.Issue)
	r.Get("/cards", h.Get)
	r.Get("/cards/details", h.Details)
}
