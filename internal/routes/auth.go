package routes

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterAuthRoutes wires registration and login.
func RegisterAuthRoutes(r fiber.Router, h *Handler) {
	group := r.Group("/auth")
	group.Post("/register", h.Register)
	group.Post("/login", h.Login)
}
