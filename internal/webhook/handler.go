package webhook

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/PeaceOloruntoba/payment-wallet-app/internal/provider"
)

// Handler receives provider callbacks. The signature is verified against the
// raw received bytes before the body is parsed as JSON; a mismatch is a hard
// 403 with zero state change.
type Handler struct {
	reconciler *Reconciler
	creds      provider.Credentials
	logger     *slog.Logger
}

// NewHandler builds the webhook HTTP handler.
func NewHandler(reconciler *Reconciler, creds provider.Credentials, logger *slog.Logger) *Handler {
	return &Handler{reconciler: reconciler, creds: creds, logger: logger}
}

// Receive handles POST /webhook.
func (h *Handler) Receive(c *fiber.Ctx) error {
	raw := c.Body()
	signature := c.Get("signature")
	salt := c.Get("salt")
	timestamp := c.Get("timestamp")

	if signature == "" || !provider.VerifySignature(
		signature,
		strings.ToLower(c.Method()),
		c.Path(),
		salt,
		timestamp,
		h.creds,
		raw,
	) {
		h.logger.Warn("webhook signature rejected", slog.String("ip", c.IP()))
		return fiber.NewError(http.StatusForbidden, "invalid signature")
	}

	if err := h.reconciler.Process(c.UserContext(), raw); err != nil {
		h.logger.Error("webhook processing failed", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "event processing failed")
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "ok"})
}
