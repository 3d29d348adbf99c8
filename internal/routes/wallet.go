package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/PeaceOloruntoba/payment-wallet-app/internal/ledger"
)

// RegisterWalletRoutes wires money-movement endpoints. The idempotency
// middleware guards the unsafe verbs when Redis is available.
func RegisterWalletRoutes(r fiber.Router, h *ledger.Handler, idem fiber.Handler) {
	r.Get("/balance", h.Balance)
	r.Get("/transactions", h.Transactions)

	if idem == nil {
		idem = func(c *fiber.Ctx) error { return c.Next() }
	}
	r.Post("/deposit", idem, h.Deposit)
	r.Post("/deposit/start", idem, h.StartDeposit)
	r.Post("/deposit/virtual-account", idem, h.BankDetails)
	r.Post("/withdraw", idem, h.Withdraw)
	r.Post("/transfer", idem, h.Transfer)
}
