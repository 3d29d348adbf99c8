package cards

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/PeaceOloruntoba/payment-wallet-app/internal/ledger"
)

// Handler exposes virtual card endpoints.
type Handler struct {
	service *Service
	engine  *ledger.Engine
}

// NewHandler builds the card HTTP handler.
func NewHandler(service *Service, engine *ledger.Engine) *Handler {
	return &Handler{service: service, engine: engine}
}

// Issue handles POST /cards.
func (h *Handler) Issue(c *fiber.Ctx) error {
	account, err := h.actorAccount(c)
	if err != nil {
		return err
	}
	var req struct {
		Country string `json:"country"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	card, err := h.service.Issue(c.UserContext(), IssueInput{AccountID: account.ID, Country: req.Country})
	if err != nil {
		if errors.Is(err, ErrCardExists) {
			return fiber.NewError(http.StatusBadRequest, "virtual card already exists")
		}
		return fiber.NewError(http.StatusInternalServerError, "card issuance failed")
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":            card.ID,
		"masked_number": card.MaskedNumber,
		"expiry_date":   card.ExpiryDate,
	})
}

// Get handles GET /cards.
func (h *Handler) Get(c *fiber.Ctx) error {
	account, err := h.actorAccount(c)
	if err != nil {
		return err
	}
	card, err := h.service.Get(c.UserContext(), account.ID)
	if err != nil {
		if errors.Is(err, ErrCardNotFound) {
			return fiber.NewError(http.StatusNotFound, "virtual card not found")
		}
		return fiber.NewError(http.StatusInternalServerError, "card lookup failed")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"id":            card.ID,
		"masked_number": card.MaskedNumber,
		"expiry_date":   card.ExpiryDate,
		"created_at":    card.CreatedAt,
	})
}

// Details handles GET /cards/details. Full card data comes straight from the
// provider and is never cached server-side.
func (h *Handler) Details(c *fiber.Ctx) error {
	account, err := h.actorAccount(c)
	if err != nil {
		return err
	}
	details, err := h.service.Details(c.UserContext(), account.ID)
	if err != nil {
		if errors.Is(err, ErrCardNotFound) {
			return fiber.NewError(http.StatusNotFound, "virtual card not found")
		}
		return fiber.NewError(http.StatusInternalServerError, "card details fetch failed")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"card_number": details.Number,
		"expiry_date": details.ExpiryDate,
		"cvv":         details.CVV,
	})
}

func (h *Handler) actorAccount(c *fiber.Ctx) (ledger.Account, error) {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return ledger.Account{}, fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	account, err := h.engine.AccountForUser(c.UserContext(), userID)
	if err != nil {
		return ledger.Account{}, fiber.NewError(http.StatusNotFound, "account not found")
	}
	return account, nil
}
