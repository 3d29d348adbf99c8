package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/PeaceOloruntoba/payment-wallet-app/internal/auth"
	"github.com/PeaceOloruntoba/payment-wallet-app/internal/identity"
	"github.com/PeaceOloruntoba/payment-wallet-app/internal/ledger"
)

// Handler exposes registration and login endpoints. Registration provisions
// the custodial account alongside the user record.
type Handler struct {
	service *identity.Service
	tokens  *auth.Service
	engine  *ledger.Engine
	logger  *slog.Logger
}

// NewHandler builds the identity HTTP handler.
func NewHandler(service *identity.Service, tokens *auth.Service, engine *ledger.Engine, logger *slog.Logger) *Handler {
	return &Handler{service: service, tokens: tokens, engine: engine, logger: logger}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Currency string `json:"currency"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Currency == "" {
		return fiber.NewError(http.StatusBadRequest, "currency is required")
	}

	user, err := h.service.Register(c.UserContext(), identity.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Currency: req.Currency,
	})
	if err != nil {
		if errors.Is(err, identity.ErrUserExists) {
			return fiber.NewError(http.StatusBadRequest, "user already exists")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	account, err := h.engine.OpenAccount(c.UserContext(), user.ID, req.Currency)
	if err != nil {
		h.logger.Error("open account", slog.String("user_id", user.ID), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "could not provision account")
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "could not issue token")
	}

	h.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("account_number", account.Number),
	)
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":             user.ID,
		"name":           user.Name,
		"email":          user.Email,
		"phone":          user.Phone,
		"currency":       account.Currency,
		"account_number": account.Number,
		"token":          token,
	})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	user, err := h.service.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return fiber.NewError(http.StatusUnauthorized, "invalid email or password")
		}
		return fiber.NewError(http.StatusInternalServerError, "login failed")
	}

	account, err := h.engine.AccountForUser(c.UserContext(), user.ID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "account lookup failed")
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "could not issue token")
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"id":             user.ID,
		"name":           user.Name,
		"email":          user.Email,
		"currency":       account.Currency,
		"account_number": account.Number,
		"balance":        account.Balance,
		"token":          token,
	})
}
