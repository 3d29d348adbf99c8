package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/PeaceOloruntoba/payment-wallet-app/internal/provider"
)

// Handler translates HTTP calls into engine operations. The actor account is
// always resolved from the authenticated user id, never taken from the body.
type Handler struct {
	engine *Engine
	logger *slog.Logger
}

// NewHandler builds the wallet HTTP handler.
func NewHandler(engine *Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

type depositRequest struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

type withdrawRequest struct {
	Amount        int64  `json:"amount"`
	Reference     string `json:"reference"`
	HolderName    string `json:"holder_name"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	Country       string `json:"country"`
}

type transferRequest struct {
	ReceiverNumber string `json:"receiver_account_number"`
	Amount         int64  `json:"amount"`
	Reference      string `json:"reference"`
	ViaProvider    bool   `json:"via_provider"`
}

type transactionResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Balance handles GET /balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	account, err := h.actorAccount(c)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_number": account.Number,
		"balance":        account.Balance,
		"currency":       account.Currency,
	})
}

// Deposit handles POST /deposit: the same-process variant credited
// synchronously.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	account, err := h.actorAccount(c)
	if err != nil {
		return err
	}
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	tx, err := h.engine.Deposit(c.UserContext(), DepositInput{AccountID: account.ID, Amount: req.Amount, Reference: req.Reference})
	if err != nil {
		return h.mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(tx))
}

// StartDeposit handles POST /deposit/start: provider-backed hosted checkout.
func (h *Handler) StartDeposit(c *fiber.Ctx) error {
	account, err := h.actorAccount(c)
	if err != nil {
		return err
	}
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	intent, err := h.engine.StartDeposit(c.UserContext(), DepositInput{AccountID: account.ID, Amount: req.Amount, Reference: req.Reference})
	if err != nil {
		return h.mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction":  toResponse(intent.Transaction),
		"checkout_id":  intent.CheckoutID,
		"redirect_url": intent.RedirectURL,
	})
}

// Withdraw handles POST /withdraw.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	account, err := h.actorAccount(c)
	if err != nil {
		return err
	}
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.AccountNumber == "" || req.HolderName == "" {
		return fiber.NewError(http.StatusBadRequest, "payout destination is required")
	}

	tx, err := h.engine.Withdraw(c.UserContext(), WithdrawInput{
		AccountID: account.ID,
		Amount:    req.Amount,
		Reference: req.Reference,
		Destination: BankDestination{
			HolderName:    req.HolderName,
			AccountNumber: req.AccountNumber,
			BankName:      req.BankName,
			Country:       req.Country,
		},
	})
	if err != nil {
		return h.mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(tx))
}

// Transfer handles POST /transfer.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	account, err := h.actorAccount(c)
	if err != nil {
		return err
	}
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	in := TransferInput{
		SenderAccountID: account.ID,
		ReceiverNumber:  req.ReceiverNumber,
		Amount:          req.Amount,
		Reference:       req.Reference,
	}
	var tx Transaction
	if req.ViaProvider {
		tx, err = h.engine.TransferProvider(c.UserContext(), in)
	} else {
		tx, err = h.engine.Transfer(c.UserContext(), in)
	}
	if err != nil {
		return h.mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(tx))
}

// Transactions handles GET /transactions.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	account, err := h.actorAccount(c)
	if err != nil {
		return err
	}
	txs, err := h.engine.Statement(c.UserContext(), account.ID, c.QueryInt("limit", 50))
	if err != nil {
		return h.mapError(err)
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toResponse(tx))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": out})
}

// BankDetails handles POST /deposit/virtual-account.
func (h *Handler) BankDetails(c *fiber.Ctx) error {
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

	details, err := h.engine.DepositBankDetails(c.UserContext(), account.ID, req.Country)
	if err != nil {
		return h.mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"account_number": details.AccountNumber,
		"bank_name":      details.BankName,
	})
}

func (h *Handler) actorAccount(c *fiber.Ctx) (Account, error) {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return Account{}, fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	account, err := h.engine.AccountForUser(c.UserContext(), userID)
	if err != nil {
		return Account{}, fiber.NewError(http.StatusNotFound, "account not found")
	}
	return account, nil
}

func (h *Handler) mapError(err error) error {
	var rejected *provider.RejectedError
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrCurrencyMismatch):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAccountNotFound):
		return fiber.NewError(http.StatusNotFound, "account not found")
	case errors.As(err, &rejected):
		// The raw decline is already persisted on the transaction; callers
		// only get a readable summary.
		return fiber.NewError(http.StatusInternalServerError, "payment provider declined the request")
	case errors.Is(err, provider.ErrUnreachable):
		return fiber.NewError(http.StatusInternalServerError, "payment provider unavailable, operation pending")
	default:
		h.logger.Error("wallet operation failed", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "operation failed")
	}
}

func toResponse(tx Transaction) transactionResponse {
	return transactionResponse{
		ID:        tx.ID,
		Type:      string(tx.Type),
		Amount:    tx.Amount,
		Currency:  tx.Currency,
		Status:    string(tx.Status),
		Reference: tx.Reference,
		CreatedAt: tx.CreatedAt,
		UpdatedAt: tx.UpdatedAt,
	}
}
