package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	statusSuccess        = "SUCCESS"
	idempotencyHeader    = "idempotency"
	defaultClientTimeout = 10 * time.Second
)

// Client is the signed HTTP client to the payment network. It is stateless;
// one instance is shared across the process.
type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a gateway client. A zero timeout falls back to 10s; a call
// that exceeds it returns ErrUnreachable and the outcome must be treated as
// unknown.
func NewClient(baseURL string, creds Credentials, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// envelope is the provider's response wrapper. Business logic never branches
// on Data's internal shape beyond the fields decoded here; the raw body is
// handed back for audit storage.
type envelope struct {
	Status struct {
		Status           string `json:"status"`
		ErrorCode        string `json:"error_code"`
		ErrorDescription string `json:"error_description"`
	} `json:"status"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) CreateWallet(ctx context.Context, req WalletRequest, idempotencyKey string) (WalletResult, error) {
	var data struct {
		ID string `json:"id"`
	}
	raw, err := c.post(ctx, "/v1/ewallets", req, idempotencyKey, &data)
	if err != nil {
		return WalletResult{}, err
	}
	return WalletResult{ID: data.ID, Raw: raw}, nil
}

func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest, idempotencyKey string) (CheckoutResult, error) {
	var data struct {
		ID          string `json:"id"`
		RedirectURL string `json:"redirect_url"`
	}
	raw, err := c.post(ctx, "/v1/checkout", req, idempotencyKey, &data)
	if err != nil {
		return CheckoutResult{}, err
	}
	return CheckoutResult{ID: data.ID, RedirectURL: data.RedirectURL, Raw: raw}, nil
}

func (c *Client) CreateBankAccount(ctx context.Context, req BankAccountRequest, idempotencyKey string) (BankAccountResult, error) {
	var data struct {
		ID          string `json:"id"`
		BankAccount struct {
			AccountNumber string `json:"account_number"`
			BankName      string `json:"bank_name"`
		} `json:"bank_account"`
	}
	raw, err := c.post(ctx, "/v1/issuing/bankaccounts", req, idempotencyKey, &data)
	if err != nil {
		return BankAccountResult{}, err
	}
	return BankAccountResult{
		ID:            data.ID,
		AccountNumber: data.BankAccount.AccountNumber,
		BankName:      data.BankAccount.BankName,
		Raw:           raw,
	}, nil
}

func (c *Client) CreateBeneficiary(ctx context.Context, req BeneficiaryRequest, idempotencyKey string) (BeneficiaryResult, error) {
	var data struct {
		ID string `json:"id"`
	}
	raw, err := c.post(ctx, "/v1/payouts/beneficiary", req, idempotencyKey, &data)
	if err != nil {
		return BeneficiaryResult{}, err
	}
	return BeneficiaryResult{ID: data.ID, Raw: raw}, nil
}

func (c *Client) CreatePayout(ctx context.Context, req PayoutRequest, idempotencyKey string) (PayoutResult, error) {
	var data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	raw, err := c.post(ctx, "/v1/payouts", req, idempotencyKey, &data)
	if err != nil {
		return PayoutResult{}, err
	}
	return PayoutResult{ID: data.ID, Status: data.Status, Raw: raw}, nil
}

func (c *Client) CreateTransfer(ctx context.Context, req TransferRequest, idempotencyKey string) (TransferResult, error) {
	var data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	raw, err := c.post(ctx, "/v1/account/transfer", req, idempotencyKey, &data)
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{ID: data.ID, Status: data.Status, Raw: raw}, nil
}

func (c *Client) CreateVirtualCard(ctx context.Context, req CardRequest, idempotencyKey string) (CardResult, error) {
	var data struct {
		ID         string `json:"card_id"`
		MaskedPAN  string `json:"card_number"`
		ExpiryDate string `json:"expiration_date"`
	}
	raw, err := c.post(ctx, "/v1/issuing/cards", req, idempotencyKey, &data)
	if err != nil {
		return CardResult{}, err
	}
	return CardResult{ID: data.ID, MaskedPAN: data.MaskedPAN, ExpiryDate: data.ExpiryDate, Raw: raw}, nil
}

func (c *Client) GetCardDetails(ctx context.Context, cardID string) (CardDetailsResult, error) {
	var data struct {
		ID         string `json:"card_id"`
		Number     string `json:"card_number"`
		ExpiryDate string `json:"expiration_date"`
		CVV        string `json:"cvv"`
	}
	raw, err := c.do(ctx, http.MethodGet, "/v1/issuing/cards/"+cardID, nil, "", &data)
	if err != nil {
		return CardDetailsResult{}, err
	}
	return CardDetailsResult{ID: data.ID, Number: data.Number, ExpiryDate: data.ExpiryDate, CVV: data.CVV, Raw: raw}, nil
}

func (c *Client) post(ctx context.Context, path string, body any, idempotencyKey string, out any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, body, idempotencyKey, out)
}

// do sends a signed request and decodes the provider envelope. The returned
// bytes are the verbatim response body.
func (c *Client) do(ctx context.Context, method, path string, body any, idempotencyKey string, out any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	salt, err := newSalt()
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	// The provider accepts timestamps within a +/-10s window; backdating
	// keeps slow clocks inside it.
	timestamp := strconv.FormatInt(time.Now().Unix()-10, 10)
	signature := Sign(strings.ToLower(method), path, salt, timestamp, c.creds, payload)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_key", c.creds.AccessKey)
	req.Header.Set("salt", salt)
	req.Header.Set("timestamp", timestamp)
	req.Header.Set("signature", signature)
	if idempotencyKey != "" {
		req.Header.Set(idempotencyHeader, idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnreachable, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnreachable, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest || env.Status.Status != statusSuccess {
		if c.logger != nil {
			c.logger.Warn("provider rejected request",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.String("error_code", env.Status.ErrorCode),
			)
		}
		return nil, &RejectedError{Code: env.Status.ErrorCode, Description: env.Status.ErrorDescription, Raw: raw}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode provider data: %w", err)
		}
	}
	return raw, nil
}
