package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnreachable wraps network failures and timeouts. The provider may or may
// not have processed the request, so callers must treat the outcome as
// unknown and leave the local transaction pending.
var ErrUnreachable = errors.New("provider unreachable")

// RejectedError is a definitive decline from the provider. Raw carries the
// verbatim response body for audit.
type RejectedError struct {
	Code        string
	Description string
	Raw         []byte
}

func (e *RejectedError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("provider rejected request: %s (%s)", e.Description, e.Code)
	}
	return fmt.Sprintf("provider rejected request: %s", e.Code)
}

// Credentials identify this platform to the payment network. They are loaded
// once at startup and passed explicitly; nothing reads them as ambient state.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// WalletRequest provisions a provider-side wallet for an account.
type WalletRequest struct {
	Reference string `json:"reference_id"`
	Currency  string `json:"currency"`
}

// WalletResult is the bound provider wallet.
type WalletResult struct {
	ID  string
	Raw []byte
}

// CheckoutRequest opens a hosted checkout page funding a wallet.
type CheckoutRequest struct {
	WalletID          string `json:"ewallet"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	MerchantReference string `json:"merchant_reference_id"`
	CompleteURL       string `json:"complete_checkout_url,omitempty"`
	CancelURL         string `json:"cancel_checkout_url,omitempty"`
}

// CheckoutResult carries the hosted page the end user is redirected to.
type CheckoutResult struct {
	ID          string
	RedirectURL string
	Raw         []byte
}

// BankAccountRequest issues virtual bank account details that credit a wallet
// when funds are wired to them.
type BankAccountRequest struct {
	WalletID string `json:"ewallet"`
	Currency string `json:"currency"`
	Country  string `json:"country"`
}

// BankAccountResult holds the issued virtual account details.
type BankAccountResult struct {
	ID            string
	AccountNumber string
	BankName      string
	Raw           []byte
}

// BeneficiaryRequest registers a payout destination.
type BeneficiaryRequest struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	Country       string `json:"country"`
	Currency      string `json:"currency"`
}

// BeneficiaryResult identifies the registered payout destination.
type BeneficiaryResult struct {
	ID  string
	Raw []byte
}

// PayoutRequest pushes funds from a wallet to a beneficiary bank account.
type PayoutRequest struct {
	WalletID          string `json:"ewallet"`
	BeneficiaryID     string `json:"beneficiary"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"payout_currency"`
	MerchantReference string `json:"merchant_reference_id"`
}

// PayoutResult acknowledges payout submission; settlement is reported later
// by webhook.
type PayoutResult struct {
	ID     string
	Status string
	Raw    []byte
}

// TransferRequest moves funds between two provider-side wallets.
type TransferRequest struct {
	SourceWalletID      string `json:"source_ewallet"`
	DestinationWalletID string `json:"destination_ewallet"`
	Amount              int64  `json:"amount"`
	Currency            string `json:"currency"`
	MerchantReference   string `json:"merchant_reference_id"`
}

// TransferResult acknowledges the wallet-to-wallet transfer.
type TransferResult struct {
	ID     string
	Status string
	Raw    []byte
}

// CardRequest issues a virtual card attached to a wallet.
type CardRequest struct {
	WalletID string `json:"ewallet_contact"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
}

// CardResult identifies the issued card.
type CardResult struct {
	ID         string
	MaskedPAN  string
	ExpiryDate string
	Raw        []byte
}

// CardDetailsResult exposes full card data fetched on demand; it is never
// persisted locally.
type CardDetailsResult struct {
	ID         string
	Number     string
	ExpiryDate string
	CVV        string
	Raw        []byte
}

// Gateway is the contract to the external payment network. Every write verb
// takes a caller-supplied idempotency key; retrying the same call with the
// same key is safe because the provider deduplicates on it. Retry policy
// itself belongs to the call sites, not here. Implementations are stateless
// per call.
type Gateway interface {
	CreateWallet(ctx context.Context, req WalletRequest, idempotencyKey string) (WalletResult, error)
	CreateCheckout(ctx context.Context, req CheckoutRequest, idempotencyKey string) (CheckoutResult, error)
	CreateBankAccount(ctx context.Context, req BankAccountRequest, idempotencyKey string) (BankAccountResult, error)
	CreateBeneficiary(ctx context.Context, req BeneficiaryRequest, idempotencyKey string) (BeneficiaryResult, error)
	CreatePayout(ctx context.Context, req PayoutRequest, idempotencyKey string) (PayoutResult, error)
	CreateTransfer(ctx context.Context, req TransferRequest, idempotencyKey string) (TransferResult, error)
	CreateVirtualCard(ctx context.Context, req CardRequest, idempotencyKey string) (CardResult, error)
	GetCardDetails(ctx context.Context, cardID string) (CardDetailsResult, error)
}
