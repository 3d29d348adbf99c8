package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Static simulates a provider that approves everything. It backs dev mode and
// unit tests; idempotency keys are remembered so replays return the first
// result, matching the real provider's dedup contract.
type Static struct {
	mu   sync.Mutex
	seen map[string]string
}

// NewStatic builds the simulated gateway.
func NewStatic() *Static {
	return &Static{seen: make(map[string]string)}
}

func (s *Static) dedup(idempotencyKey, prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idempotencyKey != "" {
		if id, ok := s.seen[idempotencyKey]; ok {
			return id
		}
	}
	id := prefix + "_" + uuid.NewString()
	if idempotencyKey != "" {
		s.seen[idempotencyKey] = id
	}
	return id
}

func (s *Static) CreateWallet(_ context.Context, _ WalletRequest, idempotencyKey string) (WalletResult, error) {
	id := s.dedup(idempotencyKey, "ewallet")
	return WalletResult{ID: id, Raw: []byte(`{"status":{"status":"SUCCESS"}}`)}, nil
}

func (s *Static) CreateCheckout(_ context.Context, req CheckoutRequest, idempotencyKey string) (CheckoutResult, error) {
	id := s.dedup(idempotencyKey, "checkout")
	return CheckoutResult{
		ID:          id,
		RedirectURL: fmt.Sprintf("https://checkout.example.com/%s", id),
		Raw:         []byte(`{"status":{"status":"SUCCESS"}}`),
	}, nil
}

func (s *Static) CreateBankAccount(_ context.Context, _ BankAccountRequest, idempotencyKey string) (BankAccountResult, error) {
	id := s.dedup(idempotencyKey, "issuing")
	return BankAccountResult{ID: id, AccountNumber: "000123456789", BankName: "Simulated Bank", Raw: []byte(`{"status":{"status":"SUCCESS"}}`)}, nil
}

func (s *Static) CreateBeneficiary(_ context.Context, _ BeneficiaryRequest, idempotencyKey string) (BeneficiaryResult, error) {
	id := s.dedup(idempotencyKey, "beneficiary")
	return BeneficiaryResult{ID: id, Raw: []byte(`{"status":{"status":"SUCCESS"}}`)}, nil
}

func (s *Static) CreatePayout(_ context.Context, _ PayoutRequest, idempotencyKey string) (PayoutResult, error) {
	id := s.dedup(idempotencyKey, "payout")
	return PayoutResult{ID: id, Status: "Created", Raw: []byte(`{"status":{"status":"SUCCESS"}}`)}, nil
}

func (s *Static) CreateTransfer(_ context.Context, _ TransferRequest, idempotencyKey string) (TransferResult, error) {
	id := s.dedup(idempotencyKey, "transfer")
	return TransferResult{ID: id, Status: "Accepted", Raw: []byte(`{"status":{"status":"SUCCESS"}}`)}, nil
}

func (s *Static) CreateVirtualCard(_ context.Context, _ CardRequest, idempotencyKey string) (CardResult, error) {
	id := s.dedup(idempotencyKey, "card")
	return CardResult{ID: id, MaskedPAN: "**** **** **** 4242", ExpiryDate: "12/28", Raw: []byte(`{"status":{"status":"SUCCESS"}}`)}, nil
}

func (s *Static) GetCardDetails(_ context.Context, cardID string) (CardDetailsResult, error) {
	return CardDetailsResult{
		ID:         cardID,
		Number:     "4242424242424242",
		ExpiryDate: "12/28",
		CVV:        "123",
		Raw:        []byte(`{"status":{"status":"SUCCESS"}}`),
	}, nil
}
