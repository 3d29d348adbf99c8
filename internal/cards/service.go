package cards

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/PeaceOloruntoba/payment-wallet-app/internal/ledger"
	"github.com/PeaceOloruntoba/payment-wallet-app/internal/provider"
)

// Service issues virtual cards through the provider gateway. One card per
// account.
type Service struct {
	repo    Repository
	engine  *ledger.Engine
	gateway provider.Gateway
}

// NewService builds the card service.
func NewService(repo Repository, engine *ledger.Engine, gateway provider.Gateway) *Service {
	return &Service{repo: repo, engine: engine, gateway: gateway}
}

// IssueInput captures the issuance request.
type IssueInput struct {
	AccountID string
	Country   string
}

// Issue creates a virtual card for the account. The idempotency key is
// derived from the account id so a retried issuance cannot create a second
// provider card.
func (s *Service) Issue(ctx context.Context, in IssueInput) (Card, error) {
	if _, err := s.repo.FindByAccount(ctx, in.AccountID); err == nil {
		return Card{}, ErrCardExists
	} else if !errors.Is(err, ErrCardNotFound) {
		return Card{}, err
	}

	account, err := s.engine.Account(ctx, in.AccountID)
	if err != nil {
		return Card{}, err
	}

	res, err := s.gateway.CreateVirtualCard(ctx, provider.CardRequest{
		WalletID: account.ProviderWalletID,
		Country:  in.Country,
		Currency: account.Currency,
	}, "card:"+account.ID)
	if err != nil {
		return Card{}, err
	}

	card := Card{
		ID:             uuid.NewString(),
		AccountID:      account.ID,
		ProviderCardID: res.ID,
		MaskedNumber:   res.MaskedPAN,
		ExpiryDate:     res.ExpiryDate,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, card); err != nil {
		return Card{}, err
	}
	return card, nil
}

// Get returns the card issued for the account.
func (s *Service) Get(ctx context.Context, accountID string) (Card, error) {
	return s.repo.FindByAccount(ctx, accountID)
}

// Details fetches full card data from the provider on demand; it is returned
// to the caller and never stored.
func (s *Service) Details(ctx context.Context, accountID string) (provider.CardDetailsResult, error) {
	card, err := s.repo.FindByAccount(ctx, accountID)
	if err != nil {
		return provider.CardDetailsResult{}, err
	}
	return s.gateway.GetCardDetails(ctx, card.ProviderCardID)
}
