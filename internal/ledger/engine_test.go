package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/PeaceOloruntoba/payment-wallet-app/internal/provider"
)

func newTestEngine(gateway provider.Gateway) (*Engine, Store) {
	store := NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if gateway == nil {
		gateway = provider.NewStatic()
	}
	return NewEngine(store, gateway, nil, logger, CheckoutURLs{}), store
}

func openAccount(t *testing.T, e *Engine, currency string) Account {
	t.Helper()
	account, err := e.OpenAccount(context.Background(), uuid.NewString(), currency)
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	return account
}

func mustBalance(t *testing.T, e *Engine, accountID string) int64 {
	t.Helper()
	balance, _, err := e.Balance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return balance
}

func TestDepositCreditsBalanceOnce(t *testing.T) {
	engine, _ := newTestEngine(nil)
	ctx := context.Background()
	account := openAccount(t, engine, "USD")

	tx, err := engine.Deposit(ctx, DepositInput{AccountID: account.ID, Amount: 1_000, Reference: "dep-1"})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if tx.Status != StatusSuccess {
		t.Fatalf("expected success, got %s", tx.Status)
	}
	if got := mustBalance(t, engine, account.ID); got != 1_000 {
		t.Fatalf("expected balance 1000, got %d", got)
	}

	// Replaying the same reference returns the original record without a
	// second credit.
	again, err := engine.Deposit(ctx, DepositInput{AccountID: account.ID, Amount: 1_000, Reference: "dep-1"})
	if err != nil {
		t.Fatalf("replay deposit: %v", err)
	}
	if again.ID != tx.ID {
		t.Fatalf("expected original transaction %s, got %s", tx.ID, again.ID)
	}
	if got := mustBalance(t, engine, account.ID); got != 1_000 {
		t.Fatalf("expected balance unchanged at 1000, got %d", got)
	}
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	engine, _ := newTestEngine(nil)
	account := openAccount(t, engine, "USD")

	for _, amount := range []int64{0, -50} {
		if _, err := engine.Deposit(context.Background(), DepositInput{AccountID: account.ID, Amount: amount}); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestStartDepositConfirmedByWebhook(t *testing.T) {
	engine, _ := newTestEngine(nil)
	ctx := context.Background()
	account := openAccount(t, engine, "USD")

	intent, err := engine.StartDeposit(ctx, DepositInput{AccountID: account.ID, Amount: 2_500, Reference: "chk-1"})
	if err != nil {
		t.Fatalf("start deposit: %v", err)
	}
	if intent.Transaction.Status != StatusPending {
		t.Fatalf("expected pending, got %s", intent.Transaction.Status)
	}
	if intent.RedirectURL == "" {
		t.Fatalf("expected a redirect url")
	}
	if got := mustBalance(t, engine, account.ID); got != 0 {
		t.Fatalf("balance must not move at checkout initiation, got %d", got)
	}

	if err := engine.FinalizeDeposit(ctx, "chk-1", true, []byte(`{"paid":true}`)); err != nil {
		t.Fatalf("finalize deposit: %v", err)
	}
	if got := mustBalance(t, engine, account.ID); got != 2_500 {
		t.Fatalf("expected balance 2500, got %d", got)
	}

	// Redelivered confirmation is a no-op.
	if err := engine.FinalizeDeposit(ctx, "chk-1", true, []byte(`{"paid":true}`)); err != nil {
		t.Fatalf("replay finalize: %v", err)
	}
	if got := mustBalance(t, engine, account.ID); got != 2_500 {
		t.Fatalf("expected balance unchanged at 2500, got %d", got)
	}
}

func TestStartDepositFailedPayment(t *testing.T) {
	engine, store := newTestEngine(nil)
	ctx := context.Background()
	account := openAccount(t, engine, "USD")

	if _, err := engine.StartDeposit(ctx, DepositInput{AccountID: account.ID, Amount: 500, Reference: "chk-2"}); err != nil {
		t.Fatalf("start deposit: %v", err)
	}
	if err := engine.FinalizeDeposit(ctx, "chk-2", false, []byte(`{"paid":false}`)); err != nil {
		t.Fatalf("finalize deposit: %v", err)
	}

	tx, err := store.TransactionByReference(ctx, "chk-2")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if tx.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", tx.Status)
	}
	if got := mustBalance(t, engine, account.ID); got != 0 {
		t.Fatalf("failed payment must not credit, got %d", got)
	}
}

func TestStartDepositDuplicateReferenceReturnsExisting(t *testing.T) {
	engine, _ := newTestEngine(nil)
	ctx := context.Background()
	account := openAccount(t, engine, "USD")

	first, err := engine.StartDeposit(ctx, DepositInput{AccountID: account.ID, Amount: 100, Reference: "chk-3"})
	if err != nil {
		t.Fatalf("start deposit: %v", err)
	}
	second, err := engine.StartDeposit(ctx, DepositInput{AccountID: account.ID, Amount: 100, Reference: "chk-3"})
	if err != nil {
		t.Fatalf("replay start deposit: %v", err)
	}
	if second.Transaction.ID != first.Transaction.ID {
		t.Fatalf("expected original transaction %s, got %s", first.Transaction.ID, second.Transaction.ID)
	}
}

func TestWithdrawDebitsOnAcknowledgement(t *testing.T) {
	engine, store := newTestEngine(nil)
	ctx := context.Background()
	account := openAccount(t, engine, "USD")
	SeedBalance(store, account.ID, 5_000)

	tx, err := engine.Withdraw(ctx, WithdrawInput{
		AccountID: account.ID,
		Amount:    2_000,
		Destination: BankDestination{
			HolderName:    "Ada Obi",
			AccountNumber: "0123456789",
			BankName:      "First Bank",
			Country:       "NG",
		},
		Reference: "wd-1",
	})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if tx.Status != StatusSuccess {
		t.Fatalf("expected success after submission, got %s", tx.Status)
	}
	if got := mustBalance(t, engine, account.ID); got != 3_000 {
		t.Fatalf("expected balance 3000, got %d", got)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	engine, store := newTestEngine(nil)
	account := openAccount(t, engine, "USD")
	SeedBalance(store, account.ID, 100)

	_, err := engine.Withdraw(context.Background(), WithdrawInput{AccountID: account.ID, Amount: 500, Reference: "wd-2"})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := mustBalance(t, engine, account.ID); got != 100 {
		t.Fatalf("expected balance untouched at 100, got %d", got)
	}
}

func TestPayoutFailureCompensatesExactlyOnce(t *testing.T) {
	engine, store := newTestEngine(nil)
	ctx := context.Background()
	account := openAccount(t, engine, "USD")
	SeedBalance(store, account.ID, 5_000)

	if _, err := engine.Withdraw(ctx, WithdrawInput{AccountID: account.ID, Amount: 2_000, Reference: "wd-3"}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := mustBalance(t, engine, account.ID); got != 3_000 {
		t.Fatalf("expected balance 3000 after debit, got %d", got)
	}

	// The provider may deliver the failure event several times; the
	// compensating credit must land exactly once.
	for i := 0; i < 3; i++ {
		if err := engine.FinalizePayout(ctx, "wd-3", false, []byte(`{"status":"Declined"}`)); err != nil {
			t.Fatalf("finalize payout %d: %v", i, err)
		}
	}

	if got := mustBalance(t, engine, account.ID); got != 5_000 {
		t.Fatalf("expected balance restored to 5000, got %d", got)
	}
	tx, err := store.TransactionByReference(ctx, "wd-3")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if tx.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", tx.Status)
	}
}

type decliningGateway struct {
	*provider.Static
}

func (g *decliningGateway) CreatePayout(context.Context, provider.PayoutRequest, string) (provider.PayoutResult, error) {
	return provider.PayoutResult{}, &provider.RejectedError{Code: "NOT_ENOUGH_FUNDS", Raw: []byte(`{"status":{"status":"ERROR"}}`)}
}

func TestWithdrawProviderRejection(t *testing.T) {
	engine, store := newTestEngine(&decliningGateway{Static: provider.NewStatic()})
	ctx := context.Background()
	account := openAccount(t, engine, "USD")
	SeedBalance(store, account.ID, 1_000)

	_, err := engine.Withdraw(ctx, WithdrawInput{AccountID: account.ID, Amount: 500, Reference: "wd-4"})
	var rejected *provider.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}

	tx, err := store.TransactionByReference(ctx, "wd-4")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if tx.Status != StatusFailed {
		t.Fatalf("definitive decline must mark failed, got %s", tx.Status)
	}
	if got := mustBalance(t, engine, account.ID); got != 1_000 {
		t.Fatalf("expected balance untouched at 1000, got %d", got)
	}
}

type unreachableGateway struct {
	*provider.Static
}

func (g *unreachableGateway) CreatePayout(context.Context, provider.PayoutRequest, string) (provider.PayoutResult, error) {
	return provider.PayoutResult{}, fmt.Errorf("%w: post /v1/payouts: timeout", provider.ErrUnreachable)
}

func TestWithdrawUnknownOutcomeStaysPending(t *testing.T) {
	engine, store := newTestEngine(&unreachableGateway{Static: provider.NewStatic()})
	ctx := context.Background()
	account := openAccount(t, engine, "USD")
	SeedBalance(store, account.ID, 1_000)

	_, err := engine.Withdraw(ctx, WithdrawInput{AccountID: account.ID, Amount: 400, Reference: "wd-5"})
	if !errors.Is(err, provider.ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}

	tx, err := store.TransactionByReference(ctx, "wd-5")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if tx.Terminal() {
		t.Fatalf("unknown outcome must stay pending, got %s", tx.Status)
	}
	if got := mustBalance(t, engine, account.ID); got != 1_000 {
		t.Fatalf("expected balance untouched at 1000, got %d", got)
	}

	// A later settlement webhook applies the deferred debit.
	if err := engine.FinalizePayout(ctx, "wd-5", true, []byte(`{"status":"Completed"}`)); err != nil {
		t.Fatalf("finalize payout: %v", err)
	}
	if got := mustBalance(t, engine, account.ID); got != 600 {
		t.Fatalf("expected deferred debit to 600, got %d", got)
	}
}

func TestTransferMovesFundsAtomically(t *testing.T) {
	engine, store := newTestEngine(nil)
	ctx := context.Background()
	sender := openAccount(t, engine, "USD")
	receiver := openAccount(t, engine, "USD")
	SeedBalance(store, sender.ID, 1_000)

	tx, err := engine.Transfer(ctx, TransferInput{
		SenderAccountID: sender.ID,
		ReceiverNumber:  receiver.Number,
		Amount:          300,
		Reference:       "tr-1",
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if tx.Status != StatusSuccess {
		t.Fatalf("expected success, got %s", tx.Status)
	}
	if got := mustBalance(t, engine, sender.ID); got != 700 {
		t.Fatalf("expected sender balance 700, got %d", got)
	}
	if got := mustBalance(t, engine, receiver.ID); got != 300 {
		t.Fatalf("expected receiver balance 300, got %d", got)
	}

	// Replay does not move funds twice.
	again, err := engine.Transfer(ctx, TransferInput{
		SenderAccountID: sender.ID,
		ReceiverNumber:  receiver.Number,
		Amount:          300,
		Reference:       "tr-1",
	})
	if err != nil {
		t.Fatalf("replay transfer: %v", err)
	}
	if again.ID != tx.ID {
		t.Fatalf("expected original transaction %s, got %s", tx.ID, again.ID)
	}
	if got := mustBalance(t, engine, sender.ID); got != 700 {
		t.Fatalf("expected sender balance unchanged at 700, got %d", got)
	}
}

func TestTransferValidation(t *testing.T) {
	engine, store := newTestEngine(nil)
	ctx := context.Background()
	sender := openAccount(t, engine, "USD")
	receiver := openAccount(t, engine, "USD")
	euro := openAccount(t, engine, "EUR")
	SeedBalance(store, sender.ID, 100)

	if _, err := engine.Transfer(ctx, TransferInput{SenderAccountID: sender.ID, ReceiverNumber: sender.Number, Amount: 50}); err == nil {
		t.Fatalf("expected self-transfer rejection")
	}
	if _, err := engine.Transfer(ctx, TransferInput{SenderAccountID: sender.ID, ReceiverNumber: euro.Number, Amount: 50}); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
	if _, err := engine.Transfer(ctx, TransferInput{SenderAccountID: sender.ID, ReceiverNumber: receiver.Number, Amount: 500}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if _, err := engine.Transfer(ctx, TransferInput{SenderAccountID: sender.ID, ReceiverNumber: receiver.Number, Amount: 0}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransferProviderAcknowledged(t *testing.T) {
	engine, store := newTestEngine(nil)
	ctx := context.Background()
	sender := openAccount(t, engine, "USD")
	receiver := openAccount(t, engine, "USD")
	SeedBalance(store, sender.ID, 1_000)

	tx, err := engine.TransferProvider(ctx, TransferInput{
		SenderAccountID: sender.ID,
		ReceiverNumber:  receiver.Number,
		Amount:          250,
		Reference:       "tr-2",
	})
	if err != nil {
		t.Fatalf("provider transfer: %v", err)
	}
	if tx.Status != StatusSuccess {
		t.Fatalf("expected success, got %s", tx.Status)
	}
	if got := mustBalance(t, engine, sender.ID); got != 750 {
		t.Fatalf("expected sender balance 750, got %d", got)
	}
	if got := mustBalance(t, engine, receiver.ID); got != 250 {
		t.Fatalf("expected receiver balance 250, got %d", got)
	}

	// Both accounts now carry a bound provider wallet.
	bound, err := engine.Account(ctx, sender.ID)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if bound.ProviderWalletID == "" {
		t.Fatalf("expected provider wallet bound to sender")
	}
}

func TestStatementListsAccountTransactions(t *testing.T) {
	engine, _ := newTestEngine(nil)
	ctx := context.Background()
	account := openAccount(t, engine, "USD")

	for i := 0; i < 3; i++ {
		if _, err := engine.Deposit(ctx, DepositInput{AccountID: account.ID, Amount: 100}); err != nil {
			t.Fatalf("deposit %d: %v", i, err)
		}
	}

	txs, err := engine.Statement(ctx, account.ID, 2)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions with limit, got %d", len(txs))
	}
}
