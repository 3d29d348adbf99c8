package webhook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/PeaceOloruntoba/payment-wallet-app/internal/ledger"
	"github.com/PeaceOloruntoba/payment-wallet-app/internal/provider"
)

func newTestReconciler(t *testing.T) (*Reconciler, *ledger.Engine, ledger.Store) {
	t.Helper()
	store := ledger.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := ledger.NewEngine(store, provider.NewStatic(), nil, logger, ledger.CheckoutURLs{})
	return New(engine, logger), engine, store
}

func event(eventType, reference string) []byte {
	return []byte(fmt.Sprintf(`{"type":%q,"data":{"merchant_reference_id":%q,"status":"CLO"}}`, eventType, reference))
}

func TestProcessPaymentCompletedCreditsDeposit(t *testing.T) {
	rec, engine, _ := newTestReconciler(t)
	ctx := context.Background()

	account, err := engine.OpenAccount(ctx, uuid.NewString(), "USD")
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	if _, err := engine.StartDeposit(ctx, ledger.DepositInput{AccountID: account.ID, Amount: 1_500, Reference: "dep-1"}); err != nil {
		t.Fatalf("start deposit: %v", err)
	}

	if err := rec.Process(ctx, event(EventPaymentCompleted, "dep-1")); err != nil {
		t.Fatalf("process: %v", err)
	}

	balance, _, err := engine.Balance(ctx, account.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 1_500 {
		t.Fatalf("expected balance 1500, got %d", balance)
	}

	// Re-delivery of the same event must not credit twice.
	if err := rec.Process(ctx, event(EventPaymentCompleted, "dep-1")); err != nil {
		t.Fatalf("replay process: %v", err)
	}
	balance, _, _ = engine.Balance(ctx, account.ID)
	if balance != 1_500 {
		t.Fatalf("expected balance unchanged at 1500, got %d", balance)
	}
}

func TestProcessPayoutFailedRefundsWithdrawal(t *testing.T) {
	rec, engine, store := newTestReconciler(t)
	ctx := context.Background()

	account, err := engine.OpenAccount(ctx, uuid.NewString(), "USD")
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	ledger.SeedBalance(store, account.ID, 4_000)

	if _, err := engine.Withdraw(ctx, ledger.WithdrawInput{AccountID: account.ID, Amount: 1_000, Reference: "wd-1"}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := rec.Process(ctx, event(EventPayoutFailed, "wd-1")); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}

	balance, _, err := engine.Balance(ctx, account.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 4_000 {
		t.Fatalf("expected refund back to 4000, got %d", balance)
	}

	tx, err := store.TransactionByReference(ctx, "wd-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if tx.Status != ledger.StatusFailed {
		t.Fatalf("expected failed, got %s", tx.Status)
	}
}

func TestProcessAcknowledgesNoise(t *testing.T) {
	rec, _, _ := newTestReconciler(t)
	ctx := context.Background()

	cases := []struct {
		name string
		raw  []byte
	}{
		{"malformed body", []byte(`not json at all`)},
		{"unknown event type", event("CARD_ACTIVATED", "ref-1")},
		{"missing reference", []byte(`{"type":"PAYMENT_COMPLETED","data":{"status":"CLO"}}`)},
		{"unmatched reference", event(EventPaymentCompleted, "no-such-reference")},
	}
	for _, tc := range cases {
		if err := rec.Process(ctx, tc.raw); err != nil {
			t.Fatalf("%s: expected acknowledgement, got %v", tc.name, err)
		}
	}
}

func TestProcessTransferFailedMarksPendingTransfer(t *testing.T) {
	rec, engine, store := newTestReconciler(t)
	ctx := context.Background()

	sender, err := engine.OpenAccount(ctx, uuid.NewString(), "USD")
	if err != nil {
		t.Fatalf("open sender: %v", err)
	}
	receiver, err := engine.OpenAccount(ctx, uuid.NewString(), "USD")
	if err != nil {
		t.Fatalf("open receiver: %v", err)
	}
	ledger.SeedBalance(store, sender.ID, 1_000)

	if _, err := engine.TransferProvider(ctx, ledger.TransferInput{
		SenderAccountID: sender.ID,
		ReceiverNumber:  receiver.Number,
		Amount:          300,
		Reference:       "tr-1",
	}); err != nil {
		t.Fatalf("provider transfer: %v", err)
	}

	// The transfer already settled locally; a late failure event is a no-op
	// on a terminal record.
	if err := rec.Process(ctx, event(EventTransferFailed, "tr-1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	tx, err := store.TransactionByReference(ctx, "tr-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if tx.Status != ledger.StatusSuccess {
		t.Fatalf("terminal record must not regress, got %s", tx.Status)
	}
}
