package ledger

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/PeaceOloruntoba/payment-wallet-app/internal/notification"
	"github.com/PeaceOloruntoba/payment-wallet-app/internal/provider"
)

const accountNumberLength = 10

// CheckoutURLs are where the hosted checkout page sends the user afterwards.
type CheckoutURLs struct {
	Complete string
	Cancel   string
}

// Engine owns every balance mutation and transaction record in the system.
// Provider-backed operations follow a fixed ordering: pending record first,
// then the provider call keyed by the record's reference, then the balance
// mutation fused with the status transition. A crash between steps leaves at
// worst a pending record that a webhook or reconciliation poll resolves.
type Engine struct {
	store    Store
	gateway  provider.Gateway
	notifier notification.Notifier
	logger   *slog.Logger
	checkout CheckoutURLs
}

// NewEngine constructs the ledger engine. Gateway may be nil only when no
// provider-backed operation will be exercised (pure local mode in tests).
func NewEngine(store Store, gateway provider.Gateway, notifier notification.Notifier, logger *slog.Logger, checkout CheckoutURLs) *Engine {
	return &Engine{store: store, gateway: gateway, notifier: notifier, logger: logger, checkout: checkout}
}

// OpenAccount provisions the custodial account for a newly registered user.
func (e *Engine) OpenAccount(ctx context.Context, userID, currency string) (Account, error) {
	if currency == "" {
		return Account{}, fmt.Errorf("currency is required")
	}
	for attempt := 0; attempt < 3; attempt++ {
		number, err := newAccountNumber()
		if err != nil {
			return Account{}, err
		}
		account := Account{
			ID:        uuid.NewString(),
			UserID:    userID,
			Number:    number,
			Currency:  currency,
			CreatedAt: time.Now().UTC(),
		}
		err = e.store.CreateAccount(ctx, account)
		if errors.Is(err, ErrDuplicateAccountNumber) {
			continue
		}
		if err != nil {
			return Account{}, err
		}
		return account, nil
	}
	return Account{}, ErrDuplicateAccountNumber
}

// Account returns the account record by id.
func (e *Engine) Account(ctx context.Context, accountID string) (Account, error) {
	return e.store.Account(ctx, accountID)
}

// AccountForUser resolves the account owned by the authenticated user.
func (e *Engine) AccountForUser(ctx context.Context, userID string) (Account, error) {
	return e.store.AccountByUser(ctx, userID)
}

// Balance is a pure read of the current balance and currency.
func (e *Engine) Balance(ctx context.Context, accountID string) (int64, string, error) {
	account, err := e.store.Account(ctx, accountID)
	if err != nil {
		return 0, "", err
	}
	return account.Balance, account.Currency, nil
}

// Statement lists the most recent transactions touching the account.
func (e *Engine) Statement(ctx context.Context, accountID string, limit int) ([]Transaction, error) {
	return e.store.TransactionsByAccount(ctx, accountID, limit)
}

// DepositInput describes a same-process deposit with no external leg.
type DepositInput struct {
	AccountID string
	Amount    int64
	Reference string // optional caller idempotency key
}

// Deposit credits the balance synchronously and records the transaction
// already in success state. A repeated reference returns the original record
// with no second credit.
func (e *Engine) Deposit(ctx context.Context, in DepositInput) (Transaction, error) {
	if in.Amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	account, err := e.store.Account(ctx, in.AccountID)
	if err != nil {
		return Transaction{}, err
	}

	tx := e.newTransaction(TypeDeposit, in.Amount, account.Currency, in.Reference)
	tx.ReceiverID = account.ID
	tx.Status = StatusSuccess

	if err := e.store.CreateAndCredit(ctx, tx); err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			return e.store.TransactionByReference(ctx, tx.Reference)
		}
		return Transaction{}, err
	}
	return tx, nil
}

// CheckoutIntent is the pending provider-backed deposit handed back to the
// caller; the balance moves only when the payment webhook confirms.
type CheckoutIntent struct {
	Transaction Transaction
	CheckoutID  string
	RedirectURL string
}

// StartDeposit opens a hosted checkout. The pending record exists before the
// provider call, keyed by the reference the webhook will echo back.
func (e *Engine) StartDeposit(ctx context.Context, in DepositInput) (CheckoutIntent, error) {
	if in.Amount <= 0 {
		return CheckoutIntent{}, ErrInvalidAmount
	}
	account, err := e.store.Account(ctx, in.AccountID)
	if err != nil {
		return CheckoutIntent{}, err
	}

	tx := e.newTransaction(TypeDeposit, in.Amount, account.Currency, in.Reference)
	tx.ReceiverID = account.ID

	if err := e.store.CreateTransaction(ctx, tx); err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			existing, lookupErr := e.store.TransactionByReference(ctx, tx.Reference)
			if lookupErr != nil {
				return CheckoutIntent{}, lookupErr
			}
			return CheckoutIntent{Transaction: existing}, nil
		}
		return CheckoutIntent{}, err
	}

	walletID, err := e.ensureProviderWallet(ctx, account)
	if err != nil {
		return CheckoutIntent{}, e.failOnRejection(ctx, tx, err)
	}

	checkout, err := e.gateway.CreateCheckout(ctx, provider.CheckoutRequest{
		WalletID:          walletID,
		Amount:            in.Amount,
		Currency:          account.Currency,
		MerchantReference: tx.Reference,
		CompleteURL:       e.checkout.Complete,
		CancelURL:         e.checkout.Cancel,
	}, tx.Reference)
	if err != nil {
		return CheckoutIntent{}, e.failOnRejection(ctx, tx, err)
	}

	if err := e.store.AttachProviderPayload(ctx, tx.Reference, checkout.Raw); err != nil {
		return CheckoutIntent{}, err
	}
	tx.ProviderPayload = checkout.Raw
	return CheckoutIntent{Transaction: tx, CheckoutID: checkout.ID, RedirectURL: checkout.RedirectURL}, nil
}

// BankDestination is where a withdrawal pays out to.
type BankDestination struct {
	HolderName    string
	AccountNumber string
	BankName      string
	Country       string
}

// WithdrawInput describes a bank payout from the account balance.
type WithdrawInput struct {
	AccountID   string
	Amount      int64
	Destination BankDestination
	Reference   string
}

// Withdraw submits a payout. The debit happens only once the provider
// acknowledges submission; final settlement arrives later by webhook, and a
// payout failure after submission credits the funds back exactly once.
func (e *Engine) Withdraw(ctx context.Context, in WithdrawInput) (Transaction, error) {
	if in.Amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	account, err := e.store.Account(ctx, in.AccountID)
	if err != nil {
		return Transaction{}, err
	}
	if account.Balance < in.Amount {
		return Transaction{}, ErrInsufficientFunds
	}

	tx := e.newTransaction(TypeWithdraw, in.Amount, account.Currency, in.Reference)
	tx.SenderID = account.ID

	if err := e.store.CreateTransaction(ctx, tx); err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			return e.store.TransactionByReference(ctx, tx.Reference)
		}
		return Transaction{}, err
	}

	walletID, err := e.ensureProviderWallet(ctx, account)
	if err != nil {
		return tx, e.failOnRejection(ctx, tx, err)
	}

	beneficiary, err := e.gateway.CreateBeneficiary(ctx, provider.BeneficiaryRequest{
		Name:          in.Destination.HolderName,
		AccountNumber: in.Destination.AccountNumber,
		BankName:      in.Destination.BankName,
		Country:       in.Destination.Country,
		Currency:      account.Currency,
	}, tx.Reference+":beneficiary")
	if err != nil {
		return tx, e.failOnRejection(ctx, tx, err)
	}

	payout, err := e.gateway.CreatePayout(ctx, provider.PayoutRequest{
		WalletID:          walletID,
		BeneficiaryID:     beneficiary.ID,
		Amount:            in.Amount,
		Currency:          account.Currency,
		MerchantReference: tx.Reference,
	}, tx.Reference)
	if err != nil {
		return tx, e.failOnRejection(ctx, tx, err)
	}

	// Submission acknowledged: debit and mark success in one unit.
	applied, err := e.store.DebitAndTransition(ctx, tx.Reference, StatusPending, StatusSuccess, account.ID, in.Amount, payout.Raw)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			// A concurrent operation drained the balance between the check
			// and the debit. The payout is in flight, so the record stays
			// pending for the settlement webhook to resolve.
			e.logger.Warn("payout submitted but debit deferred", slog.String("reference", tx.Reference))
			return e.store.TransactionByReference(ctx, tx.Reference)
		}
		return tx, err
	}
	if !applied {
		return e.store.TransactionByReference(ctx, tx.Reference)
	}
	return e.store.TransactionByReference(ctx, tx.Reference)
}

// TransferInput moves funds from the sender account to the account resolved
// by receiver number.
type TransferInput struct {
	SenderAccountID string
	ReceiverNumber  string
	Amount          int64
	Reference       string
}

// Transfer performs the purely local wallet-to-wallet move: one atomic step,
// no provider involvement.
func (e *Engine) Transfer(ctx context.Context, in TransferInput) (Transaction, error) {
	sender, receiver, err := e.resolveTransfer(ctx, in)
	if err != nil {
		return Transaction{}, err
	}

	tx := e.newTransaction(TypeTransfer, in.Amount, sender.Currency, in.Reference)
	tx.SenderID = sender.ID
	tx.ReceiverID = receiver.ID
	tx.Status = StatusSuccess

	if err := e.store.CreateAndMove(ctx, tx); err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			return e.store.TransactionByReference(ctx, tx.Reference)
		}
		return Transaction{}, err
	}

	e.notify(ctx, notification.KindTransferReceived, receiver.UserID,
		fmt.Sprintf("You received %d %s from account %s", in.Amount, sender.Currency, sender.Number))
	return tx, nil
}

// TransferProvider moves funds between the provider-side wallets first; local
// balances follow only after the provider acknowledges, in the same unit as
// the status transition. On rejection nothing local moves.
func (e *Engine) TransferProvider(ctx context.Context, in TransferInput) (Transaction, error) {
	sender, receiver, err := e.resolveTransfer(ctx, in)
	if err != nil {
		return Transaction{}, err
	}

	tx := e.newTransaction(TypeTransfer, in.Amount, sender.Currency, in.Reference)
	tx.SenderID = sender.ID
	tx.ReceiverID = receiver.ID

	if err := e.store.CreateTransaction(ctx, tx); err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			return e.store.TransactionByReference(ctx, tx.Reference)
		}
		return Transaction{}, err
	}

	sourceWallet, err := e.ensureProviderWallet(ctx, sender)
	if err != nil {
		return tx, e.failOnRejection(ctx, tx, err)
	}
	destinationWallet, err := e.ensureProviderWallet(ctx, receiver)
	if err != nil {
		return tx, e.failOnRejection(ctx, tx, err)
	}

	res, err := e.gateway.CreateTransfer(ctx, provider.TransferRequest{
		SourceWalletID:      sourceWallet,
		DestinationWalletID: destinationWallet,
		Amount:              in.Amount,
		Currency:            sender.Currency,
		MerchantReference:   tx.Reference,
	}, tx.Reference)
	if err != nil {
		return tx, e.failOnRejection(ctx, tx, err)
	}

	if _, err := e.store.MoveAndTransition(ctx, tx.Reference, StatusPending, StatusSuccess, sender.ID, receiver.ID, in.Amount, res.Raw); err != nil {
		return tx, err
	}

	e.notify(ctx, notification.KindTransferReceived, receiver.UserID,
		fmt.Sprintf("You received %d %s from account %s", in.Amount, sender.Currency, sender.Number))
	return e.store.TransactionByReference(ctx, tx.Reference)
}

// DepositBankDetails issues provider-side virtual bank account details that
// fund the wallet when wired to.
func (e *Engine) DepositBankDetails(ctx context.Context, accountID, country string) (provider.BankAccountResult, error) {
	account, err := e.store.Account(ctx, accountID)
	if err != nil {
		return provider.BankAccountResult{}, err
	}
	walletID, err := e.ensureProviderWallet(ctx, account)
	if err != nil {
		return provider.BankAccountResult{}, err
	}
	return e.gateway.CreateBankAccount(ctx, provider.BankAccountRequest{
		WalletID: walletID,
		Currency: account.Currency,
		Country:  country,
	}, "issuing:"+account.ID)
}

// FinalizeDeposit applies a payment outcome reported by webhook. Crediting
// the balance happens only here, never at checkout initiation. Terminal
// records swallow replays.
func (e *Engine) FinalizeDeposit(ctx context.Context, reference string, success bool, payload []byte) error {
	tx, err := e.store.TransactionByReference(ctx, reference)
	if err != nil {
		return err
	}
	if tx.Type != TypeDeposit {
		return fmt.Errorf("reference %s is not a deposit", reference)
	}

	if !success {
		_, err := e.store.Transition(ctx, reference, StatusPending, StatusFailed, payload)
		return err
	}

	applied, err := e.store.CreditAndTransition(ctx, reference, StatusPending, StatusSuccess, tx.ReceiverID, tx.Amount, payload)
	if err != nil {
		return err
	}
	if applied {
		account, lookupErr := e.store.Account(ctx, tx.ReceiverID)
		if lookupErr == nil {
			e.notify(ctx, notification.KindDepositConfirmed, account.UserID,
				fmt.Sprintf("Your deposit of %d %s is confirmed", tx.Amount, tx.Currency))
		}
	}
	return nil
}

// FinalizeTransfer applies a provider transfer outcome. A success against a
// still-pending record covers the lost-acknowledgement case and performs the
// deferred move; replays against terminal records are no-ops.
func (e *Engine) FinalizeTransfer(ctx context.Context, reference string, success bool, payload []byte) error {
	tx, err := e.store.TransactionByReference(ctx, reference)
	if err != nil {
		return err
	}
	if tx.Type != TypeTransfer {
		return fmt.Errorf("reference %s is not a transfer", reference)
	}

	if !success {
		_, err := e.store.Transition(ctx, reference, StatusPending, StatusFailed, payload)
		return err
	}

	_, err = e.store.MoveAndTransition(ctx, reference, StatusPending, StatusSuccess, tx.SenderID, tx.ReceiverID, tx.Amount, payload)
	return err
}

// FinalizePayout applies a payout settlement outcome for a withdraw. A
// failure after the submission debit triggers the compensating credit; the
// guarded success->failed transition ensures it lands at most once no matter
// how many times the event is delivered.
func (e *Engine) FinalizePayout(ctx context.Context, reference string, success bool, payload []byte) error {
	tx, err := e.store.TransactionByReference(ctx, reference)
	if err != nil {
		return err
	}
	if tx.Type != TypeWithdraw {
		return fmt.Errorf("reference %s is not a withdrawal", reference)
	}

	if success {
		// Settles the normal case as a no-op; for a record still pending
		// (provider ack was lost) this applies the deferred debit.
		_, err := e.store.DebitAndTransition(ctx, reference, StatusPending, StatusSuccess, tx.SenderID, tx.Amount, payload)
		return err
	}

	applied, err := e.store.Transition(ctx, reference, StatusPending, StatusFailed, payload)
	if err != nil {
		return err
	}
	if applied {
		// The payout never debited the balance; marking failed is enough.
		return nil
	}
	_, err = e.store.CreditAndTransition(ctx, reference, StatusSuccess, StatusFailed, tx.SenderID, tx.Amount, payload)
	return err
}

func (e *Engine) resolveTransfer(ctx context.Context, in TransferInput) (Account, Account, error) {
	if in.Amount <= 0 {
		return Account{}, Account{}, ErrInvalidAmount
	}
	sender, err := e.store.Account(ctx, in.SenderAccountID)
	if err != nil {
		return Account{}, Account{}, err
	}
	receiver, err := e.store.AccountByNumber(ctx, in.ReceiverNumber)
	if err != nil {
		return Account{}, Account{}, err
	}
	if sender.ID == receiver.ID {
		return Account{}, Account{}, fmt.Errorf("cannot transfer to the same account")
	}
	if sender.Currency != receiver.Currency {
		return Account{}, Account{}, ErrCurrencyMismatch
	}
	if sender.Balance < in.Amount {
		return Account{}, Account{}, ErrInsufficientFunds
	}
	return sender, receiver, nil
}

// ensureProviderWallet lazily binds the account to a provider-side wallet.
// The binding key is derived from the account id so a retried call cannot
// create a second wallet. Currency is immutable from this point on.
func (e *Engine) ensureProviderWallet(ctx context.Context, account Account) (string, error) {
	if account.ProviderWalletID != "" {
		return account.ProviderWalletID, nil
	}
	res, err := e.gateway.CreateWallet(ctx, provider.WalletRequest{
		Reference: account.ID,
		Currency:  account.Currency,
	}, "ewallet:"+account.ID)
	if err != nil {
		return "", err
	}
	if err := e.store.BindProviderWallet(ctx, account.ID, res.ID); err != nil {
		return "", err
	}
	return res.ID, nil
}

// failOnRejection marks the pending record failed when the provider
// definitively declined, attaching the raw response for audit. Unknown
// outcomes (timeouts, network errors) leave the record pending for the
// webhook or a reconciliation poll to resolve.
func (e *Engine) failOnRejection(ctx context.Context, tx Transaction, err error) error {
	var rejected *provider.RejectedError
	if errors.As(err, &rejected) {
		if _, tErr := e.store.Transition(ctx, tx.Reference, StatusPending, StatusFailed, rejected.Raw); tErr != nil {
			e.logger.Error("mark transaction failed", slog.String("reference", tx.Reference), slog.Any("error", tErr))
		}
		return err
	}
	if errors.Is(err, provider.ErrUnreachable) {
		e.logger.Warn("provider outcome unknown, transaction stays pending", slog.String("reference", tx.Reference))
	}
	return err
}

func (e *Engine) newTransaction(txType TxType, amount int64, currency, reference string) Transaction {
	if reference == "" {
		reference = uuid.NewString()
	}
	now := time.Now().UTC()
	return Transaction{
		ID:        uuid.NewString(),
		Type:      txType,
		Amount:    amount,
		Currency:  currency,
		Status:    StatusPending,
		Reference: reference,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (e *Engine) notify(ctx context.Context, kind, userID, body string) {
	if e.notifier == nil {
		return
	}
	_ = e.notifier.Send(ctx, notification.Message{Kind: kind, Destination: userID, Body: body})
}

// newAccountNumber draws a 10-digit account number; the first digit is
// non-zero.
func newAccountNumber() (string, error) {
	buf := make([]byte, accountNumberLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	digits := make([]byte, accountNumberLength)
	for i, b := range buf {
		digits[i] = '0' + b%10
	}
	if digits[0] == '0' {
		digits[0] = '1' + buf[0]%9
	}
	return string(digits), nil
}
