package ledger

import (
	"context"
	"errors"
)

var (
	// ErrInvalidAmount rejects non-positive amounts before any record is created.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientFunds occurs when an account lacks available balance to
	// cover a requested debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound indicates the referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrCurrencyMismatch rejects cross-currency movements; no conversion is supported.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrDuplicateReference indicates the reference key already names a
	// transaction, so the operation must be treated as an idempotent replay.
	ErrDuplicateReference = errors.New("duplicate transaction reference")

	// ErrDuplicateAccountNumber indicates an account number collision.
	ErrDuplicateAccountNumber = errors.New("duplicate account number")

	// ErrTransactionNotFound indicates no transaction matches the reference key.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Store is the persistence contract for accounts and transactions. Every
// method that moves a balance also moves the matching transaction status in
// the same storage transaction; there is deliberately no bare balance write.
//
// The *AndTransition methods report applied=false (with no mutation) when the
// record has already left the expected from status, which is what makes
// webhook re-delivery safe.
type Store interface {
	CreateAccount(ctx context.Context, account Account) error
	Account(ctx context.Context, id string) (Account, error)
	AccountByUser(ctx context.Context, userID string) (Account, error)
	AccountByNumber(ctx context.Context, number string) (Account, error)
	BindProviderWallet(ctx context.Context, accountID, walletID string) error

	// CreateTransaction inserts a pending record. ErrDuplicateReference is
	// returned when the reference key is already taken.
	CreateTransaction(ctx context.Context, tx Transaction) error

	// CreateAndCredit inserts an already-success record and credits the
	// receiver atomically (same-process deposit, no external leg).
	CreateAndCredit(ctx context.Context, tx Transaction) error

	// CreateAndMove inserts an already-success record and moves the amount
	// from sender to receiver atomically (local transfer).
	CreateAndMove(ctx context.Context, tx Transaction) error

	TransactionByReference(ctx context.Context, reference string) (Transaction, error)
	TransactionsByAccount(ctx context.Context, accountID string, limit int) ([]Transaction, error)

	// AttachProviderPayload stores the provider's raw response on a record
	// without changing its status.
	AttachProviderPayload(ctx context.Context, reference string, payload []byte) error

	Transition(ctx context.Context, reference string, from, to Status, payload []byte) (bool, error)
	CreditAndTransition(ctx context.Context, reference string, from, to Status, accountID string, amount int64, payload []byte) (bool, error)
	DebitAndTransition(ctx context.Context, reference string, from, to Status, accountID string, amount int64, payload []byte) (bool, error)
	MoveAndTransition(ctx context.Context, reference string, from, to Status, senderID, receiverID string, amount int64, payload []byte) (bool, error)
}
