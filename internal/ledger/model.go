package ledger

import "time"

// TxType classifies a money movement.
type TxType string

const (
	TypeDeposit  TxType = "deposit"
	TypeWithdraw TxType = "withdraw"
	TypeTransfer TxType = "transfer"
)

// Status is the lifecycle state of a transaction. A record starts pending and
// moves to success or failed at most once. The single exception is a withdraw
// whose payout is acknowledged (success) and later reported failed by the
// provider, which transitions success -> failed together with a compensating
// credit.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Account is the custodial balance record for a user. Balance is held in
// integer minor units and never goes negative. Currency is fixed once the
// account is bound to a provider-side wallet.
type Account struct {
	ID               string
	UserID           string
	Number           string
	Currency         string
	Balance          int64
	ProviderWalletID string
	CreatedAt        time.Time
}

// Transaction is the append-only record of a balance-changing operation.
// Reference is globally unique and doubles as the idempotency key sent to the
// provider; inbound webhooks are matched back to the record through it.
// ProviderPayload holds the provider's raw response verbatim for audit.
type Transaction struct {
	ID              string
	Type            TxType
	Amount          int64
	Currency        string
	SenderID        string // empty for deposits
	ReceiverID      string // empty for withdrawals
	Status          Status
	Reference       string
	ProviderPayload []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Terminal reports whether the transaction has reached a final state.
func (t Transaction) Terminal() bool {
	return t.Status == StatusSuccess || t.Status == StatusFailed
}
