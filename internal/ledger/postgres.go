package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresStore persists accounts and transactions in PostgreSQL. Balance
// mutations take row locks with SELECT ... FOR UPDATE and commit together
// with the status transition of the owning transaction record.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateAccount(ctx context.Context, account Account) error {
	_, err := s.db.Exec(ctx, `INSERT INTO accounts (id, user_id, number, currency, balance, provider_wallet_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		account.ID, account.UserID, account.Number, account.Currency, account.Balance, account.ProviderWalletID, account.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrDuplicateAccountNumber
	}
	return err
}

const accountColumns = `id, user_id, number, currency, balance, COALESCE(provider_wallet_id, ''), created_at`

func (s *PostgresStore) Account(ctx context.Context, id string) (Account, error) {
	return scanAccount(s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (s *PostgresStore) AccountByUser(ctx context.Context, userID string) (Account, error) {
	return scanAccount(s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1`, userID))
}

func (s *PostgresStore) AccountByNumber(ctx context.Context, number string) (Account, error) {
	return scanAccount(s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE number = $1`, number))
}

func (s *PostgresStore) BindProviderWallet(ctx context.Context, accountID, walletID string) error {
	cmd, err := s.db.Exec(ctx, `UPDATE accounts SET provider_wallet_id = $1
        WHERE id = $2 AND (provider_wallet_id IS NULL OR provider_wallet_id = '')`, walletID, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		// Either the account is missing or a wallet is already bound; a bound
		// wallet is left untouched.
		if _, err := s.Account(ctx, accountID); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) CreateTransaction(ctx context.Context, tx Transaction) error {
	err := insertTransaction(ctx, s.db, tx)
	if isUniqueViolation(err) {
		return ErrDuplicateReference
	}
	return err
}

func (s *PostgresStore) CreateAndCredit(ctx context.Context, tx Transaction) error {
	return s.inTx(ctx, func(dbtx pgx.Tx) error {
		if _, err := lockAccount(ctx, dbtx, tx.ReceiverID); err != nil {
			return err
		}
		if err := insertTransaction(ctx, dbtx, tx); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateReference
			}
			return err
		}
		_, err := dbtx.Exec(ctx, `UPDATE accounts SET balance = balance + $1 WHERE id = $2`, tx.Amount, tx.ReceiverID)
		return err
	})
}

func (s *PostgresStore) CreateAndMove(ctx context.Context, tx Transaction) error {
	return s.inTx(ctx, func(dbtx pgx.Tx) error {
		sender, _, err := lockPair(ctx, dbtx, tx.SenderID, tx.ReceiverID)
		if err != nil {
			return err
		}
		if sender.Balance < tx.Amount {
			return ErrInsufficientFunds
		}
		if err := insertTransaction(ctx, dbtx, tx); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateReference
			}
			return err
		}
		if _, err := dbtx.Exec(ctx, `UPDATE accounts SET balance = balance - $1 WHERE id = $2`, tx.Amount, tx.SenderID); err != nil {
			return err
		}
		_, err = dbtx.Exec(ctx, `UPDATE accounts SET balance = balance + $1 WHERE id = $2`, tx.Amount, tx.ReceiverID)
		return err
	})
}

const transactionColumns = `id, type, amount, currency, COALESCE(sender_id::text, ''), COALESCE(receiver_id::text, ''), status, reference, COALESCE(provider_payload, ''), created_at, updated_at`

func (s *PostgresStore) TransactionByReference(ctx context.Context, reference string) (Transaction, error) {
	return scanTransaction(s.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE reference = $1`, reference))
}

func (s *PostgresStore) TransactionsByAccount(ctx context.Context, accountID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE sender_id = $1 OR receiver_id = $1 ORDER BY created_at DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AttachProviderPayload(ctx context.Context, reference string, payload []byte) error {
	cmd, err := s.db.Exec(ctx, `UPDATE transactions SET provider_payload = $1, updated_at = now() WHERE reference = $2`, string(payload), reference)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (s *PostgresStore) Transition(ctx context.Context, reference string, from, to Status, payload []byte) (bool, error) {
	var applied bool
	err := s.inTx(ctx, func(dbtx pgx.Tx) error {
		tx, err := lockTransaction(ctx, dbtx, reference)
		if err != nil {
			return err
		}
		if tx.Status != from {
			return nil
		}
		applied = true
		return finishTransaction(ctx, dbtx, reference, to, payload)
	})
	return applied, err
}

func (s *PostgresStore) CreditAndTransition(ctx context.Context, reference string, from, to Status, accountID string, amount int64, payload []byte) (bool, error) {
	var applied bool
	err := s.inTx(ctx, func(dbtx pgx.Tx) error {
		tx, err := lockTransaction(ctx, dbtx, reference)
		if err != nil {
			return err
		}
		if tx.Status != from {
			return nil
		}
		if _, err := lockAccount(ctx, dbtx, accountID); err != nil {
			return err
		}
		if _, err := dbtx.Exec(ctx, `UPDATE accounts SET balance = balance + $1 WHERE id = $2`, amount, accountID); err != nil {
			return err
		}
		applied = true
		return finishTransaction(ctx, dbtx, reference, to, payload)
	})
	return applied, err
}

func (s *PostgresStore) DebitAndTransition(ctx context.Context, reference string, from, to Status, accountID string, amount int64, payload []byte) (bool, error) {
	var applied bool
	err := s.inTx(ctx, func(dbtx pgx.Tx) error {
		tx, err := lockTransaction(ctx, dbtx, reference)
		if err != nil {
			return err
		}
		if tx.Status != from {
			return nil
		}
		account, err := lockAccount(ctx, dbtx, accountID)
		if err != nil {
			return err
		}
		if account.Balance < amount {
			return ErrInsufficientFunds
		}
		if _, err := dbtx.Exec(ctx, `UPDATE accounts SET balance = balance - $1 WHERE id = $2`, amount, accountID); err != nil {
			return err
		}
		applied = true
		return finishTransaction(ctx, dbtx, reference, to, payload)
	})
	return applied, err
}

func (s *PostgresStore) MoveAndTransition(ctx context.Context, reference string, from, to Status, senderID, receiverID string, amount int64, payload []byte) (bool, error) {
	var applied bool
	err := s.inTx(ctx, func(dbtx pgx.Tx) error {
		tx, err := lockTransaction(ctx, dbtx, reference)
		if err != nil {
			return err
		}
		if tx.Status != from {
			return nil
		}
		sender, _, err := lockPair(ctx, dbtx, senderID, receiverID)
		if err != nil {
			return err
		}
		if sender.Balance < amount {
			return ErrInsufficientFunds
		}
		if _, err := dbtx.Exec(ctx, `UPDATE accounts SET balance = balance - $1 WHERE id = $2`, amount, senderID); err != nil {
			return err
		}
		if _, err := dbtx.Exec(ctx, `UPDATE accounts SET balance = balance + $1 WHERE id = $2`, amount, receiverID); err != nil {
			return err
		}
		applied = true
		return finishTransaction(ctx, dbtx, reference, to, payload)
	})
	return applied, err
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	dbtx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer dbtx.Rollback(ctx) // nolint:errcheck

	if err := fn(dbtx); err != nil {
		return err
	}
	return dbtx.Commit(ctx)
}

func insertTransaction(ctx context.Context, q interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}, tx Transaction) error {
	_, err := q.Exec(ctx, `INSERT INTO transactions (id, type, amount, currency, sender_id, receiver_id, status, reference, provider_payload, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, NULLIF($6, '')::uuid, $7, $8, $9, $10, $11)`,
		tx.ID, string(tx.Type), tx.Amount, tx.Currency, tx.SenderID, tx.ReceiverID, string(tx.Status), tx.Reference,
		string(tx.ProviderPayload), tx.CreatedAt.UTC(), tx.UpdatedAt.UTC())
	return err
}

func finishTransaction(ctx context.Context, dbtx pgx.Tx, reference string, to Status, payload []byte) error {
	if payload != nil {
		_, err := dbtx.Exec(ctx, `UPDATE transactions SET status = $1, provider_payload = $2, updated_at = now() WHERE reference = $3`,
			string(to), string(payload), reference)
		return err
	}
	_, err := dbtx.Exec(ctx, `UPDATE transactions SET status = $1, updated_at = now() WHERE reference = $2`, string(to), reference)
	return err
}

func lockTransaction(ctx context.Context, dbtx pgx.Tx, reference string) (Transaction, error) {
	tx, err := scanTransaction(dbtx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE reference = $1 FOR UPDATE`, reference))
	if err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

func lockAccount(ctx context.Context, dbtx pgx.Tx, id string) (Account, error) {
	return scanAccount(dbtx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

// lockPair acquires both account rows in ascending id order so that two
// concurrent transfers touching the same pair cannot deadlock.
func lockPair(ctx context.Context, dbtx pgx.Tx, senderID, receiverID string) (sender, receiver Account, err error) {
	first, second := senderID, receiverID
	if second < first {
		first, second = second, first
	}
	a, err := lockAccount(ctx, dbtx, first)
	if err != nil {
		return Account{}, Account{}, err
	}
	b, err := lockAccount(ctx, dbtx, second)
	if err != nil {
		return Account{}, Account{}, err
	}
	if first == senderID {
		return a, b, nil
	}
	return b, a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var (
		account   Account
		id        uuid.UUID
		userID    uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &userID, &account.Number, &account.Currency, &account.Balance, &account.ProviderWalletID, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	account.ID = id.String()
	account.UserID = userID.String()
	account.CreatedAt = createdAt.UTC()
	return account, nil
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var (
		tx                   Transaction
		id                   uuid.UUID
		txType, status       string
		payload              string
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &txType, &tx.Amount, &tx.Currency, &tx.SenderID, &tx.ReceiverID, &status, &tx.Reference, &payload, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	tx.ID = id.String()
	tx.Type = TxType(txType)
	tx.Status = Status(status)
	if payload != "" {
		tx.ProviderPayload = []byte(payload)
	}
	tx.CreatedAt = createdAt.UTC()
	tx.UpdatedAt = updatedAt.UTC()
	return tx, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
