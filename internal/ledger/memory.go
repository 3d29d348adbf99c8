package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryStore struct {
	mu           sync.RWMutex
	accounts     map[string]Account
	byNumber     map[string]string
	byUser       map[string]string
	transactions map[string]Transaction // keyed by reference
}

// NewMemoryStore creates a concurrency-safe in-memory store. It mirrors the
// Postgres store's atomicity semantics and is used for unit tests and dev mode.
func NewMemoryStore() Store {
	return &memoryStore{
		accounts:     make(map[string]Account),
		byNumber:     make(map[string]string),
		byUser:       make(map[string]string),
		transactions: make(map[string]Transaction),
	}
}

func (s *memoryStore) CreateAccount(_ context.Context, account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byNumber[account.Number]; exists {
		return ErrDuplicateAccountNumber
	}
	s.accounts[account.ID] = account
	s.byNumber[account.Number] = account.ID
	s.byUser[account.UserID] = account.ID
	return nil
}

func (s *memoryStore) Account(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (s *memoryStore) AccountByUser(_ context.Context, userID string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUser[userID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return s.accounts[id], nil
}

func (s *memoryStore) AccountByNumber(_ context.Context, number string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNumber[number]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return s.accounts[id], nil
}

func (s *memoryStore) BindProviderWallet(_ context.Context, accountID, walletID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	if account.ProviderWalletID == "" {
		account.ProviderWalletID = walletID
		s.accounts[accountID] = account
	}
	return nil
}

func (s *memoryStore) CreateTransaction(_ context.Context, tx Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[tx.Reference]; exists {
		return ErrDuplicateReference
	}
	s.transactions[tx.Reference] = tx
	return nil
}

func (s *memoryStore) CreateAndCredit(_ context.Context, tx Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[tx.Reference]; exists {
		return ErrDuplicateReference
	}
	account, ok := s.accounts[tx.ReceiverID]
	if !ok {
		return ErrAccountNotFound
	}
	account.Balance += tx.Amount
	s.accounts[tx.ReceiverID] = account
	s.transactions[tx.Reference] = tx
	return nil
}

func (s *memoryStore) CreateAndMove(_ context.Context, tx Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[tx.Reference]; exists {
		return ErrDuplicateReference
	}
	sender, ok := s.accounts[tx.SenderID]
	if !ok {
		return ErrAccountNotFound
	}
	receiver, ok := s.accounts[tx.ReceiverID]
	if !ok {
		return ErrAccountNotFound
	}
	if sender.Balance < tx.Amount {
		return ErrInsufficientFunds
	}
	sender.Balance -= tx.Amount
	receiver.Balance += tx.Amount
	s.accounts[tx.SenderID] = sender
	s.accounts[tx.ReceiverID] = receiver
	s.transactions[tx.Reference] = tx
	return nil
}

func (s *memoryStore) TransactionByReference(_ context.Context, reference string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[reference]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return tx, nil
}

func (s *memoryStore) TransactionsByAccount(_ context.Context, accountID string, limit int) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Transaction
	for _, tx := range s.transactions {
		if tx.SenderID == accountID || tx.ReceiverID == accountID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) AttachProviderPayload(_ context.Context, reference string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[reference]
	if !ok {
		return ErrTransactionNotFound
	}
	tx.ProviderPayload = payload
	tx.UpdatedAt = time.Now().UTC()
	s.transactions[reference] = tx
	return nil
}

func (s *memoryStore) Transition(_ context.Context, reference string, from, to Status, payload []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[reference]
	if !ok {
		return false, ErrTransactionNotFound
	}
	if tx.Status != from {
		return false, nil
	}
	s.finish(tx, to, payload)
	return true, nil
}

func (s *memoryStore) CreditAndTransition(_ context.Context, reference string, from, to Status, accountID string, amount int64, payload []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[reference]
	if !ok {
		return false, ErrTransactionNotFound
	}
	if tx.Status != from {
		return false, nil
	}
	account, ok := s.accounts[accountID]
	if !ok {
		return false, ErrAccountNotFound
	}
	account.Balance += amount
	s.accounts[accountID] = account
	s.finish(tx, to, payload)
	return true, nil
}

func (s *memoryStore) DebitAndTransition(_ context.Context, reference string, from, to Status, accountID string, amount int64, payload []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[reference]
	if !ok {
		return false, ErrTransactionNotFound
	}
	if tx.Status != from {
		return false, nil
	}
	account, ok := s.accounts[accountID]
	if !ok {
		return false, ErrAccountNotFound
	}
	if account.Balance < amount {
		return false, ErrInsufficientFunds
	}
	account.Balance -= amount
	s.accounts[accountID] = account
	s.finish(tx, to, payload)
	return true, nil
}

func (s *memoryStore) MoveAndTransition(_ context.Context, reference string, from, to Status, senderID, receiverID string, amount int64, payload []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[reference]
	if !ok {
		return false, ErrTransactionNotFound
	}
	if tx.Status != from {
		return false, nil
	}
	sender, ok := s.accounts[senderID]
	if !ok {
		return false, ErrAccountNotFound
	}
	receiver, ok := s.accounts[receiverID]
	if !ok {
		return false, ErrAccountNotFound
	}
	if sender.Balance < amount {
		return false, ErrInsufficientFunds
	}
	sender.Balance -= amount
	receiver.Balance += amount
	s.accounts[senderID] = sender
	s.accounts[receiverID] = receiver
	s.finish(tx, to, payload)
	return true, nil
}

// finish mutates the stored record; callers must hold the write lock.
func (s *memoryStore) finish(tx Transaction, to Status, payload []byte) {
	tx.Status = to
	if payload != nil {
		tx.ProviderPayload = payload
	}
	tx.UpdatedAt = time.Now().UTC()
	s.transactions[tx.Reference] = tx
}
