package cards

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrCardExists indicates the account already holds a virtual card.
	ErrCardExists = errors.New("virtual card already exists")
	// ErrCardNotFound indicates no card is issued for the account.
	ErrCardNotFound = errors.New("virtual card not found")
)

// Card is the locally stored slice of an issued virtual card. Only the
// provider-side id and display data live here; full card data is fetched on
// demand and never persisted.
type Card struct {
	ID             string
	AccountID      string
	ProviderCardID string
	MaskedNumber   string
	ExpiryDate     string
	CreatedAt      time.Time
}

// Repository persists issued cards.
type Repository interface {
	Create(ctx context.Context, card Card) error
	FindByAccount(ctx context.Context, accountID string) (Card, error)
}

// PostgresRepository stores cards in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed card repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a card record; the account id carries a unique constraint.
func (r *PostgresRepository) Create(ctx context.Context, card Card) error {
	_, err := r.db.Exec(ctx, `INSERT INTO virtual_cards (id, account_id, provider_card_id, masked_number, expiry_date, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		card.ID, card.AccountID, card.ProviderCardID, card.MaskedNumber, card.ExpiryDate, card.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrCardExists
	}
	return err
}

// FindByAccount fetches the card issued for an account.
func (r *PostgresRepository) FindByAccount(ctx context.Context, accountID string) (Card, error) {
	row := r.db.QueryRow(ctx, `SELECT id, account_id, provider_card_id, masked_number, expiry_date, created_at
        FROM virtual_cards WHERE account_id = $1`, accountID)
	var (
		card      Card
		createdAt time.Time
	)
	if err := row.Scan(&card.ID, &card.AccountID, &card.ProviderCardID, &card.MaskedNumber, &card.ExpiryDate, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Card{}, ErrCardNotFound
		}
		return Card{}, err
	}
	card.CreatedAt = createdAt.UTC()
	return card, nil
}

type memoryRepository struct {
	mu    sync.RWMutex
	cards map[string]Card // keyed by account id
}

// NewMemoryRepository builds an in-memory card store for testing and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{cards: make(map[string]Card)}
}

func (r *memoryRepository) Create(_ context.Context, card Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.cards[card.AccountID]; exists {
		return ErrCardExists
	}
	r.cards[card.AccountID] = card
	return nil
}

func (r *memoryRepository) FindByAccount(_ context.Context, accountID string) (Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	card, ok := r.cards[accountID]
	if !ok {
		return Card{}, ErrCardNotFound
	}
	return card, nil
}
