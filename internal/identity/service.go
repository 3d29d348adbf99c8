package identity

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// ErrInvalidCredentials is returned for a wrong email/password pair. The
// message never reveals which half was wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Service manages user lifecycle.
type Service struct {
	repo Repository
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register validates the input and stores a new user with a bcrypt password
// hash. Account provisioning is the caller's concern.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	if in.Name == "" {
		return User{}, errors.New("name is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return User{}, errors.New("a valid email is required")
	}
	if len(in.Password) < minPasswordLength {
		return User{}, errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate verifies the email/password pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}
