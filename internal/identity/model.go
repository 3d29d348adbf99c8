package identity

import "time"

// User is a registered wallet owner.
type User struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// RegisterInput captures the data required to sign up.
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Currency string
}
