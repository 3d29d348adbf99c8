package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/PeaceOloruntoba/payment-wallet-app/internal/identity"
)

func TestIssueAndVerify(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	user := identity.User{ID: uuid.NewString()}

	token, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token.AccessToken == "" {
		t.Fatalf("expected a signed token")
	}
	if token.ExpiresIn != 3600 {
		t.Fatalf("expected expires_in 3600, got %d", token.ExpiresIn)
	}

	subject, err := svc.Verify(token.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject != user.ID {
		t.Fatalf("expected subject %s, got %s", user.ID, subject)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	issuer := NewService("secret-a", time.Hour)
	verifier := NewService("secret-b", time.Hour)

	token, err := issuer.Issue(identity.User{ID: uuid.NewString()})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Verify(token.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := NewService("test-secret", -time.Minute)

	token, err := svc.Issue(identity.User{ID: uuid.NewString()})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Verify(token.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	if _, err := svc.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
