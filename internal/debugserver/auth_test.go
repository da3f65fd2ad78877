package debugserver

import (
	"testing"
	"time"
)

func TestLoginValidateRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	auth := NewAuthService(hash, []byte("secret"), time.Hour)

	token, err := auth.Login("correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := auth.ValidateToken(token); err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	auth := NewAuthService(hash, []byte("secret"), time.Hour)
	if _, err := auth.Login("wrong"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	hash, _ := HashPassword("pw")
	auth := NewAuthService(hash, []byte("secret"), -time.Second)
	token, err := auth.Login("pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := auth.ValidateToken(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for an already-expired token, got %v", err)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	hash, _ := HashPassword("pw")
	a1 := NewAuthService(hash, []byte("secret-one"), time.Hour)
	a2 := NewAuthService(hash, []byte("secret-two"), time.Hour)

	token, err := a1.Login("pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := a2.ValidateToken(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken across different signing secrets, got %v", err)
	}
}
