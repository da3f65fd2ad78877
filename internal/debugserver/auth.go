package debugserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("debugserver: invalid credentials")
	ErrInvalidToken       = errors.New("debugserver: invalid or expired token")
)

// claims is the single-operator JWT payload; there is no username or role
// since the debug console has exactly one account.
type claims struct {
	jwt.RegisteredClaims
}

// AuthService issues and validates bearer tokens for the debug console's
// single operator account. Unlike the teacher's multi-user Service, there
// is no user store or session table — the shared secret is the
// bcrypt-hashed password itself.
type AuthService struct {
	passwordHash string
	jwtSecret    []byte
	tokenTTL     time.Duration
}

// NewAuthService builds an AuthService. passwordHash is the bcrypt hash
// configured via debug_password_hash; jwtSecret signs issued tokens.
func NewAuthService(passwordHash string, jwtSecret []byte, tokenTTL time.Duration) *AuthService {
	return &AuthService{passwordHash: passwordHash, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

// Login verifies password against the configured hash and returns a
// signed JWT on success.
func (a *AuthService) Login(password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	now := time.Now()
	c := &claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "operator",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(a.jwtSecret)
}

// ValidateToken checks a bearer token's signature and expiry.
func (a *AuthService) ValidateToken(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// HashPassword bcrypt-hashes a plaintext password for the
// debug_password_hash config field.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
