package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"licensegate.app/cloud/internal/license"
	"licensegate.app/cloud/storage"
)

const (
	roleAdmin = "admin"
	tokenTTL  = 24 * time.Hour
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrExpired      = errors.New("session expired")
	ErrForbidden    = errors.New("forbidden")
)

type Claims struct {
	Email string
	Role  string
}

type tokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Authority issues and verifies admin session tokens. Tokens are
// self-contained HS256 JWTs; there is no server-side session state, so
// validity is signature plus expiry, nothing else.
type Authority struct {
	secret []byte
	now    func() time.Time
}

func NewAuthority(secret []byte) *Authority {
	return &Authority{secret: secret, now: time.Now}
}

// WithClock overrides the authority clock. Tests only.
func (a *Authority) WithClock(now func() time.Time) *Authority {
	a.now = now
	return a
}

// Login verifies the admin credential and issues a session token. A missing
// account and a wrong password produce the same error so login probes can't
// distinguish them.
func (a *Authority) Login(ctx context.Context, store storage.Storage, email, password string) (string, error) {
	admin, err := store.FindAdminByEmail(ctx, license.Normalize(email))
	if err != nil {
		return "", err
	}
	if admin == nil {
		// Burn a hash comparison anyway to keep timing uniform.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000uGKsliDmCZvMxeBhJhUnrB7LJqiCxPS"), []byte(password))
		return "", ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return "", ErrUnauthorized
	}

	now := a.now()
	claims := tokenClaims{
		Email: admin.Email,
		Role:  roleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Authorize verifies a session token and returns its claims. Signature
// failures are ErrUnauthorized, an expired token is ErrExpired, and a valid
// token for any role other than admin is ErrForbidden.
func (a *Authority) Authorize(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrUnauthorized
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrUnauthorized
	}
	if claims.Role != roleAdmin {
		return Claims{}, ErrForbidden
	}
	return Claims{Email: claims.Email, Role: claims.Role}, nil
}

// HashPassword produces the bcrypt hash stored for the admin credential.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
