// Package auth issues and verifies the access/refresh token pair.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/todo-platform/task-api/internal/app/domain/user"
	"github.com/todo-platform/task-api/internal/app/storage"
)

// Token types carried in claims.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	// ErrInvalidToken covers malformed, expired, wrongly signed and
	// wrong-typed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenDenied means the refresh token was revoked by a logout.
	ErrTokenDenied = errors.New("token has been revoked")
)

// Claims are the JWT claims for both token types.
type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Pair is an issued access/refresh token pair.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Manager signs tokens with an HMAC secret and consults the denylist for
// refresh tokens.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	tokens     storage.TokenStore
	now        func() time.Time
}

// NewManager builds a Manager. tokens may not be nil; logout depends on it.
func NewManager(secret string, accessTTL, refreshTTL time.Duration, tokens storage.TokenStore) *Manager {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		tokens:     tokens,
		now:        time.Now,
	}
}

// IssuePair signs a fresh access/refresh pair for u.
func (m *Manager) IssuePair(u user.User) (Pair, error) {
	access, err := m.sign(u, TypeAccess, m.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := m.sign(u, TypeRefresh, m.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

func (m *Manager) sign(u user.User, tokenType string, ttl time.Duration) (string, error) {
	now := m.now().UTC()
	claims := Claims{
		UserID:    u.ID,
		Email:     u.Email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// VerifyAccess parses an access token and returns its claims.
func (m *Manager) VerifyAccess(tokenString string) (*Claims, error) {
	return m.verify(tokenString, TypeAccess)
}

func (m *Manager) verify(tokenString, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return m.now() }))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidToken, wantType)
	}
	return claims, nil
}

// Refresh verifies a refresh token, rejects denylisted ones, denylists the
// presented token, and issues a new pair. Rotation means a refresh token is
// single-use.
func (m *Manager) Refresh(ctx context.Context, refreshToken string, u user.User) (Pair, error) {
	claims, err := m.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return Pair{}, err
	}
	if claims.UserID != u.ID {
		return Pair{}, ErrInvalidToken
	}
	if err := m.tokens.DenyToken(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return Pair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	return m.IssuePair(u)
}

// VerifyRefresh parses a refresh token and checks the denylist.
func (m *Manager) VerifyRefresh(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := m.verify(tokenString, TypeRefresh)
	if err != nil {
		return nil, err
	}
	denied, err := m.tokens.IsTokenDenied(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check denylist: %w", err)
	}
	if denied {
		return nil, ErrTokenDenied
	}
	return claims, nil
}

// Revoke denylists a refresh token until its natural expiry (logout).
func (m *Manager) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := m.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	return m.tokens.DenyToken(ctx, claims.ID, claims.ExpiresAt.Time)
}
