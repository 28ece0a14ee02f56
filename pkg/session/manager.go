// Package session mints and verifies anonymous cart session tokens.
// A session identifies one shopper's in-progress cart; it carries no
// account identity.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lunebox/storefront-backend/pkg/config"
)

var signingMethod = jwt.SigningMethodHS256

var ErrInvalidToken = errors.New("invalid session token")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type sessionKeyer interface {
	SessionKey(sessionID string) string
}

// Manager issues signed session tokens and tracks their liveness in Redis.
type Manager struct {
	store  sessionStore
	keyer  sessionKeyer
	secret string
	issuer string
	ttl    time.Duration
}

type storeKeyer interface {
	sessionStore
	sessionKeyer
}

// NewManager builds a session manager backed by the provided Redis client.
func NewManager(client storeKeyer, cfg config.SessionConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("session issuer is required")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &Manager{
		store:  client,
		keyer:  client,
		secret: cfg.Secret,
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
	}, nil
}

// Issue mints a fresh session ID and its signed token.
func (m *Manager) Issue(ctx context.Context) (string, string, error) {
	sessionID := uuid.NewString()
	now := time.Now()

	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	token, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(m.secret))
	if err != nil {
		return "", "", fmt.Errorf("signing session token: %w", err)
	}

	if err := m.store.Set(ctx, m.keyer.SessionKey(sessionID), "1", m.ttl); err != nil {
		return "", "", fmt.Errorf("recording session: %w", err)
	}
	return sessionID, token, nil
}

// Resolve verifies a token's signature, expiry, and issuer, and returns
// the session ID it carries.
func (m *Manager) Resolve(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != signingMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(m.secret), nil
		},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(m.issuer),
	)
	if err != nil {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Touch extends the Redis liveness record for an active session.
func (m *Manager) Touch(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	return m.store.Set(ctx, m.keyer.SessionKey(sessionID), "1", m.ttl)
}

// Revoke drops the session's liveness record.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	return m.store.Del(ctx, m.keyer.SessionKey(sessionID))
}
