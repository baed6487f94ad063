// Package jwtauth backs the HTTP admin surface's login endpoint: issue,
// validate, and revoke tokens. The revocation cache is in-memory only; it is
// not persisted across restarts.
package jwtauth

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/shareleaderd/broker/internal/durationutil"
)

// IssuerOptions configures token issuance. TTL accepts the same
// server_default/never/duration spellings the rest of the cluster config
// uses for expiry fields.
type IssuerOptions struct {
	Issuer   string
	Audience string
	TTL      durationutil.Expiry
}

// ValidatorOptions configures token validation.
type ValidatorOptions struct {
	Issuer   string
	Audience string
}

// Claims is the token payload: a subject plus the registered claims jwt/v5
// expects.
type Claims struct {
	jwt.RegisteredClaims
}

// Manager issues, validates, and revokes JWTs for the admin surface.
type Manager struct {
	secret    []byte
	issuer    IssuerOptions
	validator ValidatorOptions

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> expiry, pruned lazily
}

// NewManager creates a Manager signing with HMAC-SHA256 over secret.
func NewManager(secret []byte, issuer IssuerOptions, validator ValidatorOptions) *Manager {
	return &Manager{
		secret:    secret,
		issuer:    issuer,
		validator: validator,
		revoked:   make(map[string]time.Time),
	}
}

// defaultTTL is the lifetime used when the issuer's TTL is ServerDefault.
const defaultTTL = 24 * time.Hour

// Generate issues a signed token for subject.
func (m *Manager) Generate(subject string) (string, error) {
	now := time.Now()
	var ttl time.Duration
	switch m.issuer.TTL.Kind {
	case durationutil.NeverExpire:
		ttl = 100 * 365 * 24 * time.Hour
	case durationutil.ExpireAfter:
		ttl = m.issuer.TTL.For.Value
	default:
		ttl = defaultTTL
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer.Issuer,
			Audience:  jwt.ClaimStrings{m.issuer.Audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Decode validates a token's signature, issuer, audience, expiry, and
// revocation status, returning its claims.
func (m *Manager) Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithIssuer(m.validator.Issuer), jwt.WithAudience(m.validator.Audience))
	if err != nil {
		return nil, fmt.Errorf("jwtauth: decode token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("jwtauth: token invalid")
	}
	if m.isTokenRevoked(claims.ID) {
		return nil, fmt.Errorf("jwtauth: token revoked")
	}
	return claims, nil
}

// RevokeToken marks jti as revoked until its own expiry, after which it is
// pruned (the revocation list itself is not persisted across restarts).
func (m *Manager) RevokeToken(jti string, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = expiresAt
	m.pruneExpiredLocked()
}

func (m *Manager) isTokenRevoked(jti string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, revoked := m.revoked[jti]
	return revoked
}

func (m *Manager) pruneExpiredLocked() {
	now := time.Now()
	for jti, exp := range m.revoked {
		if now.After(exp) {
			delete(m.revoked, jti)
		}
	}
}

// RefreshToken validates raw, revokes its jti, and issues a fresh token for
// the same subject.
func (m *Manager) RefreshToken(raw string) (string, error) {
	claims, err := m.Decode(raw)
	if err != nil {
		return "", err
	}
	m.RevokeToken(claims.ID, claims.ExpiresAt.Time)
	return m.Generate(claims.Subject)
}
