package jwtauth

import (
	"testing"
	"time"

	"github.com/shareleaderd/broker/internal/durationutil"
)

func newTestManager(ttl durationutil.Expiry) *Manager {
	return NewManager([]byte("test-secret"),
		IssuerOptions{Issuer: "broker-test", Audience: "admin", TTL: ttl},
		ValidatorOptions{Issuer: "broker-test", Audience: "admin"},
	)
}

func TestGenerateDecodeRoundTrip(t *testing.T) {
	m := newTestManager(durationutil.Expiry{Kind: durationutil.ServerDefault})

	raw, err := m.Generate("alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("subject = %q, want alice", claims.Subject)
	}
	if claims.ID == "" {
		t.Error("expected a jti to be assigned")
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(time.Now()) {
		t.Error("expected a future expiry")
	}
}

func TestDecodeRejectsWrongAudience(t *testing.T) {
	issuer := newTestManager(durationutil.Expiry{Kind: durationutil.ServerDefault})
	raw, err := issuer.Generate("alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	other := NewManager([]byte("test-secret"),
		IssuerOptions{Issuer: "broker-test", Audience: "admin"},
		ValidatorOptions{Issuer: "broker-test", Audience: "something-else"},
	)
	if _, err := other.Decode(raw); err == nil {
		t.Fatal("expected decode to reject mismatched audience")
	}
}

func TestDecodeRejectsTamperedSignature(t *testing.T) {
	m := newTestManager(durationutil.Expiry{Kind: durationutil.ServerDefault})
	raw, err := m.Generate("alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	forger := NewManager([]byte("different-secret"),
		IssuerOptions{Issuer: "broker-test", Audience: "admin"},
		ValidatorOptions{Issuer: "broker-test", Audience: "admin"},
	)
	if _, err := forger.Decode(raw); err == nil {
		t.Fatal("expected decode to reject a token signed with another secret")
	}
}

func TestRevokeToken(t *testing.T) {
	m := newTestManager(durationutil.Expiry{Kind: durationutil.ServerDefault})
	raw, err := m.Generate("alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := m.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	m.RevokeToken(claims.ID, claims.ExpiresAt.Time)
	if _, err := m.Decode(raw); err == nil {
		t.Fatal("expected decode to reject a revoked token")
	}
}

func TestRefreshTokenRevokesOld(t *testing.T) {
	m := newTestManager(durationutil.Expiry{Kind: durationutil.ExpireAfter, For: durationutil.NewDuration(time.Hour)})
	old, err := m.Generate("bob")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	fresh, err := m.RefreshToken(old)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if fresh == old {
		t.Error("expected a new token")
	}
	if _, err := m.Decode(old); err == nil {
		t.Error("expected the old token to be revoked after refresh")
	}
	if claims, err := m.Decode(fresh); err != nil || claims.Subject != "bob" {
		t.Errorf("fresh token decode = (%+v, %v)", claims, err)
	}
}
