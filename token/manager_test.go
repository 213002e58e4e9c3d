package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		Issuer:        "secguard-test",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestSessionTokenRoundTrip(t *testing.T) {
	m := newTestManager(t)

	raw, err := m.IssueSession("acc-1", "merchant", "sess-9")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.AccountID != "acc-1" || claims.AccountType != "merchant" || claims.SessionID != "sess-9" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestFlowTokenOmitsSession(t *testing.T) {
	m := newTestManager(t)

	raw, err := m.IssueFlow("acc-2", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.SessionID != "" {
		t.Fatalf("flow token carries session id %q", claims.SessionID)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	m := newTestManager(t)

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := m.Parse(raw); !errors.Is(err, ErrInvalid) {
			t.Fatalf("Parse(%q) = %v, want ErrInvalid", raw, err)
		}
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	m := newTestManager(t)
	other := newTestManager(t)

	raw, err := other.IssueSession("acc-3", "merchant", "sess-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(raw); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Parse accepted token signed by a different key: %v", err)
	}
}

func TestHS256RoundTrip(t *testing.T) {
	m, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		SessionTTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	raw, err := m.IssueSession("acc-4", "merchant", "sess-2")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.AccountID != "acc-4" {
		t.Fatalf("unexpected account id %q", claims.AccountID)
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	if _, err := NewManager(Config{SigningMethod: MethodHS256}); err == nil {
		t.Fatal("expected error for hs256 without secret")
	}
	if _, err := NewManager(Config{SigningMethod: "rs512"}); err == nil {
		t.Fatal("expected error for unsupported method")
	}
	if _, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: []byte("short")}); err == nil {
		t.Fatal("expected error for malformed key")
	}
}
