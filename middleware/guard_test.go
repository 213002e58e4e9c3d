package middleware

import (
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finboard/secguard"
	"github.com/finboard/secguard/acctstore"
	"github.com/finboard/secguard/password"
)

func newTestEngine(t *testing.T) (*secguard.Engine, string) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	cfg := secguard.DefaultConfig()
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub
	hasher, err := password.NewHasher(password.Config{})
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	hash, err := hasher.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	repo := acctstore.NewMemory()
	repo.Put(&secguard.Account{
		ID:           "acct-1",
		Email:        "owner@example.com",
		Login:        "owner",
		PasswordHash: hash,
		Version:      1,
	})

	engine, err := secguard.New().
		WithConfig(cfg).
		WithRepository(repo).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	res, err := engine.Login(t.Context(), "owner", "correct horse battery")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return engine, res.Token
}

func TestGuardAcceptsValidToken(t *testing.T) {
	engine, token := newTestEngine(t)

	var got *secguard.TokenClaims
	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ClaimsFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got == nil || got.AccountID != "acct-1" || got.SessionID == "" {
		t.Fatalf("unexpected claims %+v", got)
	}
}

func TestGuardRejects(t *testing.T) {
	engine, _ := newTestEngine(t)
	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached without valid token")
	}))

	for _, header := range []string{"", "Bearer ", "Bearer not-a-token", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:4444"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if ip := clientIP(req); ip != "203.0.113.7" {
		t.Fatalf("expected forwarded ip, got %q", ip)
	}

	req.Header.Del("X-Forwarded-For")
	if ip := clientIP(req); ip != "10.0.0.9" {
		t.Fatalf("expected remote addr host, got %q", ip)
	}
}
