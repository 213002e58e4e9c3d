package secguard

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/finboard/secguard/password"
)

// Monday, inside business hours.
var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

const testPassword = "correct horse battery staple"

type stubRepo struct {
	mu       sync.Mutex
	accounts map[string]*Account
	saves    int
}

func newStubRepo() *stubRepo {
	return &stubRepo{accounts: make(map[string]*Account)}
}

func (r *stubRepo) put(account *Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = copyAccount(account)
}

func (r *stubRepo) FindByID(ctx context.Context, id string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return copyAccount(account), nil
}

func (r *stubRepo) FindByEmail(ctx context.Context, email string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.Email == email {
			return copyAccount(account), nil
		}
	}
	return nil, ErrAccountNotFound
}

func (r *stubRepo) FindByLogin(ctx context.Context, login string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.Login == login {
			return copyAccount(account), nil
		}
	}
	return nil, ErrAccountNotFound
}

func (r *stubRepo) Save(ctx context.Context, account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.accounts[account.ID] = copyAccount(account)
	return nil
}

// stored reads the persisted state directly, bypassing the engine.
func (r *stubRepo) stored(t *testing.T, id string) *Account {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		t.Fatalf("account %q not in repo", id)
	}
	return copyAccount(account)
}

func copyAccount(a *Account) *Account {
	out := *a
	out.PasswordHistory = append([]string(nil), a.PasswordHistory...)
	out.Sessions = append([]Session(nil), a.Sessions...)
	out.Activity = append([]ActivityEntry(nil), a.Activity...)
	out.TwoFactor.BackupCodes = append([]BackupCode(nil), a.TwoFactor.BackupCodes...)
	return &out
}

type engineFixture struct {
	engine *Engine
	repo   *stubRepo
	hasher *password.Hasher
	// now is read by the injected clock; tests advance it directly.
	now time.Time
}

func (f *engineFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func testConfig(t *testing.T) Config {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub
	// Keep argon2 cheap for tests.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	return cfg
}

func newFixture(t *testing.T, mutate ...func(*Config)) *engineFixture {
	t.Helper()

	cfg := testConfig(t)
	for _, fn := range mutate {
		fn(&cfg)
	}

	repo := newStubRepo()
	engine, err := New().
		WithConfig(cfg).
		WithRepository(repo).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	f := &engineFixture{engine: engine, repo: repo, hasher: engine.hasher, now: testNow}
	engine.clock = func() time.Time { return f.now }
	return f
}

func (f *engineFixture) seedAccount(t *testing.T, mutate ...func(*Account)) *Account {
	t.Helper()
	hash, err := f.hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	account := &Account{
		ID:           "acct-1",
		Email:        "owner@example.com",
		Login:        "owner",
		AccountType:  "merchant",
		PasswordHash: hash,
		Settings: SecuritySettings{
			FailedLoginLimit: true,
			ActivityLogging:  ActivityLogSettings{Enabled: true, Level: ActivityLevelStandard},
		},
		Version: 1,
	}
	for _, fn := range mutate {
		fn(account)
	}
	f.repo.put(account)
	return account
}

// enableTOTP runs the full enrollment for the seeded account and returns
// the shared secret plus the plaintext backup codes.
func (f *engineFixture) enableTOTP(t *testing.T, accountID string) ([]byte, []string) {
	t.Helper()
	ctx := context.Background()

	if _, err := f.engine.ProvisionTOTP(ctx, accountID); err != nil {
		t.Fatalf("ProvisionTOTP: %v", err)
	}
	secret := f.repo.stored(t, accountID).TwoFactor.Secret

	codes, err := f.engine.ConfirmTOTPSetup(ctx, accountID, f.totpCode(t, secret, 0))
	if err != nil {
		t.Fatalf("ConfirmTOTPSetup: %v", err)
	}
	return secret, codes
}

// totpCode computes the code for the current clock, offset by whole
// periods.
func (f *engineFixture) totpCode(t *testing.T, secret []byte, periodOffset int64) string {
	t.Helper()
	cfg := f.engine.config.TOTP
	counter := f.now.Unix()/int64(cfg.Period) + periodOffset
	code, err := hotpCode(secret, counter, cfg.Digits, cfg.Algorithm)
	if err != nil {
		t.Fatalf("hotpCode: %v", err)
	}
	return code
}
