package acctstore

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/finboard/secguard"
)

// ErrVersionConflict reports a save racing against a newer write.
var ErrVersionConflict = errors.New("account version conflict")

// Memory is a map-backed AccountRepository. Accounts are deep-copied on
// the way in and out so callers never share state with the store.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]*secguard.Account
}

func NewMemory() *Memory {
	return &Memory{accounts: make(map[string]*secguard.Account)}
}

// Put inserts or replaces an account unconditionally. Meant for seeding
// test fixtures; production writes go through Save.
func (m *Memory) Put(account *secguard.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = cloneAccount(account)
}

func (m *Memory) FindByID(ctx context.Context, id string) (*secguard.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil, secguard.ErrAccountNotFound
	}
	return cloneAccount(account), nil
}

func (m *Memory) FindByEmail(ctx context.Context, email string) (*secguard.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, account := range m.accounts {
		if strings.EqualFold(account.Email, email) {
			return cloneAccount(account), nil
		}
	}
	return nil, secguard.ErrAccountNotFound
}

func (m *Memory) FindByLogin(ctx context.Context, login string) (*secguard.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, account := range m.accounts {
		if account.Login == login {
			return cloneAccount(account), nil
		}
	}
	return nil, secguard.ErrAccountNotFound
}

// Save writes the account back, bumping its version. The write fails
// with ErrVersionConflict when the stored version no longer matches the
// version the caller loaded.
func (m *Memory) Save(ctx context.Context, account *secguard.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.accounts[account.ID]
	if !ok {
		return secguard.ErrAccountNotFound
	}
	if current.Version != account.Version {
		return ErrVersionConflict
	}

	stored := cloneAccount(account)
	stored.Version++
	m.accounts[account.ID] = stored
	account.Version = stored.Version
	return nil
}

func cloneAccount(a *secguard.Account) *secguard.Account {
	out := *a
	if a.PasswordHistory != nil {
		out.PasswordHistory = append([]string(nil), a.PasswordHistory...)
	}
	if a.Sessions != nil {
		out.Sessions = append([]secguard.Session(nil), a.Sessions...)
	}
	if a.Activity != nil {
		out.Activity = append([]secguard.ActivityEntry(nil), a.Activity...)
		for i := range out.Activity {
			if md := out.Activity[i].Metadata; md != nil {
				clone := make(map[string]string, len(md))
				for k, v := range md {
					clone[k] = v
				}
				out.Activity[i].Metadata = clone
			}
		}
	}
	if a.TwoFactor.BackupCodes != nil {
		out.TwoFactor.BackupCodes = append([]secguard.BackupCode(nil), a.TwoFactor.BackupCodes...)
	}
	if a.Settings.IPRestrictions.Allowed != nil {
		out.Settings.IPRestrictions.Allowed = append([]string(nil), a.Settings.IPRestrictions.Allowed...)
	}
	if a.Settings.GeoRestrictions.Allowed != nil {
		out.Settings.GeoRestrictions.Allowed = append([]string(nil), a.Settings.GeoRestrictions.Allowed...)
	}
	return &out
}
