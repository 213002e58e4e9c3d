package secguard

import "sync"

// accountLocks serializes mutating operations per account. Stores still
// enforce the version check, so this only prevents same-process writers
// from racing each other through read-modify-write cycles.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*accountLock)}
}

// Lock acquires the lock for the account and returns its unlock func.
func (a *accountLocks) Lock(accountID string) func() {
	a.mu.Lock()
	l, ok := a.locks[accountID]
	if !ok {
		l = &accountLock{}
		a.locks[accountID] = l
	}
	l.refs++
	a.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		a.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(a.locks, accountID)
		}
		a.mu.Unlock()
	}
}
