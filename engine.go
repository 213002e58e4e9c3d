package secguard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	internalaudit "github.com/finboard/secguard/internal/audit"
	"github.com/finboard/secguard/internal/limiters"
	"github.com/finboard/secguard/password"
	"github.com/finboard/secguard/token"
)

// Engine is the account security engine. It is safe for concurrent use;
// mutating operations on the same account are serialized internally.
type Engine struct {
	config Config
	repo   AccountRepository
	geo    GeoResolver

	hasher *password.Hasher
	totp   *totpManager
	tokens *token.Manager
	locks  *accountLocks

	loginThrottle  *limiters.AttemptThrottle
	totpThrottle   *limiters.AttemptThrottle
	backupThrottle *limiters.AttemptThrottle

	audit   *internalaudit.Dispatcher
	metrics *Metrics

	// clock overrides time.Now in tests.
	clock func() time.Time
}

func (e *Engine) now() time.Time {
	if e != nil && e.clock != nil {
		return e.clock()
	}
	return time.Now()
}

// Close drains the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// ValidateToken parses a session token and checks that the session it
// rides on still exists on the account. Tokens of terminated sessions are
// rejected.
func (e *Engine) ValidateToken(ctx context.Context, tokenStr string) (*TokenClaims, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	claims, err := e.tokens.Parse(tokenStr)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if claims.SessionID == "" {
		// Flow tokens carry no session and grant no dashboard access.
		return nil, ErrTokenInvalid
	}

	account, err := e.repo.FindByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !sessionExists(account.Sessions, claims.SessionID) {
		return nil, ErrTokenInvalid
	}

	return &TokenClaims{
		AccountID:   claims.AccountID,
		AccountType: claims.AccountType,
		SessionID:   claims.SessionID,
	}, nil
}

// loadAccount fetches an account by ID and maps store errors.
func (e *Engine) loadAccount(ctx context.Context, accountID string) (*Account, error) {
	if e == nil || e.repo == nil {
		return nil, ErrEngineNotReady
	}
	account, err := e.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return account, nil
}

// loadAccountLocked acquires the per-account mutex before reading the
// account, so a read-modify-write cannot interleave with a concurrent
// operation on the same account. The returned unlock is never nil and
// must always be called.
func (e *Engine) loadAccountLocked(ctx context.Context, accountID string) (*Account, func(), error) {
	if e == nil || e.repo == nil {
		return nil, func() {}, ErrEngineNotReady
	}
	unlock := e.locks.Lock(accountID)
	account, err := e.loadAccount(ctx, accountID)
	if err != nil {
		unlock()
		return nil, func() {}, err
	}
	return account, unlock, nil
}

func (e *Engine) saveAccount(ctx context.Context, account *Account) error {
	if err := e.repo.Save(ctx, account); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// recordActivity appends an entry honoring the account's logging settings
// and the engine-wide cap.
func (e *Engine) recordActivity(account *Account, entry ActivityEntry) {
	cfg := account.Settings.ActivityLogging
	if cfg.Level == "" {
		cfg.Level = e.config.Activity.DefaultLevel
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = e.config.Activity.DefaultRetentionDays
	}
	if cfg.MaxEntries == 0 || cfg.MaxEntries > e.config.Activity.MaxEntries {
		cfg.MaxEntries = e.config.Activity.MaxEntries
	}
	account.Activity = appendActivity(account.Activity, entry, cfg, e.now())
}

func (e *Engine) warn(msg string) {
	log.Print("secguard: " + msg)
}

func sessionExists(list []Session, id string) bool {
	for i := range list {
		if list[i].ID == id {
			return true
		}
	}
	return false
}
