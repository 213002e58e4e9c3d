package secguard

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finboard/secguard/internal/restrict"
	"github.com/finboard/secguard/internal/sessions"
)

// Login verifies credentials for an email or login name. Checks run in a
// fixed order: throttle, lockout, access restrictions, then the password.
// A locked account rejects before the password is examined, so attempts
// against it never reveal whether the password was right.
//
// When the account has an active second factor, no session is issued;
// the result carries a short-lived flow token to be completed with
// [Engine.VerifyLoginTOTP] or [Engine.VerifyLoginBackupCode].
func (e *Engine) Login(ctx context.Context, identifier, pass string) (*LoginResult, error) {
	if e == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	ip := clientIPFromContext(ctx)

	if err := e.loginThrottle.Hit(ctx, throttleKey(identifier, ip)); err != nil {
		if errors.Is(err, ErrThrottled) {
			e.metricInc(MetricLoginThrottled)
			e.emitAudit(ctx, auditEventLoginThrottled, false, "", "", ErrThrottled, func() map[string]string {
				return map[string]string{"identifier": identifier}
			})
			return nil, ErrThrottled
		}
		e.warn("login throttle unavailable")
	}

	if identifier == "" || pass == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": "empty_input"}
		})
		return nil, ErrInvalidCredentials
	}

	account, err := e.findByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Unknown identifiers are indistinguishable from bad passwords.
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"identifier": identifier, "reason": "account_not_found"}
			})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// The identifier lookup ran outside the lock. Reload under it so
	// concurrent attempts observe each other's failure counts.
	account, unlock, err := e.loadAccountLocked(ctx, account.ID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	defer unlock()

	now := e.now()

	// Expired locks lift lazily on the next attempt.
	if account.Lockout.Evaluate(now) {
		e.emitAudit(ctx, auditEventAccountUnlocked, true, account.ID, "", nil, nil)
		if err := e.saveAccount(ctx, account); err != nil {
			return nil, err
		}
	}
	if account.Lockout.Locked {
		e.metricInc(MetricLoginFailure)
		e.recordActivity(account, ActivityEntry{
			Timestamp: now,
			Type:      "login",
			Status:    ActivityBlocked,
			Address:   ip,
			Device:    sessions.ParseUserAgent(userAgentFromContext(ctx)),
		})
		if err := e.saveAccount(ctx, account); err != nil {
			e.warn("activity save failed on locked login")
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, "", ErrAccountLocked, nil)
		return nil, ErrAccountLocked
	}

	if err := e.checkRestrictions(ctx, account, ip, now); err != nil {
		e.metricInc(MetricLoginBlocked)
		e.recordActivity(account, ActivityEntry{
			Timestamp: now,
			Type:      "login",
			Status:    ActivityBlocked,
			Address:   ip,
			Device:    sessions.ParseUserAgent(userAgentFromContext(ctx)),
		})
		if saveErr := e.saveAccount(ctx, account); saveErr != nil {
			e.warn("activity save failed on blocked login")
		}
		e.emitAudit(ctx, auditEventLoginBlocked, false, account.ID, "", err, nil)
		return nil, err
	}

	ok, err := e.hasher.Verify(pass, account.PasswordHash)
	if err != nil || !ok {
		return nil, e.failLogin(ctx, account, ip, now)
	}

	account.Lockout.Reset()

	if e.config.Password.UpgradeOnLogin {
		if needs, err := e.hasher.NeedsRehash(account.PasswordHash); err == nil && needs {
			if upgraded, err := e.hasher.Hash(pass); err == nil {
				account.PasswordHash = upgraded
			} else {
				e.warn("password hash upgrade failed")
			}
		}
	}
	if err := e.loginThrottle.Reset(ctx, throttleKey(identifier, ip)); err != nil {
		e.warn("login throttle reset failed")
	}

	if account.TwoFactor.Enabled {
		flowToken, err := e.tokens.IssueFlow(account.ID, account.AccountType)
		if err != nil {
			return nil, err
		}
		if err := e.saveAccount(ctx, account); err != nil {
			return nil, err
		}
		e.metricInc(MetricTOTPRequired)
		e.emitAudit(ctx, auditEventTOTPRequired, true, account.ID, "", nil, nil)
		return &LoginResult{Token: flowToken, TwoFactorRequired: true, Account: account}, nil
	}

	return e.completeLogin(ctx, account, now)
}

// VerifyLoginTOTP completes a two-factor login with an authenticator
// code. flowToken is the token returned by [Engine.Login]. Each time step
// is accepted once; replaying an already-used code fails even inside the
// skew window.
func (e *Engine) VerifyLoginTOTP(ctx context.Context, flowToken, code string) (*LoginResult, error) {
	accountID, err := e.accountIDFromFlowToken(flowToken)
	if err != nil {
		return nil, err
	}

	if err := e.totpThrottle.Hit(ctx, accountID); err != nil {
		if errors.Is(err, ErrThrottled) {
			e.emitAudit(ctx, auditEventTOTPFailure, false, accountID, "", ErrThrottled, nil)
			return nil, ErrThrottled
		}
		e.warn("totp throttle unavailable")
	}

	account, unlock, err := e.loadAccountLocked(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	defer unlock()

	if !account.TwoFactor.Enabled {
		return nil, ErrTOTPNotConfigured
	}

	now := e.now()
	ok, counter, err := e.totp.VerifyCode(account.TwoFactor.Secret, code, now)
	if err != nil || !ok {
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditEventTOTPFailure, false, account.ID, "", ErrTOTPInvalid, nil)
		return nil, ErrTOTPInvalid
	}
	if counter <= account.TwoFactor.LastUsedCounter {
		e.metricInc(MetricTOTPReplay)
		e.emitAudit(ctx, auditEventTOTPFailure, false, account.ID, "", ErrTOTPInvalid, func() map[string]string {
			return map[string]string{"reason": "replay"}
		})
		return nil, ErrTOTPInvalid
	}
	account.TwoFactor.LastUsedCounter = counter

	if err := e.totpThrottle.Reset(ctx, account.ID); err != nil {
		e.warn("totp throttle reset failed")
	}

	e.metricInc(MetricTOTPSuccess)
	e.emitAudit(ctx, auditEventTOTPSuccess, true, account.ID, "", nil, nil)

	return e.completeLogin(ctx, account, now)
}

// VerifyLoginBackupCode completes a two-factor login with a single-use
// backup code. The code is consumed on success.
func (e *Engine) VerifyLoginBackupCode(ctx context.Context, flowToken, code string) (*LoginResult, error) {
	accountID, err := e.accountIDFromFlowToken(flowToken)
	if err != nil {
		return nil, err
	}

	if err := e.backupThrottle.Hit(ctx, accountID); err != nil {
		if errors.Is(err, ErrThrottled) {
			e.emitAudit(ctx, auditEventBackupCodeFailed, false, accountID, "", ErrThrottled, nil)
			return nil, ErrThrottled
		}
		e.warn("backup code throttle unavailable")
	}

	account, unlock, err := e.loadAccountLocked(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	defer unlock()

	if !account.TwoFactor.Enabled {
		return nil, ErrTOTPNotConfigured
	}

	now := e.now()
	if !consumeBackupCode(account, code, now) {
		e.metricInc(MetricBackupCodeFailed)
		e.emitAudit(ctx, auditEventBackupCodeFailed, false, account.ID, "", ErrBackupCodeInvalid, nil)
		return nil, ErrBackupCodeInvalid
	}

	if err := e.backupThrottle.Reset(ctx, account.ID); err != nil {
		e.warn("backup code throttle reset failed")
	}

	e.metricInc(MetricBackupCodeUsed)
	e.emitAudit(ctx, auditEventBackupCodeUsed, true, account.ID, "", nil, func() map[string]string {
		return map[string]string{"remaining": strconv.Itoa(remainingBackupCodes(account))}
	})

	return e.completeLogin(ctx, account, now)
}

// completeLogin records the session, logs the activity, and issues the
// session token. The caller holds the account lock.
func (e *Engine) completeLogin(ctx context.Context, account *Account, now time.Time) (*LoginResult, error) {
	ip := clientIPFromContext(ctx)
	device := sessions.ParseUserAgent(userAgentFromContext(ctx))

	var location Location
	if e.geo != nil && ip != "" {
		lookupCtx, cancel := context.WithTimeout(ctx, e.config.Geo.LookupTimeout)
		if loc, err := e.geo.Resolve(lookupCtx, ip); err == nil {
			location = loc
		}
		cancel()
	}

	sess := Session{
		ID:         uuid.NewString(),
		Address:    ip,
		DeviceInfo: device,
		Location:   location,
		CreatedAt:  now,
		LastUsed:   now,
	}
	var sessionID string
	account.Sessions, sessionID = sessions.Record(account.Sessions, sess, e.config.Sessions.MaxPerAccount)

	e.recordActivity(account, ActivityEntry{
		Timestamp: now,
		Type:      "login",
		Status:    ActivitySuccess,
		Address:   ip,
		Device:    device,
		Location:  locationLabel(location),
	})

	tokenStr, err := e.tokens.IssueSession(account.ID, account.AccountType, sessionID)
	if err != nil {
		return nil, err
	}

	if err := e.saveAccount(ctx, account); err != nil {
		return nil, err
	}

	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.ID, sessionID, nil, func() map[string]string {
		return map[string]string{"device": device}
	})

	return &LoginResult{Token: tokenStr, SessionID: sessionID, Account: account}, nil
}

// failLogin records a failed password attempt, engaging the lock at the
// configured threshold when the account opted into it. The caller holds
// the account lock.
func (e *Engine) failLogin(ctx context.Context, account *Account, ip string, now time.Time) error {
	locked := false
	if account.Settings.FailedLoginLimit {
		locked = account.Lockout.RecordFailure(now, e.config.Lockout.Threshold, e.config.Lockout.Duration)
	}

	e.recordActivity(account, ActivityEntry{
		Timestamp: now,
		Type:      "login",
		Status:    ActivityFailure,
		Address:   ip,
		Device:    sessions.ParseUserAgent(userAgentFromContext(ctx)),
	})

	if err := e.saveAccount(ctx, account); err != nil {
		e.warn("failed-attempt save failed")
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, "", ErrInvalidCredentials, nil)
	if locked {
		e.metricInc(MetricAccountLocked)
		e.emitAudit(ctx, auditEventAccountLocked, false, account.ID, "", ErrAccountLocked, func() map[string]string {
			return map[string]string{"until": account.Lockout.LockedUntil.UTC().Format(time.RFC3339)}
		})
	}
	return ErrInvalidCredentials
}

func (e *Engine) checkRestrictions(ctx context.Context, account *Account, ip string, now time.Time) error {
	var resolve restrict.ResolveCountry
	if e.geo != nil {
		timeout := e.config.Geo.LookupTimeout
		resolver := e.geo
		resolve = func(ctx context.Context, ip string) (string, error) {
			lookupCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			loc, err := resolver.Resolve(lookupCtx, ip)
			if err != nil {
				return "", err
			}
			return loc.Country, nil
		}
	}

	return restrict.Evaluate(ctx, ip, now,
		account.Settings.IPRestrictions,
		account.Settings.TimeRestrictions,
		account.Settings.GeoRestrictions,
		resolve,
	)
}

func (e *Engine) findByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	if strings.Contains(identifier, "@") {
		account, err := e.repo.FindByEmail(ctx, identifier)
		if err == nil || !errors.Is(err, ErrAccountNotFound) {
			return account, err
		}
	}
	return e.repo.FindByLogin(ctx, identifier)
}

// accountIDFromFlowToken resolves the second-factor continuation token
// to the account it was issued for. The account itself is loaded later,
// under the per-account lock.
func (e *Engine) accountIDFromFlowToken(flowToken string) (string, error) {
	if e == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}
	claims, err := e.tokens.Parse(flowToken)
	if err != nil || claims.SessionID != "" {
		return "", ErrTokenInvalid
	}
	return claims.AccountID, nil
}

func throttleKey(identifier, ip string) string {
	if ip == "" {
		return identifier
	}
	return identifier + "|" + ip
}

func locationLabel(loc Location) string {
	if loc.IsZero() {
		return ""
	}
	if loc.City != "" {
		return loc.City + ", " + loc.Country
	}
	return loc.Country
}
