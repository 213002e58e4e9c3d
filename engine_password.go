package secguard

import (
	"context"

	"github.com/finboard/secguard/internal/sessions"
)

// ChangePassword replaces the account password after verifying the
// current one. The new password is rejected when it matches the current
// password or any of the retained previous hashes. On success the old
// hash joins the history and every session except the current one is
// terminated.
func (e *Engine) ChangePassword(ctx context.Context, accountID, currentSessionID, oldPassword, newPassword string) error {
	if e == nil || e.hasher == nil {
		return ErrEngineNotReady
	}
	if accountID == "" || oldPassword == "" || newPassword == "" {
		return ErrPasswordPolicy
	}

	account, unlock, err := e.loadAccountLocked(ctx, accountID)
	if err != nil {
		return err
	}
	defer unlock()

	oldOK, err := e.hasher.Verify(oldPassword, account.PasswordHash)
	if err != nil || !oldOK {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, accountID, "", ErrInvalidCurrentPassword, func() map[string]string {
			return map[string]string{"reason": "invalid_old_password"}
		})
		return ErrInvalidCurrentPassword
	}

	if reused, err := e.passwordReused(newPassword, account); err != nil {
		return err
	} else if reused {
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, accountID, "", ErrPasswordReused, nil)
		return ErrPasswordReused
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, accountID, "", ErrPasswordPolicy, nil)
		return ErrPasswordPolicy
	}
	now := e.now()
	account.PasswordHistory = pushHistory(account.PasswordHistory, account.PasswordHash, e.config.Password.HistorySize)
	account.PasswordHash = newHash
	account.LastPasswordChange = now

	// Other devices must re-authenticate with the new password.
	if currentSessionID != "" {
		account.Sessions, _ = sessions.KeepOnly(account.Sessions, currentSessionID)
	} else {
		account.Sessions = nil
	}

	e.recordActivity(account, ActivityEntry{
		Timestamp: now,
		Type:      "password_change",
		Status:    ActivitySuccess,
		Address:   clientIPFromContext(ctx),
		Device:    sessions.ParseUserAgent(userAgentFromContext(ctx)),
	})

	if err := e.saveAccount(ctx, account); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, accountID, currentSessionID, nil, nil)
	return nil
}

// passwordReused checks the candidate against the current hash and the
// retained history.
func (e *Engine) passwordReused(candidate string, account *Account) (bool, error) {
	same, err := e.hasher.Verify(candidate, account.PasswordHash)
	if err != nil {
		return false, err
	}
	if same {
		return true, nil
	}
	for _, prior := range account.PasswordHistory {
		match, err := e.hasher.Verify(candidate, prior)
		if err != nil {
			// A hash that no longer parses cannot match; skip it.
			continue
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

// pushHistory prepends a hash and trims to max, newest first.
func pushHistory(history []string, hash string, max int) []string {
	if max <= 0 || hash == "" {
		return history
	}
	history = append([]string{hash}, history...)
	if len(history) > max {
		history = history[:max]
	}
	return history
}
