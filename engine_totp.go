package secguard

import (
	"context"

	"github.com/finboard/secguard/internal/sessions"
)

// ProvisionTOTP generates a fresh authenticator secret for the account
// and returns it with the otpauth:// URI for QR display. The secret stays
// pending until [Engine.ConfirmTOTPSetup] proves the authenticator with a
// valid code; provisioning again before that replaces the pending secret.
func (e *Engine) ProvisionTOTP(ctx context.Context, accountID string) (*TOTPProvision, error) {
	if e == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}

	account, unlock, err := e.loadAccountLocked(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if account.TwoFactor.Enabled {
		return nil, ErrTOTPAlreadyEnabled
	}

	raw, encoded, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	account.TwoFactor = TwoFactorState{Secret: raw}
	if err := e.saveAccount(ctx, account); err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventTOTPSetupRequested, true, accountID, "", nil, nil)

	return &TOTPProvision{
		Secret: encoded,
		URI:    e.totp.ProvisionURI(encoded, account.Email),
	}, nil
}

// ConfirmTOTPSetup activates a pending authenticator once the account
// proves possession with a current code. On success the second factor is
// enabled and a fresh set of backup codes is generated and returned in
// plaintext; this is the only time they are visible.
func (e *Engine) ConfirmTOTPSetup(ctx context.Context, accountID, code string) ([]string, error) {
	if e == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}

	account, unlock, err := e.loadAccountLocked(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if account.TwoFactor.Enabled {
		return nil, ErrTOTPAlreadyEnabled
	}
	if !account.TwoFactor.Pending() {
		return nil, ErrTOTPNotConfigured
	}

	now := e.now()
	ok, counter, err := e.totp.VerifyCode(account.TwoFactor.Secret, code, now)
	if err != nil || !ok {
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditEventTOTPFailure, false, accountID, "", ErrTOTPInvalid, func() map[string]string {
			return map[string]string{"phase": "setup"}
		})
		return nil, ErrTOTPInvalid
	}

	codes, records, err := newBackupCodeSet(account.ID, e.config.BackupCodes)
	if err != nil {
		return nil, err
	}

	account.TwoFactor.Enabled = true
	account.TwoFactor.EnabledAt = now
	account.TwoFactor.LastUsedCounter = counter
	account.TwoFactor.BackupCodes = records

	e.recordActivity(account, ActivityEntry{
		Timestamp: now,
		Type:      "totp_enabled",
		Status:    ActivitySuccess,
		Address:   clientIPFromContext(ctx),
		Device:    sessions.ParseUserAgent(userAgentFromContext(ctx)),
	})

	if err := e.saveAccount(ctx, account); err != nil {
		return nil, err
	}

	e.metricInc(MetricTOTPSuccess)
	e.emitAudit(ctx, auditEventTOTPEnabled, true, accountID, "", nil, nil)
	return codes, nil
}

// DisableTOTP turns off the second factor after verifying a current
// authenticator code. The secret and every backup code are discarded.
func (e *Engine) DisableTOTP(ctx context.Context, accountID, code string) error {
	if e == nil || e.totp == nil {
		return ErrEngineNotReady
	}

	account, unlock, err := e.loadAccountLocked(ctx, accountID)
	if err != nil {
		return err
	}
	defer unlock()

	if !account.TwoFactor.Enabled {
		// A pending setup can be abandoned without a code.
		if account.TwoFactor.Pending() {
			account.TwoFactor = TwoFactorState{}
			return e.saveAccount(ctx, account)
		}
		return ErrTOTPNotConfigured
	}

	if err := e.verifySecondFactor(account, code); err != nil {
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditEventTOTPFailure, false, accountID, "", err, func() map[string]string {
			return map[string]string{"phase": "disable"}
		})
		return err
	}

	now := e.now()
	account.TwoFactor = TwoFactorState{}
	e.recordActivity(account, ActivityEntry{
		Timestamp: now,
		Type:      "totp_disabled",
		Status:    ActivitySuccess,
		Address:   clientIPFromContext(ctx),
		Device:    sessions.ParseUserAgent(userAgentFromContext(ctx)),
	})

	if err := e.saveAccount(ctx, account); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventTOTPDisabled, true, accountID, "", nil, nil)
	return nil
}

// verifySecondFactor accepts a current TOTP code, consuming its time step
// for replay protection. The caller holds the account lock.
func (e *Engine) verifySecondFactor(account *Account, code string) error {
	ok, counter, err := e.totp.VerifyCode(account.TwoFactor.Secret, code, e.now())
	if err != nil || !ok {
		return ErrTOTPInvalid
	}
	if counter <= account.TwoFactor.LastUsedCounter {
		return ErrTOTPInvalid
	}
	account.TwoFactor.LastUsedCounter = counter
	return nil
}
