package secguard

import "context"

// Report summarizes the account's security posture for dashboard display.
func (e *Engine) Report(ctx context.Context, accountID string) (*SecurityReport, error) {
	account, unlock, err := e.loadAccountLocked(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := e.now()
	if account.Lockout.Evaluate(now) {
		if err := e.saveAccount(ctx, account); err != nil {
			return nil, err
		}
	}

	report := &SecurityReport{
		AccountID:          account.ID,
		TwoFactorEnabled:   account.TwoFactor.Enabled,
		FailedLoginLimit:   account.Settings.FailedLoginLimit,
		Locked:             account.Lockout.Locked,
		IPRestricted:       account.Settings.IPRestrictions.Enabled,
		TimeRestricted:     account.Settings.TimeRestrictions.Enabled,
		GeoRestricted:      account.Settings.GeoRestrictions.Enabled,
		ActivityLogging:    account.Settings.ActivityLogging.Enabled,
		ActiveSessions:     len(account.Sessions),
		LastPasswordChange: account.LastPasswordChange,
	}
	if account.TwoFactor.Enabled {
		report.BackupCodesLeft = remainingBackupCodes(account)
	}
	if !account.LastPasswordChange.IsZero() {
		report.PasswordAgeDays = int(now.Sub(account.LastPasswordChange).Hours() / 24)
	}
	return report, nil
}
