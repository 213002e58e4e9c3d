package secguard

import (
	"errors"

	"github.com/finboard/secguard/internal/limiters"
	"github.com/finboard/secguard/internal/restrict"
)

var (
	// ErrInvalidCredentials rejects a login whose identifier or password is
	// wrong. Unknown accounts return the same error so callers cannot tell
	// which identifiers exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked rejects a login while the failed-attempt lock holds.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountNotFound is returned by account-management operations that
	// take an authenticated account identifier.
	ErrAccountNotFound = errors.New("account not found")

	// ErrIPNotAllowed rejects a login from an address outside the allowlist.
	ErrIPNotAllowed = restrict.ErrIPNotAllowed
	// ErrOutsideAllowedTime rejects a login outside the configured window.
	ErrOutsideAllowedTime = restrict.ErrOutsideAllowedTime
	// ErrGeoNotAllowed rejects a login from a country outside the allowlist.
	ErrGeoNotAllowed = restrict.ErrGeoNotAllowed

	// ErrThrottled rejects an attempt that exceeded the redis throttle.
	ErrThrottled = limiters.ErrThrottled

	// ErrTOTPRequired signals that the login needs a second factor before a
	// session is issued.
	ErrTOTPRequired = errors.New("totp required")
	// ErrTOTPInvalid rejects a wrong or replayed TOTP code.
	ErrTOTPInvalid = errors.New("invalid totp code")
	// ErrTOTPNotConfigured is returned by second-factor operations on an
	// account without an enabled authenticator.
	ErrTOTPNotConfigured = errors.New("totp not configured")
	// ErrTOTPAlreadyEnabled rejects provisioning over an active authenticator.
	ErrTOTPAlreadyEnabled = errors.New("totp already enabled")
	// ErrTOTPSetupPending is returned when a confirmation is required before
	// the authenticator becomes active.
	ErrTOTPSetupPending = errors.New("totp setup not confirmed")
	// ErrBackupCodeInvalid rejects an unknown or already-used backup code.
	ErrBackupCodeInvalid = errors.New("invalid backup code")

	// ErrInvalidCurrentPassword rejects a password change whose current
	// password is wrong. The caller is already authenticated, so this is
	// distinct from ErrInvalidCredentials.
	ErrInvalidCurrentPassword = errors.New("current password does not match")
	// ErrPasswordPolicy rejects a new password that fails validation.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReused rejects a new password matching the current one or
	// any password in the retained history.
	ErrPasswordReused = errors.New("password was used recently")

	// ErrSessionNotFound is returned for session operations naming an
	// unknown session identifier.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTokenInvalid rejects a malformed, expired, or forged token, and
	// tokens whose session has been terminated.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrInvalidSettings rejects a security settings update that fails
	// validation.
	ErrInvalidSettings = errors.New("invalid security settings")

	// ErrStoreUnavailable wraps failures of the account store backend.
	ErrStoreUnavailable = errors.New("account store unavailable")
	// ErrEngineNotReady is returned when the engine was not built correctly.
	ErrEngineNotReady = errors.New("engine not initialized")
)
