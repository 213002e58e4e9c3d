package secguard

import (
	"context"
	"errors"

	internalaudit "github.com/finboard/secguard/internal/audit"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginThrottled        = "login_throttled"
	auditEventLoginBlocked          = "login_blocked"
	auditEventAccountLocked         = "account_locked"
	auditEventAccountUnlocked       = "account_unlocked"
	auditEventTOTPRequired          = "totp_required"
	auditEventTOTPSuccess           = "totp_success"
	auditEventTOTPFailure           = "totp_failure"
	auditEventTOTPSetupRequested    = "totp_setup_requested"
	auditEventTOTPEnabled           = "totp_enabled"
	auditEventTOTPDisabled          = "totp_disabled"
	auditEventBackupCodeUsed        = "backup_code_used"
	auditEventBackupCodeFailed      = "backup_code_failed"
	auditEventBackupCodesGenerated  = "backup_codes_generated"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeFailure = "password_change_failure"
	auditEventSessionTerminated     = "session_terminated"
	auditEventSessionsCleared       = "sessions_cleared"
	auditEventSettingsUpdated       = "settings_updated"
)

// AuditErrorCode is the normalized error label carried on audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountNotFound    AuditErrorCode = "account_not_found"
	auditErrThrottled          AuditErrorCode = "throttled"
	auditErrIPNotAllowed       AuditErrorCode = "ip_not_allowed"
	auditErrOutsideTime        AuditErrorCode = "outside_allowed_time"
	auditErrGeoNotAllowed      AuditErrorCode = "geo_not_allowed"
	auditErrTOTPRequired       AuditErrorCode = "totp_required"
	auditErrTOTPInvalid        AuditErrorCode = "totp_invalid"
	auditErrBackupCodeInvalid  AuditErrorCode = "backup_code_invalid"
	auditErrInvalidCurrentPass AuditErrorCode = "invalid_current_password"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrPasswordReused     AuditErrorCode = "password_reused"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrTokenInvalid       AuditErrorCode = "invalid_token"
	auditErrInvalidSettings    AuditErrorCode = "invalid_settings"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *internalaudit.Dispatcher {
	return internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink)
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrThrottled):
		return auditErrThrottled
	case errors.Is(err, ErrIPNotAllowed):
		return auditErrIPNotAllowed
	case errors.Is(err, ErrOutsideAllowedTime):
		return auditErrOutsideTime
	case errors.Is(err, ErrGeoNotAllowed):
		return auditErrGeoNotAllowed
	case errors.Is(err, ErrTOTPRequired):
		return auditErrTOTPRequired
	case errors.Is(err, ErrTOTPInvalid),
		errors.Is(err, ErrTOTPNotConfigured),
		errors.Is(err, ErrTOTPAlreadyEnabled),
		errors.Is(err, ErrTOTPSetupPending):
		return auditErrTOTPInvalid
	case errors.Is(err, ErrBackupCodeInvalid):
		return auditErrBackupCodeInvalid
	case errors.Is(err, ErrInvalidCurrentPassword):
		return auditErrInvalidCurrentPass
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReused):
		return auditErrPasswordReused
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrTokenInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrInvalidSettings):
		return auditErrInvalidSettings
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
