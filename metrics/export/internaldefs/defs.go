package internaldefs

import (
	"github.com/finboard/secguard"
)

type CounterDef struct {
	ID   secguard.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   secguard.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: secguard.MetricLoginSuccess, Name: "secguard_login_success_total", Help: "Completed logins."},
	{ID: secguard.MetricLoginFailure, Name: "secguard_login_failure_total", Help: "Rejected credential attempts."},
	{ID: secguard.MetricLoginThrottled, Name: "secguard_login_throttled_total", Help: "Logins rejected by the attempt throttle."},
	{ID: secguard.MetricLoginBlocked, Name: "secguard_login_blocked_total", Help: "Logins rejected by access restrictions."},
	{ID: secguard.MetricAccountLocked, Name: "secguard_account_locked_total", Help: "Accounts locked after repeated failures."},
	{ID: secguard.MetricTOTPRequired, Name: "secguard_totp_required_total", Help: "Logins deferred to a second factor."},
	{ID: secguard.MetricTOTPSuccess, Name: "secguard_totp_success_total", Help: "Successful TOTP verifications."},
	{ID: secguard.MetricTOTPFailure, Name: "secguard_totp_failure_total", Help: "Failed TOTP verifications."},
	{ID: secguard.MetricTOTPReplay, Name: "secguard_totp_replay_total", Help: "TOTP codes rejected as already used."},
	{ID: secguard.MetricBackupCodeUsed, Name: "secguard_backup_code_used_total", Help: "Successful backup-code redemptions."},
	{ID: secguard.MetricBackupCodeFailed, Name: "secguard_backup_code_failed_total", Help: "Failed backup-code redemptions."},
	{ID: secguard.MetricBackupCodeRegenerated, Name: "secguard_backup_code_regenerated_total", Help: "Backup-code regeneration operations."},
	{ID: secguard.MetricPasswordChangeSuccess, Name: "secguard_password_change_success_total", Help: "Successful password changes."},
	{ID: secguard.MetricPasswordChangeInvalidOld, Name: "secguard_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: secguard.MetricPasswordChangeReuseRejected, Name: "secguard_password_change_reuse_rejected_total", Help: "Password changes rejected for reuse."},
	{ID: secguard.MetricSessionCreated, Name: "secguard_session_created_total", Help: "Created sessions."},
	{ID: secguard.MetricSessionTerminated, Name: "secguard_session_terminated_total", Help: "Terminated sessions."},
	{ID: secguard.MetricSettingsUpdated, Name: "secguard_settings_updated_total", Help: "Security settings updates."},
}

var HistogramDefs = []HistogramDef{
	{ID: secguard.MetricValidateLatency, Name: "secguard_validate_latency_seconds", Help: "Token validation latency histogram."},
}

var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
