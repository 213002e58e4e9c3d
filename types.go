package secguard

import (
	"context"
	"io"
	"time"

	"github.com/finboard/secguard/geoip"
	internalactivity "github.com/finboard/secguard/internal/activity"
	internalaudit "github.com/finboard/secguard/internal/audit"
	"github.com/finboard/secguard/internal/lockout"
	"github.com/finboard/secguard/internal/restrict"
	internalsessions "github.com/finboard/secguard/internal/sessions"
)

// Account is the security-relevant state of one dashboard account. Stores
// persist it as a single record; the engine mutates it under a per-account
// lock and saves with a version check.
type Account struct {
	ID          string `json:"id" bson:"_id"`
	Email       string `json:"email" bson:"email"`
	Login       string `json:"login" bson:"login"`
	AccountType string `json:"accountType" bson:"accountType"`

	PasswordHash string `json:"-" bson:"passwordHash"`
	// PasswordHistory keeps prior password hashes newest first, capped at
	// PasswordHistorySize. The current hash is not in the history.
	PasswordHistory    []string  `json:"-" bson:"passwordHistory,omitempty"`
	LastPasswordChange time.Time `json:"lastPasswordChange,omitempty" bson:"lastPasswordChange,omitempty"`

	TwoFactor TwoFactorState   `json:"twoFactor" bson:"twoFactor"`
	Settings  SecuritySettings `json:"settings" bson:"settings"`
	Lockout   LockoutState     `json:"lockout" bson:"lockout"`
	Sessions  []Session        `json:"sessions,omitempty" bson:"sessions,omitempty"`
	Activity  []ActivityEntry  `json:"-" bson:"activity,omitempty"`

	// Version increments on every save; stores reject concurrent writers
	// whose copy is stale.
	Version uint64 `json:"-" bson:"version"`
}

// PasswordHistorySize is how many prior password hashes are retained for
// the reuse check.
const PasswordHistorySize = 5

// SecuritySettings is the per-account security configuration shown on the
// dashboard's security page.
type SecuritySettings struct {
	LoginNotifications bool `json:"loginNotifications" bson:"loginNotifications"`
	// FailedLoginLimit enables the failed-attempt counter and timed lockout.
	FailedLoginLimit bool                `json:"failedLoginLimit" bson:"failedLoginLimit"`
	IPRestrictions   IPRestrictions      `json:"ipRestrictions" bson:"ipRestrictions"`
	TimeRestrictions TimeRestrictions    `json:"timeRestrictions" bson:"timeRestrictions"`
	GeoRestrictions  GeoRestrictions     `json:"geoRestrictions" bson:"geoRestrictions"`
	ActivityLogging  ActivityLogSettings `json:"activityLogging" bson:"activityLogging"`
}

// IPRestrictions allowlists source addresses and CIDR ranges.
type IPRestrictions = restrict.IPSettings

// TimeRestrictions confines logins to a daily window.
type TimeRestrictions = restrict.TimeSettings

// GeoRestrictions allowlists login countries.
type GeoRestrictions = restrict.GeoSettings

// ActivityLogSettings controls the per-account activity log.
type ActivityLogSettings = internalactivity.Settings

// ActivityEntry is one recorded event on an account.
type ActivityEntry = internalactivity.Entry

// ActivityStatus is the outcome recorded on an entry.
type ActivityStatus = internalactivity.Status

// ActivityLevel selects how much detail entries carry.
type ActivityLevel = internalactivity.Level

const (
	ActivityLevelBasic    = internalactivity.LevelBasic
	ActivityLevelStandard = internalactivity.LevelStandard
	ActivityLevelDetailed = internalactivity.LevelDetailed
	ActivityLevelDebug    = internalactivity.LevelDebug

	ActivitySuccess = internalactivity.StatusSuccess
	ActivityFailure = internalactivity.StatusFailure
	ActivityBlocked = internalactivity.StatusBlocked
)

// LockoutState tracks failed attempts and the timed lock.
type LockoutState = lockout.State

// Session is one tracked device entry on an account.
type Session = internalsessions.Session

// SessionListCap bounds the per-account session list.
const SessionListCap = internalsessions.DefaultCap

// Location is a resolved geolocation.
type Location = geoip.Location

// GeoResolver maps source addresses to locations.
type GeoResolver = geoip.Resolver

// TwoFactorState holds the authenticator secret and backup codes. A secret
// with Enabled false is a pending setup awaiting confirmation.
type TwoFactorState struct {
	Enabled bool   `json:"enabled" bson:"enabled"`
	Secret  []byte `json:"-" bson:"secret,omitempty"`
	// LastUsedCounter is the highest accepted TOTP time step. Codes at or
	// below it are replays.
	LastUsedCounter int64        `json:"-" bson:"lastUsedCounter,omitempty"`
	BackupCodes     []BackupCode `json:"-" bson:"backupCodes,omitempty"`
	EnabledAt       time.Time    `json:"enabledAt,omitempty" bson:"enabledAt,omitempty"`
}

// Pending reports whether a provisioned secret awaits confirmation.
func (s TwoFactorState) Pending() bool {
	return !s.Enabled && len(s.Secret) > 0
}

// BackupCode stores the hash of one single-use recovery code. The
// plaintext is shown once at generation and never persisted.
type BackupCode struct {
	Hash   [32]byte  `json:"-" bson:"hash"`
	Used   bool      `json:"used" bson:"used"`
	UsedAt time.Time `json:"usedAt,omitempty" bson:"usedAt,omitempty"`
}

// AccountRepository is the persistence interface callers implement to
// integrate the engine with their account database. FindByEmail and
// FindByLogin return ErrAccountNotFound for unknown identifiers. Save
// must reject records whose Version is stale.
type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByLogin(ctx context.Context, login string) (*Account, error)
	Save(ctx context.Context, account *Account) error
}

// LoginResult is returned by [Engine.Login] and the second-factor
// verification operations. When TwoFactorRequired is set, Token carries a
// short-lived flow token and the login must be completed with a TOTP or
// backup code.
type LoginResult struct {
	Token             string
	SessionID         string
	TwoFactorRequired bool
	Account           *Account
}

// TOTPProvision holds the raw secret and otpauth:// URI returned by
// [Engine.ProvisionTOTP] for QR display. The setup stays inactive until
// confirmed with a valid code.
type TOTPProvision struct {
	Secret string
	URI    string
}

// TokenClaims is returned by [Engine.ValidateToken].
type TokenClaims struct {
	AccountID   string
	AccountType string
	SessionID   string
}

// SecurityReport is a read-only snapshot of one account's security
// posture, returned by [Engine.SecurityReport].
type SecurityReport struct {
	AccountID          string
	TwoFactorEnabled   bool
	BackupCodesLeft    int
	FailedLoginLimit   bool
	Locked             bool
	IPRestricted       bool
	TimeRestricted     bool
	GeoRestricted      bool
	ActivityLogging    bool
	ActiveSessions     int
	LastPasswordChange time.Time
	PasswordAgeDays    int
}

// AuditEvent is a structured security event emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
