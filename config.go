package secguard

import (
	"errors"
	"time"

	"github.com/finboard/secguard/password"
	"github.com/finboard/secguard/token"
)

// Config holds every tunable of the engine. Zero values are filled in from
// DefaultConfig by the builder; a Config is treated as immutable once the
// engine is built.
type Config struct {
	Token       TokenConfig
	Password    PasswordConfig
	Lockout     LockoutConfig
	TOTP        TOTPConfig
	BackupCodes BackupCodesConfig
	Sessions    SessionsConfig
	Activity    ActivityConfig
	Throttle    ThrottleConfig
	Geo         GeoConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures bearer token signing.
type TokenConfig struct {
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	SessionTTL    time.Duration
	FlowTTL       time.Duration
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures argon2id hashing and the reuse history.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	HistorySize    int
	UpgradeOnLogin bool
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig configures the failed-login lock. The lock applies only to
// accounts whose settings enable FailedLoginLimit.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig configures the authenticator second factor.
type TOTPConfig struct {
	Issuer     string
	Digits     int
	Period     int // seconds
	Algorithm  string
	Skew       int // accepted steps either side of now
	SecretSize int // bytes
}

// BackupCodesConfig configures the single-use recovery codes.
type BackupCodesConfig struct {
	Count  int
	Length int // hex characters per code
}

/*
====================================
SESSIONS CONFIG
====================================
*/

// SessionsConfig bounds the per-account session list.
type SessionsConfig struct {
	MaxPerAccount int
}

/*
====================================
ACTIVITY CONFIG
====================================
*/

// ActivityConfig holds engine-wide activity log bounds. Per-account
// settings choose level and retention within these.
type ActivityConfig struct {
	MaxEntries           int
	DefaultLevel         ActivityLevel
	DefaultRetentionDays int
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig configures the redis attempt throttles. All throttles
// require a redis client on the builder; without one they are skipped.
type ThrottleConfig struct {
	Login      ThrottleBudget
	TOTP       ThrottleBudget
	BackupCode ThrottleBudget
}

// ThrottleBudget is one throttle's attempt budget.
type ThrottleBudget struct {
	Enabled  bool
	Max      int
	Cooldown time.Duration
}

/*
====================================
GEO CONFIG
====================================
*/

// GeoConfig bounds geolocation lookups during login.
type GeoConfig struct {
	LookupTimeout time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns the baseline configuration. Callers override what
// they need and pass the result to the builder.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: "ed25519",
			SessionTTL:    7 * 24 * time.Hour,
			FlowTTL:       24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			HistorySize:    PasswordHistorySize,
			UpgradeOnLogin: true,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  30 * time.Minute,
		},
		TOTP: TOTPConfig{
			Issuer:     "secguard",
			Digits:     6,
			Period:     30,
			Algorithm:  "SHA1",
			Skew:       1,
			SecretSize: 20,
		},
		BackupCodes: BackupCodesConfig{
			Count:  8,
			Length: 16,
		},
		Sessions: SessionsConfig{
			MaxPerAccount: SessionListCap,
		},
		Activity: ActivityConfig{
			MaxEntries:           500,
			DefaultLevel:         ActivityLevelStandard,
			DefaultRetentionDays: 90,
		},
		Throttle: ThrottleConfig{
			Login:      ThrottleBudget{Enabled: true, Max: 20, Cooldown: 15 * time.Minute},
			TOTP:       ThrottleBudget{Enabled: true, Max: 10, Cooldown: 10 * time.Minute},
			BackupCode: ThrottleBudget{Enabled: true, Max: 5, Cooldown: 10 * time.Minute},
		},
		Geo: GeoConfig{
			LookupTimeout: 2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	// Token
	if c.Token.SigningMethod != "ed25519" && c.Token.SigningMethod != "hs256" {
		return errors.New("unsupported token signing method")
	}
	if len(c.Token.PrivateKey) == 0 {
		return errors.New("token signing requires PrivateKey")
	}
	if c.Token.SessionTTL <= 0 {
		return errors.New("Token SessionTTL must be > 0")
	}
	if c.Token.FlowTTL <= 0 {
		return errors.New("Token FlowTTL must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.HistorySize < 0 {
		return errors.New("Password HistorySize must be >= 0")
	}

	// Lockout
	if c.Lockout.Threshold < 1 {
		return errors.New("Lockout Threshold must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// TOTP
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return errors.New("TOTP Digits must be between 6 and 8")
	}
	if c.TOTP.Period < 15 {
		return errors.New("TOTP Period must be >= 15 seconds")
	}
	switch c.TOTP.Algorithm {
	case "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("TOTP Algorithm must be SHA1, SHA256, or SHA512")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("TOTP Skew must be between 0 and 2")
	}
	if c.TOTP.SecretSize < 16 {
		return errors.New("TOTP SecretSize must be >= 16 bytes")
	}

	// Backup codes
	if c.BackupCodes.Count < 1 {
		return errors.New("BackupCodes Count must be >= 1")
	}
	if c.BackupCodes.Length < 8 || c.BackupCodes.Length%4 != 0 {
		return errors.New("BackupCodes Length must be >= 8 and a multiple of 4")
	}

	// Sessions
	if c.Sessions.MaxPerAccount < 1 {
		return errors.New("Sessions MaxPerAccount must be >= 1")
	}

	// Activity
	if c.Activity.MaxEntries < 1 {
		return errors.New("Activity MaxEntries must be >= 1")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

func (c *Config) passwordConfig() password.Config {
	return password.Config{
		Memory:      c.Password.Memory,
		Time:        c.Password.Time,
		Parallelism: c.Password.Parallelism,
		SaltLength:  c.Password.SaltLength,
		KeyLength:   c.Password.KeyLength,
		MinLength:   c.Password.MinLength,
	}
}

func (c *Config) tokenConfig() token.Config {
	return token.Config{
		SigningMethod: token.SigningMethod(c.Token.SigningMethod),
		PrivateKey:    c.Token.PrivateKey,
		PublicKey:     c.Token.PublicKey,
		Issuer:        c.Token.Issuer,
		SessionTTL:    c.Token.SessionTTL,
		FlowTTL:       c.Token.FlowTTL,
		Leeway:        c.Token.Leeway,
	}
}
