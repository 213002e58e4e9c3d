package secguard

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/finboard/secguard/internal/limiters"
	"github.com/finboard/secguard/password"
	"github.com/finboard/secguard/token"
)

// Builder assembles an [Engine]. A repository is required; redis and the
// geo resolver are optional and enable throttling and country
// restrictions respectively.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	repo      AccountRepository
	geo       GeoResolver
	auditSink AuditSink

	built bool
}

// New returns a builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis attaches the redis client used by the attempt throttles.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRepository attaches the account store.
func (b *Builder) WithRepository(repo AccountRepository) *Builder {
	b.repo = repo
	return b
}

// WithGeoResolver attaches the geolocation resolver used by country
// restrictions and session location labels.
func (b *Builder) WithGeoResolver(resolver GeoResolver) *Builder {
	b.geo = resolver
	return b
}

// WithAuditSink attaches the sink receiving security events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the token validation latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. The builder is
// single-use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.repo == nil {
		return nil, errors.New("account repository required")
	}

	engine := &Engine{
		config: cfg,
		repo:   b.repo,
		geo:    b.geo,
		locks:  newAccountLocks(),
	}

	hasher, err := password.NewHasher(cfg.passwordConfig())
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher

	tokens, err := token.NewManager(cfg.tokenConfig())
	if err != nil {
		return nil, err
	}
	engine.tokens = tokens

	engine.totp = newTOTPManager(cfg.TOTP)
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	if b.redis != nil {
		engine.loginThrottle = limiters.NewAttemptThrottle(b.redis, "sgl:", limiters.Config{
			Enabled:  cfg.Throttle.Login.Enabled,
			Max:      cfg.Throttle.Login.Max,
			Cooldown: cfg.Throttle.Login.Cooldown,
		})
		engine.totpThrottle = limiters.NewAttemptThrottle(b.redis, "sgt:", limiters.Config{
			Enabled:  cfg.Throttle.TOTP.Enabled,
			Max:      cfg.Throttle.TOTP.Max,
			Cooldown: cfg.Throttle.TOTP.Cooldown,
		})
		engine.backupThrottle = limiters.NewAttemptThrottle(b.redis, "sgb:", limiters.Config{
			Enabled:  cfg.Throttle.BackupCode.Enabled,
			Max:      cfg.Throttle.BackupCode.Max,
			Cooldown: cfg.Throttle.BackupCode.Cooldown,
		})
	}

	b.built = true

	return engine, nil
}
