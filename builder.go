package marketauth

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	internalaudit "github.com/Agossa1/marketauth/internal/audit"
	"github.com/Agossa1/marketauth/internal/flows"
	"github.com/Agossa1/marketauth/internal/limiters"
	internalmetrics "github.com/Agossa1/marketauth/internal/metrics"
	"github.com/Agossa1/marketauth/otp"
	"github.com/Agossa1/marketauth/password"
	"github.com/Agossa1/marketauth/token"
)

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config    Config
	store     CredentialStore
	notifier  Notifier
	redis     redis.UniversalClient
	logger    *zap.Logger
	auditSink AuditSink
	keys      *token.KeyProvider
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithCredentialStore sets the user and code persistence. Required.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithNotifier sets the code delivery channel. Required when any code flow
// is enabled.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithRedis enables the Redis grant ledger and request throttling. Without
// it grants are tracked in process memory and requests are not throttled.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit destination. It takes effect when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithKeyProvider overrides the key source derived from Config.Token.
func (b *Builder) WithKeyProvider(keys *token.KeyProvider) *Builder {
	b.keys = keys
	return b
}

// WithClock replaces time.Now for every time decision of the Engine.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if b.notifier == nil && (cfg.PasswordReset.Enabled || cfg.EmailVerification.Enabled || cfg.PhoneVerification.Enabled) {
		return nil, ErrNotifierRequired
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	// -------- TOKENS --------
	keys := b.keys
	if keys == nil {
		keys = token.NewKeyProvider(token.KeyConfig{Key: cfg.Token.Key, KeyFile: cfg.Token.KeyFile})
	}
	tokens, err := token.NewService(keys, token.Config{
		Issuer:              cfg.Token.Issuer,
		Audience:            cfg.Token.Audience,
		AccessTTL:           cfg.Token.AccessTTL,
		RememberMeAccessTTL: cfg.Token.RememberMeAccessTTL,
		RefreshTTL:          cfg.Token.RefreshTTL,
		GrantTTL:            cfg.Token.GrantTTL,
		Leeway:              cfg.Token.Leeway,
		Now:                 clock,
	})
	if err != nil {
		return nil, err
	}

	var ledger token.GrantLedger
	if b.redis != nil {
		ledger = token.NewRedisLedger(b.redis, cfg.Token.RedisPrefix)
	} else {
		mem, err := token.NewMemoryLedger(cfg.Token.LedgerSize)
		if err != nil {
			return nil, err
		}
		ledger = mem
	}

	// -------- CODES AND PASSWORDS --------
	codes, err := otp.NewManager(b.store, otp.Config{
		Digits: cfg.OTP.Digits,
		TTL:    cfg.OTP.TTL,
		Now:    clock,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	}, password.Policy{
		MinLength: cfg.Password.MinLength,
		MaxLength: cfg.Password.MaxLength,
	}, cfg.Password.AcceptBcrypt)
	if err != nil {
		return nil, err
	}

	// -------- THROTTLING --------
	limiter, err := limiters.NewRequestLimiter(b.redis, limiters.RequestConfig{
		EnableIdentifierThrottle: cfg.RequestLimits.EnableIdentifierThrottle,
		EnableIPThrottle:         cfg.RequestLimits.EnableIPThrottle,
		Window:                   cfg.RequestLimits.Window,
		MaxRequests:              cfg.RequestLimits.MaxRequests,
		Prefix:                   cfg.RequestLimits.RedisPrefix,
	})
	if err != nil {
		return nil, err
	}

	// -------- OBSERVABILITY --------
	sink := b.auditSink
	if sink == nil && cfg.Audit.Enabled {
		sink = internalaudit.NewZapSink(logger)
		if cfg.Audit.Stream != "" && b.redis != nil {
			sink = internalaudit.MultiSink{
				sink,
				internalaudit.NewRedisStreamSink(b.redis, cfg.Audit.Stream, cfg.Audit.StreamMaxLen, logger),
			}
		}
	}

	e := &Engine{
		config:  cfg,
		store:   b.store,
		tokens:  tokens,
		keys:    keys,
		ledger:  ledger,
		otp:     codes,
		hasher:  hasher,
		logger:  logger,
		clock:   clock,
		metrics: internalmetrics.New(internalmetrics.Config{Enabled: cfg.Metrics.Enabled, EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms}),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:     cfg.Audit.Enabled,
			BufferSize:  cfg.Audit.BufferSize,
			DropIfFull:  cfg.Audit.DropIfFull,
			SinkTimeout: cfg.Audit.SinkTimeout,
		}, sink),
	}

	e.flowDeps = flows.Deps{
		Login: flows.LoginPolicy{
			MaxAttempts:          cfg.Lockout.MaxAttempts,
			LockoutDuration:      cfg.Lockout.Duration,
			RequireVerifiedEmail: cfg.Lockout.RequireVerifiedEmail,
			UpgradeHashOnLogin:   cfg.Password.UpgradeOnLogin,
		},
		Reset: flows.ResetPolicy{
			Enabled:              cfg.PasswordReset.Enabled,
			CodeTTL:              cfg.PasswordReset.CodeTTL,
			GrantTTL:             cfg.PasswordReset.GrantTTL,
			RequireVerifiedEmail: cfg.PasswordReset.RequireVerifiedEmail,
			EnumerationDelay:     cfg.PasswordReset.EnumerationDelay,
		},
		Verification: flows.VerificationPolicy{
			EmailEnabled:     cfg.EmailVerification.Enabled,
			PhoneEnabled:     cfg.PhoneVerification.Enabled,
			CodeTTL:          cfg.EmailVerification.CodeTTL,
			PhoneCodeTTL:     cfg.PhoneVerification.CodeTTL,
			LinkBaseURL:      cfg.EmailVerification.LinkBaseURL,
			LinkTTL:          cfg.EmailVerification.LinkTTL,
			EnumerationDelay: cfg.EmailVerification.EnumerationDelay,
		},
		Store:               b.store,
		OTP:                 codes,
		Tokens:              tokens,
		Ledger:              ledger,
		Passwords:           hasher,
		Notifier:            b.notifier,
		Limiter:             limiter,
		Logger:              logger,
		Now:                 clock,
		ClientIPFromContext: clientIPFromContext,
		MetricInc:           e.metricInc,
		MetricObserve:       e.metricObserve,
		EmitAudit:           e.flowAudit,
		Errors:              e.flowErrors(),
	}

	b.built = true
	return e, nil
}
