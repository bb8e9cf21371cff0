package marketauth

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config is the full Engine configuration. Start from [DefaultConfig] and
// override what differs; Build validates the result.
type Config struct {
	Token             TokenConfig
	Lockout           LockoutConfig
	OTP               OTPConfig
	PasswordReset     PasswordResetConfig
	EmailVerification EmailVerificationConfig
	PhoneVerification PhoneVerificationConfig
	Password          PasswordConfig
	RequestLimits     RequestLimitConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls the encrypted session and grant tokens.
type TokenConfig struct {
	// Key is the 32-byte symmetric key as hex or base64. When empty the key
	// is read from KeyFile, which is created on first use if missing.
	Key     string
	KeyFile string

	Issuer              string
	Audience            string
	AccessTTL           time.Duration
	RememberMeAccessTTL time.Duration
	RefreshTTL          time.Duration
	GrantTTL            time.Duration
	Leeway              time.Duration

	// RedisPrefix namespaces the redeemed-grant ledger.
	RedisPrefix string
	// LedgerSize bounds the in-memory ledger used when no Redis client is set.
	LedgerSize int
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig is the login guard policy.
type LockoutConfig struct {
	MaxAttempts          int
	Duration             time.Duration
	RequireVerifiedEmail bool
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig sets code width and default lifetime.
type OTPConfig struct {
	Digits int
	TTL    time.Duration
}

/*
====================================
RECOVERY AND VERIFICATION CONFIG
====================================
*/

// PasswordResetConfig controls the forgot/reset password flow.
type PasswordResetConfig struct {
	Enabled              bool
	CodeTTL              time.Duration
	GrantTTL             time.Duration
	RequireVerifiedEmail bool
	// EnumerationDelay is spent on requests for unknown addresses.
	EnumerationDelay time.Duration
}

// EmailVerificationConfig controls email verification by code or link.
type EmailVerificationConfig struct {
	Enabled bool
	CodeTTL time.Duration
	// LinkBaseURL enables one-click links; the grant is added as ?token=.
	LinkBaseURL      string
	LinkTTL          time.Duration
	EnumerationDelay time.Duration
}

// PhoneVerificationConfig controls SMS code verification.
type PhoneVerificationConfig struct {
	Enabled bool
	CodeTTL time.Duration
}

// RequestLimitConfig throttles the unauthenticated code endpoints per email
// (or user) and per client IP. It needs a Redis client.
type RequestLimitConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	Window                   time.Duration
	MaxRequests              int
	RedisPrefix              string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id cost parameters and the length policy.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	MaxLength      int
	UpgradeOnLogin bool
	// AcceptBcrypt verifies legacy $2a$/$2b$/$2y$ hashes.
	AcceptBcrypt bool
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	DropIfFull  bool
	SinkTimeout time.Duration

	// Stream, when set and a Redis client is configured, also appends every
	// event to this Redis stream, trimmed to about StreamMaxLen entries.
	Stream       string
	StreamMaxLen int64
}

// MetricsConfig switches in-process counters on.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults: 5 attempts then a 15 minute
// lock, 6 digit codes valid for 15 minutes, 1h access and 30d refresh tokens.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			KeyFile:             "marketauth.key",
			Issuer:              "marketauth",
			Audience:            "marketplace",
			AccessTTL:           time.Hour,
			RememberMeAccessTTL: 24 * time.Hour,
			RefreshTTL:          30 * 24 * time.Hour,
			GrantTTL:            15 * time.Minute,
			Leeway:              30 * time.Second,
			RedisPrefix:         "mka:grant",
			LedgerSize:          10000,
		},
		Lockout: LockoutConfig{
			MaxAttempts:          5,
			Duration:             15 * time.Minute,
			RequireVerifiedEmail: false,
		},
		OTP: OTPConfig{
			Digits: 6,
			TTL:    15 * time.Minute,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:              true,
			CodeTTL:              15 * time.Minute,
			GrantTTL:             15 * time.Minute,
			RequireVerifiedEmail: true,
			EnumerationDelay:     0,
		},
		EmailVerification: EmailVerificationConfig{
			Enabled: true,
			CodeTTL: 15 * time.Minute,
			LinkTTL: 24 * time.Hour,
		},
		PhoneVerification: PhoneVerificationConfig{
			Enabled: false,
			CodeTTL: 10 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			MaxLength:      256,
			UpgradeOnLogin: true,
			AcceptBcrypt:   true,
		},
		RequestLimits: RequestLimitConfig{
			EnableIdentifierThrottle: true,
			EnableIPThrottle:         true,
			Window:                   15 * time.Minute,
			MaxRequests:              5,
			RedisPrefix:              "mka:rl",
		},
		Audit: AuditConfig{
			Enabled:      false,
			BufferSize:   1024,
			DropIfFull:   true,
			SinkTimeout:  2 * time.Second,
			StreamMaxLen: 100000,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	// Token
	if c.Token.Key == "" && c.Token.KeyFile == "" {
		return errors.New("Token Key or KeyFile is required")
	}
	if strings.TrimSpace(c.Token.Issuer) == "" {
		return errors.New("Token Issuer must not be blank")
	}
	if strings.TrimSpace(c.Token.Audience) == "" {
		return errors.New("Token Audience must not be blank")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 || c.Token.GrantTTL <= 0 {
		return errors.New("Token TTLs must be > 0")
	}
	if c.Token.RememberMeAccessTTL < c.Token.AccessTTL {
		return errors.New("Token RememberMeAccessTTL must be >= AccessTTL")
	}
	if c.Token.RefreshTTL < c.Token.RememberMeAccessTTL {
		return errors.New("Token RefreshTTL must be >= RememberMeAccessTTL")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be within [0, 2m]")
	}

	// Lockout
	if c.Lockout.MaxAttempts <= 0 {
		return errors.New("Lockout MaxAttempts must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// OTP
	if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
		return errors.New("OTP Digits must be between 6 and 10")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}

	// Password Reset
	if c.PasswordReset.Enabled {
		if c.PasswordReset.CodeTTL <= 0 || c.PasswordReset.CodeTTL > time.Hour {
			return errors.New("PasswordReset CodeTTL must be within (0, 1h]")
		}
		if c.PasswordReset.GrantTTL <= 0 || c.PasswordReset.GrantTTL > time.Hour {
			return errors.New("PasswordReset GrantTTL must be within (0, 1h]")
		}
		if c.PasswordReset.EnumerationDelay < 0 || c.PasswordReset.EnumerationDelay > 5*time.Second {
			return errors.New("PasswordReset EnumerationDelay must be within [0, 5s]")
		}
	}

	// Email Verification
	if c.EmailVerification.Enabled {
		if c.EmailVerification.CodeTTL <= 0 {
			return errors.New("EmailVerification CodeTTL must be > 0")
		}
		if c.EmailVerification.LinkBaseURL != "" {
			u, err := url.Parse(c.EmailVerification.LinkBaseURL)
			if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
				return errors.New("EmailVerification LinkBaseURL must be an absolute http(s) URL")
			}
			if c.EmailVerification.LinkTTL <= 0 {
				return errors.New("EmailVerification LinkTTL must be > 0 when LinkBaseURL is set")
			}
		}
		if c.EmailVerification.EnumerationDelay < 0 || c.EmailVerification.EnumerationDelay > 5*time.Second {
			return errors.New("EmailVerification EnumerationDelay must be within [0, 5s]")
		}
	}
	if c.Lockout.RequireVerifiedEmail && !c.EmailVerification.Enabled {
		return errors.New("Lockout RequireVerifiedEmail needs EmailVerification enabled")
	}

	// Phone Verification
	if c.PhoneVerification.Enabled && c.PhoneVerification.CodeTTL <= 0 {
		return errors.New("PhoneVerification CodeTTL must be > 0")
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
	if c.Password.MinLength < 1 || c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MinLength must be >= 1 and <= MaxLength")
	}

	// Request limits
	if c.RequestLimits.EnableIdentifierThrottle || c.RequestLimits.EnableIPThrottle {
		if c.RequestLimits.Window <= 0 || c.RequestLimits.MaxRequests <= 0 {
			return errors.New("RequestLimits Window and MaxRequests must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Audit.SinkTimeout < 0 || c.Audit.StreamMaxLen < 0 {
		return errors.New("Audit SinkTimeout and StreamMaxLen must be >= 0")
	}

	return nil
}
