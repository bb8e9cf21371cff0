// Package config loads the settings of the marketauth binaries from a YAML
// file, a .env file and MARKETAUTH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Agossa1/marketauth"
	"github.com/Agossa1/marketauth/internal/logging"
	"github.com/Agossa1/marketauth/notify"
)

// EnvPrefix prefixes every environment override, e.g. MARKETAUTH_REDIS_ADDR
// or MARKETAUTH_LOCKOUT_MAX_ATTEMPTS.
const EnvPrefix = "MARKETAUTH"

// Settings is everything a binary needs to build an Engine and its
// collaborators.
type Settings struct {
	Auth     marketauth.Config
	Redis    RedisSettings
	Database DatabaseSettings
	SMTP     notify.SMTPConfig
	Logging  logging.Config
	// Notifier is "smtp" or "log".
	Notifier string
}

type RedisSettings struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces the credential store keys.
	Prefix string
}

// DatabaseSettings selects the SQL credential store. An empty Driver means
// the Redis store is used.
type DatabaseSettings struct {
	Driver string
	DSN    string
}

// Load reads settings. path may be empty, in which case marketauth.yaml is
// searched in the working directory and /etc/marketauth. A missing file is
// not an error; defaults and the environment still apply. Variables from a
// .env file in the working directory are loaded first and never override
// the real environment.
func Load(path string) (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("config: .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("marketauth")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/marketauth/")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("config: read: %w", err)
		}
	}

	s := decode(v)
	if err := s.Auth.Validate(); err != nil {
		return Settings{}, fmt.Errorf("config: %w", err)
	}
	switch s.Notifier {
	case "smtp", "log":
	default:
		return Settings{}, fmt.Errorf("config: unknown notifier %q", s.Notifier)
	}
	return s, nil
}

func setDefaults(v *viper.Viper) {
	d := marketauth.DefaultConfig()

	v.SetDefault("token.key", d.Token.Key)
	v.SetDefault("token.key_file", d.Token.KeyFile)
	v.SetDefault("token.issuer", d.Token.Issuer)
	v.SetDefault("token.audience", d.Token.Audience)
	v.SetDefault("token.access_ttl", d.Token.AccessTTL)
	v.SetDefault("token.remember_me_access_ttl", d.Token.RememberMeAccessTTL)
	v.SetDefault("token.refresh_ttl", d.Token.RefreshTTL)
	v.SetDefault("token.grant_ttl", d.Token.GrantTTL)
	v.SetDefault("token.leeway", d.Token.Leeway)
	v.SetDefault("token.redis_prefix", d.Token.RedisPrefix)
	v.SetDefault("token.ledger_size", d.Token.LedgerSize)

	v.SetDefault("lockout.max_attempts", d.Lockout.MaxAttempts)
	v.SetDefault("lockout.duration", d.Lockout.Duration)
	v.SetDefault("lockout.require_verified_email", d.Lockout.RequireVerifiedEmail)

	v.SetDefault("otp.digits", d.OTP.Digits)
	v.SetDefault("otp.ttl", d.OTP.TTL)

	v.SetDefault("password_reset.enabled", d.PasswordReset.Enabled)
	v.SetDefault("password_reset.code_ttl", d.PasswordReset.CodeTTL)
	v.SetDefault("password_reset.grant_ttl", d.PasswordReset.GrantTTL)
	v.SetDefault("password_reset.require_verified_email", d.PasswordReset.RequireVerifiedEmail)
	v.SetDefault("password_reset.enumeration_delay", d.PasswordReset.EnumerationDelay)

	v.SetDefault("email_verification.enabled", d.EmailVerification.Enabled)
	v.SetDefault("email_verification.code_ttl", d.EmailVerification.CodeTTL)
	v.SetDefault("email_verification.link_base_url", d.EmailVerification.LinkBaseURL)
	v.SetDefault("email_verification.link_ttl", d.EmailVerification.LinkTTL)
	v.SetDefault("email_verification.enumeration_delay", d.EmailVerification.EnumerationDelay)

	v.SetDefault("phone_verification.enabled", d.PhoneVerification.Enabled)
	v.SetDefault("phone_verification.code_ttl", d.PhoneVerification.CodeTTL)

	v.SetDefault("password.memory", d.Password.Memory)
	v.SetDefault("password.time", d.Password.Time)
	v.SetDefault("password.parallelism", d.Password.Parallelism)
	v.SetDefault("password.salt_length", d.Password.SaltLength)
	v.SetDefault("password.key_length", d.Password.KeyLength)
	v.SetDefault("password.min_length", d.Password.MinLength)
	v.SetDefault("password.max_length", d.Password.MaxLength)
	v.SetDefault("password.upgrade_on_login", d.Password.UpgradeOnLogin)
	v.SetDefault("password.accept_bcrypt", d.Password.AcceptBcrypt)

	v.SetDefault("request_limits.enable_identifier_throttle", d.RequestLimits.EnableIdentifierThrottle)
	v.SetDefault("request_limits.enable_ip_throttle", d.RequestLimits.EnableIPThrottle)
	v.SetDefault("request_limits.window", d.RequestLimits.Window)
	v.SetDefault("request_limits.max_requests", d.RequestLimits.MaxRequests)
	v.SetDefault("request_limits.redis_prefix", d.RequestLimits.RedisPrefix)

	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.buffer_size", d.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", d.Audit.DropIfFull)
	v.SetDefault("audit.sink_timeout", d.Audit.SinkTimeout)
	v.SetDefault("audit.stream", d.Audit.Stream)
	v.SetDefault("audit.stream_max_len", d.Audit.StreamMaxLen)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.enable_latency_histograms", d.Metrics.EnableLatencyHistograms)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "mka")

	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", "")

	v.SetDefault("notifier", "log")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.app_name", "Marketplace")

	l := logging.DefaultConfig()
	v.SetDefault("logging.level", l.Level)
	v.SetDefault("logging.format", l.Format)
	v.SetDefault("logging.file", l.File)
	v.SetDefault("logging.max_size_mb", l.MaxSizeMB)
	v.SetDefault("logging.max_backups", l.MaxBackups)
	v.SetDefault("logging.max_age_days", l.MaxAgeDays)
	v.SetDefault("logging.compress", l.Compress)
	v.SetDefault("logging.development", l.Development)
}

func decode(v *viper.Viper) Settings {
	var s Settings

	s.Auth.Token = marketauth.TokenConfig{
		Key:                 v.GetString("token.key"),
		KeyFile:             v.GetString("token.key_file"),
		Issuer:              v.GetString("token.issuer"),
		Audience:            v.GetString("token.audience"),
		AccessTTL:           v.GetDuration("token.access_ttl"),
		RememberMeAccessTTL: v.GetDuration("token.remember_me_access_ttl"),
		RefreshTTL:          v.GetDuration("token.refresh_ttl"),
		GrantTTL:            v.GetDuration("token.grant_ttl"),
		Leeway:              v.GetDuration("token.leeway"),
		RedisPrefix:         v.GetString("token.redis_prefix"),
		LedgerSize:          v.GetInt("token.ledger_size"),
	}
	s.Auth.Lockout = marketauth.LockoutConfig{
		MaxAttempts:          v.GetInt("lockout.max_attempts"),
		Duration:             v.GetDuration("lockout.duration"),
		RequireVerifiedEmail: v.GetBool("lockout.require_verified_email"),
	}
	s.Auth.OTP = marketauth.OTPConfig{
		Digits: v.GetInt("otp.digits"),
		TTL:    v.GetDuration("otp.ttl"),
	}
	s.Auth.PasswordReset = marketauth.PasswordResetConfig{
		Enabled:              v.GetBool("password_reset.enabled"),
		CodeTTL:              v.GetDuration("password_reset.code_ttl"),
		GrantTTL:             v.GetDuration("password_reset.grant_ttl"),
		RequireVerifiedEmail: v.GetBool("password_reset.require_verified_email"),
		EnumerationDelay:     v.GetDuration("password_reset.enumeration_delay"),
	}
	s.Auth.EmailVerification = marketauth.EmailVerificationConfig{
		Enabled:          v.GetBool("email_verification.enabled"),
		CodeTTL:          v.GetDuration("email_verification.code_ttl"),
		LinkBaseURL:      v.GetString("email_verification.link_base_url"),
		LinkTTL:          v.GetDuration("email_verification.link_ttl"),
		EnumerationDelay: v.GetDuration("email_verification.enumeration_delay"),
	}
	s.Auth.PhoneVerification = marketauth.PhoneVerificationConfig{
		Enabled: v.GetBool("phone_verification.enabled"),
		CodeTTL: v.GetDuration("phone_verification.code_ttl"),
	}
	s.Auth.Password = marketauth.PasswordConfig{
		Memory:         v.GetUint32("password.memory"),
		Time:           v.GetUint32("password.time"),
		Parallelism:    uint8(v.GetUint("password.parallelism")),
		SaltLength:     v.GetUint32("password.salt_length"),
		KeyLength:      v.GetUint32("password.key_length"),
		MinLength:      v.GetInt("password.min_length"),
		MaxLength:      v.GetInt("password.max_length"),
		UpgradeOnLogin: v.GetBool("password.upgrade_on_login"),
		AcceptBcrypt:   v.GetBool("password.accept_bcrypt"),
	}
	s.Auth.RequestLimits = marketauth.RequestLimitConfig{
		EnableIdentifierThrottle: v.GetBool("request_limits.enable_identifier_throttle"),
		EnableIPThrottle:         v.GetBool("request_limits.enable_ip_throttle"),
		Window:                   v.GetDuration("request_limits.window"),
		MaxRequests:              v.GetInt("request_limits.max_requests"),
		RedisPrefix:              v.GetString("request_limits.redis_prefix"),
	}
	s.Auth.Audit = marketauth.AuditConfig{
		Enabled:      v.GetBool("audit.enabled"),
		BufferSize:   v.GetInt("audit.buffer_size"),
		DropIfFull:   v.GetBool("audit.drop_if_full"),
		SinkTimeout:  v.GetDuration("audit.sink_timeout"),
		Stream:       v.GetString("audit.stream"),
		StreamMaxLen: v.GetInt64("audit.stream_max_len"),
	}
	s.Auth.Metrics = marketauth.MetricsConfig{
		Enabled:                 v.GetBool("metrics.enabled"),
		EnableLatencyHistograms: v.GetBool("metrics.enable_latency_histograms"),
	}

	s.Redis = RedisSettings{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
		Prefix:   v.GetString("redis.prefix"),
	}
	s.Database = DatabaseSettings{
		Driver: v.GetString("database.driver"),
		DSN:    v.GetString("database.dsn"),
	}
	s.Notifier = strings.ToLower(v.GetString("notifier"))
	s.SMTP = notify.SMTPConfig{
		Host:     v.GetString("smtp.host"),
		Port:     v.GetInt("smtp.port"),
		Username: v.GetString("smtp.username"),
		Password: v.GetString("smtp.password"),
		From:     v.GetString("smtp.from"),
		AppName:  v.GetString("smtp.app_name"),
	}
	s.Logging = logging.Config{
		Level:       v.GetString("logging.level"),
		Format:      v.GetString("logging.format"),
		File:        v.GetString("logging.file"),
		MaxSizeMB:   v.GetInt("logging.max_size_mb"),
		MaxBackups:  v.GetInt("logging.max_backups"),
		MaxAgeDays:  v.GetInt("logging.max_age_days"),
		Compress:    v.GetBool("logging.compress"),
		Development: v.GetBool("logging.development"),
	}
	return s
}
