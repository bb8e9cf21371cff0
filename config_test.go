package marketauth

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Lockout.MaxAttempts != 5 || cfg.Lockout.Duration != 15*time.Minute {
		t.Fatalf("unexpected lockout defaults: %+v", cfg.Lockout)
	}
	if cfg.OTP.Digits != 6 || cfg.OTP.TTL != 15*time.Minute {
		t.Fatalf("unexpected otp defaults: %+v", cfg.OTP)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "missing key source",
			mutate: func(c *Config) {
				c.Token.Key = ""
				c.Token.KeyFile = ""
			},
			wantValid: false,
		},
		{
			name:      "blank issuer",
			mutate:    func(c *Config) { c.Token.Issuer = "  " },
			wantValid: false,
		},
		{
			name:      "remember me shorter than access",
			mutate:    func(c *Config) { c.Token.RememberMeAccessTTL = 30 * time.Minute },
			wantValid: false,
		},
		{
			name:      "refresh shorter than remember me",
			mutate:    func(c *Config) { c.Token.RefreshTTL = 12 * time.Hour },
			wantValid: false,
		},
		{
			name:      "leeway too large",
			mutate:    func(c *Config) { c.Token.Leeway = 5 * time.Minute },
			wantValid: false,
		},
		{
			name:      "zero max attempts",
			mutate:    func(c *Config) { c.Lockout.MaxAttempts = 0 },
			wantValid: false,
		},
		{
			name:      "zero lockout duration",
			mutate:    func(c *Config) { c.Lockout.Duration = 0 },
			wantValid: false,
		},
		{
			name:      "otp digits too short",
			mutate:    func(c *Config) { c.OTP.Digits = 4 },
			wantValid: false,
		},
		{
			name:      "reset code ttl above an hour",
			mutate:    func(c *Config) { c.PasswordReset.CodeTTL = 2 * time.Hour },
			wantValid: false,
		},
		{
			name: "reset ttl ignored when disabled",
			mutate: func(c *Config) {
				c.PasswordReset.Enabled = false
				c.PasswordReset.CodeTTL = 0
			},
			wantValid: true,
		},
		{
			name:      "relative link base",
			mutate:    func(c *Config) { c.EmailVerification.LinkBaseURL = "/verify" },
			wantValid: false,
		},
		{
			name:      "absolute link base",
			mutate:    func(c *Config) { c.EmailVerification.LinkBaseURL = "https://shop.example/verify" },
			wantValid: true,
		},
		{
			name: "verified login without email verification",
			mutate: func(c *Config) {
				c.Lockout.RequireVerifiedEmail = true
				c.EmailVerification.Enabled = false
			},
			wantValid: false,
		},
		{
			name:      "weak argon memory",
			mutate:    func(c *Config) { c.Password.Memory = 1024 },
			wantValid: false,
		},
		{
			name: "min length above max",
			mutate: func(c *Config) {
				c.Password.MinLength = 20
				c.Password.MaxLength = 10
			},
			wantValid: false,
		},
		{
			name:      "throttle without quota",
			mutate:    func(c *Config) { c.RequestLimits.MaxRequests = 0 },
			wantValid: false,
		},
		{
			name: "throttle disabled",
			mutate: func(c *Config) {
				c.RequestLimits.EnableIdentifierThrottle = false
				c.RequestLimits.EnableIPThrottle = false
				c.RequestLimits.MaxRequests = 0
			},
			wantValid: true,
		},
		{
			name: "audit without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSecurityReportReflectsConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Token.AccessTTL = 15 * time.Minute
	cfg.Password.AcceptBcrypt = false

	report := cfg.SecurityReport()
	if len(report.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", report.Warnings)
	}
	if report.LockoutAttempts != 5 || !report.PasswordResetActive || !report.ResetRequiresVerified {
		t.Fatalf("unexpected report: %+v", report)
	}

	cfg.Token.AccessTTL = time.Hour
	if got := cfg.SecurityReport().Warnings; len(got) != 1 {
		t.Fatalf("expected an access ttl warning, got %v", got)
	}

	var engine *Engine
	if r := engine.SecurityReport(); r.LockoutAttempts != 0 {
		t.Fatalf("nil engine should report zero value, got %+v", r)
	}
}
