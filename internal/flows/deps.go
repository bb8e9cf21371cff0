package flows

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Agossa1/marketauth/credential"
	"github.com/Agossa1/marketauth/internal/limiters"
	"github.com/Agossa1/marketauth/internal/metrics"
	"github.com/Agossa1/marketauth/notify"
	"github.com/Agossa1/marketauth/otp"
	"github.com/Agossa1/marketauth/password"
	"github.com/Agossa1/marketauth/token"
)

// LoginPolicy holds the lockout parameters.
type LoginPolicy struct {
	MaxAttempts          int
	LockoutDuration      time.Duration
	RequireVerifiedEmail bool
	UpgradeHashOnLogin   bool
}

// ResetPolicy holds the password reset parameters.
type ResetPolicy struct {
	Enabled bool
	CodeTTL time.Duration
	// GrantTTL is the lifetime of the token that authorizes the final reset.
	GrantTTL time.Duration
	// RequireVerifiedEmail sends codes only to verified addresses.
	RequireVerifiedEmail bool
	EnumerationDelay     time.Duration
}

// VerificationPolicy holds the email and phone verification parameters.
type VerificationPolicy struct {
	EmailEnabled     bool
	PhoneEnabled     bool
	CodeTTL          time.Duration
	// PhoneCodeTTL falls back to CodeTTL when zero.
	PhoneCodeTTL     time.Duration
	LinkBaseURL      string
	LinkTTL          time.Duration
	EnumerationDelay time.Duration
}

// Errors carries the host-level sentinels flows return, so callers can match
// them with errors.Is without this package importing marketauth.
type Errors struct {
	InvalidCredentials        error
	AccountLocked             error
	VerificationRequired      error
	Unavailable               error
	KeyUnavailable            error
	RateLimited               error
	OTPInvalid                error
	TokenInvalid              error
	PasswordPolicy            error
	UserNotFound              error
	AlreadyVerified           error
	PhoneNotSet               error
	PasswordResetDisabled     error
	EmailVerificationDisabled error
	PhoneVerificationDisabled error
}

// Deps groups everything a flow touches. The Engine builds it once; flows
// hold no state between calls.
type Deps struct {
	Login        LoginPolicy
	Reset        ResetPolicy
	Verification VerificationPolicy

	Store     credential.Store
	OTP       *otp.Manager
	Tokens    *token.Service
	Ledger    token.GrantLedger
	Passwords *password.Hasher
	Notifier  notify.Notifier
	Limiter   *limiters.RequestLimiter
	Logger    *zap.Logger

	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string
	MetricInc           func(metrics.MetricID)
	MetricObserve       func(metrics.MetricID, time.Duration)
	EmitAudit           func(ctx context.Context, event string, success bool, userID string, err error, metadata map[string]string)

	Errors Errors
}

func (d *Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d *Deps) clientIP(ctx context.Context) string {
	if d.ClientIPFromContext == nil {
		return ""
	}
	return d.ClientIPFromContext(ctx)
}

func (d *Deps) inc(id metrics.MetricID) {
	if d.MetricInc != nil {
		d.MetricInc(id)
	}
}

func (d *Deps) observe(id metrics.MetricID, elapsed time.Duration) {
	if d.MetricObserve != nil {
		d.MetricObserve(id, elapsed)
	}
}

func (d *Deps) audit(ctx context.Context, event string, success bool, userID string, err error, metadata map[string]string) {
	if d.EmitAudit != nil {
		d.EmitAudit(ctx, event, success, userID, err, metadata)
	}
}
