package marketauth

import "github.com/Agossa1/marketauth/internal/security"

// SecurityReport summarizes the posture of a configuration.
type SecurityReport = security.Report

// PasswordConfigReport is the hashing cost part of a [SecurityReport].
type PasswordConfigReport = security.PasswordReport

// SecurityReport summarizes the configuration's security posture and lists
// the settings that fall below the recommended baseline.
func (c Config) SecurityReport() SecurityReport {
	return security.BuildReport(security.ReportInput{
		KeyFile:             c.Token.KeyFile,
		AccessTTL:           c.Token.AccessTTL,
		RememberMeAccessTTL: c.Token.RememberMeAccessTTL,
		RefreshTTL:          c.Token.RefreshTTL,
		Password: security.PasswordReport{
			Memory:       c.Password.Memory,
			Time:         c.Password.Time,
			Parallelism:  c.Password.Parallelism,
			SaltLength:   c.Password.SaltLength,
			KeyLength:    c.Password.KeyLength,
			AcceptBcrypt: c.Password.AcceptBcrypt,
		},
		MaxLoginAttempts:         c.Lockout.MaxAttempts,
		LockoutDuration:          c.Lockout.Duration,
		RequireVerifiedEmail:     c.Lockout.RequireVerifiedEmail,
		EmailVerificationEnabled: c.EmailVerification.Enabled,
		PasswordResetEnabled:     c.PasswordReset.Enabled,
		ResetRequiresVerified:    c.PasswordReset.RequireVerifiedEmail,
		PhoneVerificationEnabled: c.PhoneVerification.Enabled,
		IdentifierThrottle:       c.RequestLimits.EnableIdentifierThrottle,
		IPThrottle:               c.RequestLimits.EnableIPThrottle,
		MaxRequests:              c.RequestLimits.MaxRequests,
		AuditEnabled:             c.Audit.Enabled,
	})
}

// SecurityReport reports on the engine's configuration.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	return e.config.SecurityReport()
}
