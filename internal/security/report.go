package security

import (
	"fmt"
	"time"
)

// Baselines below which a posture warning is raised.
const (
	MinArgonMemoryKB   = 64 * 1024
	MinArgonTime       = 2
	MaxAccessTTL       = 15 * time.Minute
	MaxRefreshTTL      = 30 * 24 * time.Hour
	MaxLockoutAttempts = 10
	MinLockoutDuration = 5 * time.Minute
)

type PasswordReport struct {
	Memory       uint32
	Time         uint32
	Parallelism  uint8
	SaltLength   uint32
	KeyLength    uint32
	AcceptBcrypt bool
}

type Report struct {
	KeyFromFile             bool
	AccessTTL               time.Duration
	RememberMeAccessTTL     time.Duration
	RefreshTTL              time.Duration
	Argon2                  PasswordReport
	LockoutAttempts         int
	LockoutDuration         time.Duration
	VerifiedLoginRequired   bool
	EmailVerificationActive bool
	PasswordResetActive     bool
	ResetRequiresVerified   bool
	PhoneVerificationActive bool
	RequestThrottlingActive bool
	AuditActive             bool
	Warnings                []string
}

type ReportInput struct {
	KeyFile                  string
	AccessTTL                time.Duration
	RememberMeAccessTTL      time.Duration
	RefreshTTL               time.Duration
	Password                 PasswordReport
	MaxLoginAttempts         int
	LockoutDuration          time.Duration
	RequireVerifiedEmail     bool
	EmailVerificationEnabled bool
	PasswordResetEnabled     bool
	ResetRequiresVerified    bool
	PhoneVerificationEnabled bool
	IdentifierThrottle       bool
	IPThrottle               bool
	MaxRequests              int
	AuditEnabled             bool
}

func BuildReport(input ReportInput) Report {
	throttling := (input.IdentifierThrottle || input.IPThrottle) &&
		input.MaxRequests > 0

	r := Report{
		KeyFromFile:             input.KeyFile != "",
		AccessTTL:               input.AccessTTL,
		RememberMeAccessTTL:     input.RememberMeAccessTTL,
		RefreshTTL:              input.RefreshTTL,
		Argon2:                  input.Password,
		LockoutAttempts:         input.MaxLoginAttempts,
		LockoutDuration:         input.LockoutDuration,
		VerifiedLoginRequired:   input.RequireVerifiedEmail,
		EmailVerificationActive: input.EmailVerificationEnabled,
		PasswordResetActive:     input.PasswordResetEnabled,
		ResetRequiresVerified:   input.PasswordResetEnabled && input.ResetRequiresVerified,
		PhoneVerificationActive: input.PhoneVerificationEnabled,
		RequestThrottlingActive: throttling,
		AuditActive:             input.AuditEnabled,
	}
	r.Warnings = warnings(input, throttling)
	return r
}

func warnings(in ReportInput, throttling bool) []string {
	var out []string
	if in.Password.Memory < MinArgonMemoryKB {
		out = append(out, fmt.Sprintf("argon2 memory %d KB is below %d KB", in.Password.Memory, MinArgonMemoryKB))
	}
	if in.Password.Time < MinArgonTime {
		out = append(out, fmt.Sprintf("argon2 time %d is below %d", in.Password.Time, MinArgonTime))
	}
	if in.Password.AcceptBcrypt {
		out = append(out, "legacy bcrypt hashes are still accepted")
	}
	if in.AccessTTL > MaxAccessTTL {
		out = append(out, fmt.Sprintf("access ttl %s exceeds %s", in.AccessTTL, MaxAccessTTL))
	}
	if in.RefreshTTL > MaxRefreshTTL {
		out = append(out, fmt.Sprintf("refresh ttl %s exceeds %s", in.RefreshTTL, MaxRefreshTTL))
	}
	if in.MaxLoginAttempts > MaxLockoutAttempts {
		out = append(out, fmt.Sprintf("lockout allows %d attempts", in.MaxLoginAttempts))
	}
	if in.LockoutDuration < MinLockoutDuration {
		out = append(out, fmt.Sprintf("lockout duration %s is below %s", in.LockoutDuration, MinLockoutDuration))
	}
	if in.PasswordResetEnabled && !in.ResetRequiresVerified {
		out = append(out, "password reset codes may go to unverified addresses")
	}
	if (in.PasswordResetEnabled || in.EmailVerificationEnabled) && !throttling {
		out = append(out, "code requests are not throttled")
	}
	return out
}
