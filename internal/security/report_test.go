package security

import (
	"strings"
	"testing"
	"time"
)

func strongInput() ReportInput {
	return ReportInput{
		KeyFile:             "marketauth.key",
		AccessTTL:           15 * time.Minute,
		RememberMeAccessTTL: 12 * time.Hour,
		RefreshTTL:          7 * 24 * time.Hour,
		Password: PasswordReport{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		MaxLoginAttempts:         5,
		LockoutDuration:          15 * time.Minute,
		EmailVerificationEnabled: true,
		PasswordResetEnabled:     true,
		ResetRequiresVerified:    true,
		IdentifierThrottle:       true,
		MaxRequests:              5,
	}
}

func TestBuildReportStrongPosture(t *testing.T) {
	r := BuildReport(strongInput())
	if len(r.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", r.Warnings)
	}
	if !r.KeyFromFile || !r.RequestThrottlingActive || !r.ResetRequiresVerified {
		t.Fatalf("unexpected flags: %+v", r)
	}
	if r.LockoutAttempts != 5 || r.LockoutDuration != 15*time.Minute {
		t.Fatalf("unexpected lockout: %d %s", r.LockoutAttempts, r.LockoutDuration)
	}
}

func TestBuildReportWarnings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ReportInput)
		want   string
	}{
		{"weak memory", func(in *ReportInput) { in.Password.Memory = 8 * 1024 }, "argon2 memory"},
		{"single pass", func(in *ReportInput) { in.Password.Time = 1 }, "argon2 time"},
		{"bcrypt", func(in *ReportInput) { in.Password.AcceptBcrypt = true }, "bcrypt"},
		{"long access", func(in *ReportInput) { in.AccessTTL = time.Hour }, "access ttl"},
		{"long refresh", func(in *ReportInput) { in.RefreshTTL = 90 * 24 * time.Hour }, "refresh ttl"},
		{"lenient lockout", func(in *ReportInput) { in.MaxLoginAttempts = 50 }, "lockout allows"},
		{"short lockout", func(in *ReportInput) { in.LockoutDuration = time.Minute }, "lockout duration"},
		{"unverified reset", func(in *ReportInput) { in.ResetRequiresVerified = false }, "unverified"},
		{"no throttle", func(in *ReportInput) { in.IdentifierThrottle = false }, "not throttled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := strongInput()
			tt.mutate(&in)
			r := BuildReport(in)
			if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], tt.want) {
				t.Fatalf("expected one warning containing %q, got %v", tt.want, r.Warnings)
			}
		})
	}
}

func TestBuildReportThrottleNeedsQuota(t *testing.T) {
	in := strongInput()
	in.MaxRequests = 0
	if BuildReport(in).RequestThrottlingActive {
		t.Fatal("throttling without a quota must not count as active")
	}
}
