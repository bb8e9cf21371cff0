package credential

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a user or code lookup has no match.
	ErrNotFound = errors.New("credential: not found")
	// ErrDuplicate is returned when creating a user whose email is taken.
	ErrDuplicate = errors.New("credential: duplicate")
	// ErrUnavailable wraps backend faults (network, driver, contention).
	ErrUnavailable = errors.New("credential: store unavailable")
)

// Store is the persistence contract of the authentication core.
//
// RecordLoginFailure and MarkOTPUsed must be atomic read-modify-write
// operations: concurrent callers never observe the same pre-update state.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (User, error)
	FindUserByID(ctx context.Context, id string) (User, error)
	CreateUser(ctx context.Context, user User) (User, error)
	UpdateUser(ctx context.Context, id string, patch UserPatch) error

	// RecordLoginFailure increments the attempt counter and, once the new
	// count reaches maxAttempts, sets LockedUntil to lockUntil.
	RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (LoginFailure, error)

	CreateOTP(ctx context.Context, otp OTP) error
	// FindLatestValidOTP returns the newest unused, unexpired record
	// matching the code hash.
	FindLatestValidOTP(ctx context.Context, userID, codeHash string, purpose Purpose, now time.Time) (OTP, error)
	// MarkOTPUsed flips Used on a still valid record. It returns false when
	// the record was already used or expired.
	MarkOTPUsed(ctx context.Context, otp OTP, now time.Time) (bool, error)
	// InvalidateOTPs marks every valid record of (userID, purpose) used,
	// except the one with exceptID when it is non-empty.
	InvalidateOTPs(ctx context.Context, userID string, purpose Purpose, exceptID string, now time.Time) (int, error)
}

// NormalizeEmail lowercases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
