package credential

import "time"

// Purpose scopes a one-time code to a single flow.
type Purpose string

const (
	PurposeEmailVerification Purpose = "EMAIL_VERIFICATION"
	PurposePasswordReset     Purpose = "PASSWORD_RESET"
	PurposePhoneVerification Purpose = "PHONE_VERIFICATION"
)

// Valid reports whether p is one of the known purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeEmailVerification, PurposePasswordReset, PurposePhoneVerification:
		return true
	}
	return false
}

// User is the credential view of a marketplace account.
type User struct {
	ID            string
	Email         string
	Phone         string
	Role          string
	PasswordHash  string
	LoginAttempts int
	LockedUntil   *time.Time
	EmailVerified bool
	PhoneVerified bool
	LastLogin     *time.Time
	CreatedAt     time.Time
}

// IsLocked reports whether the lockout window is still open at now.
func (u User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// UserPatch is a partial update. Nil fields are left untouched.
type UserPatch struct {
	PasswordHash  *string
	LoginAttempts *int
	LockedUntil   *time.Time
	ClearLock     bool
	EmailVerified *bool
	PhoneVerified *bool
	LastLogin     *time.Time
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.PasswordHash == nil &&
		p.LoginAttempts == nil &&
		p.LockedUntil == nil &&
		!p.ClearLock &&
		p.EmailVerified == nil &&
		p.PhoneVerified == nil &&
		p.LastLogin == nil
}

// LoginFailure is the state written by one atomic failure increment.
type LoginFailure struct {
	Attempts    int
	LockedUntil *time.Time
}

// Locked reports whether the failure left the account locked at now.
func (f LoginFailure) Locked(now time.Time) bool {
	return f.LockedUntil != nil && f.LockedUntil.After(now)
}

// OTP is a persisted one-time code. CodeHash is the hex SHA-256 of the code.
type OTP struct {
	ID        string
	UserID    string
	CodeHash  string
	Purpose   Purpose
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// Valid reports whether the code can still be redeemed at now.
func (o OTP) Valid(now time.Time) bool {
	return !o.Used && now.Before(o.ExpiresAt)
}
