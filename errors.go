package marketauth

import (
	"errors"
	"fmt"

	"github.com/Agossa1/marketauth/token"
)

var (
	// ErrInvalidCredentials is the error face of the invalid_credentials login
	// outcome. Unknown emails and wrong passwords map to it alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is the error face of the account_locked login outcome.
	ErrAccountLocked = errors.New("account locked")
	// ErrVerificationRequired is returned when login needs a verified email.
	ErrVerificationRequired = errors.New("email verification required")
	// ErrOTPInvalid covers wrong, expired, used and superseded codes.
	ErrOTPInvalid = errors.New("invalid or expired code")
	// ErrTokenInvalid is the single public face of every token failure.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrPasswordPolicy is returned when a new password breaks the length policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrRateLimited is returned when a code request exceeds the window quota.
	ErrRateLimited = errors.New("too many requests")
	// ErrUnavailable wraps credential store, ledger and notifier setup faults.
	ErrUnavailable = errors.New("auth backend unavailable")
	// ErrKeyUnavailable is returned when the token key cannot be loaded.
	ErrKeyUnavailable = errors.New("token key unavailable")
	// ErrEngineNotReady is returned by methods called on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrUserNotFound is returned by flows addressed by user id.
	ErrUserNotFound = errors.New("user not found")

	ErrAlreadyVerified = errors.New("already verified")
	ErrPhoneNotSet     = errors.New("phone number not set")
	// ErrAccountExists is returned by Register when the email is taken.
	ErrAccountExists = errors.New("account already exists")
	ErrInvalidEmail  = errors.New("invalid email address")

	ErrPasswordResetDisabled     = errors.New("password reset disabled")
	ErrEmailVerificationDisabled = errors.New("email verification disabled")
	ErrPhoneVerificationDisabled = errors.New("phone verification disabled")

	// ErrNotifierRequired is returned by Build when a code flow is enabled
	// without a Notifier.
	ErrNotifierRequired = errors.New("notifier required")
)

func wrapUnavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// tokenFault maps a token issuance or key failure to a host sentinel.
func tokenFault(err error) error {
	if errors.Is(err, token.ErrKeyUnavailable) {
		return fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	return wrapUnavailable(err)
}
