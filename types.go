package marketauth

import (
	"fmt"
	"math"
	"time"

	"github.com/Agossa1/marketauth/credential"
	"github.com/Agossa1/marketauth/internal/flows"
	"github.com/Agossa1/marketauth/notify"
	"github.com/Agossa1/marketauth/token"
)

// User is the credential view of a marketplace account.
type User = credential.User

// CredentialStore persists users and one-time codes. See package store for
// Redis and SQL implementations.
type CredentialStore = credential.Store

// Notifier delivers one-time codes and links to users.
type Notifier = notify.Notifier

// NotifyMessage is what a Notifier is asked to deliver.
type NotifyMessage = notify.Message

// Claims is the verified payload of an access or refresh token.
type Claims = token.Claims

// User-facing messages. Unknown accounts and wrong passwords share
// MessageInvalidCredentials, and the reset and resend replies do not depend
// on whether the address exists.
const (
	MessageLoginSucceeded         = "Login successful."
	MessageInvalidCredentials     = "Invalid email or password."
	MessageAccountLocked          = "Account locked after too many failed attempts. Try again in %d minutes."
	MessageVerificationRequired   = "Please verify your email address before signing in."
	MessagePasswordResetRequested = "If an account exists for this email, a reset code has been sent."
	MessageVerificationResent     = "If this email needs verification, a new code has been sent."
	MessagePasswordResetSucceeded = "Your password has been reset."
	MessageEmailVerified          = "Your email address has been verified."
	MessageCodeInvalid            = "Invalid or expired code."
	MessageTokenInvalid           = "Invalid or expired link."
)

// LoginOutcome is the expected result of a login attempt.
type LoginOutcome = flows.LoginOutcome

const (
	LoginSucceeded            = flows.LoginSucceeded
	LoginInvalidCredentials   = flows.LoginInvalidCredentials
	LoginAccountLocked        = flows.LoginAccountLocked
	LoginVerificationRequired = flows.LoginVerificationRequired
)

// LoginRequest is the input of [Engine.Login].
type LoginRequest struct {
	Email      string
	Password   string
	RememberMe bool
}

// LoginResult carries the outcome of [Engine.Login]. Tokens are set only
// when Outcome is LoginSucceeded.
type LoginResult struct {
	Outcome LoginOutcome
	Message string

	// RemainingAttempts is -1 when no figure may be disclosed.
	RemainingAttempts int
	LockedUntil       *time.Time

	UserID           string
	Role             string
	AccessToken      string
	RefreshToken     string
	SessionID        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Succeeded reports whether the login issued a session.
func (r LoginResult) Succeeded() bool {
	return r.Outcome == LoginSucceeded
}

// Err maps the outcome to its sentinel, nil on success.
func (r LoginResult) Err() error {
	switch r.Outcome {
	case LoginSucceeded:
		return nil
	case LoginAccountLocked:
		return ErrAccountLocked
	case LoginVerificationRequired:
		return ErrVerificationRequired
	default:
		return ErrInvalidCredentials
	}
}

// AccessGrant is a fresh access token minted from a refresh token.
type AccessGrant struct {
	AccessToken string
	ExpiresAt   time.Time
	SessionID   string
}

// ResetGrant authorizes a single [Engine.ResetPassword] call.
type ResetGrant struct {
	Token     string
	ExpiresAt time.Time
}

// lockedMessage renders MessageAccountLocked with the remaining whole
// minutes, rounded up.
func lockedMessage(lockedUntil *time.Time, now time.Time) string {
	minutes := 1
	if lockedUntil != nil {
		if m := int(math.Ceil(lockedUntil.Sub(now).Minutes())); m > 1 {
			minutes = m
		}
	}
	return fmt.Sprintf(MessageAccountLocked, minutes)
}

func loginMessage(out flows.LoginOutput, now time.Time) string {
	switch out.Outcome {
	case LoginSucceeded:
		return MessageLoginSucceeded
	case LoginAccountLocked:
		return lockedMessage(out.LockedUntil, now)
	case LoginVerificationRequired:
		return MessageVerificationRequired
	default:
		return MessageInvalidCredentials
	}
}
