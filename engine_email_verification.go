package marketauth

import (
	"context"

	"github.com/Agossa1/marketauth/internal/flows"
)

// StartEmailVerification sends a verification code, and a link when
// EmailVerification.LinkBaseURL is set, to a freshly registered user.
func (e *Engine) StartEmailVerification(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunStartEmailVerification(ctx, e.flowDeps, userID)
}

// ResendEmailVerification replaces the pending code of email. The reply is
// the same for unknown and already verified addresses.
func (e *Engine) ResendEmailVerification(ctx context.Context, email string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if err := flows.RunResendEmailVerification(ctx, e.flowDeps, email); err != nil {
		return "", err
	}
	return MessageVerificationResent, nil
}

// VerifyEmail consumes an email verification code.
func (e *Engine) VerifyEmail(ctx context.Context, email, code string) (User, error) {
	if e == nil {
		return User{}, ErrEngineNotReady
	}
	return flows.RunVerifyEmail(ctx, e.flowDeps, email, code)
}

// VerifyEmailLink redeems the grant carried by a verification link.
func (e *Engine) VerifyEmailLink(ctx context.Context, grant string) (User, error) {
	if e == nil {
		return User{}, ErrEngineNotReady
	}
	return flows.RunVerifyEmailLink(ctx, e.flowDeps, grant)
}

// StartPhoneVerification texts a verification code to the user's phone.
func (e *Engine) StartPhoneVerification(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunStartPhoneVerification(ctx, e.flowDeps, userID)
}

func (e *Engine) VerifyPhone(ctx context.Context, userID, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunVerifyPhone(ctx, e.flowDeps, userID, code)
}
