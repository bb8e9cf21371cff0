package marketauth

import (
	"context"

	"github.com/Agossa1/marketauth/internal/flows"
)

// RequestPasswordReset sends a reset code to email when it belongs to an
// account. The reply is MessagePasswordResetRequested whether or not the
// account exists; only throttling and backend faults return an error.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if err := flows.RunRequestPasswordReset(ctx, e.flowDeps, email); err != nil {
		return "", err
	}
	return MessagePasswordResetRequested, nil
}

// VerifyPasswordResetCode exchanges a valid reset code for a one-time
// ResetGrant. The code is consumed and every other reset code of the
// account is retired.
func (e *Engine) VerifyPasswordResetCode(ctx context.Context, email, code string) (ResetGrant, error) {
	if e == nil {
		return ResetGrant{}, ErrEngineNotReady
	}
	grant, err := flows.RunVerifyPasswordResetCode(ctx, e.flowDeps, email, code)
	if err != nil {
		return ResetGrant{}, err
	}
	return ResetGrant{Token: grant.Token, ExpiresAt: grant.ExpiresAt}, nil
}

// ResetPassword redeems grant once and sets newPassword. The login lockout
// is cleared with it.
func (e *Engine) ResetPassword(ctx context.Context, grant, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunResetPassword(ctx, e.flowDeps, grant, newPassword)
}
