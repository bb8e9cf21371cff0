package flows

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Agossa1/marketauth/credential"
	"github.com/Agossa1/marketauth/internal/metrics"
	"github.com/Agossa1/marketauth/notify"
	"github.com/Agossa1/marketauth/token"
)

const (
	scopeResetRequest = "password_reset"
	scopeResetConfirm = "password_reset_confirm"
)

// RunRequestPasswordReset sends a reset code when email belongs to an
// eligible account. The result is the same whether or not it does.
func RunRequestPasswordReset(ctx context.Context, deps Deps, email string) error {
	if !deps.Reset.Enabled {
		return deps.Errors.PasswordResetDisabled
	}
	if deps.Store == nil || deps.OTP == nil {
		return deps.Errors.Unavailable
	}

	email = credential.NormalizeEmail(email)
	if err := throttle(ctx, deps, scopeResetRequest, email); err != nil {
		return err
	}
	deps.inc(metrics.MetricPasswordResetRequest)

	var (
		user credential.User
		err  error
	)
	if email != "" {
		user, err = deps.Store.FindUserByEmail(ctx, email)
	} else {
		err = credential.ErrNotFound
	}
	if err != nil && !errors.Is(err, credential.ErrNotFound) {
		deps.logger().Error("password reset lookup failed", zap.Error(err))
		return lookupError(deps, err)
	}

	eligible := err == nil && (user.EmailVerified || !deps.Reset.RequireVerifiedEmail)
	if !eligible {
		deps.audit(ctx, EventPasswordResetRequest, true, user.ID, nil, map[string]string{
			"enumeration_safe": "true",
		})
		return enumerationDelay(ctx, deps.Reset.EnumerationDelay)
	}

	issued, err := issueCode(ctx, deps, user, credential.PurposePasswordReset, deps.Reset.CodeTTL)
	if err != nil {
		deps.audit(ctx, EventPasswordResetRequest, false, user.ID, err, nil)
		return err
	}

	send(ctx, deps, notify.Message{
		Channel:   notify.ChannelEmail,
		To:        user.Email,
		UserID:    user.ID,
		Purpose:   credential.PurposePasswordReset,
		Code:      issued.Code,
		ExpiresAt: issued.Record.ExpiresAt,
	})
	deps.audit(ctx, EventPasswordResetRequest, true, user.ID, nil, nil)
	return nil
}

// RunVerifyPasswordResetCode exchanges a valid reset code for a one-time
// grant. The code is consumed only after the grant has been minted, and the
// grant is discarded if another request consumed the code first.
func RunVerifyPasswordResetCode(ctx context.Context, deps Deps, email, code string) (token.Grant, error) {
	if !deps.Reset.Enabled {
		return token.Grant{}, deps.Errors.PasswordResetDisabled
	}
	if deps.Store == nil || deps.OTP == nil || deps.Tokens == nil {
		return token.Grant{}, deps.Errors.Unavailable
	}

	email = credential.NormalizeEmail(email)
	if err := throttle(ctx, deps, scopeResetConfirm, email); err != nil {
		return token.Grant{}, err
	}

	reject := func(userID, reason string) (token.Grant, error) {
		deps.inc(metrics.MetricPasswordResetCodeRejected)
		deps.audit(ctx, EventPasswordResetCode, false, userID, deps.Errors.OTPInvalid, map[string]string{
			"reason": reason,
		})
		return token.Grant{}, deps.Errors.OTPInvalid
	}

	if email == "" {
		return reject("", "user_not_found")
	}
	user, err := deps.Store.FindUserByEmail(ctx, email)
	if errors.Is(err, credential.ErrNotFound) {
		return reject("", "user_not_found")
	}
	if err != nil {
		return token.Grant{}, lookupError(deps, err)
	}

	check, err := deps.OTP.Verify(ctx, user.ID, code, credential.PurposePasswordReset, false)
	if err != nil {
		deps.logger().Error("reset code lookup failed", zap.String("user_id", user.ID), zap.Error(err))
		return token.Grant{}, lookupError(deps, err)
	}
	if !check.Valid {
		return reject(user.ID, "invalid_code")
	}

	if _, err := deps.OTP.InvalidateOthers(ctx, user.ID, credential.PurposePasswordReset, check.Record.ID); err != nil {
		deps.logger().Warn("invalidating sibling reset codes failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	grant, err := deps.Tokens.IssueOneTimeGrant(user.ID, token.PurposePasswordReset, deps.Reset.GrantTTL)
	if err != nil {
		deps.logger().Error("issuing reset grant failed", zap.String("user_id", user.ID), zap.Error(err))
		return token.Grant{}, keyError(deps, err)
	}

	consumed, err := deps.OTP.Verify(ctx, user.ID, code, credential.PurposePasswordReset, true)
	if err != nil {
		deps.logger().Error("consuming reset code failed", zap.String("user_id", user.ID), zap.Error(err))
		return token.Grant{}, lookupError(deps, err)
	}
	if !consumed.Valid {
		return reject(user.ID, "consumed_concurrently")
	}

	deps.inc(metrics.MetricPasswordResetCodeAccepted)
	deps.audit(ctx, EventPasswordResetCode, true, user.ID, nil, map[string]string{
		"grant_id": grant.ID,
	})
	return grant, nil
}

// RunResetPassword redeems a reset grant and replaces the password hash. A
// successful reset also clears the login lockout.
func RunResetPassword(ctx context.Context, deps Deps, grant, newPassword string) error {
	if !deps.Reset.Enabled {
		return deps.Errors.PasswordResetDisabled
	}
	if deps.Store == nil || deps.Tokens == nil || deps.Ledger == nil || deps.Passwords == nil {
		return deps.Errors.Unavailable
	}

	rejectGrant := func(userID, reason string, cause error) error {
		deps.inc(metrics.MetricPasswordResetGrantRejected)
		deps.inc(metrics.MetricTokenRejected)
		deps.logger().Info("reset grant rejected", zap.String("user_id", userID), zap.String("reason", reason), zap.NamedError("cause", cause))
		deps.audit(ctx, EventPasswordResetConfirm, false, userID, deps.Errors.TokenInvalid, map[string]string{
			"reason": reason,
		})
		return deps.Errors.TokenInvalid
	}

	claims, err := deps.Tokens.Verify(grant, token.ExpectPurpose(token.PurposePasswordReset))
	if err != nil {
		if errors.Is(err, token.ErrKeyUnavailable) {
			return keyError(deps, err)
		}
		return rejectGrant("", "token_invalid", err)
	}

	if err := deps.Passwords.Check(newPassword); err != nil {
		deps.audit(ctx, EventPasswordResetConfirm, false, claims.Subject, deps.Errors.PasswordPolicy, nil)
		return fmt.Errorf("%w: %v", deps.Errors.PasswordPolicy, err)
	}

	user, err := deps.Store.FindUserByID(ctx, claims.Subject)
	if errors.Is(err, credential.ErrNotFound) {
		return rejectGrant(claims.Subject, "user_not_found", err)
	}
	if err != nil {
		return lookupError(deps, err)
	}

	redeemed, err := deps.Ledger.Redeem(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		deps.logger().Error("grant ledger unavailable", zap.String("user_id", user.ID), zap.Error(err))
		return lookupError(deps, err)
	}
	if !redeemed {
		deps.audit(ctx, EventPasswordResetReplay, false, user.ID, deps.Errors.TokenInvalid, map[string]string{
			"grant_id": claims.ID,
		})
		return rejectGrant(user.ID, "replayed", nil)
	}

	hash, err := deps.Passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
	}
	zero := 0
	if err := deps.Store.UpdateUser(ctx, user.ID, credential.UserPatch{
		PasswordHash:  &hash,
		LoginAttempts: &zero,
		ClearLock:     true,
	}); err != nil {
		deps.logger().Error("storing new password failed", zap.String("user_id", user.ID), zap.Error(err))
		return lookupError(deps, err)
	}

	deps.inc(metrics.MetricPasswordResetCompleted)
	deps.audit(ctx, EventPasswordResetConfirm, true, user.ID, nil, nil)
	deps.logger().Info("password reset completed", zap.String("user_id", user.ID))
	return nil
}
