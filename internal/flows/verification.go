package flows

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/Agossa1/marketauth/credential"
	"github.com/Agossa1/marketauth/internal/metrics"
	"github.com/Agossa1/marketauth/notify"
	"github.com/Agossa1/marketauth/token"
)

const (
	scopeEmailResend  = "email_verification"
	scopeEmailConfirm = "email_verification_confirm"
	scopePhoneConfirm = "phone_verification_confirm"
)

// RunStartEmailVerification sends a fresh verification code (and link, when
// a link base URL is configured) to a known user.
func RunStartEmailVerification(ctx context.Context, deps Deps, userID string) error {
	if !deps.Verification.EmailEnabled {
		return deps.Errors.EmailVerificationDisabled
	}
	if deps.Store == nil || deps.OTP == nil {
		return deps.Errors.Unavailable
	}

	user, err := deps.Store.FindUserByID(ctx, userID)
	if errors.Is(err, credential.ErrNotFound) {
		return deps.Errors.UserNotFound
	}
	if err != nil {
		return lookupError(deps, err)
	}
	if user.EmailVerified {
		return deps.Errors.AlreadyVerified
	}
	return sendEmailVerification(ctx, deps, user)
}

// RunResendEmailVerification answers identically for unknown, verified and
// unverified addresses; only the last gets a new code.
func RunResendEmailVerification(ctx context.Context, deps Deps, email string) error {
	if !deps.Verification.EmailEnabled {
		return deps.Errors.EmailVerificationDisabled
	}
	if deps.Store == nil || deps.OTP == nil {
		return deps.Errors.Unavailable
	}

	email = credential.NormalizeEmail(email)
	if err := throttle(ctx, deps, scopeEmailResend, email); err != nil {
		return err
	}

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
		return lookupError(deps, err)
	}
	if err != nil || user.EmailVerified {
		deps.audit(ctx, EventEmailVerificationRequest, true, user.ID, nil, map[string]string{
			"enumeration_safe": "true",
		})
		return enumerationDelay(ctx, deps.Verification.EnumerationDelay)
	}
	return sendEmailVerification(ctx, deps, user)
}

func sendEmailVerification(ctx context.Context, deps Deps, user credential.User) error {
	issued, err := issueCode(ctx, deps, user, credential.PurposeEmailVerification, deps.Verification.CodeTTL)
	if err != nil {
		deps.audit(ctx, EventEmailVerificationRequest, false, user.ID, err, nil)
		return err
	}

	msg := notify.Message{
		Channel:   notify.ChannelEmail,
		To:        user.Email,
		UserID:    user.ID,
		Purpose:   credential.PurposeEmailVerification,
		Code:      issued.Code,
		ExpiresAt: issued.Record.ExpiresAt,
	}
	if deps.Verification.LinkBaseURL != "" && deps.Tokens != nil {
		if link, err := emailLink(deps, user.ID); err != nil {
			deps.logger().Warn("verification link not issued", zap.String("user_id", user.ID), zap.Error(err))
		} else {
			msg.Link = link
		}
	}

	send(ctx, deps, msg)
	deps.inc(metrics.MetricEmailVerificationRequest)
	deps.audit(ctx, EventEmailVerificationRequest, true, user.ID, nil, map[string]string{
		"link": strconv.FormatBool(msg.Link != ""),
	})
	return nil
}

func emailLink(deps Deps, userID string) (string, error) {
	grant, err := deps.Tokens.IssueOneTimeGrant(userID, token.PurposeEmailVerification, deps.Verification.LinkTTL)
	if err != nil {
		return "", err
	}
	return verificationLink(deps.Verification.LinkBaseURL, grant.Token)
}

// RunVerifyEmail consumes an email verification code and marks the address
// verified. Every failure reads as OTPInvalid.
func RunVerifyEmail(ctx context.Context, deps Deps, email, code string) (credential.User, error) {
	if !deps.Verification.EmailEnabled {
		return credential.User{}, deps.Errors.EmailVerificationDisabled
	}
	if deps.Store == nil || deps.OTP == nil {
		return credential.User{}, deps.Errors.Unavailable
	}

	email = credential.NormalizeEmail(email)
	if err := throttle(ctx, deps, scopeEmailConfirm, email); err != nil {
		return credential.User{}, err
	}

	reject := func(userID, reason string) (credential.User, error) {
		deps.inc(metrics.MetricEmailVerificationFailure)
		deps.audit(ctx, EventEmailVerificationConfirm, false, userID, deps.Errors.OTPInvalid, map[string]string{
			"reason": reason,
		})
		return credential.User{}, deps.Errors.OTPInvalid
	}

	if email == "" {
		return reject("", "user_not_found")
	}
	user, err := deps.Store.FindUserByEmail(ctx, email)
	if errors.Is(err, credential.ErrNotFound) {
		return reject("", "user_not_found")
	}
	if err != nil {
		return credential.User{}, lookupError(deps, err)
	}

	check, err := deps.OTP.Verify(ctx, user.ID, code, credential.PurposeEmailVerification, true)
	if err != nil {
		return credential.User{}, lookupError(deps, err)
	}
	if !check.Valid {
		return reject(user.ID, "invalid_code")
	}

	if err := markVerified(ctx, deps, user.ID, credential.PurposeEmailVerification); err != nil {
		return credential.User{}, err
	}

	user.EmailVerified = true
	user.PasswordHash = ""
	deps.inc(metrics.MetricEmailVerificationSuccess)
	deps.audit(ctx, EventEmailVerificationConfirm, true, user.ID, nil, map[string]string{
		"method": "code",
	})
	return user, nil
}

// RunVerifyEmailLink redeems an email verification grant from a link.
func RunVerifyEmailLink(ctx context.Context, deps Deps, grant string) (credential.User, error) {
	if !deps.Verification.EmailEnabled {
		return credential.User{}, deps.Errors.EmailVerificationDisabled
	}
	if deps.Store == nil || deps.Tokens == nil || deps.Ledger == nil {
		return credential.User{}, deps.Errors.Unavailable
	}

	reject := func(userID, reason string, cause error) (credential.User, error) {
		deps.inc(metrics.MetricEmailVerificationFailure)
		deps.inc(metrics.MetricTokenRejected)
		deps.logger().Info("verification link rejected", zap.String("reason", reason), zap.NamedError("cause", cause))
		deps.audit(ctx, EventEmailVerificationConfirm, false, userID, deps.Errors.TokenInvalid, map[string]string{
			"reason": reason,
		})
		return credential.User{}, deps.Errors.TokenInvalid
	}

	claims, err := deps.Tokens.Verify(grant, token.ExpectPurpose(token.PurposeEmailVerification))
	if err != nil {
		if errors.Is(err, token.ErrKeyUnavailable) {
			return credential.User{}, keyError(deps, err)
		}
		return reject("", "token_invalid", err)
	}

	user, err := deps.Store.FindUserByID(ctx, claims.Subject)
	if errors.Is(err, credential.ErrNotFound) {
		return reject(claims.Subject, "user_not_found", err)
	}
	if err != nil {
		return credential.User{}, lookupError(deps, err)
	}

	redeemed, err := deps.Ledger.Redeem(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return credential.User{}, lookupError(deps, err)
	}
	if !redeemed {
		return reject(user.ID, "replayed", nil)
	}

	if !user.EmailVerified {
		if err := markVerified(ctx, deps, user.ID, credential.PurposeEmailVerification); err != nil {
			return credential.User{}, err
		}
	}

	user.EmailVerified = true
	user.PasswordHash = ""
	deps.inc(metrics.MetricEmailVerificationSuccess)
	deps.audit(ctx, EventEmailVerificationConfirm, true, user.ID, nil, map[string]string{
		"method": "link",
	})
	return user, nil
}

// RunStartPhoneVerification texts a verification code to the user's phone.
func RunStartPhoneVerification(ctx context.Context, deps Deps, userID string) error {
	if !deps.Verification.PhoneEnabled {
		return deps.Errors.PhoneVerificationDisabled
	}
	if deps.Store == nil || deps.OTP == nil {
		return deps.Errors.Unavailable
	}

	user, err := deps.Store.FindUserByID(ctx, userID)
	if errors.Is(err, credential.ErrNotFound) {
		return deps.Errors.UserNotFound
	}
	if err != nil {
		return lookupError(deps, err)
	}
	if user.Phone == "" {
		return deps.Errors.PhoneNotSet
	}
	if user.PhoneVerified {
		return deps.Errors.AlreadyVerified
	}

	ttl := deps.Verification.PhoneCodeTTL
	if ttl <= 0 {
		ttl = deps.Verification.CodeTTL
	}
	issued, err := issueCode(ctx, deps, user, credential.PurposePhoneVerification, ttl)
	if err != nil {
		deps.audit(ctx, EventPhoneVerificationRequest, false, user.ID, err, nil)
		return err
	}
	send(ctx, deps, notify.Message{
		Channel:   notify.ChannelSMS,
		To:        user.Phone,
		UserID:    user.ID,
		Purpose:   credential.PurposePhoneVerification,
		Code:      issued.Code,
		ExpiresAt: issued.Record.ExpiresAt,
	})
	deps.inc(metrics.MetricPhoneVerificationRequest)
	deps.audit(ctx, EventPhoneVerificationRequest, true, user.ID, nil, nil)
	return nil
}

// RunVerifyPhone consumes a phone verification code.
func RunVerifyPhone(ctx context.Context, deps Deps, userID, code string) error {
	if !deps.Verification.PhoneEnabled {
		return deps.Errors.PhoneVerificationDisabled
	}
	if deps.Store == nil || deps.OTP == nil {
		return deps.Errors.Unavailable
	}
	if err := throttle(ctx, deps, scopePhoneConfirm, userID); err != nil {
		return err
	}

	check, err := deps.OTP.Verify(ctx, userID, code, credential.PurposePhoneVerification, true)
	if err != nil {
		return lookupError(deps, err)
	}
	if !check.Valid {
		deps.inc(metrics.MetricPhoneVerificationFailure)
		deps.audit(ctx, EventPhoneVerificationConfirm, false, userID, deps.Errors.OTPInvalid, nil)
		return deps.Errors.OTPInvalid
	}

	if err := markVerified(ctx, deps, userID, credential.PurposePhoneVerification); err != nil {
		return err
	}
	deps.inc(metrics.MetricPhoneVerificationSuccess)
	deps.audit(ctx, EventPhoneVerificationConfirm, true, userID, nil, nil)
	return nil
}

// markVerified flips the flag for purpose and retires any remaining codes.
func markVerified(ctx context.Context, deps Deps, userID string, purpose credential.Purpose) error {
	verified := true
	patch := credential.UserPatch{EmailVerified: &verified}
	if purpose == credential.PurposePhoneVerification {
		patch = credential.UserPatch{PhoneVerified: &verified}
	}
	if err := deps.Store.UpdateUser(ctx, userID, patch); err != nil {
		deps.logger().Error("marking user verified failed", zap.String("user_id", userID), zap.Error(err))
		return lookupError(deps, err)
	}
	if deps.OTP == nil {
		return nil
	}
	if _, err := deps.OTP.InvalidateAll(ctx, userID, purpose); err != nil {
		deps.logger().Warn("invalidating remaining codes failed", zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}
