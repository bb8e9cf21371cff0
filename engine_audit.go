package marketauth

import (
	"context"
	"errors"
	"time"

	"github.com/Agossa1/marketauth/internal/flows"
)

const (
	auditEventRefreshSuccess   = "refresh_success"
	auditEventRefreshInvalid   = "refresh_invalid"
	auditEventAccountCreated   = "account_created"
	auditEventAccountDuplicate = "account_duplicate"
)

// AuditErrorCode is the coarse error class recorded in AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials   AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked        AuditErrorCode = "account_locked"
	auditErrVerificationRequired AuditErrorCode = "verification_required"
	auditErrOTPInvalid           AuditErrorCode = "otp_invalid"
	auditErrInvalidToken         AuditErrorCode = "invalid_token"
	auditErrPasswordPolicy       AuditErrorCode = "password_policy"
	auditErrRateLimited          AuditErrorCode = "rate_limited"
	auditErrUserNotFound         AuditErrorCode = "user_not_found"
	auditErrAlreadyVerified      AuditErrorCode = "already_verified"
	auditErrAccountExists        AuditErrorCode = "account_exists"
	auditErrFeatureDisabled      AuditErrorCode = "feature_disabled"
	auditErrUnavailable          AuditErrorCode = "backend_unavailable"
	auditErrInternal             AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadata map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// flowAudit adapts emitAudit to the hook signature flows use.
func (e *Engine) flowAudit(ctx context.Context, event string, success bool, userID string, err error, metadata map[string]string) {
	sessionID := ""
	if metadata != nil {
		sessionID = metadata["session_id"]
	}
	e.emitAudit(ctx, event, success, userID, sessionID, err, metadata)
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

// AuditDropped returns how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrVerificationRequired):
		return auditErrVerificationRequired
	case errors.Is(err, ErrOTPInvalid):
		return auditErrOTPInvalid
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrPhoneNotSet):
		return auditErrUserNotFound
	case errors.Is(err, ErrAlreadyVerified):
		return auditErrAlreadyVerified
	case errors.Is(err, ErrAccountExists):
		return auditErrAccountExists
	case errors.Is(err, ErrPasswordResetDisabled),
		errors.Is(err, ErrEmailVerificationDisabled),
		errors.Is(err, ErrPhoneVerificationDisabled):
		return auditErrFeatureDisabled
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrKeyUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

func (e *Engine) flowErrors() flows.Errors {
	return flows.Errors{
		InvalidCredentials:        ErrInvalidCredentials,
		AccountLocked:             ErrAccountLocked,
		VerificationRequired:      ErrVerificationRequired,
		Unavailable:               ErrUnavailable,
		KeyUnavailable:            ErrKeyUnavailable,
		RateLimited:               ErrRateLimited,
		OTPInvalid:                ErrOTPInvalid,
		TokenInvalid:              ErrTokenInvalid,
		PasswordPolicy:            ErrPasswordPolicy,
		UserNotFound:              ErrUserNotFound,
		AlreadyVerified:           ErrAlreadyVerified,
		PhoneNotSet:               ErrPhoneNotSet,
		PasswordResetDisabled:     ErrPasswordResetDisabled,
		EmailVerificationDisabled: ErrEmailVerificationDisabled,
		PhoneVerificationDisabled: ErrPhoneVerificationDisabled,
	}
}
