package marketauth

import (
	"context"
	"errors"
	"net/mail"

	"go.uber.org/zap"

	"github.com/Agossa1/marketauth/credential"
)

// DefaultRole is assigned by Register when the request names none.
const DefaultRole = "buyer"

// RegisterRequest is the input of [Engine.Register].
type RegisterRequest struct {
	Email    string
	Password string
	Phone    string
	Role     string
}

// Register creates an account with an Argon2id hash and, when email
// verification is enabled, sends the first verification code.
//
// Code delivery is best effort. If issuing the code fails after the account
// is stored, the created user is returned together with the error so the
// caller can offer a resend instead of a second registration.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (User, error) {
	if e == nil {
		return User{}, ErrEngineNotReady
	}

	email := credential.NormalizeEmail(req.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return User{}, ErrInvalidEmail
	}
	if err := e.hasher.Check(req.Password); err != nil {
		e.emitAudit(ctx, auditEventAccountCreated, false, "", "", ErrPasswordPolicy, map[string]string{
			"reason": "password_policy",
		})
		return User{}, ErrPasswordPolicy
	}
	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return User{}, ErrPasswordPolicy
	}

	role := req.Role
	if role == "" {
		role = DefaultRole
	}

	user, err := e.store.CreateUser(ctx, User{
		Email:        email,
		Phone:        req.Phone,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    e.now(),
	})
	if errors.Is(err, credential.ErrDuplicate) {
		e.metricInc(MetricAccountDuplicate)
		e.emitAudit(ctx, auditEventAccountDuplicate, false, "", "", ErrAccountExists, nil)
		return User{}, ErrAccountExists
	}
	if err != nil {
		e.logger.Error("creating account failed", zap.Error(err))
		return User{}, wrapUnavailable(err)
	}
	user.PasswordHash = ""

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountCreated, true, user.ID, "", nil, map[string]string{
		"role": role,
	})

	if e.config.EmailVerification.Enabled {
		if err := e.StartEmailVerification(ctx, user.ID); err != nil {
			return user, err
		}
	}
	return user, nil
}
