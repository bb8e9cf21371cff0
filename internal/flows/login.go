package flows

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Agossa1/marketauth/credential"
	"github.com/Agossa1/marketauth/internal/metrics"
	"github.com/Agossa1/marketauth/token"
)

const (
	DefaultMaxLoginAttempts = 5
	DefaultLockoutDuration  = 15 * time.Minute
)

// LoginOutcome is the expected, user-facing result of a login attempt.
type LoginOutcome uint8

const (
	LoginSucceeded LoginOutcome = iota + 1
	LoginInvalidCredentials
	LoginAccountLocked
	LoginVerificationRequired
)

func (o LoginOutcome) String() string {
	switch o {
	case LoginSucceeded:
		return "succeeded"
	case LoginInvalidCredentials:
		return "invalid_credentials"
	case LoginAccountLocked:
		return "account_locked"
	case LoginVerificationRequired:
		return "verification_required"
	default:
		return "unknown"
	}
}

type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
}

// LoginOutput is filled according to Outcome. RemainingAttempts is -1 when
// the account is unknown, so no figure is reported for it.
type LoginOutput struct {
	Outcome           LoginOutcome
	User              credential.User
	Session           token.SessionPair
	RemainingAttempts int
	LockedUntil       *time.Time
}

// RunLogin checks the lock before the password, counts failures atomically
// in the store and issues a session pair on success.
func RunLogin(ctx context.Context, deps Deps, in LoginInput) (LoginOutput, error) {
	started := time.Now()
	defer func() {
		deps.observe(metrics.MetricLoginLatency, time.Since(started))
	}()

	if deps.Store == nil || deps.Passwords == nil || deps.Tokens == nil {
		return LoginOutput{}, deps.Errors.Unavailable
	}
	maxAttempts := deps.Login.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxLoginAttempts
	}
	lockout := deps.Login.LockoutDuration
	if lockout <= 0 {
		lockout = DefaultLockoutDuration
	}

	now := deps.now()
	email := credential.NormalizeEmail(in.Email)
	log := deps.logger()

	var (
		user credential.User
		err  error
	)
	if email != "" {
		user, err = deps.Store.FindUserByEmail(ctx, email)
	} else {
		err = credential.ErrNotFound
	}
	if errors.Is(err, credential.ErrNotFound) {
		_, _ = deps.Passwords.Verify(in.Password, deps.Passwords.Dummy())
		deps.inc(metrics.MetricLoginInvalidCredentials)
		deps.audit(ctx, EventLoginFailure, false, "", deps.Errors.UserNotFound, map[string]string{
			"reason": "user_not_found",
		})
		return LoginOutput{Outcome: LoginInvalidCredentials, RemainingAttempts: -1}, nil
	}
	if err != nil {
		log.Error("login user lookup failed", zap.Error(err))
		return LoginOutput{}, fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
	}

	if user.IsLocked(now) {
		deps.inc(metrics.MetricLoginLocked)
		deps.audit(ctx, EventLoginLocked, false, user.ID, deps.Errors.AccountLocked, map[string]string{
			"locked_until": user.LockedUntil.UTC().Format(time.RFC3339),
		})
		return LoginOutput{Outcome: LoginAccountLocked, RemainingAttempts: 0, LockedUntil: user.LockedUntil}, nil
	}

	ok, err := deps.Passwords.Verify(in.Password, user.PasswordHash)
	if err != nil {
		log.Warn("stored password hash rejected", zap.String("user_id", user.ID), zap.Error(err))
		ok = false
	}
	if !ok {
		failure, err := deps.Store.RecordLoginFailure(ctx, user.ID, maxAttempts, now.Add(lockout))
		if err != nil {
			log.Error("recording login failure failed", zap.String("user_id", user.ID), zap.Error(err))
			return LoginOutput{}, fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
		}

		out := LoginOutput{
			Outcome:           LoginInvalidCredentials,
			RemainingAttempts: max(0, maxAttempts-failure.Attempts),
		}
		if failure.Locked(now) {
			out.LockedUntil = failure.LockedUntil
			deps.inc(metrics.MetricAccountLockTriggered)
			deps.audit(ctx, EventAccountLocked, true, user.ID, nil, map[string]string{
				"attempts":     strconv.Itoa(failure.Attempts),
				"locked_until": failure.LockedUntil.UTC().Format(time.RFC3339),
			})
			log.Info("account locked", zap.String("user_id", user.ID), zap.Int("attempts", failure.Attempts))
		}
		deps.inc(metrics.MetricLoginInvalidCredentials)
		deps.audit(ctx, EventLoginFailure, false, user.ID, deps.Errors.InvalidCredentials, map[string]string{
			"reason":   "bad_password",
			"attempts": strconv.Itoa(failure.Attempts),
		})
		return out, nil
	}

	if deps.Login.RequireVerifiedEmail && !user.EmailVerified {
		deps.inc(metrics.MetricLoginVerificationRequired)
		deps.audit(ctx, EventLoginFailure, false, user.ID, deps.Errors.VerificationRequired, map[string]string{
			"reason": "email_unverified",
		})
		user.PasswordHash = ""
		return LoginOutput{Outcome: LoginVerificationRequired, User: user, RemainingAttempts: max(0, maxAttempts-user.LoginAttempts)}, nil
	}

	zero := 0
	patch := credential.UserPatch{
		LoginAttempts: &zero,
		ClearLock:     true,
		LastLogin:     &now,
	}
	upgraded := false
	if deps.Login.UpgradeHashOnLogin && deps.Passwords.NeedsUpgrade(user.PasswordHash) {
		if newHash, err := deps.Passwords.Hash(in.Password); err == nil {
			patch.PasswordHash = &newHash
			upgraded = true
		} else {
			log.Debug("password hash upgrade skipped", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	if err := deps.Store.UpdateUser(ctx, user.ID, patch); err != nil {
		log.Error("resetting login attempts failed", zap.String("user_id", user.ID), zap.Error(err))
		return LoginOutput{}, fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
	}
	if upgraded {
		deps.inc(metrics.MetricPasswordUpgraded)
		deps.audit(ctx, EventPasswordUpgraded, true, user.ID, nil, nil)
	}

	pair, err := deps.Tokens.IssueSessionPair(token.Identity{
		Subject:  user.ID,
		Role:     user.Role,
		Verified: user.EmailVerified,
	}, in.RememberMe)
	if err != nil {
		log.Error("issuing session failed", zap.String("user_id", user.ID), zap.Error(err))
		return LoginOutput{}, keyError(deps, err)
	}

	user.PasswordHash = ""
	user.LoginAttempts = 0
	user.LockedUntil = nil
	user.LastLogin = &now

	deps.inc(metrics.MetricLoginSuccess)
	deps.inc(metrics.MetricSessionIssued)
	deps.audit(ctx, EventLoginSuccess, true, user.ID, nil, map[string]string{
		"session_id":  pair.SessionID,
		"remember_me": strconv.FormatBool(in.RememberMe),
	})
	return LoginOutput{
		Outcome:           LoginSucceeded,
		User:              user,
		Session:           pair,
		RemainingAttempts: maxAttempts,
	}, nil
}

// keyError maps token issuance failures: a missing key is a KeyUnavailable
// fault, anything else is Unavailable.
func keyError(deps Deps, err error) error {
	if errors.Is(err, token.ErrKeyUnavailable) {
		return fmt.Errorf("%w: %v", deps.Errors.KeyUnavailable, err)
	}
	return fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
}
