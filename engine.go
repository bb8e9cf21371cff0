package marketauth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Agossa1/marketauth/credential"
	internalaudit "github.com/Agossa1/marketauth/internal/audit"
	"github.com/Agossa1/marketauth/internal/flows"
	internalmetrics "github.com/Agossa1/marketauth/internal/metrics"
	"github.com/Agossa1/marketauth/otp"
	"github.com/Agossa1/marketauth/password"
	"github.com/Agossa1/marketauth/token"
)

// Engine is the authentication facade of the marketplace. It is safe for
// concurrent use once built.
type Engine struct {
	config   Config
	store    CredentialStore
	tokens   *token.Service
	keys     *token.KeyProvider
	ledger   token.GrantLedger
	otp      *otp.Manager
	hasher   *password.Hasher
	logger   *zap.Logger
	clock    func() time.Time
	metrics  *internalmetrics.Metrics
	audit    *internalaudit.Dispatcher
	flowDeps flows.Deps
}

// Login checks credentials under the lockout policy. Expected outcomes
// (wrong password, locked, unverified) are reported in LoginResult with a
// nil error; the error is reserved for backend and key faults.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	if e == nil {
		return LoginResult{}, ErrEngineNotReady
	}

	out, err := flows.RunLogin(ctx, e.flowDeps, flows.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
	})
	if err != nil {
		return LoginResult{}, err
	}

	res := LoginResult{
		Outcome:           out.Outcome,
		Message:           loginMessage(out, e.now()),
		RemainingAttempts: out.RemainingAttempts,
		LockedUntil:       out.LockedUntil,
	}
	if out.Outcome == LoginSucceeded {
		res.UserID = out.User.ID
		res.Role = out.User.Role
		res.AccessToken = out.Session.AccessToken
		res.RefreshToken = out.Session.RefreshToken
		res.SessionID = out.Session.SessionID
		res.AccessExpiresAt = out.Session.AccessExpiresAt
		res.RefreshExpiresAt = out.Session.RefreshExpiresAt
	}
	return res, nil
}

// RefreshAccess mints a new access token for the session of refreshToken.
// The account is re-read so a lock placed after login stops the refresh.
func (e *Engine) RefreshAccess(ctx context.Context, refreshToken string) (AccessGrant, error) {
	if e == nil {
		return AccessGrant{}, ErrEngineNotReady
	}

	claims, err := e.tokens.Verify(refreshToken, token.ExpectPurpose(token.PurposeRefresh))
	if err != nil {
		return AccessGrant{}, e.refreshRejected(ctx, "", err)
	}

	user, err := e.store.FindUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return AccessGrant{}, e.refreshRejected(ctx, claims.Subject, err)
		}
		e.logger.Error("refresh lookup failed", zap.String("user_id", claims.Subject), zap.Error(err))
		return AccessGrant{}, wrapUnavailable(err)
	}
	if user.IsLocked(e.now()) {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, user.ID, claims.SessionID, ErrAccountLocked, nil)
		return AccessGrant{}, ErrAccountLocked
	}

	rememberMe := claims.Ext["rm"] == "1"
	access, expiresAt, err := e.tokens.IssueAccess(token.Identity{
		Subject:  user.ID,
		Role:     user.Role,
		Verified: user.EmailVerified,
	}, claims.SessionID, rememberMe)
	if err != nil {
		return AccessGrant{}, tokenFault(err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, claims.SessionID, nil, nil)
	return AccessGrant{AccessToken: access, ExpiresAt: expiresAt, SessionID: claims.SessionID}, nil
}

// VerifyAccess opens an access token and returns its claims. Every token
// failure reads ErrTokenInvalid; the detail is logged at debug level.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (*Claims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.Verify(accessToken, token.ExpectPurpose(token.PurposeAccess))
	if err != nil {
		if errors.Is(err, token.ErrKeyUnavailable) {
			return nil, tokenFault(err)
		}
		e.metricInc(MetricTokenRejected)
		e.logger.Debug("access token rejected", zap.Error(err))
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Config returns the configuration the Engine was built with.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return e.config
}

// KeyFingerprint returns a short digest identifying the sealing key.
func (e *Engine) KeyFingerprint() (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	fp, err := e.keys.Fingerprint()
	if err != nil {
		return "", tokenFault(err)
	}
	return fp, nil
}

// Close flushes pending audit events. The Engine must not be used after.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

func (e *Engine) refreshRejected(ctx context.Context, userID string, cause error) error {
	if errors.Is(cause, token.ErrKeyUnavailable) {
		return tokenFault(cause)
	}
	e.metricInc(MetricRefreshFailure)
	e.metricInc(MetricTokenRejected)
	e.logger.Debug("refresh token rejected", zap.String("user_id", userID), zap.Error(cause))
	e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, "", ErrTokenInvalid, nil)
	return ErrTokenInvalid
}
