package flows

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/Agossa1/marketauth/credential"
	"github.com/Agossa1/marketauth/internal/limiters"
	"github.com/Agossa1/marketauth/internal/metrics"
	"github.com/Agossa1/marketauth/notify"
	"github.com/Agossa1/marketauth/otp"
)

// issueCode makes the new code the only live one for (user, purpose). A
// failed invalidation is logged and the new code is still issued.
func issueCode(ctx context.Context, deps Deps, user credential.User, purpose credential.Purpose, ttl time.Duration) (otp.Issued, error) {
	if n, err := deps.OTP.InvalidateAll(ctx, user.ID, purpose); err != nil {
		deps.logger().Warn("invalidating previous codes failed",
			zap.String("user_id", user.ID),
			zap.String("purpose", string(purpose)),
			zap.Error(err),
		)
	} else if n > 0 {
		deps.logger().Debug("previous codes invalidated",
			zap.String("user_id", user.ID),
			zap.String("purpose", string(purpose)),
			zap.Int("count", n),
		)
	}

	issued, err := deps.OTP.Create(ctx, user.ID, purpose, ttl)
	if err != nil {
		deps.logger().Error("creating code failed",
			zap.String("user_id", user.ID),
			zap.String("purpose", string(purpose)),
			zap.Error(err),
		)
		return otp.Issued{}, fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
	}
	deps.inc(metrics.MetricOTPIssued)
	return issued, nil
}

// send hands msg to the notifier. Delivery failures never change the
// caller-visible response; they are logged, counted and audited.
func send(ctx context.Context, deps Deps, msg notify.Message) {
	if deps.Notifier == nil {
		deps.logger().Error("no notifier configured", zap.String("purpose", string(msg.Purpose)))
		deps.inc(metrics.MetricNotificationFailed)
		return
	}
	if err := deps.Notifier.SendCode(ctx, msg); err != nil {
		deps.logger().Warn("sending code failed",
			zap.String("user_id", msg.UserID),
			zap.String("purpose", string(msg.Purpose)),
			zap.String("channel", string(msg.Channel)),
			zap.Error(err),
		)
		deps.inc(metrics.MetricNotificationFailed)
		deps.audit(ctx, EventNotificationFailed, false, msg.UserID, err, map[string]string{
			"purpose": string(msg.Purpose),
			"channel": string(msg.Channel),
		})
	}
}

// throttle applies the request limiter for scope. Limiter outages fail open.
func throttle(ctx context.Context, deps Deps, scope, identifier string) error {
	err := deps.Limiter.Check(ctx, scope, identifier, deps.clientIP(ctx))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrRateLimited):
		deps.inc(metrics.MetricRateLimitHit)
		deps.audit(ctx, EventRateLimitTriggered, false, "", deps.Errors.RateLimited, map[string]string{
			"scope": scope,
		})
		return deps.Errors.RateLimited
	default:
		deps.logger().Warn("request limiter unavailable", zap.String("scope", scope), zap.Error(err))
		return nil
	}
}

// enumerationDelay waits d, returning early when ctx ends.
func enumerationDelay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func verificationLink(base, grant string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", grant)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func lookupError(deps Deps, err error) error {
	return fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
}
