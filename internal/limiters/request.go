package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited          = errors.New("request rate limited")
	ErrLimiterUnavailable   = errors.New("request limiter unavailable")
	errInvalidLimiterConfig = errors.New("request limiter requires a positive window and max requests")
)

// RequestConfig bounds how many requests per window a single identifier or
// client IP may make for one scope (for example "password_reset").
type RequestConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	Window                   time.Duration
	MaxRequests              int
	Prefix                   string
}

// RequestLimiter is a fixed-window Redis counter. A nil *RequestLimiter
// allows everything.
type RequestLimiter struct {
	redis  redis.UniversalClient
	config RequestConfig
}

func NewRequestLimiter(redisClient redis.UniversalClient, cfg RequestConfig) (*RequestLimiter, error) {
	if redisClient == nil {
		return nil, nil
	}
	if !cfg.EnableIdentifierThrottle && !cfg.EnableIPThrottle {
		return nil, nil
	}
	if cfg.Window <= 0 || cfg.MaxRequests <= 0 {
		return nil, errInvalidLimiterConfig
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "mka:rl"
	}
	return &RequestLimiter{
		redis:  redisClient,
		config: cfg,
	}, nil
}

// Check counts one request for scope against identifier and ip. Empty
// identifiers or IPs are not counted.
func (l *RequestLimiter) Check(ctx context.Context, scope, identifier, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableIdentifierThrottle && identifier != "" {
		if err := l.enforceFixedWindow(ctx, l.key(scope, "id", identifier)); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceFixedWindow(ctx, l.key(scope, "ip", ip)); err != nil {
			return err
		}
	}
	return nil
}

// Window returns the fixed window length.
func (l *RequestLimiter) Window() time.Duration {
	if l == nil {
		return 0
	}
	return l.config.Window
}

func (l *RequestLimiter) enforceFixedWindow(ctx context.Context, key string) error {
	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.config.Window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}

	if incr.Val() > int64(l.config.MaxRequests) {
		return ErrRateLimited
	}
	return nil
}

func (l *RequestLimiter) key(scope, kind, value string) string {
	return l.config.Prefix + ":" + scope + ":" + kind + ":" + value
}
