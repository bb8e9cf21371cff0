package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// GrantLedger records redeemed one-time grants by jti.
type GrantLedger interface {
	// Redeem returns true the first time jti is seen and false afterwards.
	// expiresAt bounds how long the record must be kept.
	Redeem(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
}

// RedisLedger keeps redeemed jtis as SET NX keys that expire with the grant.
type RedisLedger struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisLedger returns a ledger storing keys under prefix.
func NewRedisLedger(rdb redis.UniversalClient, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = "mka:grant"
	}
	return &RedisLedger{redis: rdb, prefix: prefix, now: time.Now}
}

func (l *RedisLedger) Redeem(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	if strings.TrimSpace(jti) == "" {
		return false, errors.New("token: grant has no jti")
	}
	ttl := expiresAt.Sub(l.now()) + DefaultLeeway
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := l.redis.SetNX(ctx, l.prefix+":"+jti, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return ok, nil
}

// MemoryLedger is a process-local ledger bounded by an LRU. size must cover
// the number of grants alive at once; an evicted jti could be redeemed again.
type MemoryLedger struct {
	cache *lru.Cache[string, time.Time]
}

// NewMemoryLedger returns a ledger holding at most size jtis.
func NewMemoryLedger(size int) (*MemoryLedger, error) {
	if size <= 0 {
		return nil, errors.New("token: ledger size must be > 0")
	}
	cache, err := lru.New[string, time.Time](size)
	if err != nil {
		return nil, err
	}
	return &MemoryLedger{cache: cache}, nil
}

func (l *MemoryLedger) Redeem(_ context.Context, jti string, expiresAt time.Time) (bool, error) {
	if strings.TrimSpace(jti) == "" {
		return false, errors.New("token: grant has no jti")
	}
	seen, _ := l.cache.ContainsOrAdd(jti, expiresAt)
	return !seen, nil
}
