package flows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Agossa1/marketauth/credential"
	"github.com/Agossa1/marketauth/notify"
	"github.com/Agossa1/marketauth/otp"
	"github.com/Agossa1/marketauth/password"
	"github.com/Agossa1/marketauth/store/redisstore"
	"github.com/Agossa1/marketauth/token"
)

var testErrors = Errors{
	InvalidCredentials:        errors.New("invalid credentials"),
	AccountLocked:             errors.New("account locked"),
	VerificationRequired:      errors.New("verification required"),
	Unavailable:               errors.New("unavailable"),
	KeyUnavailable:            errors.New("key unavailable"),
	RateLimited:               errors.New("rate limited"),
	OTPInvalid:                errors.New("otp invalid"),
	TokenInvalid:              errors.New("token invalid"),
	PasswordPolicy:            errors.New("password policy"),
	UserNotFound:              errors.New("user not found"),
	AlreadyVerified:           errors.New("already verified"),
	PhoneNotSet:               errors.New("phone not set"),
	PasswordResetDisabled:     errors.New("password reset disabled"),
	EmailVerificationDisabled: errors.New("email verification disabled"),
	PhoneVerificationDisabled: errors.New("phone verification disabled"),
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (n *captureNotifier) SendCode(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *captureNotifier) last(t *testing.T) notify.Message {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.msgs) == 0 {
		t.Fatal("no message sent")
	}
	return n.msgs[len(n.msgs)-1]
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

type testEnv struct {
	deps     Deps
	store    *redisstore.Store
	clock    *testClock
	notifier *captureNotifier
	mr       *miniredis.Miniredis
	rdb      *redis.Client
}

func fastHasher(t *testing.T) *password.Hasher {
	t.Helper()
	h, err := password.NewHasher(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}, password.DefaultPolicy(), true)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	return h
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	clock := &testClock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	store := redisstore.New(rdb, "flows-test")

	otps, err := otp.NewManager(store, otp.Config{Now: clock.Now})
	if err != nil {
		t.Fatalf("otp manager: %v", err)
	}
	key, err := token.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tokens, err := token.NewService(token.StaticKey(key), token.Config{
		Issuer:   "marketauth",
		Audience: "marketplace",
		Now:      clock.Now,
	})
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	ledger, err := token.NewMemoryLedger(128)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}

	notifier := &captureNotifier{}
	return &testEnv{
		deps: Deps{
			Login: LoginPolicy{
				MaxAttempts:        DefaultMaxLoginAttempts,
				LockoutDuration:    DefaultLockoutDuration,
				UpgradeHashOnLogin: true,
			},
			Reset: ResetPolicy{
				Enabled:              true,
				CodeTTL:              15 * time.Minute,
				GrantTTL:             15 * time.Minute,
				RequireVerifiedEmail: true,
			},
			Verification: VerificationPolicy{
				EmailEnabled: true,
				PhoneEnabled: true,
				CodeTTL:      15 * time.Minute,
				LinkTTL:      time.Hour,
			},
			Store:     store,
			OTP:       otps,
			Tokens:    tokens,
			Ledger:    ledger,
			Passwords: fastHasher(t),
			Notifier:  notifier,
			Now:       clock.Now,
			Errors:    testErrors,
		},
		store:    store,
		clock:    clock,
		notifier: notifier,
		mr:       mr,
		rdb:      rdb,
	}
}

func (e *testEnv) seedUser(t *testing.T, email, pass string, verified bool) credential.User {
	t.Helper()
	hash, err := e.deps.Passwords.Hash(pass)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user, err := e.store.CreateUser(context.Background(), credential.User{
		Email:         email,
		Phone:         "+22997000000",
		Role:          "buyer",
		PasswordHash:  hash,
		EmailVerified: verified,
		CreatedAt:     e.clock.Now(),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (e *testEnv) reload(t *testing.T, id string) credential.User {
	t.Helper()
	user, err := e.store.FindUserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	return user
}
