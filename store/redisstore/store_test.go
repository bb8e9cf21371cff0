package redisstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Agossa1/marketauth/credential"
	"github.com/Agossa1/marketauth/internal"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func seedUser(t *testing.T, s *Store) credential.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), credential.User{
		Email:         "Vendor@Example.com ",
		Role:          "vendor",
		PasswordHash:  "$argon2id$dummy",
		EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestCreateAndFindUser(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := New(rdb, "t")
	ctx := context.Background()

	u := seedUser(t, s)
	if u.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := s.FindUserByEmail(ctx, "vendor@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if got.ID != u.ID || got.Role != "vendor" || !got.EmailVerified || got.LockedUntil != nil {
		t.Fatalf("unexpected user: %+v", got)
	}

	if _, err := s.CreateUser(ctx, credential.User{Email: "VENDOR@example.com"}); !errors.Is(err, credential.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := s.FindUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindUserByID(ctx, "missing"); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUserPatch(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := New(rdb, "t")
	ctx := context.Background()
	u := seedUser(t, s)

	lock := time.Now().Add(15 * time.Minute).Truncate(time.Millisecond)
	five := 5
	if err := s.UpdateUser(ctx, u.ID, credential.UserPatch{LoginAttempts: &five, LockedUntil: &lock}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.FindUserByID(ctx, u.ID)
	if got.LoginAttempts != 5 || got.LockedUntil == nil || !got.LockedUntil.Equal(lock) {
		t.Fatalf("unexpected lock state: %+v", got)
	}

	zero := 0
	hash := "$argon2id$new"
	if err := s.UpdateUser(ctx, u.ID, credential.UserPatch{LoginAttempts: &zero, ClearLock: true, PasswordHash: &hash}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.FindUserByID(ctx, u.ID)
	if got.LoginAttempts != 0 || got.LockedUntil != nil || got.PasswordHash != hash {
		t.Fatalf("expected lock cleared: %+v", got)
	}

	if err := s.UpdateUser(ctx, "missing", credential.UserPatch{LoginAttempts: &zero}); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordLoginFailureConcurrent(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := New(rdb, "t")
	u := seedUser(t, s)
	lockUntil := time.Now().Add(15 * time.Minute)

	const workers = 12
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.RecordLoginFailure(context.Background(), u.ID, 5, lockUntil); err != nil {
				t.Errorf("record failure: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.FindUserByID(context.Background(), u.ID)
	if got.LoginAttempts != workers {
		t.Fatalf("expected %d attempts, got %d", workers, got.LoginAttempts)
	}
	if !got.IsLocked(time.Now()) {
		t.Fatal("expected account locked")
	}
}

func TestRecordLoginFailureLocksAtMax(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := New(rdb, "t")
	u := seedUser(t, s)
	ctx := context.Background()
	lockUntil := time.Now().Add(15 * time.Minute)

	for i := 1; i <= 4; i++ {
		f, err := s.RecordLoginFailure(ctx, u.ID, 5, lockUntil)
		if err != nil {
			t.Fatalf("failure %d: %v", i, err)
		}
		if f.Attempts != i || f.LockedUntil != nil {
			t.Fatalf("failure %d: unexpected %+v", i, f)
		}
	}
	f, err := s.RecordLoginFailure(ctx, u.ID, 5, lockUntil)
	if err != nil {
		t.Fatalf("fifth failure: %v", err)
	}
	if f.Attempts != 5 || f.LockedUntil == nil || f.LockedUntil.UnixMilli() != lockUntil.UnixMilli() {
		t.Fatalf("expected lock at fifth failure, got %+v", f)
	}

	if _, err := s.RecordLoginFailure(ctx, "missing", 5, lockUntil); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func newOTP(t *testing.T, userID, code string, purpose credential.Purpose, created time.Time, ttl time.Duration) credential.OTP {
	t.Helper()
	id, err := newOTPID()
	if err != nil {
		t.Fatalf("id: %v", err)
	}
	return credential.OTP{
		ID:        id,
		UserID:    userID,
		CodeHash:  internal.HashCode(code),
		Purpose:   purpose,
		CreatedAt: created,
		ExpiresAt: created.Add(ttl),
	}
}

func TestOTPLifecycle(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := New(rdb, "t")
	ctx := context.Background()
	now := time.Now()

	first := newOTP(t, "u1", "111111", credential.PurposePasswordReset, now, 15*time.Minute)
	second := newOTP(t, "u1", "222222", credential.PurposePasswordReset, now.Add(time.Second), 15*time.Minute)
	for _, o := range []credential.OTP{first, second} {
		if err := s.CreateOTP(ctx, o); err != nil {
			t.Fatalf("create otp: %v", err)
		}
	}

	got, err := s.FindLatestValidOTP(ctx, "u1", internal.HashCode("111111"), credential.PurposePasswordReset, now)
	if err != nil || got.ID != first.ID {
		t.Fatalf("find first: %+v %v", got, err)
	}
	if _, err := s.FindLatestValidOTP(ctx, "u1", internal.HashCode("111111"), credential.PurposeEmailVerification, now); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("purpose must scope lookups, got %v", err)
	}

	n, err := s.InvalidateOTPs(ctx, "u1", credential.PurposePasswordReset, second.ID, now)
	if err != nil || n != 1 {
		t.Fatalf("invalidate others: n=%d err=%v", n, err)
	}
	if _, err := s.FindLatestValidOTP(ctx, "u1", internal.HashCode("111111"), credential.PurposePasswordReset, now); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("invalidated code must not be found, got %v", err)
	}

	ok, err := s.MarkOTPUsed(ctx, second, now)
	if err != nil || !ok {
		t.Fatalf("mark used: ok=%v err=%v", ok, err)
	}
	ok, err = s.MarkOTPUsed(ctx, second, now)
	if err != nil || ok {
		t.Fatalf("second mark must fail: ok=%v err=%v", ok, err)
	}
	if _, err := s.FindLatestValidOTP(ctx, "u1", internal.HashCode("222222"), credential.PurposePasswordReset, now); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("used code must not be found, got %v", err)
	}
}

func TestOTPExpiry(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := New(rdb, "t")
	ctx := context.Background()
	now := time.Now()

	o := newOTP(t, "u1", "333333", credential.PurposeEmailVerification, now, time.Minute)
	if err := s.CreateOTP(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}
	later := now.Add(2 * time.Minute)
	if _, err := s.FindLatestValidOTP(ctx, "u1", o.CodeHash, o.Purpose, later); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expired code must not be found, got %v", err)
	}
	if ok, err := s.MarkOTPUsed(ctx, o, later); err != nil || ok {
		t.Fatalf("expired code must not be consumed: ok=%v err=%v", ok, err)
	}
}

func TestMarkOTPUsedConcurrent(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := New(rdb, "t")
	now := time.Now()
	o := newOTP(t, "u1", "444444", credential.PurposePasswordReset, now, 15*time.Minute)
	if err := s.CreateOTP(context.Background(), o); err != nil {
		t.Fatalf("create: %v", err)
	}

	var (
		mu   sync.Mutex
		wins int
		wg   sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.MarkOTPUsed(context.Background(), o, now)
			if err != nil {
				t.Errorf("mark: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one consumer, got %d", wins)
	}
}

func TestStoreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	s := New(rdb, "t")
	mr.Close()

	if _, err := s.FindUserByEmail(context.Background(), "a@b.c"); !errors.Is(err, credential.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func newOTPID() (string, error) {
	id, err := uuid.NewV7()
	return id.String(), err
}
