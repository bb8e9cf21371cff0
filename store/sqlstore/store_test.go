package sqlstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Agossa1/marketauth/credential"
	"github.com/Agossa1/marketauth/internal"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store) credential.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), credential.User{
		Email:        " Buyer@Example.com",
		Role:         "customer",
		PasswordHash: "$argon2id$dummy",
	})
	require.NoError(t, err)
	return u
}

func testOTP(userID, code string, purpose credential.Purpose, created time.Time, ttl time.Duration) credential.OTP {
	id, _ := uuid.NewV7()
	return credential.OTP{
		ID:        id.String(),
		UserID:    userID,
		CodeHash:  internal.HashCode(code),
		Purpose:   purpose,
		CreatedAt: created,
		ExpiresAt: created.Add(ttl),
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := dialectFor("oracle")
	assert.Error(t, err)
}

func TestCreateAndFindUser(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s)

	got, err := s.FindUserByEmail(ctx, "BUYER@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "buyer@example.com", got.Email)
	assert.Equal(t, "customer", got.Role)
	assert.False(t, got.EmailVerified)
	assert.Nil(t, got.LockedUntil)
	assert.Nil(t, got.LastLogin)
	assert.Equal(t, u.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())

	_, err = s.CreateUser(ctx, credential.User{Email: "buyer@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, credential.ErrDuplicate)

	_, err = s.FindUserByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestUpdateUser(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s)

	now := time.Now().Truncate(time.Millisecond)
	verified := true
	zero := 0
	require.NoError(t, s.UpdateUser(ctx, u.ID, credential.UserPatch{EmailVerified: &verified, LastLogin: &now, LoginAttempts: &zero, ClearLock: true}))

	got, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.EmailVerified)
	require.NotNil(t, got.LastLogin)
	assert.True(t, got.LastLogin.Equal(now))

	assert.ErrorIs(t, s.UpdateUser(ctx, "missing", credential.UserPatch{EmailVerified: &verified}), credential.ErrNotFound)
	assert.NoError(t, s.UpdateUser(ctx, u.ID, credential.UserPatch{}))
}

func TestRecordLoginFailureLocksAtMax(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s)
	lockUntil := time.Now().Add(15 * time.Minute).Truncate(time.Millisecond)

	for i := 1; i <= 4; i++ {
		f, err := s.RecordLoginFailure(ctx, u.ID, 5, lockUntil)
		require.NoError(t, err)
		assert.Equal(t, i, f.Attempts)
		assert.Nil(t, f.LockedUntil)
	}

	f, err := s.RecordLoginFailure(ctx, u.ID, 5, lockUntil)
	require.NoError(t, err)
	assert.Equal(t, 5, f.Attempts)
	require.NotNil(t, f.LockedUntil)
	assert.True(t, f.LockedUntil.Equal(lockUntil))

	_, err = s.RecordLoginFailure(ctx, "missing", 5, lockUntil)
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestRecordLoginFailureConcurrent(t *testing.T) {
	s := setupTestStore(t)
	u := seedUser(t, s)
	lockUntil := time.Now().Add(15 * time.Minute)

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.RecordLoginFailure(context.Background(), u.ID, 5, lockUntil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.FindUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, got.LoginAttempts)
	assert.True(t, got.IsLocked(time.Now()))
}

func TestOTPLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	first := testOTP("u1", "111111", credential.PurposeEmailVerification, now, 15*time.Minute)
	second := testOTP("u1", "111111", credential.PurposeEmailVerification, now.Add(time.Second), 15*time.Minute)
	require.NoError(t, s.CreateOTP(ctx, first))
	require.NoError(t, s.CreateOTP(ctx, second))

	got, err := s.FindLatestValidOTP(ctx, "u1", internal.HashCode("111111"), credential.PurposeEmailVerification, now.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID, "newest matching code wins")

	ok, err := s.MarkOTPUsed(ctx, got, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.MarkOTPUsed(ctx, got, now)
	require.NoError(t, err)
	assert.False(t, ok, "a used code cannot be consumed twice")

	n, err := s.InvalidateOTPs(ctx, "u1", credential.PurposeEmailVerification, "", now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.FindLatestValidOTP(ctx, "u1", internal.HashCode("111111"), credential.PurposeEmailVerification, now)
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestOTPExpiryAndPurge(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	o := testOTP("u1", "222222", credential.PurposePasswordReset, now, time.Minute)
	require.NoError(t, s.CreateOTP(ctx, o))

	later := now.Add(2 * time.Minute)
	_, err := s.FindLatestValidOTP(ctx, "u1", o.CodeHash, o.Purpose, later)
	assert.ErrorIs(t, err, credential.ErrNotFound)

	ok, err := s.MarkOTPUsed(ctx, o, later)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.PurgeOTPs(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMarkOTPUsedConcurrent(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now()
	o := testOTP("u1", "333333", credential.PurposePasswordReset, now, 15*time.Minute)
	require.NoError(t, s.CreateOTP(context.Background(), o))

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
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
