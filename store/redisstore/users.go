package redisstore

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Agossa1/marketauth/credential"
)

const (
	fieldID            = "id"
	fieldEmail         = "email"
	fieldPhone         = "phone"
	fieldRole          = "role"
	fieldPasswordHash  = "password_hash"
	fieldLoginAttempts = "login_attempts"
	fieldLockedUntil   = "locked_until"
	fieldEmailVerified = "email_verified"
	fieldPhoneVerified = "phone_verified"
	fieldLastLogin     = "last_login"
	fieldCreatedAt     = "created_at"
)

// KEYS[1]=email index, KEYS[2]=user hash, ARGV[1]=id, ARGV[2..]=field/value pairs
var createUserLua = redis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[2], unpack(ARGV, 2))
return 1
`)

// KEYS[1]=user hash, ARGV=field/value pairs
var updateUserLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {err='not_found'}
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// The lock is decided against the incremented value inside one script, so
// concurrent failures never share a count and never leave a partial lock.
// KEYS[1]=user hash, ARGV[1]=max attempts, ARGV[2]=lock until (unix ms)
var recordFailureLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {err='not_found'}
end
local n = redis.call('HINCRBY', KEYS[1], 'login_attempts', 1)
if n >= tonumber(ARGV[1]) then
  redis.call('HSET', KEYS[1], 'locked_until', ARGV[2])
end
local locked = redis.call('HGET', KEYS[1], 'locked_until')
if not locked then
  locked = '0'
end
return {n, locked}
`)

func (s *Store) CreateUser(ctx context.Context, user credential.User) (credential.User, error) {
	if strings.TrimSpace(user.Email) == "" {
		return credential.User{}, errors.New("redisstore: email is required")
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.Email = credential.NormalizeEmail(user.Email)

	args := append([]interface{}{user.ID}, encodeUser(user)...)
	created, err := createUserLua.Run(ctx, s.redis, []string{s.emailKey(user.Email), s.userKey(user.ID)}, args...).Int()
	if err != nil {
		return credential.User{}, unavailable(err)
	}
	if created == 0 {
		return credential.User{}, credential.ErrDuplicate
	}
	return user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (credential.User, error) {
	id, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return credential.User{}, credential.ErrNotFound
		}
		return credential.User{}, unavailable(err)
	}
	return s.FindUserByID(ctx, id)
}

func (s *Store) FindUserByID(ctx context.Context, id string) (credential.User, error) {
	fields, err := s.redis.HGetAll(ctx, s.userKey(id)).Result()
	if err != nil {
		return credential.User{}, unavailable(err)
	}
	if len(fields) == 0 {
		return credential.User{}, credential.ErrNotFound
	}
	return decodeUser(fields)
}

func (s *Store) UpdateUser(ctx context.Context, id string, patch credential.UserPatch) error {
	if patch.Empty() {
		return nil
	}
	err := updateUserLua.Run(ctx, s.redis, []string{s.userKey(id)}, encodePatch(patch)...).Err()
	return mapScriptError(err)
}

func (s *Store) RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (credential.LoginFailure, error) {
	res, err := recordFailureLua.Run(ctx, s.redis, []string{s.userKey(id)}, maxAttempts, lockUntil.UnixMilli()).Slice()
	if err != nil {
		return credential.LoginFailure{}, mapScriptError(err)
	}
	if len(res) != 2 {
		return credential.LoginFailure{}, unavailable(errors.New("unexpected script reply"))
	}

	attempts, ok := res[0].(int64)
	if !ok {
		return credential.LoginFailure{}, unavailable(errors.New("unexpected attempts reply"))
	}
	lockedStr, _ := res[1].(string)
	out := credential.LoginFailure{Attempts: int(attempts)}
	if ms, err := strconv.ParseInt(lockedStr, 10, 64); err == nil && ms > 0 {
		t := time.UnixMilli(ms)
		out.LockedUntil = &t
	}
	return out, nil
}

func mapScriptError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "not_found") {
		return credential.ErrNotFound
	}
	return unavailable(err)
}

func encodeUser(u credential.User) []interface{} {
	return []interface{}{
		fieldID, u.ID,
		fieldEmail, u.Email,
		fieldPhone, u.Phone,
		fieldRole, u.Role,
		fieldPasswordHash, u.PasswordHash,
		fieldLoginAttempts, u.LoginAttempts,
		fieldLockedUntil, timeMillis(u.LockedUntil),
		fieldEmailVerified, boolField(u.EmailVerified),
		fieldPhoneVerified, boolField(u.PhoneVerified),
		fieldLastLogin, timeMillis(u.LastLogin),
		fieldCreatedAt, u.CreatedAt.UnixMilli(),
	}
}

func encodePatch(p credential.UserPatch) []interface{} {
	var args []interface{}
	if p.PasswordHash != nil {
		args = append(args, fieldPasswordHash, *p.PasswordHash)
	}
	if p.LoginAttempts != nil {
		args = append(args, fieldLoginAttempts, *p.LoginAttempts)
	}
	if p.ClearLock {
		args = append(args, fieldLockedUntil, 0)
	} else if p.LockedUntil != nil {
		args = append(args, fieldLockedUntil, p.LockedUntil.UnixMilli())
	}
	if p.EmailVerified != nil {
		args = append(args, fieldEmailVerified, boolField(*p.EmailVerified))
	}
	if p.PhoneVerified != nil {
		args = append(args, fieldPhoneVerified, boolField(*p.PhoneVerified))
	}
	if p.LastLogin != nil {
		args = append(args, fieldLastLogin, p.LastLogin.UnixMilli())
	}
	return args
}

func decodeUser(f map[string]string) (credential.User, error) {
	u := credential.User{
		ID:            f[fieldID],
		Email:         f[fieldEmail],
		Phone:         f[fieldPhone],
		Role:          f[fieldRole],
		PasswordHash:  f[fieldPasswordHash],
		EmailVerified: f[fieldEmailVerified] == "1",
		PhoneVerified: f[fieldPhoneVerified] == "1",
		LockedUntil:   millisTime(f[fieldLockedUntil]),
		LastLogin:     millisTime(f[fieldLastLogin]),
	}
	if u.ID == "" {
		return credential.User{}, unavailable(errors.New("corrupt user record"))
	}
	if v := f[fieldLoginAttempts]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return credential.User{}, unavailable(err)
		}
		u.LoginAttempts = n
	}
	if created := millisTime(f[fieldCreatedAt]); created != nil {
		u.CreatedAt = *created
	}
	return u, nil
}

func timeMillis(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}

func millisTime(v string) *time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms)
	return &t
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
