package redisstore

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Agossa1/marketauth/credential"
)

const otpRecordVersionV1 = 1

// used records are kept this long past expiry before pruning
const otpRetention = time.Hour

func (s *Store) CreateOTP(ctx context.Context, otp credential.OTP) error {
	encoded, err := encodeOTPRecord(otp)
	if err != nil {
		return err
	}
	key := s.otpKey(otp.UserID, otp.Purpose)

	return s.withRetries(ctx, key, func(tx *redis.Tx) error {
		records, err := s.loadOTPs(ctx, tx, key, otp.UserID, otp.Purpose)
		if err != nil {
			return err
		}

		expireAt := otp.ExpiresAt
		var stale []string
		for _, r := range records {
			if r.ExpiresAt.Add(otpRetention).Before(otp.CreatedAt) {
				stale = append(stale, r.ID)
				continue
			}
			if r.ExpiresAt.After(expireAt) {
				expireAt = r.ExpiresAt
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(stale) > 0 {
				pipe.HDel(ctx, key, stale...)
			}
			pipe.HSet(ctx, key, otp.ID, encoded)
			pipe.PExpire(ctx, key, expireAt.Add(otpRetention).Sub(otp.CreatedAt))
			return nil
		})
		return err
	})
}

func (s *Store) FindLatestValidOTP(ctx context.Context, userID, codeHash string, purpose credential.Purpose, now time.Time) (credential.OTP, error) {
	want, err := hex.DecodeString(codeHash)
	if err != nil {
		return credential.OTP{}, credential.ErrNotFound
	}

	records, err := s.loadOTPs(ctx, s.redis, s.otpKey(userID, purpose), userID, purpose)
	if err != nil {
		return credential.OTP{}, unavailable(err)
	}

	var (
		best  credential.OTP
		found bool
	)
	for _, r := range records {
		if !r.Valid(now) {
			continue
		}
		have, _ := hex.DecodeString(r.CodeHash)
		if subtle.ConstantTimeCompare(have, want) != 1 {
			continue
		}
		if !found || newer(r, best) {
			best, found = r, true
		}
	}
	if !found {
		return credential.OTP{}, credential.ErrNotFound
	}
	return best, nil
}

func (s *Store) MarkOTPUsed(ctx context.Context, otp credential.OTP, now time.Time) (bool, error) {
	key := s.otpKey(otp.UserID, otp.Purpose)
	var consumed bool

	err := s.withRetries(ctx, key, func(tx *redis.Tx) error {
		consumed = false
		data, err := tx.HGet(ctx, key, otp.ID).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		record, err := decodeOTPRecord(otp.ID, otp.UserID, otp.Purpose, data)
		if err != nil {
			return err
		}
		if !record.Valid(now) {
			return nil
		}

		record.Used = true
		updated, err := encodeOTPRecord(record)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, otp.ID, updated)
			return nil
		})
		if err == nil {
			consumed = true
		}
		return err
	})
	if err != nil {
		return false, err
	}
	return consumed, nil
}

func (s *Store) InvalidateOTPs(ctx context.Context, userID string, purpose credential.Purpose, exceptID string, now time.Time) (int, error) {
	key := s.otpKey(userID, purpose)
	var count int

	err := s.withRetries(ctx, key, func(tx *redis.Tx) error {
		count = 0
		records, err := s.loadOTPs(ctx, tx, key, userID, purpose)
		if err != nil {
			return err
		}

		updates := make([]interface{}, 0, 2*len(records))
		for _, r := range records {
			if r.ID == exceptID || !r.Valid(now) {
				continue
			}
			r.Used = true
			encoded, err := encodeOTPRecord(r)
			if err != nil {
				return err
			}
			updates = append(updates, r.ID, encoded)
		}
		if len(updates) == 0 {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, updates...)
			return nil
		})
		if err == nil {
			count = len(updates) / 2
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) withRetries(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.redis.Watch(ctx, fn, key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return unavailable(err)
		}
		return nil
	}
	return unavailable(errContention)
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (s *Store) loadOTPs(ctx context.Context, r hashReader, key, userID string, purpose credential.Purpose) ([]credential.OTP, error) {
	fields, err := r.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	records := make([]credential.OTP, 0, len(fields))
	for id, data := range fields {
		rec, err := decodeOTPRecord(id, userID, purpose, []byte(data))
		if err != nil {
			// unreadable records are skipped, never matched
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func newer(a, b credential.OTP) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	// UUIDv7 ids sort by creation time
	return a.ID > b.ID
}

func encodeOTPRecord(otp credential.OTP) ([]byte, error) {
	hash, err := hex.DecodeString(otp.CodeHash)
	if err != nil || len(hash) != 32 {
		return nil, errors.New("otp record: code hash must be hex sha256")
	}

	var buf bytes.Buffer
	buf.WriteByte(otpRecordVersionV1)
	if otp.Used {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	if err := binary.Write(&buf, binary.BigEndian, otp.CreatedAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, otp.ExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}
	buf.Write(hash)
	return buf.Bytes(), nil
}

func decodeOTPRecord(id, userID string, purpose credential.Purpose, data []byte) (credential.OTP, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return credential.OTP{}, err
	}
	if version != otpRecordVersionV1 {
		return credential.OTP{}, fmt.Errorf("invalid otp record version %d", version)
	}
	used, err := reader.ReadByte()
	if err != nil {
		return credential.OTP{}, err
	}

	var created, expires int64
	if err := binary.Read(reader, binary.BigEndian, &created); err != nil {
		return credential.OTP{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expires); err != nil {
		return credential.OTP{}, err
	}
	hash := make([]byte, 32)
	if _, err := io.ReadFull(reader, hash); err != nil {
		return credential.OTP{}, err
	}

	return credential.OTP{
		ID:        id,
		UserID:    userID,
		CodeHash:  hex.EncodeToString(hash),
		Purpose:   purpose,
		ExpiresAt: time.UnixMilli(expires),
		Used:      used == 1,
		CreatedAt: time.UnixMilli(created),
	}, nil
}
