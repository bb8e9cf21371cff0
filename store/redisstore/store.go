package redisstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Agossa1/marketauth/credential"
)

const maxTxRetries = 8

var errContention = errors.New("transaction retries exhausted")

// Store is a Redis-backed credential.Store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

var _ credential.Store = (*Store)(nil)

// New returns a Store using prefix for every key ("mka" when empty).
func New(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "mka"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

func (s *Store) userKey(id string) string {
	return s.prefix + ":u:" + id
}

func (s *Store) emailKey(email string) string {
	return s.prefix + ":ue:" + credential.NormalizeEmail(email)
}

func (s *Store) otpKey(userID string, purpose credential.Purpose) string {
	return s.prefix + ":o:" + userID + ":" + strings.ToLower(string(purpose))
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
}
