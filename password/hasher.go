package password

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrTooShort is returned when a new password is below the minimum length.
	ErrTooShort = errors.New("password too short")
	// ErrTooLong is returned when a new password exceeds the maximum length.
	ErrTooLong = errors.New("password too long")
	// ErrMalformedHash is returned for stored hashes that cannot be parsed.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrUnsupportedHash is returned for stored hashes of an unknown scheme.
	ErrUnsupportedHash = errors.New("unsupported password hash")
)

// Policy bounds the length of new passwords, counted in characters.
type Policy struct {
	MinLength int
	MaxLength int
}

// DefaultPolicy returns an 8 to 256 character policy.
func DefaultPolicy() Policy {
	return Policy{MinLength: 8, MaxLength: 256}
}

// Hasher issues Argon2id hashes and verifies both Argon2id and legacy bcrypt
// hashes. Legacy hashes always report NeedsUpgrade.
type Hasher struct {
	argon        *Argon2
	policy       Policy
	acceptBcrypt bool
	dummy        string
}

// NewHasher returns a Hasher. acceptBcrypt enables verification of
// $2a$/$2b$/$2y$ hashes imported from older systems.
func NewHasher(cfg Config, policy Policy, acceptBcrypt bool) (*Hasher, error) {
	argon, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}
	if policy.MinLength <= 0 {
		policy.MinLength = DefaultPolicy().MinLength
	}
	if policy.MaxLength == 0 {
		policy.MaxLength = DefaultPolicy().MaxLength
	}
	if policy.MaxLength < policy.MinLength {
		return nil, errors.New("password max length must be >= min length")
	}

	h := &Hasher{argon: argon, policy: policy, acceptBcrypt: acceptBcrypt}

	var seed [16]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, err
	}
	if h.dummy, err = argon.Hash(hex.EncodeToString(seed[:])); err != nil {
		return nil, err
	}
	return h, nil
}

// Check applies the length policy to a new password.
func (h *Hasher) Check(password string) error {
	n := utf8.RuneCountInString(password)
	if n < h.policy.MinLength {
		return ErrTooShort
	}
	if n > h.policy.MaxLength {
		return ErrTooLong
	}
	return nil
}

// Hash checks the policy and returns a new Argon2id hash.
func (h *Hasher) Hash(password string) (string, error) {
	if err := h.Check(password); err != nil {
		return "", err
	}
	return h.argon.Hash(password)
}

// Verify compares password with encodedHash in constant time.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		if !h.acceptBcrypt {
			return false, ErrUnsupportedHash
		}
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, ErrMalformedHash
		}
	}
	return h.argon.Verify(password, encodedHash)
}

// NeedsUpgrade reports whether encodedHash should be replaced after the next
// successful verification.
func (h *Hasher) NeedsUpgrade(encodedHash string) bool {
	if isBcrypt(encodedHash) {
		return true
	}
	upgrade, err := h.argon.NeedsUpgrade(encodedHash)
	return err == nil && upgrade
}

// Dummy returns a valid hash of a random secret. Verifying against it costs
// the same as a real verification, for paths where no account exists.
func (h *Hasher) Dummy() string {
	return h.dummy
}

func isBcrypt(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}
