package token

import "errors"

var (
	// ErrKeyUnavailable is returned when the sealing key cannot be loaded,
	// generated or persisted.
	ErrKeyUnavailable = errors.New("token: key unavailable")
	// ErrMalformedToken is returned for tokens that do not have the expected
	// prefix, encoding or size, or whose payload is not a claims object.
	ErrMalformedToken = errors.New("token: malformed")
	// ErrDecryptionFailed is returned when authentication of the sealed
	// payload fails (tampering or a different key).
	ErrDecryptionFailed = errors.New("token: decryption failed")
	// ErrExpired is returned when exp is before now minus leeway.
	ErrExpired = errors.New("token: expired")
	// ErrPurposeMismatch is returned when the purpose claim differs from the
	// expected purpose.
	ErrPurposeMismatch = errors.New("token: purpose mismatch")
	// ErrMissingSubject is returned when sub is absent or not a string.
	ErrMissingSubject = errors.New("token: missing subject")
	// ErrInvalidClaims is returned for issuer or audience mismatch, a missing
	// exp, or an iat too far in the future.
	ErrInvalidClaims = errors.New("token: invalid claims")
	// ErrLedgerUnavailable is returned when a grant ledger backend fails.
	ErrLedgerUnavailable = errors.New("token: ledger unavailable")
)
