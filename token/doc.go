// Package token issues and verifies the sealed tokens used by marketauth
// sessions and one-time grants.
//
// Tokens use the v2.local layout: the literal prefix "v2.local." followed by
// base64url(nonce || ciphertext), sealed with XChaCha20-Poly1305 under a
// single 256-bit key. Claims are the registered JWT claims plus a purpose,
// a session id and a small set of account hints.
//
// # Architecture boundaries
//
// The key is owned by a KeyProvider that is constructed once and injected
// into Service. Verification order is fixed: prefix and shape, decryption,
// registered claim validation (exp, iat, iss, aud with leeway), purpose,
// subject.
//
// # What this package must NOT do
//
//   - Log or return key material.
//   - Accept a token whose purpose differs from the expected one.
//   - Hold per-user state (single-use grants go through a GrantLedger).
package token
