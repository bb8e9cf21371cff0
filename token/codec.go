package token

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
)

// Prefix is the literal header of every token produced by this package.
const Prefix = "v2.local."

const (
	nonceSize = chacha20poly1305.NonceSizeX
	tagSize   = chacha20poly1305.Overhead
)

func seal(key, payload []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	nonce, err := deriveNonce(payload)
	if err != nil {
		return "", err
	}

	out := make([]byte, nonceSize, nonceSize+len(payload)+tagSize)
	copy(out, nonce)
	out = aead.Seal(out, nonce, payload, pae([]byte(Prefix), nonce, nil))

	return Prefix + base64.RawURLEncoding.EncodeToString(out), nil
}

func open(key []byte, token string) ([]byte, error) {
	if !strings.HasPrefix(token, Prefix) {
		return nil, ErrMalformedToken
	}
	body := token[len(Prefix):]
	// footers are not issued, so any further segment is foreign
	if body == "" || strings.Contains(body, ".") {
		return nil, ErrMalformedToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, ErrMalformedToken
	}
	if len(raw) < nonceSize+tagSize {
		return nil, ErrMalformedToken
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	payload, err := aead.Open(nil, nonce, ciphertext, pae([]byte(Prefix), nonce, nil))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return payload, nil
}

// deriveNonce returns BLAKE2b-192(payload) keyed with 24 random bytes.
func deriveNonce(payload []byte) ([]byte, error) {
	var nonceKey [nonceSize]byte
	if _, err := rand.Read(nonceKey[:]); err != nil {
		return nil, err
	}
	h, err := blake2b.New(nonceSize, nonceKey[:])
	if err != nil {
		return nil, err
	}
	h.Write(payload)
	return h.Sum(nil), nil
}

// pae is the pre-authentication encoding: a little-endian count followed by
// each piece prefixed with its little-endian length (top bit cleared).
func pae(pieces ...[]byte) []byte {
	size := 8
	for _, p := range pieces {
		size += 8 + len(p)
	}
	out := make([]byte, 0, size)
	out = appendLE64(out, uint64(len(pieces)))
	for _, p := range pieces {
		out = appendLE64(out, uint64(len(p)))
		out = append(out, p...)
	}
	return out
}

func appendLE64(dst []byte, n uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], n&^(uint64(1)<<63))
	return append(dst, b[:]...)
}
