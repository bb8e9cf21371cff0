package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func fastConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed: ok=%v err=%v", ok, err)
	}
	ok, err = hasher.Verify("P@ssw0rd-ascii", hash)
	if err != nil || ok {
		t.Fatalf("expected mismatch: ok=%v err=%v", ok, err)
	}
}

func TestVerifyPaddedEncoding(t *testing.T) {
	hasher, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	hash, err := hasher.Hash("padded-secret")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	// 16-byte salt and 32-byte key pad to a trailing "=" in padded base64
	parts := strings.Split(hash, "$")
	parts[4] += "=="
	parts[5] += "="
	padded := strings.Join(parts, "$")

	ok, err := hasher.Verify("padded-secret", padded)
	if err != nil || !ok {
		t.Fatalf("expected padded hash to verify: ok=%v err=%v", ok, err)
	}
}

func TestNeedsUpgrade(t *testing.T) {
	oldHasher, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2(old) error: %v", err)
	}
	hash, err := oldHasher.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	stronger := fastConfig()
	stronger.Memory = 16 * 1024
	newHasher, err := NewArgon2(stronger)
	if err != nil {
		t.Fatalf("NewArgon2(new) error: %v", err)
	}

	if up, err := newHasher.NeedsUpgrade(hash); err != nil || !up {
		t.Fatalf("expected upgrade for weaker parameters: up=%v err=%v", up, err)
	}
	if up, err := oldHasher.NeedsUpgrade(hash); err != nil || up {
		t.Fatalf("expected no upgrade for current parameters: up=%v err=%v", up, err)
	}
}

func TestVerifyMalformedAndUnsupported(t *testing.T) {
	hasher, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	hash, err := hasher.Hash("version-test")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	cases := map[string]error{
		"not-a-phc-hash": ErrMalformedHash,
		strings.Replace(hash, "$v=19$", "$v=18$", 1):           ErrUnsupportedHash,
		strings.Replace(hash, "$argon2id$", "$argon2i$", 1):    ErrUnsupportedHash,
		strings.Replace(hash, "m=8192", "m=1024", 1):           ErrMalformedHash,
		strings.Replace(hash, "m=8192,t=1,p=1", "m=8192,t=1", 1): ErrMalformedHash,
	}
	for encoded, want := range cases {
		if _, err := hasher.Verify("version-test", encoded); !errors.Is(err, want) {
			t.Fatalf("Verify(%q): expected %v, got %v", encoded, want, err)
		}
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cfg := fastConfig()
	cfg.Memory = 1024
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected low memory to be rejected")
	}
	cfg = fastConfig()
	cfg.SaltLength = 8
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected short salt to be rejected")
	}
}

func newTestHasher(t *testing.T, acceptBcrypt bool) *Hasher {
	t.Helper()
	h, err := NewHasher(fastConfig(), DefaultPolicy(), acceptBcrypt)
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	return h
}

func TestHasherPolicy(t *testing.T) {
	h := newTestHasher(t, false)

	if _, err := h.Hash("short"); !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("x", 257)); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
	// eight characters, more than eight bytes
	if err := h.Check("pässwörd"); err != nil {
		t.Fatalf("expected rune-counted policy to accept: %v", err)
	}
}

func TestHasherLegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	h := newTestHasher(t, true)
	ok, err := h.Verify("legacy-secret", string(legacy))
	if err != nil || !ok {
		t.Fatalf("expected legacy hash to verify: ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("wrong-secret", string(legacy))
	if err != nil || ok {
		t.Fatalf("expected legacy mismatch: ok=%v err=%v", ok, err)
	}
	if !h.NeedsUpgrade(string(legacy)) {
		t.Fatal("legacy hashes must need an upgrade")
	}

	strict := newTestHasher(t, false)
	if _, err := strict.Verify("legacy-secret", string(legacy)); !errors.Is(err, ErrUnsupportedHash) {
		t.Fatalf("expected ErrUnsupportedHash when bcrypt is disabled, got %v", err)
	}
}

func TestHasherDummy(t *testing.T) {
	h := newTestHasher(t, false)
	if h.Dummy() == "" {
		t.Fatal("expected dummy hash")
	}
	ok, err := h.Verify("anything-at-all", h.Dummy())
	if err != nil || ok {
		t.Fatalf("dummy hash must parse and never match: ok=%v err=%v", ok, err)
	}
	if h.NeedsUpgrade(h.Dummy()) {
		t.Fatal("fresh argon2 hash must not need an upgrade")
	}
}
