package token

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// KeySize is the length in bytes of the sealing key.
const KeySize = 32

// KeyConfig selects where the sealing key comes from. Key wins over KeyFile.
type KeyConfig struct {
	// Key is the key as hex, base64 or 32 raw bytes.
	Key string
	// KeyFile is read when Key is empty. A missing file is created with a
	// freshly generated key.
	KeyFile string
}

// KeyProvider lazily initialises the sealing key exactly once and serves it
// read-only afterwards. An initialisation failure is sticky.
type KeyProvider struct {
	cfg  KeyConfig
	once sync.Once
	key  []byte
	err  error
}

// NewKeyProvider returns a provider for cfg. Nothing is read until Key is called.
func NewKeyProvider(cfg KeyConfig) *KeyProvider {
	return &KeyProvider{cfg: cfg}
}

// StaticKey returns a provider serving key as is.
func StaticKey(key []byte) *KeyProvider {
	p := &KeyProvider{}
	p.once.Do(func() {
		if len(key) != KeySize {
			p.err = fmt.Errorf("%w: key must be %d bytes", ErrKeyUnavailable, KeySize)
			return
		}
		p.key = append([]byte(nil), key...)
	})
	return p
}

// GenerateKey returns KeySize random bytes.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Key returns the sealing key, initialising it on first use.
func (p *KeyProvider) Key() ([]byte, error) {
	p.once.Do(func() {
		p.key, p.err = p.load()
		if p.err != nil {
			p.err = fmt.Errorf("%w: %v", ErrKeyUnavailable, p.err)
		}
	})
	return p.key, p.err
}

// Fingerprint returns a short digest identifying the key for operators.
func (p *KeyProvider) Fingerprint() (string, error) {
	key, err := p.Key()
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(key)
	return hex.EncodeToString(sum[:8]), nil
}

func (p *KeyProvider) load() ([]byte, error) {
	if strings.TrimSpace(p.cfg.Key) != "" {
		return decodeKey(p.cfg.Key)
	}
	if strings.TrimSpace(p.cfg.KeyFile) == "" {
		return nil, errors.New("no key or key file configured")
	}
	return loadOrCreateKeyFile(p.cfg.KeyFile)
}

func decodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if len(s) == hex.EncodedLen(KeySize) {
		if key, err := hex.DecodeString(s); err == nil {
			return key, nil
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if key, err := enc.DecodeString(s); err == nil && len(key) == KeySize {
			return key, nil
		}
	}
	if len(s) == KeySize {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("key must decode to %d bytes", KeySize)
}

func loadOrCreateKeyFile(path string) ([]byte, error) {
	key, err := readKeyFile(path)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	key, err = GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	// Write to a temp file and hard-link it into place: the link fails if
	// another process created the key first, and readers never see a
	// partially written file.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".key-*")
	if err != nil {
		return nil, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return nil, err
	}
	if _, err := tmp.WriteString(hex.EncodeToString(key) + "\n"); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	if err := os.Link(tmpName, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return readKeyFile(path)
		}
		return nil, err
	}
	return key, nil
}

func readKeyFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := decodeKey(string(raw))
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return key, nil
}
