package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Agossa1/marketauth/credential"
	"github.com/Agossa1/marketauth/internal"
)

const (
	// DefaultTTL is the lifetime of a code when none is given.
	DefaultTTL = 15 * time.Minute
	// DefaultDigits is the width of generated codes.
	DefaultDigits = 6
	// ReasonInvalidOrExpired is the only rejection reason reported.
	ReasonInvalidOrExpired = "invalid or expired code"
)

// Store is the subset of credential.Store the manager needs.
type Store interface {
	CreateOTP(ctx context.Context, otp credential.OTP) error
	FindLatestValidOTP(ctx context.Context, userID, codeHash string, purpose credential.Purpose, now time.Time) (credential.OTP, error)
	MarkOTPUsed(ctx context.Context, otp credential.OTP, now time.Time) (bool, error)
	InvalidateOTPs(ctx context.Context, userID string, purpose credential.Purpose, exceptID string, now time.Time) (int, error)
}

// Config tunes code width, default lifetime and the clock.
type Config struct {
	Digits int
	TTL    time.Duration
	Now    func() time.Time
}

// Manager issues and checks one-time codes.
type Manager struct {
	store  Store
	digits int
	ttl    time.Duration
	now    func() time.Time
}

// Issued is a freshly created code. Code is the only place the plaintext lives.
type Issued struct {
	Code   string
	Record credential.OTP
}

// Verification is the outcome of Verify.
type Verification struct {
	Valid  bool
	Reason string
	Record credential.OTP
}

// NewManager returns a Manager backed by store.
func NewManager(store Store, cfg Config) (*Manager, error) {
	if store == nil {
		return nil, errors.New("otp: store is required")
	}
	if cfg.Digits == 0 {
		cfg.Digits = DefaultDigits
	}
	if cfg.Digits < 6 || cfg.Digits > 10 {
		return nil, errors.New("otp: digits must be within [6, 10]")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTL < 0 {
		return nil, errors.New("otp: ttl must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{store: store, digits: cfg.Digits, ttl: cfg.TTL, now: cfg.Now}, nil
}

// Generate returns a uniformly random numeric code.
func (m *Manager) Generate() (string, error) {
	return internal.NewOTP(m.digits)
}

// Create persists a new code for (userID, purpose). Older codes stay valid;
// callers that need a single live code call InvalidateAll first.
func (m *Manager) Create(ctx context.Context, userID string, purpose credential.Purpose, ttl time.Duration) (Issued, error) {
	if userID == "" {
		return Issued{}, errors.New("otp: user id is required")
	}
	if !purpose.Valid() {
		return Issued{}, fmt.Errorf("otp: unknown purpose %q", purpose)
	}
	if ttl <= 0 {
		ttl = m.ttl
	}

	code, err := m.Generate()
	if err != nil {
		return Issued{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Issued{}, err
	}

	now := m.now()
	rec := credential.OTP{
		ID:        id.String(),
		UserID:    userID,
		CodeHash:  internal.HashCode(code),
		Purpose:   purpose,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := m.store.CreateOTP(ctx, rec); err != nil {
		return Issued{}, err
	}
	return Issued{Code: code, Record: rec}, nil
}

// Verify checks code against the newest valid record for (userID, purpose).
// With markAsUsed the record is consumed atomically; losing a concurrent
// consume reports the code as invalid.
func (m *Manager) Verify(ctx context.Context, userID, code string, purpose credential.Purpose, markAsUsed bool) (Verification, error) {
	rejected := Verification{Reason: ReasonInvalidOrExpired}
	if userID == "" || !internal.IsNumeric(code, m.digits) {
		return rejected, nil
	}

	now := m.now()
	rec, err := m.store.FindLatestValidOTP(ctx, userID, internal.HashCode(code), purpose, now)
	if errors.Is(err, credential.ErrNotFound) {
		return rejected, nil
	}
	if err != nil {
		return Verification{}, err
	}
	if !rec.Valid(now) {
		return rejected, nil
	}

	if markAsUsed {
		ok, err := m.store.MarkOTPUsed(ctx, rec, now)
		if err != nil {
			return Verification{}, err
		}
		if !ok {
			return rejected, nil
		}
		rec.Used = true
	}
	return Verification{Valid: true, Record: rec}, nil
}

// InvalidateAll marks every valid code for (userID, purpose) used.
func (m *Manager) InvalidateAll(ctx context.Context, userID string, purpose credential.Purpose) (int, error) {
	return m.store.InvalidateOTPs(ctx, userID, purpose, "", m.now())
}

// InvalidateOthers is InvalidateAll sparing the record keepID.
func (m *Manager) InvalidateOthers(ctx context.Context, userID string, purpose credential.Purpose, keepID string) (int, error) {
	return m.store.InvalidateOTPs(ctx, userID, purpose, keepID, m.now())
}
