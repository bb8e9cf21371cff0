package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Agossa1/marketauth/internal"
)

const (
	DefaultAccessTTL           = time.Hour
	DefaultRememberMeAccessTTL = 24 * time.Hour
	DefaultRefreshTTL          = 30 * 24 * time.Hour
	DefaultGrantTTL            = 15 * time.Minute
	DefaultLeeway              = 30 * time.Second
)

// Config controls lifetimes and registered claims of issued tokens.
// Zero durations take the package defaults.
type Config struct {
	Issuer              string
	Audience            string
	AccessTTL           time.Duration
	RememberMeAccessTTL time.Duration
	RefreshTTL          time.Duration
	GrantTTL            time.Duration
	Leeway              time.Duration
	// Now replaces time.Now, mainly for simulated clocks in tests.
	Now func() time.Time
}

// Service seals and opens tokens with the key of a KeyProvider.
type Service struct {
	keys   *KeyProvider
	config Config
}

// SessionPair is an access token and a refresh token bound to one session id.
type SessionPair struct {
	AccessToken      string
	RefreshToken     string
	SessionID        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Grant is a short-lived one-time token.
type Grant struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// NewService validates cfg, fills defaults and returns a Service. The key is
// not loaded until the first Issue or Verify.
func NewService(keys *KeyProvider, cfg Config) (*Service, error) {
	if keys == nil {
		return nil, errors.New("token: key provider is required")
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RememberMeAccessTTL == 0 {
		cfg.RememberMeAccessTTL = DefaultRememberMeAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.GrantTTL == 0 {
		cfg.GrantTTL = DefaultGrantTTL
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = DefaultLeeway
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.AccessTTL < 0 || cfg.RememberMeAccessTTL < 0 || cfg.RefreshTTL < 0 || cfg.GrantTTL < 0 {
		return nil, errors.New("token: TTLs must be positive")
	}
	if cfg.RememberMeAccessTTL < cfg.AccessTTL {
		return nil, errors.New("token: remember-me access TTL must be >= access TTL")
	}
	if cfg.RefreshTTL < cfg.RememberMeAccessTTL {
		return nil, errors.New("token: refresh TTL must be >= access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: leeway must be within [0, 2m]")
	}

	return &Service{keys: keys, config: cfg}, nil
}

// AccessTTL returns the access lifetime for the rememberMe choice.
func (s *Service) AccessTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return s.config.RememberMeAccessTTL
	}
	return s.config.AccessTTL
}

// Issue seals claims for purpose. Issuer, audience, iat and exp are stamped
// from the service config and ttl; the other registered claims are kept.
func (s *Service) Issue(claims Claims, purpose Purpose, ttl time.Duration) (string, error) {
	token, _, err := s.issue(claims, purpose, ttl)
	return token, err
}

// IssueSessionPair issues an access and a refresh token sharing a fresh
// session id. rememberMe extends the access lifetime only.
func (s *Service) IssueSessionPair(id Identity, rememberMe bool) (SessionPair, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return SessionPair{}, err
	}
	return s.issuePair(id, sid.String(), rememberMe)
}

// IssueAccess issues a new access token for an existing session.
func (s *Service) IssueAccess(id Identity, sessionID string, rememberMe bool) (string, time.Time, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: id.Subject},
		SessionID:        sessionID,
		Role:             id.Role,
		Verified:         id.Verified,
	}
	if rememberMe {
		claims.Ext = map[string]string{"rm": "1"}
	}
	token, out, err := s.issue(claims, PurposeAccess, s.AccessTTL(rememberMe))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, out.ExpiresAt.Time, nil
}

func (s *Service) issuePair(id Identity, sessionID string, rememberMe bool) (SessionPair, error) {
	access, accessExp, err := s.IssueAccess(id, sessionID, rememberMe)
	if err != nil {
		return SessionPair{}, err
	}

	refreshClaims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: id.Subject},
		SessionID:        sessionID,
	}
	if rememberMe {
		refreshClaims.Ext = map[string]string{"rm": "1"}
	}
	refresh, out, err := s.issue(refreshClaims, PurposeRefresh, s.config.RefreshTTL)
	if err != nil {
		return SessionPair{}, err
	}

	return SessionPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		SessionID:        sessionID,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: out.ExpiresAt.Time,
	}, nil
}

// IssueOneTimeGrant issues a token for subject and purpose carrying a unique
// jti. A zero ttl takes Config.GrantTTL.
func (s *Service) IssueOneTimeGrant(subject string, purpose Purpose, ttl time.Duration) (Grant, error) {
	if ttl == 0 {
		ttl = s.config.GrantTTL
	}
	jti, err := uuid.NewRandom()
	if err != nil {
		return Grant{}, err
	}
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: subject, ID: jti.String()}}
	token, out, err := s.issue(claims, purpose, ttl)
	if err != nil {
		return Grant{}, err
	}
	return Grant{Token: token, ID: out.ID, ExpiresAt: out.ExpiresAt.Time}, nil
}

func (s *Service) issue(claims Claims, purpose Purpose, ttl time.Duration) (string, Claims, error) {
	if ttl <= 0 {
		return "", Claims{}, errors.New("token: ttl must be positive")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", Claims{}, ErrMissingSubject
	}
	if purpose == "" {
		return "", Claims{}, errors.New("token: purpose is required")
	}

	key, err := s.keys.Key()
	if err != nil {
		return "", Claims{}, err
	}

	// whole seconds: NumericDate truncates to the second on the wire
	now := s.config.Now().Truncate(time.Second)
	claims.Purpose = purpose
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	if s.config.Issuer != "" {
		claims.Issuer = s.config.Issuer
	}
	if s.config.Audience != "" && len(claims.Audience) == 0 {
		claims.Audience = jwt.ClaimStrings{s.config.Audience}
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", Claims{}, err
	}
	token, err := seal(key, payload)
	if err != nil {
		return "", Claims{}, err
	}
	return token, claims, nil
}

// VerifyOption narrows what Verify accepts.
type VerifyOption func(*verifyOptions)

type verifyOptions struct {
	purpose  Purpose
	audience string
}

// ExpectPurpose requires the purpose claim to equal p exactly.
func ExpectPurpose(p Purpose) VerifyOption {
	return func(o *verifyOptions) { o.purpose = p }
}

// ExpectAudience requires aud to contain a. It overrides Config.Audience.
func ExpectAudience(a string) VerifyOption {
	return func(o *verifyOptions) { o.audience = a }
}

// Verify opens token and validates its claims.
//
// Errors: ErrMalformedToken and ErrDecryptionFailed for the envelope,
// ErrExpired and ErrInvalidClaims for registered claims, ErrPurposeMismatch,
// ErrMissingSubject, and ErrKeyUnavailable when the key cannot be loaded.
func (s *Service) Verify(token string, opts ...VerifyOption) (*Claims, error) {
	o := verifyOptions{audience: s.config.Audience}
	for _, opt := range opts {
		opt(&o)
	}

	// shape is checked before the key is touched
	if !strings.HasPrefix(token, Prefix) {
		return nil, ErrMalformedToken
	}

	key, err := s.keys.Key()
	if err != nil {
		return nil, err
	}
	payload, err := open(key, token)
	if err != nil {
		return nil, err
	}

	claims, err := decodeClaims(payload)
	if err != nil {
		return nil, err
	}

	if err := s.validator(o).Validate(claims); err != nil {
		return nil, mapValidationError(err)
	}

	if o.purpose != "" && claims.Purpose != o.purpose {
		return nil, ErrPurposeMismatch
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

func (s *Service) validator(o verifyOptions) *jwt.Validator {
	options := []jwt.ParserOption{
		jwt.WithLeeway(s.config.Leeway),
		jwt.WithTimeFunc(s.config.Now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}
	if o.audience != "" {
		options = append(options, jwt.WithAudience(o.audience))
	}
	return jwt.NewValidator(options...)
}

func decodeClaims(payload []byte) (*Claims, error) {
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && (typeErr.Field == "sub" || strings.HasSuffix(typeErr.Field, ".sub")) {
			return nil, ErrMissingSubject
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return &claims, nil
}

func mapValidationError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrExpired
	}
	return fmt.Errorf("%w: %v", ErrInvalidClaims, err)
}
