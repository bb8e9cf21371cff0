package token

import "github.com/golang-jwt/jwt/v5"

// Purpose names what a token may be used for.
type Purpose string

const (
	PurposeAccess            Purpose = "access"
	PurposeRefresh           Purpose = "refresh"
	PurposePasswordReset     Purpose = "password_reset"
	PurposeEmailVerification Purpose = "email_verification"
)

// Claims is the sealed payload of every token.
type Claims struct {
	jwt.RegisteredClaims
	Purpose   Purpose           `json:"purpose"`
	SessionID string            `json:"sid,omitempty"`
	Role      string            `json:"role,omitempty"`
	Verified  bool              `json:"verified,omitempty"`
	Ext       map[string]string `json:"ext,omitempty"`
}

// Identity is the account view stamped into a session pair.
type Identity struct {
	Subject  string
	Role     string
	Verified bool
}
