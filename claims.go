package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenKind tags a signed artifact with the class it was minted for
type TokenKind string

const (
	TokenKindAccess       TokenKind = "access"
	TokenKindRefresh      TokenKind = "refresh"
	TokenKindVerification TokenKind = "verification"
)

// AccessPayload is carried by access and refresh tokens
type AccessPayload struct {
	UID string `json:"uid"`
}

// HasUID reports whether the payload identifies a user
func (p AccessPayload) HasUID() bool {
	return p.UID != ""
}

// VerificationPayload is carried by email verification tokens
type VerificationPayload struct {
	Code string `json:"code"`
}

// Payload is the closed set of shapes a TokenCodec can sign
type Payload interface {
	AccessPayload | VerificationPayload
}

// Claims is the JWT body: registered claims, the token kind and the payload
type Claims[P Payload] struct {
	jwt.RegisteredClaims
	Kind TokenKind `json:"kind"`
	Data P         `json:"data"`
}

// Verify interface compliance
var (
	_ jwt.Claims = (*Claims[AccessPayload])(nil)
	_ jwt.Claims = (*Claims[VerificationPayload])(nil)
)
