package auth

import (
	"crypto/subtle"
	"time"

	"github.com/google/uuid"
)

// VerificationTokens issues and checks the one-time codes that gate account
// activation. The code is wrapped in a signed verification token, which is
// both stored on the user and sent to the user.
type VerificationTokens struct {
	codec *TokenCodec[VerificationPayload]
	ttl   time.Duration
}

// NewVerificationTokens creates the manager. Verification artifacts share the
// access secret but carry their own kind claim.
func NewVerificationTokens(codec *TokenCodec[VerificationPayload], ttl time.Duration) *VerificationTokens {
	return &VerificationTokens{
		codec: codec,
		ttl:   ttl,
	}
}

// Issue returns a new globally unique opaque code
func (v *VerificationTokens) Issue() string {
	return uuid.NewString()
}

// Mint issues a code and signs it, returning the user facing token
func (v *VerificationTokens) Mint() (string, error) {
	return v.codec.Sign(VerificationPayload{Code: v.Issue()}, v.ttl)
}

// Check compares the stored and supplied tokens byte for byte in constant time
func (v *VerificationTokens) Check(stored, supplied string) bool {
	if stored == "" || supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}
