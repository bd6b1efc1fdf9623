package auth

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// DefaultAccessTTL mirrors the original one day access token lifetime
	DefaultAccessTTL = 24 * time.Hour
	// DefaultRefreshTTL mirrors the original thirty day refresh token lifetime
	DefaultRefreshTTL = 30 * 24 * time.Hour
	// TokenTypeBearer is the token type marker returned to callers
	TokenTypeBearer = "Bearer"
)

// Config holds the values the service needs to mint and verify tokens.
// It is built once at startup and handed to NewService.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	// VerificationTTL defaults to AccessTTL when zero.
	VerificationTTL time.Duration
	Issuer          string
	// DefaultRole is the role name assigned on sign-up when the request
	// does not carry one.
	DefaultRole string
	// HashidUserIDs derives user ids from the email address instead of
	// generating random ones.
	HashidUserIDs bool
}

// DefaultConfig returns a Config with default lifetimes. Secrets are left
// empty and must be provided by the caller.
func DefaultConfig() Config {
	return Config{
		AccessTTL:   DefaultAccessTTL,
		RefreshTTL:  DefaultRefreshTTL,
		Issuer:      "go-auth-session",
		DefaultRole: RoleNameUser,
	}
}

// Validate checks the configuration invariants
func (c Config) Validate() error {
	if c.AccessSecret == "" || c.RefreshSecret == "" {
		return goerrors.New("access and refresh secrets are required", goerrors.CategoryValidation).
			WithTextCode(TextCodeInvalidConfig)
	}

	if c.AccessSecret == c.RefreshSecret {
		return goerrors.New("access and refresh secrets must differ", goerrors.CategoryValidation).
			WithTextCode(TextCodeInvalidConfig)
	}

	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.VerificationTTL < 0 {
		return goerrors.New("token lifetimes must be positive", goerrors.CategoryValidation).
			WithTextCode(TextCodeInvalidConfig).
			WithMetadata(map[string]any{
				"access_ttl":       c.AccessTTL.String(),
				"refresh_ttl":      c.RefreshTTL.String(),
				"verification_ttl": c.VerificationTTL.String(),
			})
	}

	return nil
}

// GetVerificationTTL returns the lifetime used for verification artifacts
func (c Config) GetVerificationTTL() time.Duration {
	if c.VerificationTTL > 0 {
		return c.VerificationTTL
	}
	return c.AccessTTL
}
