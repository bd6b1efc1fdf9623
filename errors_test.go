package auth_test

import (
	"errors"
	"fmt"
	"testing"

	auth "github.com/goliatone/go-auth-session"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTokenExpiredError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Structured token expired error",
			err:      auth.ErrTokenExpired,
			expected: true,
		},
		{
			name:     "Wrapped token expired error",
			err:      fmt.Errorf("verify: %w", auth.ErrTokenExpired),
			expected: true,
		},
		{
			name:     "Legacy token expired error (string match)",
			err:      errors.New("some wrapper: token is expired"),
			expected: true,
		},
		{
			name:     "Different structured error",
			err:      auth.ErrSessionNotFound,
			expected: false,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.IsTokenExpiredError(tt.err))
		})
	}
}

func TestIsMalformedError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"Structured malformed error", auth.ErrTokenMalformed, true},
		{"Missing bearer", errors.New("missing or malformed JWT"), true},
		{"Legacy string", errors.New("token is malformed: bad segment"), true},
		{"Expired is not malformed", auth.ErrTokenExpired, false},
		{"Nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.IsMalformedError(tt.err))
		})
	}
}

func TestSentinelCodes(t *testing.T) {
	tests := []struct {
		err      error
		code     int
		textCode string
	}{
		{auth.ErrDuplicateEmail, 409, auth.TextCodeDuplicateEmail},
		{auth.ErrAccountNotFound, 404, auth.TextCodeAccountNotFound},
		{auth.ErrInvalidCredentials, 400, auth.TextCodeInvalidCredentials},
		{auth.ErrAccountNotVerified, 400, auth.TextCodeAccountNotVerified},
		{auth.ErrSessionNotFound, 404, auth.TextCodeSessionNotFound},
		{auth.ErrAccountInvalid, 404, auth.TextCodeAccountInvalid},
		{auth.ErrInvalidVerification, 400, auth.TextCodeInvalidVerification},
		{auth.ErrUnauthorized, 401, auth.TextCodeUnauthorized},
		{auth.ErrInvalidToken, 401, auth.TextCodeInvalidToken},
		{auth.ErrTokenExpired, 401, auth.TextCodeTokenExpired},
		{auth.ErrTokenMalformed, 401, auth.TextCodeTokenMalformed},
		{auth.ErrRefreshTokenRevoked, 401, auth.TextCodeRefreshTokenRevoked},
	}

	for _, tt := range tests {
		t.Run(tt.textCode, func(t *testing.T) {
			var richErr *goerrors.Error
			require.True(t, goerrors.As(tt.err, &richErr))
			assert.Equal(t, tt.code, richErr.Code)
			assert.Equal(t, tt.textCode, richErr.TextCode)
		})
	}
}
