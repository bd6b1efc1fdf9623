package auth_test

import (
	"testing"

	auth "github.com/goliatone/go-auth-session"
	"github.com/stretchr/testify/assert"
)

func TestAccountStateOf(t *testing.T) {
	token := "code"

	assert.Equal(t, auth.AccountStateUnregistered, auth.AccountStateOf(nil))
	assert.Equal(t, auth.AccountStatePendingVerification, auth.AccountStateOf(&auth.User{VerificationToken: &token}))
	assert.Equal(t, auth.AccountStateActive, auth.AccountStateOf(&auth.User{IsActive: true}))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to auth.AccountState
		want     bool
	}{
		{auth.AccountStateUnregistered, auth.AccountStatePendingVerification, true},
		{auth.AccountStatePendingVerification, auth.AccountStateActive, true},
		{auth.AccountStateUnregistered, auth.AccountStateActive, false},
		{auth.AccountStateActive, auth.AccountStatePendingVerification, false},
		{auth.AccountStateActive, auth.AccountStateActive, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, auth.CanTransition(tt.from, tt.to))
		})
	}
}
