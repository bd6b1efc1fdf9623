package auth_test

import (
	"strings"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCodec_SignVerify(t *testing.T) {
	codec := auth.NewTokenCodec[auth.AccessPayload]("access-secret", auth.TokenKindAccess,
		auth.WithCodecIssuer("test"), auth.WithCodecLogger(auth.NoopLogger()))

	token, err := codec.Sign(auth.AccessPayload{UID: "user-1"}, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	payload, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", payload.UID)
	assert.True(t, payload.HasUID())
}

func TestTokenCodec_TokensAreUnique(t *testing.T) {
	codec := auth.NewTokenCodec[auth.AccessPayload]("access-secret", auth.TokenKindAccess)

	a, err := codec.Sign(auth.AccessPayload{UID: "user-1"}, time.Hour)
	require.NoError(t, err)
	b, err := codec.Sign(auth.AccessPayload{UID: "user-1"}, time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestTokenCodec_CrossSecretFails(t *testing.T) {
	access := auth.NewTokenCodec[auth.AccessPayload]("access-secret", auth.TokenKindAccess, auth.WithCodecLogger(auth.NoopLogger()))
	refresh := auth.NewTokenCodec[auth.AccessPayload]("refresh-secret", auth.TokenKindRefresh, auth.WithCodecLogger(auth.NoopLogger()))

	accessToken, err := access.Sign(auth.AccessPayload{UID: "u"}, time.Hour)
	require.NoError(t, err)
	refreshToken, err := refresh.Sign(auth.AccessPayload{UID: "u"}, time.Hour)
	require.NoError(t, err)

	_, err = refresh.Verify(accessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = access.Verify(refreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenCodec_KindMismatchFails(t *testing.T) {
	access := auth.NewTokenCodec[auth.AccessPayload]("shared", auth.TokenKindAccess, auth.WithCodecLogger(auth.NoopLogger()))
	other := auth.NewTokenCodec[auth.AccessPayload]("shared", auth.TokenKindRefresh, auth.WithCodecLogger(auth.NoopLogger()))

	token, err := other.Sign(auth.AccessPayload{UID: "u"}, time.Hour)
	require.NoError(t, err)

	_, err = access.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenCodec_Expired(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	codec := auth.NewTokenCodec[auth.AccessPayload]("secret", auth.TokenKindAccess, auth.WithCodecClock(clock))

	token, err := codec.Sign(auth.AccessPayload{UID: "u"}, time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)

	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
	assert.True(t, auth.IsTokenExpiredError(err))
}

func TestTokenCodec_Malformed(t *testing.T) {
	codec := auth.NewTokenCodec[auth.AccessPayload]("secret", auth.TokenKindAccess)

	_, err := codec.Verify("not-a-token")
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	assert.True(t, auth.IsMalformedError(err))
}

func TestTokenCodec_TamperedSignature(t *testing.T) {
	codec := auth.NewTokenCodec[auth.AccessPayload]("secret", auth.TokenKindAccess, auth.WithCodecLogger(auth.NoopLogger()))

	token, err := codec.Sign(auth.AccessPayload{UID: "u"}, time.Hour)
	require.NoError(t, err)

	other, err := codec.Sign(auth.AccessPayload{UID: "admin"}, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	otherParts := strings.Split(other, ".")
	require.Len(t, parts, 3)
	require.Len(t, otherParts, 3)

	tampered := strings.Join([]string{parts[0], otherParts[1], parts[2]}, ".")

	_, err = codec.Verify(tampered)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenCodec_RejectsZeroTTL(t *testing.T) {
	codec := auth.NewTokenCodec[auth.AccessPayload]("secret", auth.TokenKindAccess)

	_, err := codec.Sign(auth.AccessPayload{UID: "u"}, 0)
	assert.Error(t, err)
}

func TestVerificationTokens(t *testing.T) {
	codec := auth.NewTokenCodec[auth.VerificationPayload]("access-secret", auth.TokenKindVerification)
	tokens := auth.NewVerificationTokens(codec, time.Hour)

	assert.NotEqual(t, tokens.Issue(), tokens.Issue())

	token, err := tokens.Mint()
	require.NoError(t, err)

	payload, err := codec.Verify(token)
	require.NoError(t, err)
	assert.NotEmpty(t, payload.Code)

	assert.True(t, tokens.Check(token, token))
	assert.False(t, tokens.Check(token, token+"a"))
	assert.False(t, tokens.Check("", ""))
	assert.False(t, tokens.Check(token, " "+token))
}

func TestVerificationToken_NotUsableAsAccess(t *testing.T) {
	verification := auth.NewTokenCodec[auth.VerificationPayload]("access-secret", auth.TokenKindVerification)
	access := auth.NewTokenCodec[auth.AccessPayload]("access-secret", auth.TokenKindAccess, auth.WithCodecLogger(auth.NoopLogger()))

	token, err := verification.Sign(auth.VerificationPayload{Code: "abc"}, time.Hour)
	require.NoError(t, err)

	_, err = access.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
