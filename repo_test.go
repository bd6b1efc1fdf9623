package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-session"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func newUser(t *testing.T, repo auth.RepositoryManager, email string) *auth.User {
	t.Helper()
	token := uuid.NewString()
	user, err := repo.Users().Register(context.Background(), &auth.User{
		Fullname:          "Test User",
		Email:             email,
		PasswordHash:      "hash",
		VerificationToken: &token,
	})
	require.NoError(t, err)
	return user
}

func TestUsers_RegisterNormalizesEmail(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewRepositoryManager(newDB(t))

	user := newUser(t, repo, "  Alice@Example.COM ")
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)

	found, err := repo.Users().GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.Users().GetByEmail(ctx, "missing@example.com")
	assert.True(t, auth.IsRecordNotFound(err))
}

func TestUsers_HashidIDs(t *testing.T) {
	repo := auth.NewRepositoryManager(newDB(t), auth.WithHashidUserIDs(true))

	user := newUser(t, repo, "alice@example.com")

	expected, err := hashid.NewUUID("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, expected, user.ID)
}

func TestUsers_ActivateConsumesToken(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewRepositoryManager(newDB(t))
	user := newUser(t, repo, "alice@example.com")

	ok, err := repo.Users().Activate(ctx, user.ID, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Users().Activate(ctx, user.ID, *user.VerificationToken)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Users().Activate(ctx, user.ID, *user.VerificationToken)
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded, err := repo.Users().GetWithRole(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsActive)
	assert.Nil(t, reloaded.VerificationToken)
}

func TestSessions_UpsertPerDevice(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	repo := auth.NewRepositoryManager(db)
	user := newUser(t, repo, "alice@example.com")
	sessions := repo.Sessions()

	first, err := sessions.CreateOrUpdate(ctx, &auth.Session{UserID: user.ID, Token: "t1", Device: "Chrome 120", IPAddress: "10.0.0.1"})
	require.NoError(t, err)

	second, err := sessions.CreateOrUpdate(ctx, &auth.Session{UserID: user.ID, Token: "t2", Device: "Chrome 120", IPAddress: "10.0.0.9"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = sessions.CreateOrUpdate(ctx, &auth.Session{UserID: user.ID, Token: "t3", Device: "Safari 17"})
	require.NoError(t, err)

	_, err = sessions.FindByTokenUser(ctx, user.ID, "t1")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)

	found, err := sessions.FindByTokenUser(ctx, user.ID, "t2")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", found.IPAddress)

	assert.Len(t, sessionsFor(t, db, user.ID), 2)

	require.NoError(t, sessions.DeleteByTokenUser(ctx, user.ID, "t2"))
	require.NoError(t, sessions.DeleteByTokenUser(ctx, user.ID, "t2"))

	_, err = sessions.FindByTokenUser(ctx, user.ID, "t2")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestRefreshTokens_StoresDigestOnly(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	repo := auth.NewRepositoryManager(db)
	user := newUser(t, repo, "alice@example.com")
	store := repo.RefreshTokens()

	_, err := store.Create(ctx, &auth.RefreshToken{
		UserID:    user.ID,
		Token:     "raw-refresh-token",
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	})
	require.NoError(t, err)

	var hashes []string
	require.NoError(t, db.NewSelect().Model((*auth.RefreshToken)(nil)).Column("token_hash").Scan(ctx, &hashes))
	require.Len(t, hashes, 1)
	assert.Equal(t, auth.HashToken("raw-refresh-token"), hashes[0])
	assert.NotContains(t, hashes[0], "raw-refresh-token")

	found, err := store.Find(ctx, user.ID, "raw-refresh-token")
	require.NoError(t, err)
	assert.False(t, found.IsExpired(time.Now()))

	_, err = store.Find(ctx, user.ID, "other")
	assert.True(t, auth.IsRecordNotFound(err))

	require.NoError(t, store.DeleteToken(ctx, user.ID, "raw-refresh-token"))
	count, err := store.CountByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRefreshTokens_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewRepositoryManager(newDB(t))
	user := newUser(t, repo, "alice@example.com")
	store := repo.RefreshTokens()

	now := time.Now()
	_, err := store.Create(ctx, &auth.RefreshToken{UserID: user.ID, Token: "old", ExpiresAt: now.Add(-time.Hour).UTC()})
	require.NoError(t, err)
	_, err = store.Create(ctx, &auth.RefreshToken{UserID: user.ID, Token: "fresh", ExpiresAt: now.Add(time.Hour).UTC()})
	require.NoError(t, err)

	n, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Find(ctx, user.ID, "fresh")
	assert.NoError(t, err)
}

func TestRepositoryManager_RunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewRepositoryManager(newDB(t))
	user := newUser(t, repo, "alice@example.com")

	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := repo.RefreshTokens().CreateTx(ctx, tx, &auth.RefreshToken{
			UserID:    user.ID,
			Token:     "in-tx",
			ExpiresAt: time.Now().Add(time.Hour).UTC(),
		}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	count, err := repo.RefreshTokens().CountByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
