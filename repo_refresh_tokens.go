package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RefreshTokens is the SQL backed RefreshTokenStore. Issuing appends a row,
// revocation is per user.
type RefreshTokens interface {
	RefreshTokenStore
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type refreshTokens struct {
	db *bun.DB
}

var _ RefreshTokens = (*refreshTokens)(nil)

// NewRefreshTokensRepository creates the SQL refresh token store
func NewRefreshTokensRepository(db *bun.DB) RefreshTokens {
	return &refreshTokens{db: db}
}

// HashToken returns the hex SHA-256 digest under which token values are stored
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (r *refreshTokens) Create(ctx context.Context, record *RefreshToken) (*RefreshToken, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *refreshTokens) CreateTx(ctx context.Context, tx bun.IDB, record *RefreshToken) (*RefreshToken, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Token != "" {
		record.TokenHash = HashToken(record.Token)
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (r *refreshTokens) Find(ctx context.Context, userID uuid.UUID, token string) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.token_hash = ?", HashToken(token)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		return nil, notFoundOr(err, map[string]any{"user_id": userID.String()})
	}

	return record, nil
}

func (r *refreshTokens) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

func (r *refreshTokens) DeleteToken(ctx context.Context, userID uuid.UUID, token string) error {
	_, err := r.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Where("token_hash = ?", HashToken(token)).
		Exec(ctx)
	return err
}

func (r *refreshTokens) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.db.NewSelect().
		Model((*RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Count(ctx)
}

// DeleteExpired removes rows past their expiry and returns how many went
func (r *refreshTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("expires_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
