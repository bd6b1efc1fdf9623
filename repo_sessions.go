package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Sessions is the SQL backed SessionRegistry
type Sessions interface {
	TxSessionRegistry
}

type sessions struct {
	db *bun.DB
}

var _ Sessions = (*sessions)(nil)

// NewSessionsRepository creates the SQL session registry
func NewSessionsRepository(db *bun.DB) Sessions {
	return &sessions{db: db}
}

func (s *sessions) CreateOrUpdate(ctx context.Context, session *Session) (*Session, error) {
	return s.CreateOrUpdateTx(ctx, s.db, session)
}

// CreateOrUpdateTx upserts the session keyed by (user_id, device). An
// existing row keeps its id and created_at, everything else is replaced.
func (s *sessions) CreateOrUpdateTx(ctx context.Context, tx bun.IDB, session *Session) (*Session, error) {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}

	now := time.Now()
	session.UpdatedAt = &now
	if session.CreatedAt == nil {
		session.CreatedAt = &now
	}

	_, err := tx.NewInsert().
		Model(session).
		On("CONFLICT (user_id, device) DO UPDATE").
		Set("token = EXCLUDED.token").
		Set("ip_address = EXCLUDED.ip_address").
		Set("platform = EXCLUDED.platform").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return session, nil
}

func (s *sessions) FindByTokenUser(ctx context.Context, userID uuid.UUID, token string) (*Session, error) {
	record := &Session{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	return record, nil
}

func (s *sessions) DeleteByTokenUser(ctx context.Context, userID uuid.UUID, token string) error {
	_, err := s.db.NewDelete().
		Model((*Session)(nil)).
		Where("user_id = ?", userID).
		Where("token = ?", token).
		Exec(ctx)
	return err
}
