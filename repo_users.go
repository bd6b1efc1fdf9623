package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the credential store
type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetWithRole(ctx context.Context, id uuid.UUID) (*User, error)
	GetWithRoleTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	Activate(ctx context.Context, id uuid.UUID, verificationToken string) (bool, error)
	ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID, verificationToken string) (bool, error)

	TrackSuccessfulLogin(ctx context.Context, user *User) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error

	RoleByName(ctx context.Context, name string) (*Role, error)
	RoleByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error)
}

type users struct {
	repository.Repository[*User]
	db      *bun.DB
	hashids bool
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// UsersOption configures the users repository
type UsersOption func(*users)

// WithHashidUserIDs derives new user ids from the email address
func WithHashidUserIDs(enabled bool) UsersOption {
	return func(u *users) {
		u.hashids = enabled
	}
}

// NewUsersRepository creates the bun backed credential store
func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		return nil, notFoundOr(err, map[string]any{"email": email})
	}

	return record, nil
}

func (a *users) GetWithRole(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.GetWithRoleTx(ctx, a.db, id)
}

func (a *users) GetWithRoleTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Relation("Role").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		return nil, notFoundOr(err, map[string]any{"id": id.String()})
	}

	return record, nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	a.prepareUserDefaults(user)
	return a.Repository.CreateTx(ctx, tx, user)
}

// Activate flips is_active and clears the verification token, but only if
// the stored token still equals verificationToken. It reports whether a row
// was updated.
func (a *users) Activate(ctx context.Context, id uuid.UUID, verificationToken string) (bool, error) {
	return a.ActivateTx(ctx, a.db, id, verificationToken)
}

func (a *users) ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID, verificationToken string) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("is_active = ?", true).
		Set("verification_token = NULL").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("verification_token = ?", verificationToken).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, user)
}

func (a *users) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	loggedInAt := time.Now()
	_, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("logged_in_at = ?", loggedInAt).
		Where("id = ?", user.ID).
		Exec(ctx)
	if err != nil {
		return err
	}

	user.LoggedInAt = &loggedInAt
	return nil
}

func (a *users) RoleByName(ctx context.Context, name string) (*Role, error) {
	return a.RoleByNameTx(ctx, a.db, name)
}

func (a *users) RoleByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)

	if err != nil {
		return nil, notFoundOr(err, map[string]any{"role": name})
	}

	return record, nil
}

func (a *users) prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)

	if record.ID == uuid.Nil && a.hashids {
		if id, err := hashid.NewUUID(record.Email); err == nil {
			record.ID = id
		}
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

// NormalizeEmail trims and lower cases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsRecordNotFound reports whether err is a missing row error
func IsRecordNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}

func notFoundOr(err error, metadata map[string]any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.NewRecordNotFound().WithMetadata(metadata)
	}
	return err
}
