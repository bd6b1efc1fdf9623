package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	// RoleNameAdmin is the seeded administrator role
	RoleNameAdmin = "admin"
	// RoleNameUser is the seeded default role
	RoleNameUser = "user"
)

// Role is the role model, loaded as a relation of User on profile lookups
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// User is the user model. A user with IsActive false carries a
// VerificationToken until the email address is verified.
type User struct {
	bun.BaseModel     `bun:"table:users,alias:usr"`
	ID                uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	RoleID            *uuid.UUID `bun:"role_id,type:uuid" json:"role_id,omitempty"`
	Role              *Role      `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
	Fullname          string     `bun:"fullname,notnull" json:"fullname,omitempty"`
	Email             string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone             string     `bun:"phone" json:"phone,omitempty"`
	PasswordHash      string     `bun:"password_hash" json:"-"`
	IsActive          bool       `bun:"is_active,notnull" json:"is_active"`
	VerificationToken *string    `bun:"verification_token" json:"-"`
	LoggedInAt        *time.Time `bun:"logged_in_at" json:"logged_in_at,omitempty"`
	CreatedAt         *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt         *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// HasVerificationToken reports whether the user still holds an unused
// verification token
func (u *User) HasVerificationToken() bool {
	return u != nil && u.VerificationToken != nil && *u.VerificationToken != ""
}

// Session binds a user, a device and the access token currently valid for
// that device. There is at most one row per (user, device).
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid,unique:sessions_user_device" json:"user_id"`
	Token         string     `bun:"token,notnull" json:"-"`
	IPAddress     string     `bun:"ip_address" json:"ip_address,omitempty"`
	Device        string     `bun:"device,notnull,unique:sessions_user_device" json:"device,omitempty"`
	Platform      string     `bun:"platform" json:"platform,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// RefreshToken is an issued refresh token. Only the SHA-256 digest of the
// token value is persisted.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rft"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Token         string     `bun:"-" json:"-"`
	TokenHash     string     `bun:"token_hash,notnull" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsExpired reports whether the refresh token is past its expiry at t
func (r *RefreshToken) IsExpired(t time.Time) bool {
	return r == nil || !t.Before(r.ExpiresAt)
}
