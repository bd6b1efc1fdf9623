package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Logger is the logging contract used across the package. Arguments are
// key/value pairs, which makes *slog.Logger a drop in implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// PasswordHasher hashes and compares user passwords
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// DeviceResolver derives the device and platform descriptors used to scope
// sessions from the inbound request.
type DeviceResolver interface {
	Resolve(req RequestContext) DeviceInfo
}

// DeviceInfo holds the descriptors produced by a DeviceResolver
type DeviceInfo struct {
	Device   string
	Platform string
}

// SessionRegistry tracks one live session per (user, device) pair.
type SessionRegistry interface {
	CreateOrUpdate(ctx context.Context, session *Session) (*Session, error)
	FindByTokenUser(ctx context.Context, userID uuid.UUID, token string) (*Session, error)
	DeleteByTokenUser(ctx context.Context, userID uuid.UUID, token string) error
}

// TxSessionRegistry is implemented by registries that can join a database
// transaction. SignIn uses it to persist the refresh token and the session
// atomically.
type TxSessionRegistry interface {
	SessionRegistry
	CreateOrUpdateTx(ctx context.Context, tx bun.IDB, session *Session) (*Session, error)
}

// RefreshTokenStore tracks issued refresh tokens per user
type RefreshTokenStore interface {
	Create(ctx context.Context, record *RefreshToken) (*RefreshToken, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *RefreshToken) (*RefreshToken, error)
	Find(ctx context.Context, userID uuid.UUID, token string) (*RefreshToken, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
	DeleteToken(ctx context.Context, userID uuid.UUID, token string) error
}

// Notifier delivers account notifications, e.g. the sign-up verification mail.
type Notifier interface {
	SendVerification(ctx context.Context, notice VerificationNotice) error
}

// Provisioner prepares per-user resources after a successful sign-in.
type Provisioner interface {
	Provision(ctx context.Context, userID string) error
}

// TaskSubmitter accepts background work that must not affect the outcome of
// the request that produced it.
type TaskSubmitter interface {
	Submit(task Task) error
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] AUTH " + line(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] AUTH " + line(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] AUTH " + line(msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] AUTH " + line(msg, args...))
}

func line(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	b.WriteString("\n")
	return b.String()
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NoopLogger returns a Logger that discards everything
func NoopLogger() Logger {
	return noopLogger{}
}
