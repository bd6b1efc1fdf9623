// Package redisstore keeps the session registry in Redis. Each (user,
// device) pair owns one hash holding the session, and a per token index key
// points back at it so lookups by (user, token) stay O(1).
//
// Every key of a user carries the user id as a hash tag, so on Redis Cluster
// all of them map to the same slot and the scripts can touch the stored
// index key of a superseded session.
package redisstore

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	auth "github.com/goliatone/go-auth-session"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// upsertScript replaces the device session and moves the token index. The
// index of the superseded token is removed in the same step, so the old
// access token stops resolving the moment the new one is registered.
var upsertScript = redis.NewScript(`
local device_key = KEYS[1]
local token_key = KEYS[2]
local payload = ARGV[1]
local ttl_ms = tonumber(ARGV[2])

local old_index = redis.call("HGET", device_key, "index")
if old_index and old_index ~= token_key then
  redis.call("DEL", old_index)
end

redis.call("HSET", device_key, "data", payload, "index", token_key)
redis.call("SET", token_key, device_key)

if ttl_ms > 0 then
  redis.call("PEXPIRE", device_key, ttl_ms)
  redis.call("PEXPIRE", token_key, ttl_ms)
end

return 1
`)

var deleteScript = redis.NewScript(`
local token_key = KEYS[1]

local device_key = redis.call("GET", token_key)
if not device_key then
  return 0
end

if redis.call("HGET", device_key, "index") == token_key then
  redis.call("DEL", device_key)
end
redis.call("DEL", token_key)

return 1
`)

// SessionRegistry implements auth.SessionRegistry on Redis
type SessionRegistry struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

var _ auth.SessionRegistry = (*SessionRegistry)(nil)

// Option configures the registry
type Option func(*SessionRegistry)

// WithPrefix sets the key prefix, "auth" by default
func WithPrefix(prefix string) Option {
	return func(r *SessionRegistry) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithTTL expires idle sessions after ttl. Use the access token lifetime so
// keys do not outlive the token they hold.
func WithTTL(ttl time.Duration) Option {
	return func(r *SessionRegistry) {
		r.ttl = ttl
	}
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(r *SessionRegistry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a registry on client
func New(client redis.UniversalClient, opts ...Option) *SessionRegistry {
	r := &SessionRegistry{
		client: client,
		prefix: "auth",
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

type record struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"token"`
	IPAddress string    `json:"ip_address"`
	Device    string    `json:"device"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *SessionRegistry) deviceKey(userID uuid.UUID, device string) string {
	return fmt.Sprintf("%s:session:{%s}:%s", r.prefix, userID, device)
}

func (r *SessionRegistry) tokenKey(userID uuid.UUID, token string) string {
	return fmt.Sprintf("%s:session-token:{%s}:%s", r.prefix, userID, auth.HashToken(token))
}

// CreateOrUpdate replaces the session registered for (user, device)
func (r *SessionRegistry) CreateOrUpdate(ctx context.Context, session *auth.Session) (*auth.Session, error) {
	if session == nil || session.UserID == uuid.Nil || session.Token == "" {
		return nil, goerrors.New("session requires user id and token", goerrors.CategoryBadInput)
	}

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}

	now := r.now().UTC()
	session.UpdatedAt = &now
	if session.CreatedAt == nil {
		session.CreatedAt = &now
	}

	payload, err := json.Marshal(record{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		IPAddress: session.IPAddress,
		Device:    session.Device,
		Platform:  session.Platform,
		CreatedAt: *session.CreatedAt,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode session")
	}

	keys := []string{
		r.deviceKey(session.UserID, session.Device),
		r.tokenKey(session.UserID, session.Token),
	}

	if err := upsertScript.Run(ctx, r.client, keys, payload, r.ttl.Milliseconds()).Err(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store session")
	}

	return session, nil
}

// FindByTokenUser returns the session currently registered under token
func (r *SessionRegistry) FindByTokenUser(ctx context.Context, userID uuid.UUID, token string) (*auth.Session, error) {
	deviceKey, err := r.client.Get(ctx, r.tokenKey(userID, token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, auth.ErrSessionNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read session index")
	}

	raw, err := r.client.HGet(ctx, deviceKey, "data").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, auth.ErrSessionNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read session")
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode session")
	}

	if rec.UserID != userID || subtle.ConstantTimeCompare([]byte(rec.Token), []byte(token)) != 1 {
		return nil, auth.ErrSessionNotFound
	}

	return &auth.Session{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Token:     rec.Token,
		IPAddress: rec.IPAddress,
		Device:    rec.Device,
		Platform:  rec.Platform,
		CreatedAt: &rec.CreatedAt,
		UpdatedAt: &rec.UpdatedAt,
	}, nil
}

// DeleteByTokenUser removes the session registered under token, if any
func (r *SessionRegistry) DeleteByTokenUser(ctx context.Context, userID uuid.UUID, token string) error {
	err := deleteScript.Run(ctx, r.client, []string{r.tokenKey(userID, token)}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete session")
	}
	return nil
}

// Open parses a redis:// URL and pings the server
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid redis url")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reach redis")
	}

	return client, nil
}
