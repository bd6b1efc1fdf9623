// Package activitymap turns auth activity events into a flat record shape
// suitable for audit logs and event buses.
package activitymap

import (
	"context"
	"strings"
	"time"

	auth "github.com/goliatone/go-auth-session"
)

const (
	MetadataKeyIP     = "ip"
	MetadataKeyDevice = "device"
)

const (
	defaultChannel    = "auth"
	defaultObjectType = "user"
	anonymousActorID  = "anonymous"
)

// Record is the normalized form of an activity event
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization
type Option func(*options)

type options struct {
	channel       string
	objectType    string
	actorFallback string
}

// WithChannel sets the channel of every record
func WithChannel(channel string) Option {
	return func(o *options) {
		o.channel = strings.TrimSpace(channel)
	}
}

// WithActorFallback sets the actor id used when the event has no user, e.g.
// a failed sign-in for an unknown email
func WithActorFallback(actorID string) Option {
	return func(o *options) {
		o.actorFallback = strings.TrimSpace(actorID)
	}
}

// Normalize converts event into a Record
func Normalize(event auth.ActivityEvent, opts ...Option) Record {
	o := options{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: anonymousActorID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	userID := strings.TrimSpace(event.UserID)

	actorID := userID
	if actorID == "" {
		actorID = o.actorFallback
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	return Record{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: o.objectType,
		ObjectID:   userID,
		Channel:    o.channel,
		Metadata:   metadata(event),
		OccurredAt: occurredAt.UTC(),
	}
}

// Sink returns an auth.ActivitySink that normalizes every event and hands
// the record to emit
func Sink(emit func(Record) error, opts ...Option) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		return emit(Normalize(event, opts...))
	})
}

func metadata(event auth.ActivityEvent) map[string]any {
	out := make(map[string]any, len(event.Metadata)+2)
	for key, value := range event.Metadata {
		out[key] = value
	}

	if ip := strings.TrimSpace(event.IP); ip != "" {
		out[MetadataKeyIP] = ip
	}
	if device := strings.TrimSpace(event.Device); device != "" {
		out[MetadataKeyDevice] = device
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
