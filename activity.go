package auth

import (
	"context"
	"sync"
	"time"
)

// ActivityEventType enumerates the lifecycle events the service emits
type ActivityEventType string

const (
	ActivityEventSignUp         ActivityEventType = "auth.signup"
	ActivityEventLoginSuccess   ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure   ActivityEventType = "auth.login.failure"
	ActivityEventEmailVerified  ActivityEventType = "auth.email.verified"
	ActivityEventLogout         ActivityEventType = "auth.logout"
	ActivityEventTokenRefreshed ActivityEventType = "auth.token.refreshed"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	IP         string
	Device     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// MemoryActivitySink keeps events in memory, mostly useful in tests and
// local development
type MemoryActivitySink struct {
	mu     sync.Mutex
	events []ActivityEvent
}

// Record implements ActivitySink.
func (m *MemoryActivitySink) Record(_ context.Context, event ActivityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the recorded events
func (m *MemoryActivitySink) Events() []ActivityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ActivityEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Types returns the recorded event types in order
func (m *MemoryActivitySink) Types() []ActivityEventType {
	events := m.Events()
	out := make([]ActivityEventType, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType)
	}
	return out
}
