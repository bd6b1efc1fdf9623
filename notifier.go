package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// VerificationNotice is handed to the Notifier after sign-up
type VerificationNotice struct {
	UserID    string
	Fullname  string
	Email     string
	Token     string
	ExpiresAt time.Time
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(ctx context.Context, notice VerificationNotice) error

// SendVerification implements Notifier
func (f NotifierFunc) SendVerification(ctx context.Context, notice VerificationNotice) error {
	if f == nil {
		return nil
	}
	return f(ctx, notice)
}

// redactedToken replaces the token in logged links unless revealed
const redactedToken = "[redacted]"

// LogNotifier stands in for outbound mail. It writes the verification link
// to the logger with the token redacted. WithRevealedTokens logs the usable
// link and must only be enabled outside production.
type LogNotifier struct {
	logger  Logger
	baseURL string
	reveal  bool
}

var _ Notifier = (*LogNotifier)(nil)

// LogNotifierOption configures a LogNotifier
type LogNotifierOption func(*LogNotifier)

// WithRevealedTokens logs the raw verification token
func WithRevealedTokens(reveal bool) LogNotifierOption {
	return func(n *LogNotifier) {
		n.reveal = reveal
	}
}

// NewLogNotifier creates a LogNotifier. baseURL is the page that consumes
// the email and token query parameters.
func NewLogNotifier(logger Logger, baseURL string, opts ...LogNotifierOption) *LogNotifier {
	if logger == nil {
		logger = defLogger{}
	}
	n := &LogNotifier{
		logger:  logger,
		baseURL: baseURL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

// SendVerification logs the verification link
func (n *LogNotifier) SendVerification(_ context.Context, notice VerificationNotice) error {
	n.logger.Info("email verification token issued",
		"user_id", notice.UserID,
		"email", notice.Email,
		"expires_at", notice.ExpiresAt,
		"verification", n.link(notice),
	)
	return nil
}

func (n *LogNotifier) link(notice VerificationNotice) string {
	token := redactedToken
	if n.reveal {
		token = notice.Token
	}

	q := url.Values{}
	q.Set("email", notice.Email)
	q.Set("token", token)

	if strings.TrimSpace(n.baseURL) == "" {
		return q.Encode()
	}
	return fmt.Sprintf("%s?%s", strings.TrimRight(n.baseURL, "?"), q.Encode())
}
