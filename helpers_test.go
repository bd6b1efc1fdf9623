package auth_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const (
	desktopUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	mobileUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

	testPassword = "correct-horse-battery"
)

var (
	desktop = auth.RequestContext{IP: "::ffff:10.0.0.1", UserAgent: desktopUA}
	mobile  = auth.RequestContext{IP: "10.0.0.2", UserAgent: mobileUA}
)

type noticeRecorder struct {
	mu      sync.Mutex
	notices []auth.VerificationNotice
}

func (n *noticeRecorder) SendVerification(_ context.Context, notice auth.VerificationNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

func (n *noticeRecorder) tokenFor(t *testing.T, email string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.notices) - 1; i >= 0; i-- {
		if n.notices[i].Email == email {
			return n.notices[i].Token
		}
	}
	t.Fatalf("no verification notice for %s", email)
	return ""
}

type fixture struct {
	ctx      context.Context
	db       *bun.DB
	repo     auth.RepositoryManager
	svc      *auth.Service
	activity *auth.MemoryActivitySink
	notices  *noticeRecorder
}

func memoryDSN() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
}

func testConfig() auth.Config {
	cfg := auth.DefaultConfig()
	cfg.AccessSecret = "access-secret"
	cfg.RefreshSecret = "refresh-secret"
	return cfg
}

func newDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := repository.OpenAndMigrate(context.Background(), repository.Options{
		Driver: repository.DriverSQLite,
		DSN:    memoryDSN(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newFixture(t *testing.T, opts ...auth.Option) *fixture {
	t.Helper()

	db := newDB(t)
	repo := auth.NewRepositoryManager(db)

	f := &fixture{
		ctx:      context.Background(),
		db:       db,
		repo:     repo,
		activity: &auth.MemoryActivitySink{},
		notices:  &noticeRecorder{},
	}

	base := []auth.Option{
		auth.WithLogger(auth.NoopLogger()),
		auth.WithHasher(auth.NewBcryptHasher(bcrypt.MinCost)),
		auth.WithNotifier(f.notices),
		auth.WithActivitySink(f.activity),
	}

	svc, err := auth.NewService(testConfig(), repo, append(base, opts...)...)
	require.NoError(t, err)
	f.svc = svc

	return f
}

func (f *fixture) signUp(t *testing.T, email string) *auth.User {
	t.Helper()
	res, err := f.svc.SignUp(f.ctx, auth.SignUpRequest{
		Fullname:        "Alice Liddell",
		Email:           email,
		Password:        testPassword,
		ConfirmPassword: testPassword,
	})
	require.NoError(t, err)
	return res.User
}

func (f *fixture) activeUser(t *testing.T, email string) *auth.User {
	t.Helper()
	f.signUp(t, email)
	user, err := f.svc.VerifyEmail(f.ctx, email, f.notices.tokenFor(t, email))
	require.NoError(t, err)
	return user
}

func sessionsFor(t *testing.T, db bun.IDB, userID uuid.UUID) []*auth.Session {
	t.Helper()
	var records []*auth.Session
	err := db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Order("updated_at DESC").
		Scan(context.Background())
	require.NoError(t, err)
	return records
}

func (f *fixture) signIn(t *testing.T, rc auth.RequestContext, email string) *auth.SignInResult {
	t.Helper()
	res, err := f.svc.SignIn(f.ctx, rc, auth.SignInRequest{Email: email, Password: testPassword})
	require.NoError(t, err)
	return res
}

type mutableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mutableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mutableClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.log("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.log("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.log("error", msg, args) }

func (l *recordingLogger) find(msg string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

func argValue(args []any, key string) any {
	for i := 0; i+1 < len(args); i += 2 {
		if k, ok := args[i].(string); ok && k == key {
			return args[i+1]
		}
	}
	return nil
}
