package auth

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	MessageSignUp    = "registration is successful, check your email for the next steps"
	MessageSignIn    = "Login successfully"
	MessageRefreshed = "Access token refreshed"
	MessageLogout    = "You have logged out of the application"
)

// AuthService is the contract the transport layer depends on
type AuthService interface {
	SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, error)
	SignIn(ctx context.Context, rc RequestContext, req SignInRequest) (*SignInResult, error)
	VerifySession(ctx context.Context, userID, token string) (*User, error)
	VerifyEmail(ctx context.Context, email, token string) (*User, error)
	Profile(ctx context.Context, userID string) (*User, error)
	Logout(ctx context.Context, userID string, claimed AccessPayload, token string) (string, error)
	Refresh(ctx context.Context, rc RequestContext, refreshToken string) (*SignInResult, error)
	AccessTokens() *TokenCodec[AccessPayload]
}

// SignUpResult is returned by SignUp
type SignUpResult struct {
	Message string `json:"message"`
	User    *User  `json:"data"`
}

// SignInResult is returned by SignIn and Refresh
type SignInResult struct {
	Message      string        `json:"message"`
	AccessToken  string        `json:"accessToken"`
	ExpiresIn    int64         `json:"expiresIn"`
	TokenType    string        `json:"tokenType"`
	RefreshToken string        `json:"refreshToken"`
	User         AccessPayload `json:"user"`
}

// Service composes the token codecs, the credential store, the session
// registry and the refresh token store into the account and session
// lifecycle. It is safe for concurrent use.
type Service struct {
	cfg           Config
	repo          RepositoryManager
	users         Users
	sessions      SessionRegistry
	refreshTokens RefreshTokenStore

	access       *TokenCodec[AccessPayload]
	refresh      *TokenCodec[AccessPayload]
	verification *VerificationTokens

	hasher      PasswordHasher
	devices     DeviceResolver
	tasks       TaskSubmitter
	notifier    Notifier
	provisioner Provisioner
	activity    ActivitySink
	metrics     *Metrics
	logger      Logger
	now         func() time.Time
}

var _ AuthService = (*Service)(nil)

// Option configures a Service
type Option func(*Service)

// WithLogger sets the service logger
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionRegistry replaces the SQL session registry, e.g. with Redis
func WithSessionRegistry(registry SessionRegistry) Option {
	return func(s *Service) {
		if registry != nil {
			s.sessions = registry
		}
	}
}

// WithRefreshTokenStore replaces the SQL refresh token store
func WithRefreshTokenStore(store RefreshTokenStore) Option {
	return func(s *Service) {
		if store != nil {
			s.refreshTokens = store
		}
	}
}

// WithTasks sets where background work is submitted
func WithTasks(tasks TaskSubmitter) Option {
	return func(s *Service) {
		if tasks != nil {
			s.tasks = tasks
		}
	}
}

// WithNotifier sets the verification mail collaborator
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithProvisioner sets the per user directory collaborator
func WithProvisioner(p Provisioner) Option {
	return func(s *Service) {
		s.provisioner = p
	}
}

// WithActivitySink sets the lifecycle event sink
func WithActivitySink(sink ActivitySink) Option {
	return func(s *Service) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithMetrics sets the prometheus collectors
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithHasher sets the password hasher
func WithHasher(h PasswordHasher) Option {
	return func(s *Service) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithDeviceResolver sets how device and platform descriptors are derived
func WithDeviceResolver(r DeviceResolver) Option {
	return func(s *Service) {
		if r != nil {
			s.devices = r
		}
	}
}

// WithClock overrides the service and codec clock
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService validates cfg and builds the service around repo
func NewService(cfg Config, repo RepositoryManager, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if repo == nil {
		return nil, goerrors.New("repository manager is required", goerrors.CategoryBadInput)
	}

	if err := repo.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "invalid repository manager")
	}

	s := &Service{
		cfg:           cfg,
		repo:          repo,
		users:         repo.Users(),
		sessions:      repo.Sessions(),
		refreshTokens: repo.RefreshTokens(),
		hasher:        NewBcryptHasher(0),
		devices:       UserAgentResolver{},
		activity:      noopActivitySink{},
		logger:        defLogger{},
		now:           time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.tasks == nil {
		s.tasks = InlineTasks{Logger: s.logger}
	}

	codecOpts := []CodecOption{
		WithCodecIssuer(cfg.Issuer),
		WithCodecClock(s.now),
		WithCodecLogger(s.logger),
	}

	s.access = NewTokenCodec[AccessPayload](cfg.AccessSecret, TokenKindAccess, codecOpts...)
	s.refresh = NewTokenCodec[AccessPayload](cfg.RefreshSecret, TokenKindRefresh, codecOpts...)
	s.verification = NewVerificationTokens(
		NewTokenCodec[VerificationPayload](cfg.AccessSecret, TokenKindVerification, codecOpts...),
		cfg.GetVerificationTTL(),
	)

	return s, nil
}

// AccessTokens returns the codec used for access tokens
func (s *Service) AccessTokens() *TokenCodec[AccessPayload] {
	return s.access
}

// SignUp registers a pending account and hands the verification token to the
// notifier
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, error) {
	req.Email = NormalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	email := req.Email

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !IsRecordNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up email")
	}

	var phone string
	if req.Phone != "" {
		normalized, err := NormalizePhone(req.Phone)
		if err != nil {
			return nil, invalidInput(err)
		}
		phone = normalized
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	token, err := s.verification.Mint()
	if err != nil {
		return nil, err
	}

	user := &User{
		Fullname:          req.Fullname,
		Email:             email,
		Phone:             phone,
		PasswordHash:      hash,
		IsActive:          false,
		VerificationToken: &token,
		RoleID:            s.defaultRoleID(ctx),
	}

	user, err = s.users.Register(ctx, user)
	if err != nil {
		if _, lookupErr := s.users.GetByEmail(ctx, email); lookupErr == nil {
			return nil, ErrDuplicateEmail
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
	}

	s.metrics.signUp()
	s.emit(ctx, ActivityEvent{EventType: ActivityEventSignUp, UserID: user.ID.String()})

	if s.notifier != nil {
		notice := VerificationNotice{
			UserID:    user.ID.String(),
			Fullname:  user.Fullname,
			Email:     user.Email,
			Token:     token,
			ExpiresAt: s.now().Add(s.cfg.GetVerificationTTL()),
		}
		s.submit(Task{
			Name: "send-verification",
			Run: func(ctx context.Context) error {
				return s.notifier.SendVerification(ctx, notice)
			},
		})
	}

	return &SignUpResult{
		Message: MessageSignUp,
		User:    user,
	}, nil
}

// SignIn authenticates the credentials and opens the session for the
// caller's device, replacing any earlier session on that device
func (s *Service) SignIn(ctx context.Context, rc RequestContext, req SignInRequest) (res *SignInResult, err error) {
	defer func() { s.metrics.signIn(err) }()

	req.Email = NormalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	device := s.devices.Resolve(rc)
	ip := NormalizeIP(rc.IP)

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if IsRecordNotFound(err) {
			s.emitLoginFailure(ctx, "", ip, device, TextCodeAccountNotFound)
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	if !user.IsActive {
		s.emitLoginFailure(ctx, user.ID.String(), ip, device, TextCodeAccountNotVerified)
		return nil, ErrAccountNotVerified
	}

	if err := s.hasher.ComparePasswordAndHash(req.Password, user.PasswordHash); err != nil {
		if !errors.Is(err, ErrMismatchedHashAndPassword) {
			s.logger.Warn("password comparison failed", "user_id", user.ID, "error", err)
		}
		s.emitLoginFailure(ctx, user.ID.String(), ip, device, TextCodeInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	payload := AccessPayload{UID: user.ID.String()}

	accessToken, err := s.access.Sign(payload, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.refresh.Sign(payload, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}

	record := &RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: s.now().Add(s.cfg.RefreshTTL).UTC(),
	}

	session := &Session{
		UserID:    user.ID,
		Token:     accessToken,
		IPAddress: ip,
		Device:    device.Device,
		Platform:  device.Platform,
	}

	if err := s.persistLogin(ctx, record, session); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session")
	}

	if err := s.users.TrackSuccessfulLogin(ctx, user); err != nil {
		s.logger.Warn("failed to track login", "user_id", user.ID, "error", err)
	}

	if s.provisioner != nil {
		uid := user.ID.String()
		s.submit(Task{
			Name: "provision-directories",
			Run: func(ctx context.Context) error {
				return s.provisioner.Provision(ctx, uid)
			},
		})
	}

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    user.ID.String(),
		IP:        ip,
		Device:    device.Device,
	})

	return &SignInResult{
		Message:      MessageSignIn,
		AccessToken:  accessToken,
		ExpiresIn:    int64(s.cfg.AccessTTL / time.Second),
		TokenType:    TokenTypeBearer,
		RefreshToken: refreshToken,
		User:         payload,
	}, nil
}

// persistLogin stores the refresh token before the session. A SQL registry
// joins the same transaction; any other registry gets a compensating delete
// of the refresh token when the upsert fails.
func (s *Service) persistLogin(ctx context.Context, record *RefreshToken, session *Session) error {
	if txRegistry, ok := s.sessions.(TxSessionRegistry); ok {
		return s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := s.refreshTokens.CreateTx(ctx, tx, record); err != nil {
				return err
			}
			_, err := txRegistry.CreateOrUpdateTx(ctx, tx, session)
			return err
		})
	}

	if _, err := s.refreshTokens.Create(ctx, record); err != nil {
		return err
	}

	if _, err := s.sessions.CreateOrUpdate(ctx, session); err != nil {
		if derr := s.refreshTokens.DeleteToken(context.WithoutCancel(ctx), record.UserID, record.Token); derr != nil {
			s.logger.Error("failed to revoke orphaned refresh token", "user_id", record.UserID, "error", derr)
		}
		return err
	}

	return nil
}

// VerifySession requires the token to be the one currently registered for
// the user, then verifies the registered token. It returns nil, nil when the
// token payload carries no uid.
func (s *Service) VerifySession(ctx context.Context, userID, token string) (user *User, err error) {
	defer func() { s.metrics.sessionCheck(err) }()

	uid, ok := ParseUserID(userID)
	if !ok || token == "" {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessions.FindByTokenUser(ctx, uid, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || IsRecordNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up session")
	}

	payload, err := s.access.Verify(session.Token)
	if err != nil {
		return nil, err
	}

	if !payload.HasUID() {
		return nil, nil
	}

	return s.Profile(ctx, payload.UID)
}

// VerifyEmail activates the account holding token. The token is consumed by
// the same conditional update, so a replay fails with ErrAccountInvalid.
func (s *Service) VerifyEmail(ctx context.Context, email, token string) (*User, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	if !user.HasVerificationToken() || !CanTransition(AccountStateOf(user), AccountStateActive) {
		return nil, ErrAccountInvalid
	}

	stored := *user.VerificationToken
	if !s.verification.Check(stored, token) {
		return nil, ErrInvalidVerification
	}

	activated, err := s.users.Activate(ctx, user.ID, stored)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate account")
	}

	if !activated {
		return nil, ErrAccountInvalid
	}

	s.emit(ctx, ActivityEvent{EventType: ActivityEventEmailVerified, UserID: user.ID.String()})

	updated, err := s.users.GetWithRole(ctx, user.ID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reload account")
	}

	return updated, nil
}

// Profile returns the user with its role, or nil, nil when absent
func (s *Service) Profile(ctx context.Context, userID string) (*User, error) {
	uid, ok := ParseUserID(userID)
	if !ok {
		return nil, nil
	}

	user, err := s.users.GetWithRole(ctx, uid)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load profile")
	}

	return user, nil
}

// Logout revokes every refresh token of the user and closes the session
// bound to token. claimed must be the payload of the caller's verified
// access token.
func (s *Service) Logout(ctx context.Context, userID string, claimed AccessPayload, token string) (string, error) {
	if claimed.UID != userID {
		return "", ErrUnauthorized
	}

	uid, ok := ParseUserID(userID)
	if !ok {
		return "", ErrAccountNotFound
	}

	user, err := s.users.GetByID(ctx, uid.String())
	if err != nil {
		if IsRecordNotFound(err) {
			return "", ErrAccountNotFound
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	if err := s.refreshTokens.DeleteByUser(ctx, user.ID); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke refresh tokens")
	}

	if err := s.sessions.DeleteByTokenUser(ctx, user.ID, token); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete session")
	}

	s.metrics.logout()
	s.emit(ctx, ActivityEvent{EventType: ActivityEventLogout, UserID: user.ID.String()})

	return MessageLogout, nil
}

// Refresh mints a new access token from a live refresh token and registers
// it as the session for the caller's device. The refresh token is not
// rotated.
func (s *Service) Refresh(ctx context.Context, rc RequestContext, refreshToken string) (res *SignInResult, err error) {
	defer func() { s.metrics.refresh(err) }()

	if err := (RefreshRequest{RefreshToken: refreshToken}).Validate(); err != nil {
		return nil, invalidInput(err)
	}

	payload, err := s.refresh.Verify(refreshToken)
	if err != nil {
		return nil, err
	}

	uid, ok := ParseUserID(payload.UID)
	if !ok {
		return nil, ErrInvalidToken
	}

	record, err := s.refreshTokens.Find(ctx, uid, refreshToken)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrRefreshTokenRevoked
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up refresh token")
	}

	if record.IsExpired(s.now()) {
		return nil, ErrRefreshTokenRevoked
	}

	user, err := s.users.GetByID(ctx, uid.String())
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	if !user.IsActive {
		return nil, ErrAccountNotVerified
	}

	accessToken, err := s.access.Sign(payload, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}

	device := s.devices.Resolve(rc)
	ip := NormalizeIP(rc.IP)

	_, err = s.sessions.CreateOrUpdate(ctx, &Session{
		UserID:    user.ID,
		Token:     accessToken,
		IPAddress: ip,
		Device:    device.Device,
		Platform:  device.Platform,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session")
	}

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventTokenRefreshed,
		UserID:    user.ID.String(),
		IP:        ip,
		Device:    device.Device,
	})

	return &SignInResult{
		Message:      MessageRefreshed,
		AccessToken:  accessToken,
		ExpiresIn:    int64(s.cfg.AccessTTL / time.Second),
		TokenType:    TokenTypeBearer,
		RefreshToken: refreshToken,
		User:         payload,
	}, nil
}

func (s *Service) defaultRoleID(ctx context.Context) *uuid.UUID {
	if s.cfg.DefaultRole == "" {
		return nil
	}

	role, err := s.users.RoleByName(ctx, s.cfg.DefaultRole)
	if err != nil {
		s.logger.Warn("default role unavailable", "role", s.cfg.DefaultRole, "error", err)
		return nil
	}

	return &role.ID
}

func (s *Service) submit(task Task) {
	if err := s.tasks.Submit(task); err != nil {
		s.logger.Error("failed to submit task", "task", task.Name, "error", err)
	}
}

func (s *Service) emit(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink failed", "event", event.EventType, "error", err)
	}
}

func (s *Service) emitLoginFailure(ctx context.Context, userID, ip string, device DeviceInfo, reason string) {
	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		UserID:    userID,
		IP:        ip,
		Device:    device.Device,
		Metadata:  map[string]any{"reason": reason},
	})
}
