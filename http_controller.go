package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-auth-session/middleware/bearer"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

const (
	localsPayloadKey = "user"
	localsTokenKey   = "token"

	MessageEmailVerified = "Email verified successfully"
)

// HTTPRoutes holds the paths the controller mounts
type HTTPRoutes struct {
	SignUp        string
	SignIn        string
	VerifyEmail   string
	Refresh       string
	VerifySession string
	Profile       string
	Logout        string
}

// HTTPController exposes an AuthService over fiber
type HTTPController struct {
	Debug        bool
	Logger       Logger
	Service      AuthService
	Routes       *HTTPRoutes
	ErrorHandler fiber.ErrorHandler
}

// HTTPControllerOption configures the controller
type HTTPControllerOption func(*HTTPController) *HTTPController

// WithControllerLogger sets the controller logger
func WithControllerLogger(logger Logger) HTTPControllerOption {
	return func(h *HTTPController) *HTTPController {
		if logger != nil {
			h.Logger = logger
		}
		return h
	}
}

// WithControllerDebug dumps request payloads and results to the logger
func WithControllerDebug(debug bool) HTTPControllerOption {
	return func(h *HTTPController) *HTTPController {
		h.Debug = debug
		return h
	}
}

// WithControllerErrorHandler replaces the JSON error renderer
func WithControllerErrorHandler(handler fiber.ErrorHandler) HTTPControllerOption {
	return func(h *HTTPController) *HTTPController {
		if handler != nil {
			h.ErrorHandler = handler
		}
		return h
	}
}

// NewHTTPController builds the controller around service
func NewHTTPController(service AuthService, opts ...HTTPControllerOption) *HTTPController {
	h := &HTTPController{
		Logger:       defLogger{},
		Service:      service,
		ErrorHandler: HTTPErrorHandler,
		Routes: &HTTPRoutes{
			SignUp:        "/auth/sign-up",
			SignIn:        "/auth/sign-in",
			VerifyEmail:   "/auth/verify-email",
			Refresh:       "/auth/refresh-token",
			VerifySession: "/auth/verify-session",
			Profile:       "/profile",
			Logout:        "/logout/:userID",
		},
	}

	for _, opt := range opts {
		if opt != nil {
			h = opt(h)
		}
	}

	if h.Service == nil {
		panic("Missing AuthService in http controller...")
	}

	return h
}

// RegisterRoutes mounts every route on router
func (h *HTTPController) RegisterRoutes(router fiber.Router) {
	authenticated := h.Bearer()

	router.Post(h.Routes.SignUp, h.SignUp).Name("auth.sign-up")
	router.Post(h.Routes.SignIn, h.SignIn).Name("auth.sign-in")
	router.Post(h.Routes.VerifyEmail, h.VerifyEmail).Name("auth.verify-email")
	router.Post(h.Routes.Refresh, h.Refresh).Name("auth.refresh-token")

	router.Get(h.Routes.VerifySession, authenticated, h.SessionGuard, h.VerifySession).Name("auth.verify-session")
	router.Get(h.Routes.Profile, authenticated, h.SessionGuard, h.Profile).Name("profile")
	router.Post(h.Routes.Logout, authenticated, h.Logout).Name("logout")
}

// Bearer verifies the access token signature, expiry and kind
func (h *HTTPController) Bearer() fiber.Handler {
	codec := h.Service.AccessTokens()
	return bearer.New(bearer.Config{
		ContextKey: localsPayloadKey,
		TokenKey:   localsTokenKey,
		Verify: func(token string) (any, error) {
			return codec.Verify(token)
		},
		SuccessHandler: func(c *fiber.Ctx) error {
			if payload, ok := PayloadFromCtx(c); ok {
				c.SetUserContext(WithPayloadContext(c.UserContext(), payload))
			}
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if errors.Is(err, bearer.ErrJWTMissingOrMalformed) {
				err = ErrTokenMalformed
			}
			return h.ErrorHandler(c, err)
		},
	})
}

// SessionGuard rejects signed tokens that are no longer the live session for
// their user
func (h *HTTPController) SessionGuard(c *fiber.Ctx) error {
	payload, ok := PayloadFromCtx(c)
	if !ok {
		return h.ErrorHandler(c, ErrUnauthorized)
	}

	user, err := h.Service.VerifySession(c.UserContext(), payload.UID, bearer.Token(c, localsTokenKey))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return renderError(c, fiber.StatusUnauthorized, ErrSessionNotFound)
		}
		return h.ErrorHandler(c, err)
	}

	if user == nil {
		return h.ErrorHandler(c, ErrUnauthorized)
	}

	c.SetUserContext(WithContext(c.UserContext(), user))
	return c.Next()
}

func (h *HTTPController) SignUp(c *fiber.Ctx) error {
	req := SignUpRequest{}
	if err := c.BodyParser(&req); err != nil {
		return h.ErrorHandler(c, invalidInput(err))
	}

	res, err := h.Service.SignUp(c.UserContext(), req)
	if err != nil {
		return h.ErrorHandler(c, err)
	}

	h.debug("sign up", res)
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *HTTPController) SignIn(c *fiber.Ctx) error {
	req := SignInRequest{}
	if err := c.BodyParser(&req); err != nil {
		return h.ErrorHandler(c, invalidInput(err))
	}

	res, err := h.Service.SignIn(c.UserContext(), requestContext(c), req)
	if err != nil {
		return h.ErrorHandler(c, err)
	}

	h.debug("sign in", res.User)
	return c.JSON(res)
}

func (h *HTTPController) VerifyEmail(c *fiber.Ctx) error {
	req := VerifyEmailRequest{}
	if err := c.BodyParser(&req); err != nil {
		return h.ErrorHandler(c, invalidInput(err))
	}

	req.Email = NormalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		return h.ErrorHandler(c, invalidInput(err))
	}

	user, err := h.Service.VerifyEmail(c.UserContext(), req.Email, req.Token)
	if err != nil {
		return h.ErrorHandler(c, err)
	}

	h.debug("verify email", user)
	return c.JSON(fiber.Map{
		"message": MessageEmailVerified,
		"data":    user,
	})
}

func (h *HTTPController) Refresh(c *fiber.Ctx) error {
	req := RefreshRequest{}
	if err := c.BodyParser(&req); err != nil {
		return h.ErrorHandler(c, invalidInput(err))
	}

	res, err := h.Service.Refresh(c.UserContext(), requestContext(c), req.RefreshToken)
	if err != nil {
		return h.ErrorHandler(c, err)
	}

	return c.JSON(res)
}

func (h *HTTPController) VerifySession(c *fiber.Ctx) error {
	user, ok := FromContext(c.UserContext())
	if !ok {
		return h.ErrorHandler(c, ErrUnauthorized)
	}
	return c.JSON(fiber.Map{"data": user})
}

func (h *HTTPController) Profile(c *fiber.Ctx) error {
	payload, ok := PayloadFromContext(c.UserContext())
	if !ok {
		return h.ErrorHandler(c, ErrUnauthorized)
	}

	user, err := h.Service.Profile(c.UserContext(), payload.UID)
	if err != nil {
		return h.ErrorHandler(c, err)
	}

	if user == nil {
		return h.ErrorHandler(c, ErrAccountNotFound)
	}

	return c.JSON(fiber.Map{"data": user})
}

func (h *HTTPController) Logout(c *fiber.Ctx) error {
	payload, ok := PayloadFromCtx(c)
	if !ok {
		return h.ErrorHandler(c, ErrUnauthorized)
	}

	msg, err := h.Service.Logout(c.UserContext(), c.Params("userID"), payload, bearer.Token(c, localsTokenKey))
	if err != nil {
		return h.ErrorHandler(c, err)
	}

	return c.JSON(fiber.Map{"message": msg})
}

func (h *HTTPController) debug(msg string, v any) {
	if !h.Debug {
		return
	}
	h.Logger.Debug(msg, "payload", print.MaybePrettyJSON(v))
}

// PayloadFromCtx returns the access payload stored by the bearer middleware
func PayloadFromCtx(c *fiber.Ctx) (AccessPayload, bool) {
	payload, ok := c.Locals(localsPayloadKey).(AccessPayload)
	if !ok || !payload.HasUID() {
		return AccessPayload{}, false
	}
	return payload, true
}

func requestContext(c *fiber.Ctx) RequestContext {
	return RequestContext{
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

// HTTPErrorHandler renders err as JSON using the status carried by
// *goerrors.Error, or 500 for anything else
func HTTPErrorHandler(c *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code > 0 {
		return renderError(c, richErr.Code, richErr)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return renderError(c, fiberErr.Code, goerrors.New(fiberErr.Message, goerrors.CategoryBadInput))
	}

	if IsMalformedError(err) || IsTokenExpiredError(err) {
		return renderError(c, fiber.StatusUnauthorized, ErrInvalidToken)
	}

	return renderError(c, fiber.StatusInternalServerError,
		goerrors.New("internal server error", goerrors.CategoryInternal))
}

func renderError(c *fiber.Ctx, status int, err *goerrors.Error) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":      status,
			"text_code": err.TextCode,
			"message":   err.Message,
			"metadata":  err.Metadata,
		},
	})
}
