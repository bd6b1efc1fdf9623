package auth

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeDuplicateEmail      = "DUPLICATE_EMAIL"
	TextCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeAccountNotVerified  = "ACCOUNT_NOT_VERIFIED"
	TextCodeSessionNotFound     = "SESSION_NOT_FOUND"
	TextCodeAccountInvalid      = "ACCOUNT_INVALID"
	TextCodeInvalidVerification = "INVALID_VERIFICATION"
	TextCodeUnauthorized        = "UNAUTHORIZED"
	TextCodeInvalidToken        = "INVALID_TOKEN"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenMalformed      = "TOKEN_MALFORMED"
	TextCodeRefreshTokenRevoked = "REFRESH_TOKEN_REVOKED"
	TextCodeInvalidInput        = "INVALID_INPUT"
	TextCodeInvalidConfig       = "INVALID_CONFIG"
	TextCodeEmptyPassword       = "EMPTY_PASSWORD"
	TextCodeMismatchedPassword  = "MISMATCHED_PASSWORD"
	TextCodeTaskQueueFull       = "TASK_QUEUE_FULL"
	TextCodeTaskQueueClosed     = "TASK_QUEUE_CLOSED"
)

// ErrDuplicateEmail is returned by SignUp when the email is already registered
var ErrDuplicateEmail = goerrors.New("email already registered", goerrors.CategoryValidation).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrAccountNotFound is returned when no user matches the given email or id
var ErrAccountNotFound = goerrors.New("account not found or has been deleted", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidCredentials is returned when the password does not match
var ErrInvalidCredentials = goerrors.New("incorrect email or password", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeBadRequest)

// ErrAccountNotVerified is returned on sign-in for accounts pending verification
var ErrAccountNotVerified = goerrors.New("please check your email account to verify your email and continue the registration process", goerrors.CategoryBadInput).
	WithTextCode(TextCodeAccountNotVerified).
	WithCode(goerrors.CodeBadRequest)

// ErrSessionNotFound is returned when no live session matches the user and token
var ErrSessionNotFound = goerrors.New("the login session has ended, please sign in again", goerrors.CategoryNotFound).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrAccountInvalid is returned when the user carries no verification token
var ErrAccountInvalid = goerrors.New("account not valid or has been deleted", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountInvalid).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidVerification is returned when the supplied verification token does not match
var ErrInvalidVerification = goerrors.New("invalid token and email combination", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidVerification).
	WithCode(goerrors.CodeBadRequest)

// ErrUnauthorized is returned when the verified token belongs to another user
var ErrUnauthorized = goerrors.New("invalid user login", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidToken is returned when a token fails signature or claim checks
var ErrInvalidToken = goerrors.New("invalid token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when a token is past its expiry
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when a token cannot be parsed
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshTokenRevoked is returned when a correctly signed refresh token
// has no live record in the refresh token store
var ErrRefreshTokenRevoked = goerrors.New("refresh token has been revoked", goerrors.CategoryAuth).
	WithTextCode(TextCodeRefreshTokenRevoked).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned by the hasher on mismatch
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodeMismatchedPassword).
	WithCode(goerrors.CodeUnauthorized)

// ErrQueueFull is returned by TaskQueue.Submit when the buffer is exhausted
var ErrQueueFull = goerrors.New("task queue is full", goerrors.CategoryOperation).
	WithTextCode(TextCodeTaskQueueFull)

// ErrQueueClosed is returned by TaskQueue.Submit after Close
var ErrQueueClosed = goerrors.New("task queue is closed", goerrors.CategoryOperation).
	WithTextCode(TextCodeTaskQueueClosed)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrTokenExpired) {
		return true
	}

	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrTokenMalformed) {
		return true
	}

	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

func invalidInput(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid input").
		WithTextCode(TextCodeInvalidInput).
		WithCode(goerrors.CodeBadRequest)
}
