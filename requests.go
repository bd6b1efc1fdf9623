package auth

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used to parse phone numbers given without a
// country prefix
var DefaultPhoneRegion = "US"

// MaxPasswordBytes is the longest password bcrypt accepts
const MaxPasswordBytes = 72

var (
	errInvalidPhone    = errors.New("must be a valid phone number")
	errPasswordTooLong = errors.New("must be at most 72 bytes long")
)

// RequestContext carries the transport facts sign-in needs to scope a session
type RequestContext struct {
	IP        string
	UserAgent string
}

// SignUpRequest holds the user attributes accepted on sign-up
type SignUpRequest struct {
	Fullname        string `json:"fullname" form:"fullname"`
	Email           string `json:"email" form:"email"`
	Phone           string `json:"phone" form:"phone"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

// Validate checks the sign-up payload
func (r SignUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Fullname, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.By(validatePhone)),
		validation.Field(&r.Password,
			validation.Required,
			validation.Length(8, 100),
			validation.By(validatePasswordBytes),
		),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

// SignInRequest holds the credentials accepted on sign-in
type SignInRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate checks the sign-in payload
func (r SignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// VerifyEmailRequest holds the email and the verification token sent to it
type VerifyEmailRequest struct {
	Email string `json:"email" form:"email"`
	Token string `json:"token" form:"token"`
}

// Validate checks the verification payload
func (r VerifyEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Token, validation.Required),
	)
}

// RefreshRequest holds the refresh token presented for renewal
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

// Validate checks the refresh payload
func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// ValidateStringEquals returns a rule that requires the value to equal str
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values do not match")
		}
		return nil
	}
}

func validatePasswordBytes(value any) error {
	s, _ := value.(string)
	if len(s) > MaxPasswordBytes {
		return errPasswordTooLong
	}
	return nil
}

func validatePhone(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := NormalizePhone(s); err != nil {
		return errInvalidPhone
	}
	return nil
}

// NormalizePhone parses a phone number and formats it as E.164
func NormalizePhone(phone string) (string, error) {
	num, err := phonenumbers.Parse(strings.TrimSpace(phone), DefaultPhoneRegion)
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", errInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// ParseUserID parses a user id given as a path parameter or token claim
func ParseUserID(id string) (uuid.UUID, bool) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil || parsed == uuid.Nil {
		return uuid.Nil, false
	}
	return parsed, true
}
