package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenCodec signs and verifies one class of bearer token. The class is
// fixed by the secret and the kind claim, so a token minted by one codec
// fails verification under any codec built with a different secret or kind.
type TokenCodec[P Payload] struct {
	secret []byte
	kind   TokenKind
	issuer string
	now    func() time.Time
	logger Logger
}

type codecOptions struct {
	issuer string
	now    func() time.Time
	logger Logger
}

// CodecOption configures a TokenCodec
type CodecOption func(*codecOptions)

// WithCodecIssuer sets the iss claim, which is then required on verify
func WithCodecIssuer(issuer string) CodecOption {
	return func(o *codecOptions) {
		o.issuer = issuer
	}
}

// WithCodecClock overrides the clock used for iat/exp and validation
func WithCodecClock(now func() time.Time) CodecOption {
	return func(o *codecOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithCodecLogger sets the codec logger
func WithCodecLogger(logger Logger) CodecOption {
	return func(o *codecOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewTokenCodec creates a codec for tokens of the given kind signed with secret
func NewTokenCodec[P Payload](secret string, kind TokenKind, opts ...CodecOption) *TokenCodec[P] {
	o := &codecOptions{
		now:    time.Now,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	return &TokenCodec[P]{
		secret: []byte(secret),
		kind:   kind,
		issuer: o.issuer,
		now:    o.now,
		logger: o.logger,
	}
}

// Kind returns the kind stamped on tokens minted by this codec
func (c *TokenCodec[P]) Kind() TokenKind {
	return c.kind
}

// Sign produces a signed token carrying payload that expires ttl from now
func (c *TokenCodec[P]) Sign(payload P, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", goerrors.New("token ttl must be positive", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"kind": string(c.kind)})
	}

	now := c.now()
	claims := &Claims[P]{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind: c.kind,
		Data: payload,
	}

	if p, ok := any(payload).(AccessPayload); ok {
		claims.Subject = p.UID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// Verify checks signature, expiry and kind, and returns the payload
func (c *TokenCodec[P]) Verify(tokenString string) (P, error) {
	var zero P

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(c.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims[P]{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			c.logger.Error("TokenCodec verify encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, parserOptions...)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return zero, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return zero, ErrTokenMalformed
		default:
			c.logger.Debug("TokenCodec verify failed", "kind", c.kind, "error", err)
			return zero, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims[P])
	if !ok || !token.Valid {
		return zero, ErrInvalidToken
	}

	if claims.Kind != c.kind {
		c.logger.Warn("TokenCodec verify kind mismatch", "expected", c.kind, "got", claims.Kind)
		return zero, ErrInvalidToken
	}

	return claims.Data, nil
}
