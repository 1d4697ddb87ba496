// Package token signs and verifies the access and refresh credentials handed to staff clients.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "backoffice"

// Audiences separate the two credential flavors on top of their distinct secrets.
const (
	AudienceAccess  = "access"
	AudienceRefresh = "refresh"
)

var (
	// ErrExpired indicates a correctly signed credential whose expiry has passed.
	ErrExpired = errors.New("token: expired")
	// ErrInvalid indicates a malformed, tampered or incomplete credential.
	ErrInvalid = errors.New("token: invalid")
)

// Payload is the caller identity embedded identically in access and refresh tokens.
type Payload struct {
	SessionID string
	UserID    string
	Firstname string
	Lastname  string
	Avatar    string
	Email     string
	RoleName  string
}

// Claims is the signed JWT body.
type Claims struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"uuid"`
	Firstname string `json:"firstname,omitempty"`
	Lastname  string `json:"lastname,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	Email     string `json:"email,omitempty"`
	RoleName  string `json:"role_name,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies one credential flavor. It is built once at startup and never mutated.
type Codec struct {
	secret   []byte
	ttl      time.Duration
	audience string
	now      func() time.Time
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec constructs a Codec for the given audience.
func NewCodec(secret string, ttl time.Duration, audience string, opts ...Option) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token: secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("token: ttl must be greater than zero")
	}
	c := &Codec{secret: []byte(secret), ttl: ttl, audience: audience, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewAccessCodec builds the short-lived access token codec.
func NewAccessCodec(secret string, ttl time.Duration, opts ...Option) (*Codec, error) {
	return NewCodec(secret, ttl, AudienceAccess, opts...)
}

// NewRefreshCodec builds the long-lived refresh token codec.
func NewRefreshCodec(secret string, ttl time.Duration, opts ...Option) (*Codec, error) {
	return NewCodec(secret, ttl, AudienceRefresh, opts...)
}

// TTL returns the lifetime applied to signed tokens.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Sign issues a token for the payload.
func (c *Codec) Sign(p Payload) (string, error) {
	if err := validatePayload(p); err != nil {
		return "", err
	}
	now := c.now().UTC()
	claims := Claims{
		SessionID: p.SessionID,
		UserID:    p.UserID,
		Firstname: p.Firstname,
		Lastname:  p.Lastname,
		Avatar:    p.Avatar,
		Email:     p.Email,
		RoleName:  p.RoleName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	if c.audience != "" {
		claims.Audience = jwt.ClaimStrings{c.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify checks the signature first, then expiry and the required claims.
func (c *Codec) Verify(raw string) (Payload, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(c.now),
	}
	if c.audience != "" {
		options = append(options, jwt.WithAudience(c.audience))
	}
	parsed, err := jwt.NewParser(options...).ParseWithClaims(strings.TrimSpace(raw), &Claims{}, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		// Claims are only validated after the signature, so an expiry error implies a genuine token.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Payload{}, ErrExpired
		}
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Payload{}, ErrInvalid
	}
	p := Payload{
		SessionID: claims.SessionID,
		UserID:    claims.UserID,
		Firstname: claims.Firstname,
		Lastname:  claims.Lastname,
		Avatar:    claims.Avatar,
		Email:     claims.Email,
		RoleName:  claims.RoleName,
	}
	if err := validatePayload(p); err != nil {
		return Payload{}, err
	}
	if claims.Subject != p.UserID {
		return Payload{}, fmt.Errorf("%w: subject mismatch", ErrInvalid)
	}
	return p, nil
}

// Sign issues a token with an ad-hoc secret and ttl.
func Sign(p Payload, secret string, ttl time.Duration) (string, error) {
	c, err := NewCodec(secret, ttl, "")
	if err != nil {
		return "", err
	}
	return c.Sign(p)
}

// Verify checks a token produced by Sign against secret.
func Verify(raw, secret string) (Payload, error) {
	c, err := NewCodec(secret, time.Second, "")
	if err != nil {
		return Payload{}, err
	}
	return c.Verify(raw)
}

func validatePayload(p Payload) error {
	if strings.TrimSpace(p.SessionID) == "" {
		return fmt.Errorf("%w: session id missing", ErrInvalid)
	}
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("%w: user id missing", ErrInvalid)
	}
	return nil
}
