package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenExpired     = errors.New("token expired")
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrMissingSecret    = errors.New("token signing secret is not configured")
)

type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims is the payload carried by both access and refresh tokens:
// sub, email, role, iat, exp, plus the token kind and a unique jti.
type Claims struct {
	Email string    `json:"email"`
	Role  string    `json:"role"`
	Kind  TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string {
	return c.Subject
}

func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// TokenSubject is what gets embedded into a token.
type TokenSubject struct {
	UserID string
	Email  string
	Role   string
}

type TokenCodecConfig struct {
	Secret string
	Issuer string
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// TokenCodec signs and verifies HS256 JWTs with a server-held secret.
type TokenCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenCodec(cfg TokenCodecConfig) (*TokenCodec, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenCodec{secret: []byte(cfg.Secret), issuer: cfg.Issuer, now: now}, nil
}

// Issue signs a token for subject expiring ttl after now.
func (c *TokenCodec) Issue(subject TokenSubject, kind TokenKind, ttl time.Duration) (string, time.Time, error) {
	now := c.now().UTC().Truncate(time.Second)
	exp := now.Add(ttl)
	claims := Claims{
		Email: subject.Email,
		Role:  subject.Role,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign jwt: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, issuer and expiry. Failures are reported as
// ErrTokenExpired or ErrSignatureInvalid.
func (c *TokenCodec) Verify(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrSignatureInvalid
	}
	return claims, nil
}
